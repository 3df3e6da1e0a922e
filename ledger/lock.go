// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import "sync"

// identityLocks hands out one exclusive lock per identity. Entries are
// dropped once nobody holds or waits for them
type identityLocks struct {
	locks map[Identity]*identityLock
	mu    sync.Mutex
}

type identityLock struct {
	sync.Mutex
	refs int
}

// lock blocks until the lock for id is held and returns its release func
func (l *identityLocks) lock(id Identity) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[Identity]*identityLock)
	}
	entry, ok := l.locks[id]
	if !ok {
		entry = &identityLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *identityLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
