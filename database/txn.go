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

package database

import (
	"fmt"
	"sync"

	"github.com/williamhnyohei/Vetra/database/types"
)

// Txn is a wrapper around a storage backend transaction
type Txn struct {
	db        *Database
	storeTxn  types.Txn
	lock      sync.Mutex
	finished  bool
	readWrite bool
}

func NewTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if s := db.Store(); s != nil {
		t.storeTxn = s.Transaction(readWrite)
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Store returns the underlying storage backend transaction handle
func (t *Txn) Store() types.Txn {
	return t.storeTxn
}

// ReadWrite reports whether the transaction may write
func (t *Txn) ReadWrite() bool {
	return t.readWrite
}

// Do executes the specified function in the context of the transaction. Any errors returned will result
// in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	if t.storeTxn == nil {
		t.finished = true
		if t.readWrite {
			return types.ErrNoStoreAvailable
		}
		return nil
	}
	// No need to commit for read-only, but we do want to free up resources
	if !t.readWrite {
		return t.rollback()
	}
	if err := t.storeTxn.Commit(); err != nil {
		_ = t.storeTxn.Rollback()
		t.finished = true
		return err
	}
	t.finished = true
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.storeTxn == nil {
		return nil
	}
	if err := t.storeTxn.Rollback(); err != nil {
		return fmt.Errorf("storage rollback: %w", err)
	}
	return nil
}

// Release releases transaction resources. For read-only transactions, this
// releases locks and resources. For read-write transactions, this is equivalent
// to Rollback. Use this in defer statements for clean resource cleanup.
// Errors are logged but not returned, making this safe for deferred calls.
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}

// storeTxnOrNil unwraps txn, allowing callers to pass a nil *Txn
func storeTxnOrNil(txn *Txn) types.Txn {
	if txn == nil {
		return nil
	}
	return txn.storeTxn
}
