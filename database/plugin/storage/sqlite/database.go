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

package sqlite

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/williamhnyohei/Vetra/database/plugin/storage/gormstore"
)

// memoryDbCounter gives each in-memory store its own database, so stores
// opened in the same process do not share state
var memoryDbCounter atomic.Uint64

// StoreSqlite is a SQLite-based implementation of the storage backend
type StoreSqlite struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	timerVacuum  *time.Timer
	timerMutex   sync.Mutex
	dataDir      string
	closed       bool
	vacuumWG     sync.WaitGroup
}

// New creates a SQLite store. Uses in-memory database if dataDir is empty.
func New(opts ...SqliteOptionFunc) (*StoreSqlite, error) {
	d := &StoreSqlite{}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var dsn string
	if d.dataDir == "" {
		// cache=shared keeps the database alive as long as any connection is open
		dsn = fmt.Sprintf(
			"file:vetra-%d?mode=memory&cache=shared",
			memoryDbCounter.Add(1),
		)
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dbPath := filepath.Join(d.dataDir, "vetra.sqlite")
		// WAL journal mode, wait on a locked database instead of failing
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dsn = fmt.Sprintf("file:%s?%s", dbPath, connOpts)
	}
	store, err := gormstore.Open(sqlite.Open(dsn))
	if err != nil {
		return nil, err
	}
	d.Store = store
	if err := d.init(); err != nil {
		return nil, errors.Join(err, d.Close())
	}
	return d, nil
}

func (d *StoreSqlite) init() error {
	sqlDb, err := d.DB().DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	// SQLite allows a single writer. Funneling everything through one
	// connection makes a write transaction exclusive instead of failing
	// with SQLITE_BUSY
	sqlDb.SetMaxOpenConns(1)
	if err := d.Setup(d.logger, d.promRegistry); err != nil {
		return err
	}
	// Schedule daily database vacuum to free unused space
	d.scheduleDailyVacuum()
	return nil
}

func (d *StoreSqlite) runVacuum() error {
	d.timerMutex.Lock()
	if d.dataDir == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	// Track this vacuum operation while we know the store is open
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()
	return d.DB().Exec("VACUUM").Error
}

// scheduleDailyVacuum schedules a daily vacuum operation
func (d *StoreSqlite) scheduleDailyVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed {
		return
	}
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
	}
	daily := time.Duration(24) * time.Hour
	f := func() {
		d.logger.Debug(
			"running vacuum on sqlite database",
			"component", "database",
		)
		// schedule next run
		defer d.scheduleDailyVacuum()
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in sqlite database",
				"component", "database",
				"error", err,
			)
		}
	}
	d.timerVacuum = time.AfterFunc(daily, f)
}

// Start implements the plugin.Plugin interface
func (d *StoreSqlite) Start() error {
	// Database is already opened in New(), so this is a no-op
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *StoreSqlite) Stop() error {
	return d.Close()
}

// Close shuts down the database connection and stops background processes.
func (d *StoreSqlite) Close() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()
	// Wait for any in-flight vacuum operations to complete
	d.vacuumWG.Wait()
	return d.Store.Close()
}
