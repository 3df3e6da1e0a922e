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

package badger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/williamhnyohei/Vetra/database/types"
)

// Default sizes for BadgerDB (in bytes)
const (
	DefaultBlockCacheSize   = 67108864  // 64MB
	DefaultIndexCacheSize   = 33554432  // 32MB
	DefaultValueLogFileSize = 268435456 // 256MB
	DefaultMemTableSize     = 67108864  // 64MB
	DefaultValueThreshold   = 1048576   // 1MB
)

var errKeyNotFound = errors.New("key not found")

// badgerTxn wraps a badger transaction and implements types.Txn
type badgerTxn struct {
	store     *StoreBadger
	tx        *badger.Txn
	finished  bool
	readWrite bool
}

func (t *badgerTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if !t.readWrite {
		t.tx.Discard()
		return nil
	}
	return t.tx.Commit()
}

func (t *badgerTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.tx.Discard()
	t.finished = true
	return nil
}

// StoreBadger stores all data in badger, with records encoded as CBOR
type StoreBadger struct {
	promRegistry     prometheus.Registerer
	db               *badger.DB
	logger           *slog.Logger
	gcTicker         *time.Ticker
	gcStopCh         chan struct{}
	dataDir          string
	gcWg             sync.WaitGroup
	closeOnce        sync.Once
	blockCacheSize   uint64
	indexCacheSize   uint64
	valueLogFileSize int64
	memTableSize     int64
	valueThreshold   int64
	gcEnabled        bool
}

// New creates a new database
func New(opts ...BadgerOptionFunc) (*StoreBadger, error) {
	d := &StoreBadger{
		// Set defaults
		gcEnabled:        true,
		blockCacheSize:   DefaultBlockCacheSize,
		indexCacheSize:   DefaultIndexCacheSize,
		valueLogFileSize: DefaultValueLogFileSize,
		memTableSize:     DefaultMemTableSize,
		valueThreshold:   DefaultValueThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if d.dataDir == "" {
		// No dataDir, use in-memory config
		badgerOpts = badger.DefaultOptions("").
			WithLogger(NewBadgerLogger(d.logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true).
			WithValueThreshold(d.valueThreshold)
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(d.dataDir, "badger")).
			WithLogger(NewBadgerLogger(d.logger)).
			WithLoggingLevel(badger.WARNING).
			WithBlockCacheSize(int64(d.blockCacheSize)). //nolint:gosec // blockCacheSize is controlled and reasonable
			WithIndexCacheSize(int64(d.indexCacheSize)). //nolint:gosec // indexCacheSize is controlled and reasonable
			WithValueLogFileSize(d.valueLogFileSize).
			WithMemTableSize(d.memTableSize).
			WithValueThreshold(d.valueThreshold).
			WithCompression(options.Snappy)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	d.db = db
	d.init()
	return d, nil
}

func (d *StoreBadger) init() {
	// Configure metrics
	if d.promRegistry != nil {
		d.registerMetrics()
	}
	// Value log GC only applies to on-disk stores
	if d.gcEnabled && d.dataDir != "" {
		d.gcTicker = time.NewTicker(5 * time.Minute)
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.valueLogGc(d.gcTicker, d.gcStopCh)
	}
}

func (d *StoreBadger) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer d.gcWg.Done()
	for {
		select {
		case <-t.C:
		again:
			err := d.DB().RunValueLogGC(0.5)
			if err != nil {
				// Log any actual errors
				if !errors.Is(err, badger.ErrNoRewrite) {
					d.logger.Warn(
						fmt.Sprintf("badger: GC failure: %s", err),
						"component", "database",
					)
				}
			} else {
				// Run it again if it just ran successfully
				goto again
			}
		case <-stop:
			return
		}
	}
}

// Start implements the plugin.Plugin interface
func (d *StoreBadger) Start() error {
	// Database is already opened in New(), so this is a no-op
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *StoreBadger) Stop() error {
	return d.Close()
}

// Close stops the GC goroutine and closes the database
func (d *StoreBadger) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.gcTicker != nil {
			d.gcTicker.Stop()
			close(d.gcStopCh)
			// Wait for GC goroutine to finish
			d.gcWg.Wait()
		}
		err = d.DB().Close()
	})
	return err
}

// DB returns the database handle
func (d *StoreBadger) DB() *badger.DB {
	return d.db
}

// Transaction creates a new badger transaction
func (d *StoreBadger) Transaction(readWrite bool) types.Txn {
	return &badgerTxn{
		store:     d,
		tx:        d.DB().NewTransaction(readWrite),
		readWrite: readWrite,
	}
}

// withTxn runs fn against the badger transaction behind txn. A nil txn runs
// fn in its own short-lived transaction
func (d *StoreBadger) withTxn(
	txn types.Txn,
	write bool,
	fn func(*badger.Txn) error,
) error {
	if txn == nil {
		if write {
			return d.DB().Update(fn)
		}
		return d.DB().View(fn)
	}
	t, ok := txn.(*badgerTxn)
	if !ok {
		return types.ErrTxnWrongType
	}
	if t.store != d {
		return errors.New("transaction from different store")
	}
	if t.finished {
		return types.ErrTxnFinished
	}
	if write && !t.readWrite {
		return types.ErrReadOnlyTxn
	}
	return fn(t.tx)
}

func getRecord(tx *badger.Txn, key []byte, dest any) error {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errKeyNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, dest)
	})
}

func setRecord(tx *badger.Txn, key []byte, src any) error {
	val, err := cbor.Marshal(src)
	if err != nil {
		return err
	}
	return tx.Set(key, val)
}

func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
