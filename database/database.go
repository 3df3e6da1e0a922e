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
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/williamhnyohei/Vetra/database/plugin/storage"
)

type Config struct {
	Logger        *slog.Logger
	PromRegistry  prometheus.Registerer
	DataDir       string
	StoragePlugin string
}

type Database struct {
	logger *slog.Logger
	store  storage.Store
	config Config
}

// Store returns the underlying storage backend
func (d *Database) Store() storage.Store {
	return d.store
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	return d.store.Close()
}

// New creates a new database instance with optional persistence using the
// configured data directory
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	db := &Database{
		logger: config.Logger,
		config: *config,
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if db.config.StoragePlugin == "" {
		db.config.StoragePlugin = storage.DefaultPlugin
	}
	store, err := storage.New(
		db.config.StoragePlugin,
		db.config.DataDir,
		db.logger,
		db.config.PromRegistry,
	)
	if err != nil {
		return nil, err
	}
	db.store = store
	db.logger.Debug(
		"opened storage",
		"component", "database",
		"plugin", db.config.StoragePlugin,
		"data_dir", db.config.DataDir,
	)
	return db, nil
}
