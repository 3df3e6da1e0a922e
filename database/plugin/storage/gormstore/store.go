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

// Package gormstore implements the storage accessors once for every SQL
// backend reachable through a GORM dialect
package gormstore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Store holds a GORM handle and serves the storage accessors from it
type Store struct {
	db *gorm.DB
}

// Open connects to a database using the GORM settings shared by all SQL
// backends
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(
		dialector,
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Setup enables tracing, exports connection pool stats to promRegistry if
// set, and creates any missing tables
func (s *Store) Setup(
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) error {
	if err := s.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if promRegistry != nil {
		sqlDb, err := s.db.DB()
		if err != nil {
			return fmt.Errorf("get database handle: %w", err)
		}
		if err := promRegistry.Register(
			collectors.NewDBStatsCollector(sqlDb, "vetra"),
		); err != nil {
			logger.Warn(
				"failed to register database metrics",
				"component", "database",
				"error", err,
			)
		}
	}
	for _, model := range models.MigrateModels {
		logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := s.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the underlying GORM database handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the connection pool
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}

// Transaction creates a new database transaction
func (s *Store) Transaction(readWrite bool) types.Txn {
	return &gormTxn{
		store:     s,
		db:        s.db.Begin(),
		readWrite: readWrite,
	}
}

// insertIfAbsent makes Create skip a row whose unique key already exists and
// report zero rows affected for it. MySQL gets INSERT IGNORE: its
// ON DUPLICATE KEY UPDATE form counts the skipped row as affected when the
// connection reports found rows
func insertIfAbsent(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "mysql" {
		return db.Clauses(clause.Insert{Modifier: "IGNORE"})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true})
}

// resolveDB returns the GORM handle to use for an operation. A nil txn
// operates directly on the database
func (s *Store) resolveDB(txn types.Txn, write bool) (*gorm.DB, error) {
	if txn == nil {
		return s.db, nil
	}
	t, ok := txn.(*gormTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if t.store != s {
		return nil, errors.New("transaction from different store")
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	if write && !t.readWrite {
		return nil, types.ErrReadOnlyTxn
	}
	if t.db.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", t.db.Error)
	}
	return t.db, nil
}

// gormTxn wraps a GORM transaction and implements types.Txn
type gormTxn struct {
	store     *Store
	db        *gorm.DB
	finished  bool
	readWrite bool
}

func (t *gormTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.db.Error != nil {
		return t.db.Error
	}
	// Nothing to persist for read-only transactions
	if !t.readWrite {
		return t.db.Rollback().Error
	}
	return t.db.Commit().Error
}

func (t *gormTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.db.Error != nil {
		return nil
	}
	return t.db.Rollback().Error
}
