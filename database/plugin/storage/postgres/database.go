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

package postgres

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/williamhnyohei/Vetra/database/plugin/storage/gormstore"
	"gorm.io/driver/postgres"
)

// StorePostgres stores the ledger in Postgres. The connection is opened by
// Start
type StorePostgres struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger

	host     string
	port     uint
	user     string
	password string
	database string
	sslMode  string
	timeZone string
	dsn      string // Data source name (postgres connection string)
}

// New creates a Postgres store with the given options, applying defaults for
// anything left unset
func New(opts ...PostgresOptionFunc) (*StorePostgres, error) {
	d := &StorePostgres{}
	for _, opt := range opts {
		opt(d)
	}
	if d.host == "" {
		d.host = "localhost"
	}
	if d.port == 0 {
		d.port = 5432
	}
	if d.user == "" {
		d.user = "postgres"
	}
	if d.database == "" {
		d.database = "vetra"
	}
	if d.sslMode == "" {
		d.sslMode = "disable"
	}
	if d.timeZone == "" {
		d.timeZone = "UTC"
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return d, nil
}

// DSN returns the connection string used by Start
func (d *StorePostgres) DSN() string {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		return dsn
	}
	parts := []string{
		"host=" + d.host,
		"user=" + d.user,
		"password=" + d.password,
		"dbname=" + d.database,
		"port=" + strconv.FormatUint(uint64(d.port), 10),
		"sslmode=" + d.sslMode,
	}
	if d.timeZone != "" {
		parts = append(parts, "TimeZone="+d.timeZone)
	}
	return strings.Join(parts, " ")
}

// Start implements the plugin.Plugin interface. Calling it on a started
// store does nothing
func (d *StorePostgres) Start() error {
	if d.Store != nil {
		return nil
	}
	store, err := gormstore.Open(postgres.Open(d.DSN()))
	if err != nil {
		return err
	}
	sqlDb, err := store.DB().DB()
	if err != nil {
		return errors.Join(err, store.Close())
	}
	sqlDb.SetMaxIdleConns(10)
	sqlDb.SetMaxOpenConns(100)
	sqlDb.SetConnMaxLifetime(time.Hour)
	if err := store.Setup(d.logger, d.promRegistry); err != nil {
		return errors.Join(err, store.Close())
	}
	d.Store = store
	d.logger.Info(
		"connected to postgres",
		"component", "database",
		"host", d.host,
		"port", d.port,
		"database", d.database,
	)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *StorePostgres) Stop() error {
	return d.Close()
}

// Close closes the connection pool. A store that never started has nothing
// to close
func (d *StorePostgres) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
