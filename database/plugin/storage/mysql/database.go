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

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/williamhnyohei/Vetra/database/plugin/storage/gormstore"
	gormmysql "gorm.io/driver/mysql"
)

// StoreMysql stores the ledger in MySQL. The connection is opened by Start
type StoreMysql struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger

	host     string
	port     uint
	user     string
	password string
	database string
	tls      string
	timeZone string
	dsn      string // Data source name (MySQL connection string)
}

// New creates a MySQL store with the given options, applying defaults for
// anything left unset
func New(opts ...MysqlOptionFunc) (*StoreMysql, error) {
	d := &StoreMysql{}
	for _, opt := range opts {
		opt(d)
	}
	if d.host == "" {
		d.host = "localhost"
	}
	if d.port == 0 {
		d.port = 3306
	}
	if d.user == "" {
		d.user = "root"
	}
	if d.database == "" {
		d.database = "vetra"
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

// DSN returns the connection string used by Start. Found rows are reported
// as affected, so an update that leaves a row unchanged still counts as a hit
func (d *StoreMysql) DSN() (string, error) {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid dsn: %w", err)
		}
		cfg.ClientFoundRows = true
		return cfg.FormatDSN(), nil
	}
	loc, err := time.LoadLocation(d.timeZone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", d.timeZone, err)
	}
	cfg := mysql.NewConfig()
	cfg.User = d.user
	cfg.Passwd = d.password
	cfg.Net = "tcp"
	cfg.Addr = d.host + ":" + strconv.FormatUint(uint64(d.port), 10)
	cfg.DBName = d.database
	cfg.ParseTime = true
	cfg.AllowNativePasswords = true
	cfg.ClientFoundRows = true
	cfg.Loc = loc
	cfg.TLSConfig = d.tls
	return cfg.FormatDSN(), nil
}

// Start implements the plugin.Plugin interface. Calling it on a started
// store does nothing
func (d *StoreMysql) Start() error {
	if d.Store != nil {
		return nil
	}
	dsn, err := d.DSN()
	if err != nil {
		return err
	}
	store, err := gormstore.Open(gormmysql.Open(dsn))
	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 1049 is "unknown database"
		if !errors.As(err, &mysqlErr) || mysqlErr.Number != 1049 {
			return err
		}
		if createErr := d.createDatabase(dsn); createErr != nil {
			return errors.Join(err, createErr)
		}
		store, err = gormstore.Open(gormmysql.Open(dsn))
		if err != nil {
			return err
		}
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
		"connected to mysql",
		"component", "database",
		"host", d.host,
		"port", d.port,
		"database", d.database,
	)
	return nil
}

// createDatabase connects without a database selected and creates the one
// named in dsn
func (d *StoreMysql) createDatabase(dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	dbName := cfg.DBName
	if dbName == "" || strings.Contains(dbName, "`") {
		return fmt.Errorf("cannot create database %q", dbName)
	}
	cfg.DBName = ""
	admin, err := gormstore.Open(gormmysql.Open(cfg.FormatDSN()))
	if err != nil {
		return err
	}
	defer admin.Close() //nolint:errcheck
	d.logger.Info(
		"creating mysql database",
		"component", "database",
		"database", dbName,
	)
	return admin.DB().
		Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)).
		Error
}

// Stop implements the plugin.Plugin interface
func (d *StoreMysql) Stop() error {
	return d.Close()
}

// Close closes the connection pool. A store that never started has nothing
// to close
func (d *StoreMysql) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
