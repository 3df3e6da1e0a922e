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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/internal/config"
	"github.com/williamhnyohei/Vetra/internal/objstore"
	"github.com/williamhnyohei/Vetra/ledger"
)

func openDatabase(cfg *config.Config, logger *slog.Logger) (*database.Database, error) {
	return database.New(&database.Config{
		Logger:        logger,
		DataDir:       cfg.DatabasePath,
		StoragePlugin: cfg.StoragePlugin,
	})
}

func objstoreConfig(cfg *config.Config, logger *slog.Logger) objstore.Config {
	return objstore.Config{
		Logger:             logger,
		S3Endpoint:         cfg.S3Endpoint,
		S3Region:           cfg.S3Region,
		GCSCredentialsFile: cfg.GcsCredentialsFile,
	}
}

// ExportSnapshot writes a snapshot of the configured database to loc, which
// is a local path or an s3:// or gcs:// object. The node must not be running
// against the same data directory
func ExportSnapshot(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	loc string,
) (err error) {
	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}()
	w, err := objstore.Create(ctx, objstoreConfig(cfg, logger), loc)
	if err != nil {
		return err
	}
	stats, err := db.ExportSnapshot(w)
	if err != nil {
		w.Abort()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Info(
		"exported snapshot to "+loc,
		"component", "node",
		"providers", stats.Providers,
		"attestations", stats.Attestations,
		"wallets", stats.Wallets,
	)
	return nil
}

// ImportSnapshot loads a snapshot from loc into the configured database,
// which must be empty
func ImportSnapshot(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	loc string,
) (err error) {
	r, err := objstore.Open(ctx, objstoreConfig(cfg, logger), loc)
	if err != nil {
		return err
	}
	defer r.Close()
	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}()
	stats, err := db.ImportSnapshot(r, ledger.SnapshotRules{})
	if err != nil {
		return err
	}
	logger.Info(
		"imported snapshot from "+loc,
		"component", "node",
		"providers", stats.Providers,
		"attestations", stats.Attestations,
		"wallets", stats.Wallets,
	)
	return nil
}
