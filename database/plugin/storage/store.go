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

package storage

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/database/plugin"
	"github.com/williamhnyohei/Vetra/database/plugin/storage/badger"
	"github.com/williamhnyohei/Vetra/database/plugin/storage/mysql"
	"github.com/williamhnyohei/Vetra/database/plugin/storage/postgres"
	"github.com/williamhnyohei/Vetra/database/plugin/storage/sqlite"
	"github.com/williamhnyohei/Vetra/database/types"
)

const DefaultPlugin = "sqlite"

// Store is implemented by every storage backend. All accessors take a
// transaction from Transaction(); reads also accept nil and run outside of
// any transaction.
type Store interface {
	plugin.Plugin

	// Database
	Close() error
	Transaction(readWrite bool) types.Txn

	// Providers
	GetProvider(
		[]byte, // authority
		types.Txn,
	) (*models.Provider, error)
	// CreateProvider fails with models.ErrProviderExists if a record for the
	// authority is already present
	CreateProvider(*models.Provider, types.Txn) error
	UpdateProvider(*models.Provider, types.Txn) error
	// GetProviders returns providers ordered by reputation (highest first),
	// then authority. A limit of 0 returns all of them
	GetProviders(
		int, // limit
		types.Txn,
	) ([]models.Provider, error)

	// Attestations
	GetAttestation(
		[]byte, // attestation ID
		types.Txn,
	) (*models.Attestation, error)
	// CreateAttestation fails with models.ErrAttestationExists if a record
	// with the same ID is already present
	CreateAttestation(*models.Attestation, types.Txn) error
	UpdateAttestationVotes(
		[]byte, // attestation ID
		uint64, // votes for
		uint64, // votes against
		types.Txn,
	) error
	// GetAttestationsByProvider returns attestations in creation order
	GetAttestationsByProvider(
		[]byte, // provider
		types.Txn,
	) ([]models.Attestation, error)
	GetAttestationsByTransaction(
		[]byte, // transaction ref
		types.Txn,
	) ([]models.Attestation, error)

	// Wallets
	GetBalance(
		[]byte, // owner
		types.Txn,
	) (uint64, error)
	SetBalance(
		[]byte, // owner
		uint64, // balance
		types.Txn,
	) error
	// GetWallets returns every wallet, including provider vaults, ordered by
	// owner
	GetWallets(types.Txn) ([]models.Wallet, error)
}

// New returns a started storage backend. Options registered as plugin
// options are honored. For the file-based backends an empty dataDir selects
// the in-memory mode; the server backends ignore dataDir
func New(
	pluginName, dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (Store, error) {
	switch pluginName {
	case "", "sqlite":
		opts := append(
			sqlite.CmdlineOptions(),
			sqlite.WithDataDir(dataDir),
			sqlite.WithLogger(logger),
			sqlite.WithPromRegistry(promRegistry),
		)
		return sqlite.New(opts...)
	case "badger":
		opts := append(
			badger.CmdlineOptions(),
			badger.WithDataDir(dataDir),
			badger.WithLogger(logger),
			badger.WithPromRegistry(promRegistry),
		)
		return badger.New(opts...)
	case "postgres":
		opts := append(
			postgres.CmdlineOptions(),
			postgres.WithLogger(logger),
			postgres.WithPromRegistry(promRegistry),
		)
		store, err := postgres.New(opts...)
		if err != nil {
			return nil, err
		}
		if err := store.Start(); err != nil {
			return nil, err
		}
		return store, nil
	case "mysql":
		opts := append(
			mysql.CmdlineOptions(),
			mysql.WithLogger(logger),
			mysql.WithPromRegistry(promRegistry),
		)
		store, err := mysql.New(opts...)
		if err != nil {
			return nil, err
		}
		if err := store.Start(); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage plugin: %s", pluginName)
	}
}

// NewFromPlugin starts a backend through the plugin registry, using the
// options populated from flags, config file, and environment
func NewFromPlugin(pluginName string) (Store, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeStorage, pluginName)
	if err != nil {
		return nil, err
	}
	store, ok := p.(Store)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement a storage backend",
			pluginName,
		)
	}
	return store, nil
}
