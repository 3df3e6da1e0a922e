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
	"github.com/williamhnyohei/Vetra/database/models"
)

// GetProvider returns the provider staked by authority, or
// models.ErrProviderNotFound
func (d *Database) GetProvider(
	authority []byte,
	txn *Txn,
) (*models.Provider, error) {
	return d.store.GetProvider(authority, storeTxnOrNil(txn))
}

// CreateProvider stores a new provider. It fails with
// models.ErrProviderExists if the authority already has one
func (d *Database) CreateProvider(provider *models.Provider, txn *Txn) error {
	return d.store.CreateProvider(provider, storeTxnOrNil(txn))
}

// UpdateProvider saves an existing provider
func (d *Database) UpdateProvider(provider *models.Provider, txn *Txn) error {
	return d.store.UpdateProvider(provider, storeTxnOrNil(txn))
}

// GetProviders returns up to limit providers with the highest reputation
func (d *Database) GetProviders(limit int, txn *Txn) ([]models.Provider, error) {
	return d.store.GetProviders(limit, storeTxnOrNil(txn))
}
