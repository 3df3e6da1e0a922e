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
	"bytes"
	"errors"
	"slices"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/database/types"
)

// GetProvider gets a provider by authority
func (d *StoreBadger) GetProvider(
	authority []byte,
	txn types.Txn,
) (*models.Provider, error) {
	ret := &models.Provider{}
	err := d.withTxn(txn, false, func(tx *badger.Txn) error {
		return getRecord(tx, types.ProviderKey(authority), ret)
	})
	if err != nil {
		if errors.Is(err, errKeyNotFound) {
			return nil, models.ErrProviderNotFound
		}
		return nil, err
	}
	return ret, nil
}

// CreateProvider inserts a provider, failing if the authority already has one
func (d *StoreBadger) CreateProvider(
	provider *models.Provider,
	txn types.Txn,
) error {
	return d.withTxn(txn, true, func(tx *badger.Txn) error {
		key := types.ProviderKey(provider.Authority)
		exists, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrProviderExists
		}
		return setRecord(tx, key, provider)
	})
}

// UpdateProvider saves an existing provider
func (d *StoreBadger) UpdateProvider(
	provider *models.Provider,
	txn types.Txn,
) error {
	return d.withTxn(txn, true, func(tx *badger.Txn) error {
		key := types.ProviderKey(provider.Authority)
		exists, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if !exists {
			return models.ErrProviderNotFound
		}
		return setRecord(tx, key, provider)
	})
}

// GetProviders returns providers ordered by reputation
func (d *StoreBadger) GetProviders(
	limit int,
	txn types.Txn,
) ([]models.Provider, error) {
	var ret []models.Provider
	err := d.withTxn(txn, false, func(tx *badger.Txn) error {
		prefix := []byte(types.ProviderKeyPrefix)
		it := tx.NewIterator(badger.IteratorOptions{
			Prefix:         prefix,
			PrefetchValues: true,
			PrefetchSize:   100,
		})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var tmp models.Provider
			err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &tmp)
			})
			if err != nil {
				return err
			}
			ret = append(ret, tmp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(ret, func(a, b models.Provider) int {
		if a.Reputation != b.Reputation {
			if a.Reputation > b.Reputation {
				return -1
			}
			return 1
		}
		return bytes.Compare(a.Authority, b.Authority)
	})
	if limit > 0 && len(ret) > limit {
		ret = ret[:limit]
	}
	return ret, nil
}
