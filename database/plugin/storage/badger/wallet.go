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

	badger "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/database/types"
)

// GetBalance returns the balance of a wallet, which is 0 for unknown owners
func (d *StoreBadger) GetBalance(owner []byte, txn types.Txn) (uint64, error) {
	var ret models.Wallet
	err := d.withTxn(txn, false, func(tx *badger.Txn) error {
		return getRecord(tx, types.WalletKey(owner), &ret)
	})
	if err != nil {
		if errors.Is(err, errKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(ret.Balance), nil
}

// SetBalance creates or updates the wallet of owner
func (d *StoreBadger) SetBalance(
	owner []byte,
	balance uint64,
	txn types.Txn,
) error {
	return d.withTxn(txn, true, func(tx *badger.Txn) error {
		return setRecord(tx, types.WalletKey(owner), &models.Wallet{
			Owner:   owner,
			Balance: types.Uint64(balance),
		})
	})
}

// GetWallets relies on badger iterating keys in byte order, which sorts
// wallets by owner
func (d *StoreBadger) GetWallets(txn types.Txn) ([]models.Wallet, error) {
	var ret []models.Wallet
	err := d.withTxn(txn, false, func(tx *badger.Txn) error {
		prefix := []byte(types.WalletKeyPrefix)
		it := tx.NewIterator(badger.IteratorOptions{
			Prefix:         prefix,
			PrefetchValues: true,
			PrefetchSize:   100,
		})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var tmp models.Wallet
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
	return ret, nil
}
