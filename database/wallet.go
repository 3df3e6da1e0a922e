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
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/database/types"
)

var ErrBalanceOverflow = errors.New("balance overflow")

// GetBalance returns the balance held by owner
func (d *Database) GetBalance(owner []byte, txn *Txn) (uint64, error) {
	return d.store.GetBalance(owner, storeTxnOrNil(txn))
}

// GetVaultBalance returns the collateral held in the vault of authority
func (d *Database) GetVaultBalance(authority []byte, txn *Txn) (uint64, error) {
	return d.store.GetBalance(types.VaultID(authority), storeTxnOrNil(txn))
}

// Credit adds amount to the wallet of owner
func (d *Database) Credit(owner []byte, amount uint64, txn *Txn) error {
	balance, err := d.GetBalance(owner, txn)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	return d.store.SetBalance(owner, balance+amount, storeTxnOrNil(txn))
}

// Transfer moves amount from one wallet to another. It fails with
// models.ErrInsufficientFunds if the source balance is short
func (d *Database) Transfer(from, to []byte, amount uint64, txn *Txn) error {
	fromBalance, err := d.GetBalance(from, txn)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf(
			"%w: balance %d, need %d",
			models.ErrInsufficientFunds,
			fromBalance,
			amount,
		)
	}
	if bytes.Equal(from, to) {
		return nil
	}
	toBalance, err := d.GetBalance(to, txn)
	if err != nil {
		return err
	}
	if toBalance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	if err := d.store.SetBalance(from, fromBalance-amount, storeTxnOrNil(txn)); err != nil {
		return err
	}
	return d.store.SetBalance(to, toBalance+amount, storeTxnOrNil(txn))
}

// GetWallets returns every wallet, including provider vaults
func (d *Database) GetWallets(txn *Txn) ([]models.Wallet, error) {
	return d.store.GetWallets(storeTxnOrNil(txn))
}
