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

package gormstore

import (
	"errors"

	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetBalance returns the balance of a wallet, which is 0 for unknown owners
func (s *Store) GetBalance(owner []byte, txn types.Txn) (uint64, error) {
	db, err := s.resolveDB(txn, false)
	if err != nil {
		return 0, err
	}
	ret := &models.Wallet{}
	result := db.Where("owner = ?", owner).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return uint64(ret.Balance), nil
}

// SetBalance creates or updates the wallet of owner
func (s *Store) SetBalance(
	owner []byte,
	balance uint64,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn, true)
	if err != nil {
		return err
	}
	wallet := &models.Wallet{
		Owner:   owner,
		Balance: types.Uint64(balance),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance"}),
	}).Create(wallet)
	return result.Error
}

func (s *Store) GetWallets(txn types.Txn) ([]models.Wallet, error) {
	db, err := s.resolveDB(txn, false)
	if err != nil {
		return nil, err
	}
	var ret []models.Wallet
	result := db.Order("owner").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
