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
)

// GetProvider gets a provider by authority
func (s *Store) GetProvider(
	authority []byte,
	txn types.Txn,
) (*models.Provider, error) {
	db, err := s.resolveDB(txn, false)
	if err != nil {
		return nil, err
	}
	ret := &models.Provider{}
	result := db.Where("authority = ?", authority).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrProviderNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// CreateProvider inserts a provider, failing if the authority already has one
func (s *Store) CreateProvider(
	provider *models.Provider,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn, true)
	if err != nil {
		return err
	}
	result := insertIfAbsent(db).Create(provider)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrProviderExists
	}
	return nil
}

// UpdateProvider saves the mutable fields of an existing provider
func (s *Store) UpdateProvider(
	provider *models.Provider,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn, true)
	if err != nil {
		return err
	}
	// A map is used so that zero values are written too
	result := db.Model(&models.Provider{}).
		Where("authority = ?", provider.Authority).
		Updates(map[string]any{
			"stake":                 provider.Stake,
			"reputation":            provider.Reputation,
			"attestations_count":    provider.AttestationsCount,
			"accurate_attestations": provider.AccurateAttestations,
			"last_stake_at":         provider.LastStakeAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrProviderNotFound
	}
	return nil
}

// GetProviders returns providers ordered by reputation
func (s *Store) GetProviders(
	limit int,
	txn types.Txn,
) ([]models.Provider, error) {
	db, err := s.resolveDB(txn, false)
	if err != nil {
		return nil, err
	}
	var ret []models.Provider
	query := db.Order("reputation DESC").Order("authority ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
