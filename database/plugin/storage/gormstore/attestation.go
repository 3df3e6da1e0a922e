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

// GetAttestation gets an attestation by its derived ID
func (s *Store) GetAttestation(
	id []byte,
	txn types.Txn,
) (*models.Attestation, error) {
	db, err := s.resolveDB(txn, false)
	if err != nil {
		return nil, err
	}
	ret := &models.Attestation{}
	result := db.Where("attestation_id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrAttestationNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// CreateAttestation inserts an attestation. The unique index on the derived
// ID turns a second insert for the same (provider, transaction) into a no-op,
// which is reported as models.ErrAttestationExists
func (s *Store) CreateAttestation(
	attestation *models.Attestation,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn, true)
	if err != nil {
		return err
	}
	result := insertIfAbsent(db).Create(attestation)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrAttestationExists
	}
	return nil
}

// UpdateAttestationVotes sets the vote tallies of an attestation
func (s *Store) UpdateAttestationVotes(
	id []byte,
	votesFor, votesAgainst uint64,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn, true)
	if err != nil {
		return err
	}
	result := db.Model(&models.Attestation{}).
		Where("attestation_id = ?", id).
		Updates(map[string]any{
			"votes_for":     votesFor,
			"votes_against": votesAgainst,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrAttestationNotFound
	}
	return nil
}

// GetAttestationsByProvider returns a provider's attestations in creation order
func (s *Store) GetAttestationsByProvider(
	provider []byte,
	txn types.Txn,
) ([]models.Attestation, error) {
	db, err := s.resolveDB(txn, false)
	if err != nil {
		return nil, err
	}
	var ret []models.Attestation
	result := db.Where("provider = ?", provider).
		Order("created_at ASC").
		Order("attestation_id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetAttestationsByTransaction returns every attestation about a transaction
func (s *Store) GetAttestationsByTransaction(
	txRef []byte,
	txn types.Txn,
) ([]models.Attestation, error) {
	db, err := s.resolveDB(txn, false)
	if err != nil {
		return nil, err
	}
	var ret []models.Attestation
	result := db.Where("transaction_ref = ?", txRef).
		Order("attestation_id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
