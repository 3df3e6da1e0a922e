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
	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/database/types"
)

// GetAttestation gets an attestation by its derived ID
func (d *StoreBadger) GetAttestation(
	id []byte,
	txn types.Txn,
) (*models.Attestation, error) {
	ret := &models.Attestation{}
	err := d.withTxn(txn, false, func(tx *badger.Txn) error {
		return getRecord(tx, types.AttestationKey(id), ret)
	})
	if err != nil {
		if errors.Is(err, errKeyNotFound) {
			return nil, models.ErrAttestationNotFound
		}
		return nil, err
	}
	return ret, nil
}

// CreateAttestation inserts an attestation along with its provider and
// transaction index entries
func (d *StoreBadger) CreateAttestation(
	attestation *models.Attestation,
	txn types.Txn,
) error {
	return d.withTxn(txn, true, func(tx *badger.Txn) error {
		key := types.AttestationKey(attestation.AttestationID)
		exists, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrAttestationExists
		}
		if err := setRecord(tx, key, attestation); err != nil {
			return err
		}
		providerIdx := types.AttestationProviderIndexKey(
			attestation.Provider,
			uint64(attestation.CreatedAt), //nolint:gosec // timestamps are never negative
			attestation.AttestationID,
		)
		if err := tx.Set(providerIdx, nil); err != nil {
			return err
		}
		txRefIdx := types.AttestationTxRefIndexKey(
			attestation.TransactionRef,
			attestation.AttestationID,
		)
		return tx.Set(txRefIdx, nil)
	})
}

// UpdateAttestationVotes sets the vote tallies of an attestation
func (d *StoreBadger) UpdateAttestationVotes(
	id []byte,
	votesFor, votesAgainst uint64,
	txn types.Txn,
) error {
	return d.withTxn(txn, true, func(tx *badger.Txn) error {
		key := types.AttestationKey(id)
		var tmp models.Attestation
		if err := getRecord(tx, key, &tmp); err != nil {
			if errors.Is(err, errKeyNotFound) {
				return models.ErrAttestationNotFound
			}
			return err
		}
		tmp.VotesFor = votesFor
		tmp.VotesAgainst = votesAgainst
		return setRecord(tx, key, &tmp)
	})
}

// GetAttestationsByProvider returns a provider's attestations in creation order
func (d *StoreBadger) GetAttestationsByProvider(
	provider []byte,
	txn types.Txn,
) ([]models.Attestation, error) {
	return d.attestationsFromIndex(
		types.AttestationProviderIndexPrefix(provider),
		txn,
	)
}

// GetAttestationsByTransaction returns every attestation about a transaction
func (d *StoreBadger) GetAttestationsByTransaction(
	txRef []byte,
	txn types.Txn,
) ([]models.Attestation, error) {
	return d.attestationsFromIndex(
		types.AttestationTxRefIndexPrefix(txRef),
		txn,
	)
}

// attestationsFromIndex loads the attestations referenced by the index
// entries under prefix. Every index key ends with the attestation ID
func (d *StoreBadger) attestationsFromIndex(
	prefix []byte,
	txn types.Txn,
) ([]models.Attestation, error) {
	var ret []models.Attestation
	err := d.withTxn(txn, false, func(tx *badger.Txn) error {
		var ids [][]byte
		it := tx.NewIterator(badger.IteratorOptions{
			Prefix: prefix,
		})
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(key) < len(prefix)+types.AttestationIndexEntryLength {
				continue
			}
			ids = append(ids, key[len(key)-types.AttestationIndexEntryLength:])
		}
		it.Close()
		for _, id := range ids {
			var tmp models.Attestation
			if err := getRecord(tx, types.AttestationKey(id), &tmp); err != nil {
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
