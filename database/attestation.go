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
	"github.com/williamhnyohei/Vetra/database/types"
)

// GetAttestation returns the attestation provider made about txRef, or
// models.ErrAttestationNotFound
func (d *Database) GetAttestation(
	provider, txRef []byte,
	txn *Txn,
) (*models.Attestation, error) {
	return d.store.GetAttestation(
		types.AttestationID(provider, txRef),
		storeTxnOrNil(txn),
	)
}

// CreateAttestation stores a new attestation, filling in its derived ID. It
// fails with models.ErrAttestationExists if the provider already attested to
// the same transaction
func (d *Database) CreateAttestation(
	attestation *models.Attestation,
	txn *Txn,
) error {
	attestation.AttestationID = types.AttestationID(
		attestation.Provider,
		attestation.TransactionRef,
	)
	return d.store.CreateAttestation(attestation, storeTxnOrNil(txn))
}

// UpdateAttestationVotes saves the vote tallies of an attestation
func (d *Database) UpdateAttestationVotes(
	attestation *models.Attestation,
	txn *Txn,
) error {
	return d.store.UpdateAttestationVotes(
		types.AttestationID(attestation.Provider, attestation.TransactionRef),
		attestation.VotesFor,
		attestation.VotesAgainst,
		storeTxnOrNil(txn),
	)
}

func (d *Database) GetAttestationsByProvider(
	provider []byte,
	txn *Txn,
) ([]models.Attestation, error) {
	return d.store.GetAttestationsByProvider(provider, storeTxnOrNil(txn))
}

func (d *Database) GetAttestationsByTransaction(
	txRef []byte,
	txn *Txn,
) ([]models.Attestation, error) {
	return d.store.GetAttestationsByTransaction(txRef, storeTxnOrNil(txn))
}
