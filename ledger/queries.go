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

package ledger

import (
	"context"

	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/database/models"
)

// DefaultRiskScore is reported for transactions nobody has attested to
const DefaultRiskScore = 50

// RiskAssessment is the combined view of all attestations about one
// transaction
type RiskAssessment struct {
	Attestations   []Attestation
	Score          float64
	TransactionRef TransactionRef
}

// query runs fn in a read-only transaction
func (ls *LedgerState) query(ctx context.Context, fn func(*database.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := ls.db.Transaction(false)
	defer txn.Release()
	return fn(txn)
}

func (ls *LedgerState) GetProvider(
	ctx context.Context,
	authority Identity,
) (*Provider, error) {
	var ret *Provider
	err := ls.query(ctx, func(txn *database.Txn) error {
		var err error
		ret, err = ls.providers.load(txn, authority)
		return err
	})
	return ret, err
}

// ListProviders returns providers by descending reputation. A limit of 0
// returns all of them
func (ls *LedgerState) ListProviders(
	ctx context.Context,
	limit int,
) ([]Provider, error) {
	var ret []Provider
	err := ls.query(ctx, func(txn *database.Txn) error {
		providers, err := ls.db.GetProviders(limit, txn)
		if err != nil {
			return err
		}
		ret = make([]Provider, 0, len(providers))
		for i := range providers {
			p, err := providerFromModel(&providers[i])
			if err != nil {
				return err
			}
			ret = append(ret, *p)
		}
		return nil
	})
	return ret, err
}

func (ls *LedgerState) GetAttestation(
	ctx context.Context,
	key AttestationKey,
) (*Attestation, error) {
	var ret *Attestation
	err := ls.query(ctx, func(txn *database.Txn) error {
		var err error
		ret, err = ls.attestations.load(txn, key)
		return err
	})
	return ret, err
}

// ListAttestationsByProvider returns a provider's attestations, oldest first
func (ls *LedgerState) ListAttestationsByProvider(
	ctx context.Context,
	provider Identity,
) ([]Attestation, error) {
	var ret []Attestation
	err := ls.query(ctx, func(txn *database.Txn) error {
		attestations, err := ls.db.GetAttestationsByProvider(provider.Bytes(), txn)
		if err != nil {
			return err
		}
		ret, err = attestationsFromModels(attestations)
		return err
	})
	return ret, err
}

func (ls *LedgerState) ListAttestationsByTransaction(
	ctx context.Context,
	ref TransactionRef,
) ([]Attestation, error) {
	var ret []Attestation
	err := ls.query(ctx, func(txn *database.Txn) error {
		attestations, err := ls.db.GetAttestationsByTransaction(ref.Bytes(), txn)
		if err != nil {
			return err
		}
		ret, err = attestationsFromModels(attestations)
		return err
	})
	return ret, err
}

// AggregateRiskScore combines all attestations about ref into one score,
// weighting each by its provider's current reputation
func (ls *LedgerState) AggregateRiskScore(
	ctx context.Context,
	ref TransactionRef,
) (*RiskAssessment, error) {
	ret := &RiskAssessment{
		TransactionRef: ref,
		Score:          DefaultRiskScore,
	}
	err := ls.query(ctx, func(txn *database.Txn) error {
		attestations, err := ls.db.GetAttestationsByTransaction(ref.Bytes(), txn)
		if err != nil {
			return err
		}
		ret.Attestations, err = attestationsFromModels(attestations)
		if err != nil {
			return err
		}
		if len(ret.Attestations) == 0 {
			return nil
		}
		var weighted, weights, plain float64
		for _, a := range ret.Attestations {
			provider, err := ls.providers.load(txn, a.Provider)
			if err != nil {
				return err
			}
			weighted += float64(provider.Reputation) * float64(a.RiskScore)
			weights += float64(provider.Reputation)
			plain += float64(a.RiskScore)
		}
		if weights == 0 {
			ret.Score = plain / float64(len(ret.Attestations))
		} else {
			ret.Score = weighted / weights
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Balance returns the spendable wallet balance of owner
func (ls *LedgerState) Balance(ctx context.Context, owner Identity) (uint64, error) {
	var ret uint64
	err := ls.query(ctx, func(txn *database.Txn) error {
		var err error
		ret, err = ls.db.GetBalance(owner.Bytes(), txn)
		return err
	})
	return ret, err
}

// VaultBalance returns the collateral held for provider
func (ls *LedgerState) VaultBalance(ctx context.Context, provider Identity) (uint64, error) {
	var ret uint64
	err := ls.query(ctx, func(txn *database.Txn) error {
		var err error
		ret, err = ls.db.GetVaultBalance(provider.Bytes(), txn)
		return err
	})
	return ret, err
}

func attestationsFromModels(attestations []models.Attestation) ([]Attestation, error) {
	ret := make([]Attestation, 0, len(attestations))
	for i := range attestations {
		a, err := attestationFromModel(&attestations[i])
		if err != nil {
			return nil, err
		}
		ret = append(ret, *a)
	}
	return ret, nil
}
