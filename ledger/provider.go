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
	"errors"
	"fmt"
	"math"

	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/database/types"
)

// Provider is a signal provider and its stake and reputation record
type Provider struct {
	Authority            Identity
	Stake                uint64
	AttestationsCount    uint64
	AccurateAttestations uint64
	LastStakeAt          int64
	Reputation           uint32
}

// AccuracyRate is accurate_attestations / attestations_count, or 0 for a
// provider without attestations. The numerator counts qualifying votes, so
// the rate can exceed 1
func (p *Provider) AccuracyRate() float64 {
	if p.AttestationsCount == 0 {
		return 0
	}
	return float64(p.AccurateAttestations) / float64(p.AttestationsCount)
}

func providerFromModel(m *models.Provider) (*Provider, error) {
	authority, err := IdentityFromBytes(m.Authority)
	if err != nil {
		return nil, err
	}
	return &Provider{
		Authority:            authority,
		Stake:                uint64(m.Stake),
		Reputation:           m.Reputation,
		AttestationsCount:    m.AttestationsCount,
		AccurateAttestations: m.AccurateAttestations,
		LastStakeAt:          m.LastStakeAt,
	}, nil
}

func (p *Provider) toModel() *models.Provider {
	return &models.Provider{
		Authority:            p.Authority.Bytes(),
		Stake:                types.Uint64(p.Stake),
		Reputation:           p.Reputation,
		AttestationsCount:    p.AttestationsCount,
		AccurateAttestations: p.AccurateAttestations,
		LastStakeAt:          p.LastStakeAt,
	}
}

// providerRegistry loads, creates, and persists providers
type providerRegistry struct {
	db *database.Database
}

// load returns the stored provider for authority, or ErrNotFound
func (r *providerRegistry) load(
	txn *database.Txn,
	authority Identity,
) (*Provider, error) {
	m, err := r.db.GetProvider(authority.Bytes(), txn)
	if err != nil {
		if errors.Is(err, models.ErrProviderNotFound) {
			return nil, fmt.Errorf("provider %s: %w", authority, ErrNotFound)
		}
		return nil, err
	}
	return providerFromModel(m)
}

// getOrCreate returns the stored provider for authority or a fresh record
// that has not been persisted yet. The flag reports whether the record is
// already stored
func (r *providerRegistry) getOrCreate(
	txn *database.Txn,
	authority Identity,
) (*Provider, bool, error) {
	provider, err := r.load(txn, authority)
	if err == nil {
		return provider, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	return &Provider{
		Authority:  authority,
		Reputation: InitialReputation,
	}, false, nil
}

// save persists provider. New records use an atomic create-if-absent
func (r *providerRegistry) save(
	txn *database.Txn,
	provider *Provider,
	stored bool,
) error {
	if stored {
		return r.db.UpdateProvider(provider.toModel(), txn)
	}
	return r.db.CreateProvider(provider.toModel(), txn)
}

// depositStake moves amount from the caller's wallet into the provider's
// vault and records the deposit time
func (r *providerRegistry) depositStake(
	txn *database.Txn,
	provider *Provider,
	stored bool,
	amount uint64,
	now int64,
) error {
	if amount < MinStake {
		return fmt.Errorf(
			"%w: deposit %d is below the minimum of %d",
			ErrInsufficientStake,
			amount,
			MinStake,
		)
	}
	if provider.Stake > math.MaxUint64-amount {
		return ErrAmountOverflow
	}
	err := r.db.Transfer(
		provider.Authority.Bytes(),
		types.VaultID(provider.Authority.Bytes()),
		amount,
		txn,
	)
	if err != nil {
		return transferError(err)
	}
	provider.Stake += amount
	provider.LastStakeAt = now
	return r.save(txn, provider, stored)
}

// withdrawStake returns amount from the provider's vault to the caller
func (r *providerRegistry) withdrawStake(
	txn *database.Txn,
	caller Identity,
	provider *Provider,
	amount uint64,
	now int64,
) error {
	if caller != provider.Authority {
		return ErrUnauthorized
	}
	if !CooldownElapsed(now, provider.LastStakeAt, WithdrawCooldown) {
		return ErrWithdrawCooldown
	}
	if amount > provider.Stake {
		return fmt.Errorf(
			"%w: withdrawal %d exceeds stake %d",
			ErrInsufficientStake,
			amount,
			provider.Stake,
		)
	}
	remaining := provider.Stake - amount
	if remaining != 0 && remaining < MinStake {
		return fmt.Errorf(
			"%w: remaining stake %d would be below the minimum of %d",
			ErrInsufficientStake,
			remaining,
			MinStake,
		)
	}
	err := r.db.Transfer(
		types.VaultID(provider.Authority.Bytes()),
		caller.Bytes(),
		amount,
		txn,
	)
	if err != nil {
		return transferError(err)
	}
	provider.Stake = remaining
	return r.save(txn, provider, true)
}

func transferError(err error) error {
	switch {
	case errors.Is(err, models.ErrInsufficientFunds):
		return fmt.Errorf("%w: %w", ErrInsufficientStake, err)
	case errors.Is(err, database.ErrBalanceOverflow):
		return fmt.Errorf("%w: %w", ErrAmountOverflow, err)
	default:
		return err
	}
}
