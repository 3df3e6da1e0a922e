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
	"unicode/utf8"

	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/database/models"
)

// Attestation is a provider's risk score for one transaction. Higher scores
// mean safer
type Attestation struct {
	Reason         string
	CreatedAt      int64
	VotesFor       uint64
	VotesAgainst   uint64
	Provider       Identity
	TransactionRef TransactionRef
	RiskScore      uint8
}

func (a *Attestation) Key() AttestationKey {
	return AttestationKey{
		Provider:       a.Provider,
		TransactionRef: a.TransactionRef,
	}
}

func (a *Attestation) AccuracyRatio() float64 {
	return AccuracyRatio(a.VotesFor, a.VotesAgainst)
}

func attestationFromModel(m *models.Attestation) (*Attestation, error) {
	provider, err := IdentityFromBytes(m.Provider)
	if err != nil {
		return nil, err
	}
	ref, err := TransactionRefFromBytes(m.TransactionRef)
	if err != nil {
		return nil, err
	}
	return &Attestation{
		Provider:       provider,
		TransactionRef: ref,
		RiskScore:      m.RiskScore,
		Reason:         m.Reason,
		CreatedAt:      m.CreatedAt,
		VotesFor:       m.VotesFor,
		VotesAgainst:   m.VotesAgainst,
	}, nil
}

func (a *Attestation) toModel() *models.Attestation {
	return &models.Attestation{
		Provider:       a.Provider.Bytes(),
		TransactionRef: a.TransactionRef.Bytes(),
		RiskScore:      a.RiskScore,
		Reason:         a.Reason,
		CreatedAt:      a.CreatedAt,
		VotesFor:       a.VotesFor,
		VotesAgainst:   a.VotesAgainst,
	}
}

func validateAttestation(riskScore int, reason string) error {
	if riskScore < 0 || riskScore > MaxRiskScore {
		return fmt.Errorf("%w: got %d", ErrInvalidRiskScore, riskScore)
	}
	if n := utf8.RuneCountInString(reason); n > MaxReasonLength {
		return fmt.Errorf("%w: got %d", ErrReasonTooLong, n)
	}
	return nil
}

// attestationStore creates attestations and applies votes to them
type attestationStore struct {
	db *database.Database
}

func (s *attestationStore) load(
	txn *database.Txn,
	key AttestationKey,
) (*Attestation, error) {
	m, err := s.db.GetAttestation(
		key.Provider.Bytes(),
		key.TransactionRef.Bytes(),
		txn,
	)
	if err != nil {
		if errors.Is(err, models.ErrAttestationNotFound) {
			return nil, fmt.Errorf("attestation %s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return attestationFromModel(m)
}

// create stores a new attestation by provider and bumps the provider's
// attestation count. The caller persists the provider
func (s *attestationStore) create(
	txn *database.Txn,
	provider *Provider,
	ref TransactionRef,
	riskScore int,
	reason string,
	now int64,
) (*Attestation, error) {
	if err := validateAttestation(riskScore, reason); err != nil {
		return nil, err
	}
	if provider.Stake < MinStake {
		return nil, fmt.Errorf(
			"%w: stake %d is below the minimum of %d",
			ErrInsufficientStake,
			provider.Stake,
			MinStake,
		)
	}
	if provider.AttestationsCount == math.MaxUint64 {
		return nil, ErrAmountOverflow
	}
	attestation := &Attestation{
		Provider:       provider.Authority,
		TransactionRef: ref,
		RiskScore:      uint8(riskScore), //nolint:gosec // validated above
		Reason:         reason,
		CreatedAt:      now,
	}
	if err := s.db.CreateAttestation(attestation.toModel(), txn); err != nil {
		if errors.Is(err, models.ErrAttestationExists) {
			return nil, fmt.Errorf(
				"%w: %s",
				ErrDuplicateAttestation,
				attestation.Key(),
			)
		}
		return nil, err
	}
	provider.AttestationsCount++
	return attestation, nil
}

// recordVote counts a vote on attestation and moves the owner's reputation
// according to the new accuracy ratio. Every vote that leaves the ratio above
// the accuracy threshold counts towards the owner's accurate attestations.
// The caller persists the owner
//
// AccurateAttestations counts qualifying votes, not attestations, so it is
// not bounded by AttestationsCount and AccuracyRate can exceed 1. The ledger
// does not enforce attestations_count >= accurate_attestations
func (s *attestationStore) recordVote(
	txn *database.Txn,
	attestation *Attestation,
	owner *Provider,
	isAccurate bool,
) (int, error) {
	if isAccurate {
		if attestation.VotesFor == math.MaxUint64 {
			return 0, ErrAmountOverflow
		}
		attestation.VotesFor++
	} else {
		if attestation.VotesAgainst == math.MaxUint64 {
			return 0, ErrAmountOverflow
		}
		attestation.VotesAgainst++
	}
	ratio := attestation.AccuracyRatio()
	delta := ReputationDelta(ratio)
	owner.Reputation = ApplyReputationDelta(owner.Reputation, delta)
	if ratio > accurateThreshold && owner.AccurateAttestations < math.MaxUint64 {
		owner.AccurateAttestations++
	}
	if err := s.db.UpdateAttestationVotes(attestation.toModel(), txn); err != nil {
		return 0, err
	}
	return delta, nil
}
