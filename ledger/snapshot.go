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
	"fmt"

	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/database/models"
)

// SnapshotRules holds imported records to the same bounds the operations
// maintain
type SnapshotRules struct{}

var _ database.SnapshotValidator = SnapshotRules{}

func (SnapshotRules) ValidateProvider(m *models.Provider) error {
	p, err := providerFromModel(m)
	if err != nil {
		return err
	}
	if p.Reputation > MaxReputation {
		return fmt.Errorf(
			"reputation %d above the maximum of %d",
			p.Reputation,
			MaxReputation,
		)
	}
	if p.Stake != 0 && p.Stake < MinStake {
		return fmt.Errorf(
			"%w: stake %d is below the minimum of %d",
			ErrInsufficientStake,
			p.Stake,
			MinStake,
		)
	}
	return nil
}

func (SnapshotRules) ValidateAttestation(m *models.Attestation) error {
	a, err := attestationFromModel(m)
	if err != nil {
		return err
	}
	return validateAttestation(int(a.RiskScore), a.Reason)
}

func (SnapshotRules) ValidateWallet(m *models.Wallet) error {
	if len(m.Owner) != IdentitySize {
		return fmt.Errorf("wallet owner has %d bytes, want %d", len(m.Owner), IdentitySize)
	}
	return nil
}
