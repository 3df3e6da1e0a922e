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

import "errors"

var (
	ErrInsufficientStake    = errors.New("insufficient stake")
	ErrInvalidRiskScore     = errors.New("risk score must be between 0 and 100")
	ErrReasonTooLong        = errors.New("reason exceeds 200 characters")
	ErrUnauthorized         = errors.New("caller is not the provider authority")
	ErrWithdrawCooldown     = errors.New("withdrawal cooldown has not elapsed")
	ErrDuplicateAttestation = errors.New("attestation already exists for this transaction")
	ErrNotFound             = errors.New("not found")
	ErrAmountOverflow       = errors.New("amount overflow")
	ErrFaucetDisabled       = errors.New("faucet is disabled")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInsufficientStake, "insufficient_stake"},
	{ErrInvalidRiskScore, "invalid_risk_score"},
	{ErrReasonTooLong, "reason_too_long"},
	{ErrUnauthorized, "unauthorized"},
	{ErrWithdrawCooldown, "withdraw_cooldown"},
	{ErrDuplicateAttestation, "duplicate_attestation"},
	{ErrNotFound, "not_found"},
	{ErrAmountOverflow, "amount_overflow"},
	{ErrFaucetDisabled, "faucet_disabled"},
}

// ErrorKind returns a stable name for the kind of a ledger error, "ok" for
// nil, and "internal" for anything else
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
