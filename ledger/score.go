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

import "time"

const (
	// MinStake is the smallest nonzero stake a provider may hold
	MinStake uint64 = 1_000_000_000
	// InitialReputation is assigned to a provider on its first stake
	InitialReputation uint32 = 500
	MaxReputation     uint32 = 1000
	MaxRiskScore             = 100
	// MaxReasonLength is counted in characters, not bytes
	MaxReasonLength = 200
	// WithdrawCooldown is measured from the most recent stake deposit
	WithdrawCooldown = 7 * 24 * time.Hour
)

const (
	undecidedRatio      = 0.5
	accurateThreshold   = 0.7
	inaccurateThreshold = 0.3
	reputationReward    = 1
	reputationPenalty   = -2
)

// AccuracyRatio returns the share of positive votes, or 0.5 when nobody has
// voted yet
func AccuracyRatio(votesFor, votesAgainst uint64) float64 {
	if votesFor == 0 && votesAgainst == 0 {
		return undecidedRatio
	}
	return float64(votesFor) / (float64(votesFor) + float64(votesAgainst))
}

// ReputationDelta maps an accuracy ratio to a reputation change. Both
// thresholds are exclusive
func ReputationDelta(ratio float64) int {
	switch {
	case ratio > accurateThreshold:
		return reputationReward
	case ratio < inaccurateThreshold:
		return reputationPenalty
	default:
		return 0
	}
}

// ApplyReputationDelta adds delta to reputation, saturating at 0 and
// MaxReputation
func ApplyReputationDelta(reputation uint32, delta int) uint32 {
	ret := int64(reputation) + int64(delta)
	if ret < 0 {
		return 0
	}
	if ret > int64(MaxReputation) {
		return MaxReputation
	}
	return uint32(ret)
}

// CooldownElapsed reports whether at least cooldown has passed between
// lastStakeAt and now, both in unix seconds
func CooldownElapsed(now, lastStakeAt int64, cooldown time.Duration) bool {
	return now-lastStakeAt >= int64(cooldown/time.Second)
}
