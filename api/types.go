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

package api

import "github.com/williamhnyohei/Vetra/ledger"

// RootResponse is returned by GET /
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type ProviderResponse struct {
	Authority            ledger.Identity `json:"authority"`
	Stake                uint64          `json:"stake,string"`
	Reputation           uint32          `json:"reputation"`
	AttestationsCount    uint64          `json:"attestations_count"`
	AccurateAttestations uint64          `json:"accurate_attestations"`
	AccuracyRate         float64         `json:"accuracy_rate"`
	LastStakeAt          int64           `json:"last_stake_at"`
}

func newProviderResponse(p *ledger.Provider) ProviderResponse {
	return ProviderResponse{
		Authority:            p.Authority,
		Stake:                p.Stake,
		Reputation:           p.Reputation,
		AttestationsCount:    p.AttestationsCount,
		AccurateAttestations: p.AccurateAttestations,
		AccuracyRate:         p.AccuracyRate(),
		LastStakeAt:          p.LastStakeAt,
	}
}

type AttestationResponse struct {
	Provider       ledger.Identity       `json:"provider"`
	TransactionRef ledger.TransactionRef `json:"transaction_ref"`
	Reason         string                `json:"reason"`
	RiskScore      uint8                 `json:"risk_score"`
	CreatedAt      int64                 `json:"created_at"`
	VotesFor       uint64                `json:"votes_for"`
	VotesAgainst   uint64                `json:"votes_against"`
	AccuracyRatio  float64               `json:"accuracy_ratio"`
}

func newAttestationResponse(a *ledger.Attestation) AttestationResponse {
	return AttestationResponse{
		Provider:       a.Provider,
		TransactionRef: a.TransactionRef,
		RiskScore:      a.RiskScore,
		Reason:         a.Reason,
		CreatedAt:      a.CreatedAt,
		VotesFor:       a.VotesFor,
		VotesAgainst:   a.VotesAgainst,
		AccuracyRatio:  a.AccuracyRatio(),
	}
}

func newAttestationResponses(attestations []ledger.Attestation) []AttestationResponse {
	ret := make([]AttestationResponse, 0, len(attestations))
	for i := range attestations {
		ret = append(ret, newAttestationResponse(&attestations[i]))
	}
	return ret
}

// VoteResponse is returned after a vote was recorded
type VoteResponse struct {
	Attestation     AttestationResponse `json:"attestation"`
	Owner           ProviderResponse    `json:"owner"`
	ReputationDelta int                 `json:"reputation_delta"`
}

// RiskResponse is returned by GET /api/v1/transactions/{ref}/attestations
type RiskResponse struct {
	TransactionRef   ledger.TransactionRef `json:"transaction_ref"`
	Score            float64               `json:"score"`
	AttestationCount int                   `json:"attestation_count"`
	Attestations     []AttestationResponse `json:"attestations"`
}

type WalletResponse struct {
	Identity ledger.Identity `json:"identity"`
	Balance  uint64          `json:"balance,string"`
}

type StakeRequest struct {
	Amount uint64 `json:"amount,string"`
}

type AttestationRequest struct {
	TransactionRef *ledger.TransactionRef `json:"transaction_ref"`
	Reason         string                 `json:"reason"`
	RiskScore      int                    `json:"risk_score"`
}

type VoteRequest struct {
	IsAccurate *bool `json:"is_accurate"`
}

// WithdrawRequest withdraws from Provider, which defaults to the caller
type WithdrawRequest struct {
	Provider *ledger.Identity `json:"provider,omitempty"`
	Amount   uint64           `json:"amount,string"`
}

type FaucetRequest struct {
	Amount uint64 `json:"amount,string"`
}
