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

import (
	"context"

	"github.com/williamhnyohei/Vetra/ledger"
)

// Ledger is the interface that the API server uses to apply operations and
// run queries. It is satisfied by *ledger.LedgerState
type Ledger interface {
	Stake(ctx context.Context, caller ledger.Identity, amount uint64) (*ledger.Provider, error)
	CreateAttestation(
		ctx context.Context,
		caller ledger.Identity,
		ref ledger.TransactionRef,
		riskScore int,
		reason string,
	) (*ledger.Attestation, error)
	Vote(
		ctx context.Context,
		voter ledger.Identity,
		key ledger.AttestationKey,
		isAccurate bool,
	) (*ledger.VoteResult, error)
	Withdraw(
		ctx context.Context,
		caller ledger.Identity,
		provider ledger.Identity,
		amount uint64,
	) (*ledger.Provider, error)
	Airdrop(ctx context.Context, recipient ledger.Identity, amount uint64) (uint64, error)

	GetProvider(ctx context.Context, authority ledger.Identity) (*ledger.Provider, error)
	ListProviders(ctx context.Context, limit int) ([]ledger.Provider, error)
	GetAttestation(ctx context.Context, key ledger.AttestationKey) (*ledger.Attestation, error)
	ListAttestationsByProvider(ctx context.Context, provider ledger.Identity) ([]ledger.Attestation, error)
	AggregateRiskScore(ctx context.Context, ref ledger.TransactionRef) (*ledger.RiskAssessment, error)
	Balance(ctx context.Context, owner ledger.Identity) (uint64, error)
}
