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

import "github.com/williamhnyohei/Vetra/event"

const (
	ProviderStakedEventType     event.EventType = "ledger.provider.staked"
	AttestationCreatedEventType event.EventType = "ledger.attestation.created"
	AttestationVotedEventType   event.EventType = "ledger.attestation.voted"
	ProviderWithdrawnEventType  event.EventType = "ledger.provider.withdrawn"
	WalletAirdroppedEventType   event.EventType = "ledger.wallet.airdropped"
)

// ProviderStakedEvent is emitted after a stake deposit commits
type ProviderStakedEvent struct {
	Provider Provider
	Amount   uint64
	Created  bool // Set to true on the provider's first deposit
}

// AttestationCreatedEvent is emitted after a new attestation commits
type AttestationCreatedEvent struct {
	Attestation Attestation
}

// AttestationVotedEvent is emitted after a vote commits. Voter is recorded
// for auditing only; votes are not deduplicated
type AttestationVotedEvent struct {
	Attestation     Attestation
	Owner           Provider
	Voter           Identity
	IsAccurate      bool
	ReputationDelta int
}

// ProviderWithdrawnEvent is emitted after a withdrawal commits
type ProviderWithdrawnEvent struct {
	Provider Provider
	Amount   uint64
}

// WalletAirdroppedEvent is emitted after a faucet airdrop commits
type WalletAirdroppedEvent struct {
	Recipient Identity
	Amount    uint64
	Balance   uint64
}
