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
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/williamhnyohei/Vetra/ledger"

type LedgerStateConfig struct {
	Logger        *slog.Logger
	Database      *database.Database
	EventBus      *event.EventBus
	PromRegistry  prometheus.Registerer
	Clock         Clock
	FaucetEnabled bool
}

// LedgerState applies stake, attestation, vote, and withdraw operations.
// Each operation runs in a single storage transaction while holding the
// lock of the one provider it affects, so operations on different providers
// proceed in parallel and operations on the same provider are serialized
type LedgerState struct {
	config       LedgerStateConfig
	db           *database.Database
	tracer       trace.Tracer
	providers    providerRegistry
	attestations attestationStore
	locks        identityLocks
	metrics      stateMetrics
}

func NewLedgerState(cfg LedgerStateConfig) (*LedgerState, error) {
	if cfg.Database == nil {
		return nil, errors.New("no database configured")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	ls := &LedgerState{
		config:       cfg,
		db:           cfg.Database,
		tracer:       otel.Tracer(tracerName),
		providers:    providerRegistry{db: cfg.Database},
		attestations: attestationStore{db: cfg.Database},
	}
	ls.metrics.init(cfg.PromRegistry)
	// Seed the staked total from storage
	providers, err := ls.db.GetProviders(0, nil)
	if err != nil {
		return nil, err
	}
	var staked float64
	for _, p := range providers {
		staked += float64(p.Stake)
	}
	ls.metrics.stakedTotal.Set(staked)
	ls.config.Logger.Debug(
		"ledger state loaded",
		"component", "ledger",
		"providers", len(providers),
	)
	return ls, nil
}

// runOp runs fn in a read-write transaction while holding the lock for
// lockId. The transaction is rolled back if fn fails
func (ls *LedgerState) runOp(
	ctx context.Context,
	op string,
	lockId Identity,
	fn func(txn *database.Txn, now int64) error,
	attrs ...attribute.KeyValue,
) error {
	_, span := ls.tracer.Start(
		ctx,
		"ledger."+op,
		trace.WithAttributes(attrs...),
	)
	defer span.End()
	err := ctx.Err()
	if err == nil {
		err = func() error {
			unlock := ls.locks.lock(lockId)
			defer unlock()
			now := ls.config.Clock.Now().Unix()
			txn := ls.db.Transaction(true)
			return txn.Do(func(txn *database.Txn) error {
				return fn(txn, now)
			})
		}()
	}
	kind := ErrorKind(err)
	ls.metrics.operations.WithLabelValues(op, kind).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		ls.config.Logger.Debug(
			"ledger operation failed",
			"component", "ledger",
			"operation", op,
			"error", err,
		)
	}
	return err
}

func (ls *LedgerState) publish(eventType event.EventType, data any) {
	if ls.config.EventBus == nil {
		return
	}
	ls.config.EventBus.PublishAsync(eventType, event.NewEvent(eventType, data))
}

// Stake deposits amount from the caller's wallet as collateral, creating the
// caller's provider record on its first deposit
func (ls *LedgerState) Stake(
	ctx context.Context,
	caller Identity,
	amount uint64,
) (*Provider, error) {
	var ret *Provider
	var created bool
	err := ls.runOp(
		ctx,
		"stake",
		caller,
		func(txn *database.Txn, now int64) error {
			provider, stored, err := ls.providers.getOrCreate(txn, caller)
			if err != nil {
				return err
			}
			if err := ls.providers.depositStake(txn, provider, stored, amount, now); err != nil {
				return err
			}
			ret = provider
			created = !stored
			return nil
		},
		attribute.String("provider", caller.String()),
		attribute.String("amount", strconv.FormatUint(amount, 10)),
	)
	if err != nil {
		return nil, err
	}
	ls.metrics.stakedTotal.Add(float64(amount))
	ls.config.Logger.Info(
		"provider staked",
		"component", "ledger",
		"provider", caller.String(),
		"amount", amount,
		"stake", ret.Stake,
	)
	ls.publish(
		ProviderStakedEventType,
		ProviderStakedEvent{Provider: *ret, Amount: amount, Created: created},
	)
	return ret, nil
}

// CreateAttestation records the caller's risk score for a transaction
func (ls *LedgerState) CreateAttestation(
	ctx context.Context,
	caller Identity,
	ref TransactionRef,
	riskScore int,
	reason string,
) (*Attestation, error) {
	var ret *Attestation
	err := ls.runOp(
		ctx,
		"create_attestation",
		caller,
		func(txn *database.Txn, now int64) error {
			if err := validateAttestation(riskScore, reason); err != nil {
				return err
			}
			provider, stored, err := ls.providers.getOrCreate(txn, caller)
			if err != nil {
				return err
			}
			attestation, err := ls.attestations.create(
				txn,
				provider,
				ref,
				riskScore,
				reason,
				now,
			)
			if err != nil {
				return err
			}
			if err := ls.providers.save(txn, provider, stored); err != nil {
				return err
			}
			ret = attestation
			return nil
		},
		attribute.String("provider", caller.String()),
		attribute.String("transaction_ref", ref.String()),
		attribute.Int("risk_score", riskScore),
	)
	if err != nil {
		return nil, err
	}
	ls.metrics.attestationsTotal.Inc()
	ls.config.Logger.Info(
		"attestation created",
		"component", "ledger",
		"provider", caller.String(),
		"transaction_ref", ref.String(),
		"risk_score", riskScore,
	)
	ls.publish(
		AttestationCreatedEventType,
		AttestationCreatedEvent{Attestation: *ret},
	)
	return ret, nil
}

// VoteResult is the state after a vote was applied
type VoteResult struct {
	Attestation     Attestation
	Owner           Provider
	ReputationDelta int
}

// Vote records whether voter judged an attestation accurate and adjusts the
// reputation of the attestation's owner. Anyone may vote, any number of times
func (ls *LedgerState) Vote(
	ctx context.Context,
	voter Identity,
	key AttestationKey,
	isAccurate bool,
) (*VoteResult, error) {
	var ret VoteResult
	err := ls.runOp(
		ctx,
		"vote",
		key.Provider,
		func(txn *database.Txn, _ int64) error {
			attestation, err := ls.attestations.load(txn, key)
			if err != nil {
				return err
			}
			owner, err := ls.providers.load(txn, key.Provider)
			if err != nil {
				return err
			}
			delta, err := ls.attestations.recordVote(txn, attestation, owner, isAccurate)
			if err != nil {
				return err
			}
			if err := ls.providers.save(txn, owner, true); err != nil {
				return err
			}
			ret = VoteResult{
				Attestation:     *attestation,
				Owner:           *owner,
				ReputationDelta: delta,
			}
			return nil
		},
		attribute.String("attestation", key.String()),
		attribute.String("voter", voter.String()),
		attribute.Bool("accurate", isAccurate),
	)
	if err != nil {
		return nil, err
	}
	ls.metrics.votesTotal.WithLabelValues(strconv.FormatBool(isAccurate)).Inc()
	ls.metrics.recordReputationDelta(ret.ReputationDelta)
	ls.config.Logger.Info(
		"attestation voted",
		"component", "ledger",
		"attestation", key.String(),
		"voter", voter.String(),
		"accurate", isAccurate,
		"reputation", ret.Owner.Reputation,
	)
	ls.publish(
		AttestationVotedEventType,
		AttestationVotedEvent{
			Attestation:     ret.Attestation,
			Owner:           ret.Owner,
			Voter:           voter,
			IsAccurate:      isAccurate,
			ReputationDelta: ret.ReputationDelta,
		},
	)
	return &ret, nil
}

// Withdraw returns amount of the provider's stake to the caller, who must be
// the provider's authority
func (ls *LedgerState) Withdraw(
	ctx context.Context,
	caller Identity,
	provider Identity,
	amount uint64,
) (*Provider, error) {
	var ret *Provider
	err := ls.runOp(
		ctx,
		"withdraw",
		provider,
		func(txn *database.Txn, now int64) error {
			tmpProvider, err := ls.providers.load(txn, provider)
			if err != nil {
				return err
			}
			if err := ls.providers.withdrawStake(txn, caller, tmpProvider, amount, now); err != nil {
				return err
			}
			ret = tmpProvider
			return nil
		},
		attribute.String("provider", provider.String()),
		attribute.String("caller", caller.String()),
		attribute.String("amount", strconv.FormatUint(amount, 10)),
	)
	if err != nil {
		return nil, err
	}
	ls.metrics.stakedTotal.Sub(float64(amount))
	ls.config.Logger.Info(
		"provider withdrew stake",
		"component", "ledger",
		"provider", provider.String(),
		"amount", amount,
		"stake", ret.Stake,
	)
	ls.publish(
		ProviderWithdrawnEventType,
		ProviderWithdrawnEvent{Provider: *ret, Amount: amount},
	)
	return ret, nil
}

// Airdrop credits amount to the recipient's wallet. It is only available
// when the faucet is enabled
func (ls *LedgerState) Airdrop(
	ctx context.Context,
	recipient Identity,
	amount uint64,
) (uint64, error) {
	var balance uint64
	err := ls.runOp(
		ctx,
		"airdrop",
		recipient,
		func(txn *database.Txn, _ int64) error {
			if !ls.config.FaucetEnabled {
				return ErrFaucetDisabled
			}
			if err := ls.db.Credit(recipient.Bytes(), amount, txn); err != nil {
				return transferError(err)
			}
			tmpBalance, err := ls.db.GetBalance(recipient.Bytes(), txn)
			if err != nil {
				return err
			}
			balance = tmpBalance
			return nil
		},
		attribute.String("recipient", recipient.String()),
		attribute.String("amount", strconv.FormatUint(amount, 10)),
	)
	if err != nil {
		return 0, err
	}
	ls.config.Logger.Info(
		"faucet airdrop",
		"component", "ledger",
		"recipient", recipient.String(),
		"amount", amount,
	)
	ls.publish(
		WalletAirdroppedEventType,
		WalletAirdroppedEvent{Recipient: recipient, Amount: amount, Balance: balance},
	)
	return balance, nil
}
