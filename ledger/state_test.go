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
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/database/models"
	"github.com/williamhnyohei/Vetra/event"
)

var testStartTime = time.Unix(1_700_000_000, 0)

type testLedger struct {
	*LedgerState
	clock *ManualClock
	db    *database.Database
}

func newTestLedger(t *testing.T, pluginName string) *testLedger {
	t.Helper()
	db, err := database.New(&database.Config{StoragePlugin: pluginName})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	clock := NewManualClock(testStartTime)
	ls, err := NewLedgerState(LedgerStateConfig{
		Database:      db,
		Clock:         clock,
		PromRegistry:  prometheus.NewRegistry(),
		FaucetEnabled: true,
	})
	require.NoError(t, err)
	return &testLedger{LedgerState: ls, clock: clock, db: db}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, ls *testLedger)) {
	for _, pluginName := range []string{"sqlite", "badger"} {
		t.Run(pluginName, func(t *testing.T) {
			fn(t, newTestLedger(t, pluginName))
		})
	}
}

func testIdentity(b byte) Identity {
	return Identity(bytes.Repeat([]byte{b}, IdentitySize))
}

func testRef(b byte) TransactionRef {
	return TransactionRef(bytes.Repeat([]byte{b}, TransactionRefSize))
}

func (ls *testLedger) fund(t *testing.T, id Identity, amount uint64) {
	t.Helper()
	_, err := ls.Airdrop(context.Background(), id, amount)
	require.NoError(t, err)
}

// stakedProvider funds and stakes a provider with exactly MinStake
func (ls *testLedger) stakedProvider(t *testing.T, id Identity) *Provider {
	t.Helper()
	ls.fund(t, id, MinStake)
	p, err := ls.Stake(context.Background(), id, MinStake)
	require.NoError(t, err)
	return p
}

func assertStakeInvariant(t *testing.T, p *Provider) {
	t.Helper()
	assert.True(
		t,
		p.Stake == 0 || p.Stake >= MinStake,
		"stake %d is between 0 and the minimum",
		p.Stake,
	)
}

func TestStakeCreatesProvider(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		caller := testIdentity(1)
		ls.fund(t, caller, 5*MinStake)

		p, err := ls.Stake(ctx, caller, MinStake)
		require.NoError(t, err)
		assert.Equal(t, caller, p.Authority)
		assert.Equal(t, MinStake, p.Stake)
		assert.Equal(t, InitialReputation, p.Reputation)
		assert.Equal(t, testStartTime.Unix(), p.LastStakeAt)
		assert.Zero(t, p.AttestationsCount)
		assertStakeInvariant(t, p)

		// A later deposit adds to the stake and restarts the cooldown
		ls.clock.Advance(time.Hour)
		p, err = ls.Stake(ctx, caller, 2*MinStake)
		require.NoError(t, err)
		assert.Equal(t, 3*MinStake, p.Stake)
		assert.Equal(t, testStartTime.Add(time.Hour).Unix(), p.LastStakeAt)
		assert.Equal(t, InitialReputation, p.Reputation)

		balance, err := ls.Balance(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 2*MinStake, balance)
		vault, err := ls.VaultBalance(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 3*MinStake, vault)

		stored, err := ls.GetProvider(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, p, stored)
	})
}

func TestStakeBelowMinimum(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		caller := testIdentity(1)
		ls.fund(t, caller, MinStake)

		_, err := ls.Stake(ctx, caller, MinStake-1)
		require.ErrorIs(t, err, ErrInsufficientStake)
		_, err = ls.Stake(ctx, caller, 0)
		require.ErrorIs(t, err, ErrInsufficientStake)

		_, err = ls.GetProvider(ctx, caller)
		require.ErrorIs(t, err, ErrNotFound)
		balance, err := ls.Balance(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, MinStake, balance)
	})
}

func TestStakeInsufficientFunds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		caller := testIdentity(1)
		ls.fund(t, caller, MinStake-1)

		_, err := ls.Stake(ctx, caller, MinStake)
		require.ErrorIs(t, err, ErrInsufficientStake)
		require.ErrorIs(t, err, models.ErrInsufficientFunds)

		// Nothing from the failed operation is visible
		_, err = ls.GetProvider(ctx, caller)
		require.ErrorIs(t, err, ErrNotFound)
		balance, err := ls.Balance(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, MinStake-1, balance)
		vault, err := ls.VaultBalance(ctx, caller)
		require.NoError(t, err)
		assert.Zero(t, vault)
	})
}

func TestWithdrawAfterCooldown(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		caller := testIdentity(1)
		ls.stakedProvider(t, caller)

		_, err := ls.Withdraw(ctx, caller, caller, 1)
		require.ErrorIs(t, err, ErrWithdrawCooldown)

		ls.clock.Advance(WithdrawCooldown - time.Second)
		_, err = ls.Withdraw(ctx, caller, caller, MinStake)
		require.ErrorIs(t, err, ErrWithdrawCooldown)

		ls.clock.Advance(time.Second)
		p, err := ls.Withdraw(ctx, caller, caller, MinStake)
		require.NoError(t, err)
		assert.Zero(t, p.Stake)
		assertStakeInvariant(t, p)

		balance, err := ls.Balance(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, MinStake, balance)
		vault, err := ls.VaultBalance(ctx, caller)
		require.NoError(t, err)
		assert.Zero(t, vault)

		// The record survives with zero stake
		stored, err := ls.GetProvider(ctx, caller)
		require.NoError(t, err)
		assert.Zero(t, stored.Stake)
	})
}

func TestWithdrawChecks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		owner := testIdentity(1)
		other := testIdentity(2)
		ls.fund(t, owner, 3*MinStake)
		_, err := ls.Stake(ctx, owner, 3*MinStake)
		require.NoError(t, err)
		ls.clock.Advance(WithdrawCooldown)

		_, err = ls.Withdraw(ctx, other, other, 1)
		require.ErrorIs(t, err, ErrNotFound)

		// Authority is checked before the cooldown and amounts
		_, err = ls.Withdraw(ctx, other, owner, MinStake)
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = ls.Withdraw(ctx, owner, owner, 3*MinStake+1)
		require.ErrorIs(t, err, ErrInsufficientStake)

		_, err = ls.Withdraw(ctx, owner, owner, 2*MinStake+1)
		require.ErrorIs(t, err, ErrInsufficientStake)

		p, err := ls.Withdraw(ctx, owner, owner, 2*MinStake)
		require.NoError(t, err)
		assert.Equal(t, MinStake, p.Stake)
		assertStakeInvariant(t, p)

		// Withdrawing does not restart the cooldown
		p, err = ls.Withdraw(ctx, owner, owner, MinStake)
		require.NoError(t, err)
		assert.Zero(t, p.Stake)
	})
}

func TestCreateAttestationValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		caller := testIdentity(1)

		// No stake yet
		_, err := ls.CreateAttestation(ctx, caller, testRef(1), 10, "")
		require.ErrorIs(t, err, ErrInsufficientStake)

		ls.stakedProvider(t, caller)

		_, err = ls.CreateAttestation(ctx, caller, testRef(1), 101, "")
		require.ErrorIs(t, err, ErrInvalidRiskScore)
		_, err = ls.CreateAttestation(ctx, caller, testRef(1), -1, "")
		require.ErrorIs(t, err, ErrInvalidRiskScore)

		a, err := ls.CreateAttestation(ctx, caller, testRef(1), 100, "")
		require.NoError(t, err)
		assert.Equal(t, uint8(100), a.RiskScore)

		_, err = ls.CreateAttestation(ctx, caller, testRef(2), 0, strings.Repeat("x", 201))
		require.ErrorIs(t, err, ErrReasonTooLong)

		// Length is measured in characters
		reason := strings.Repeat("é", MaxReasonLength)
		a, err = ls.CreateAttestation(ctx, caller, testRef(2), 0, reason)
		require.NoError(t, err)
		assert.Equal(t, reason, a.Reason)
		assert.Equal(t, testStartTime.Unix(), a.CreatedAt)
		assert.Zero(t, a.VotesFor)
		assert.Zero(t, a.VotesAgainst)

		p, err := ls.GetProvider(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), p.AttestationsCount)

		stored, err := ls.GetAttestation(ctx, a.Key())
		require.NoError(t, err)
		assert.Equal(t, a, stored)
		assert.InDelta(t, 0.5, stored.AccuracyRatio(), 1e-9)
	})
}

func TestCreateAttestationAfterFullWithdraw(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		caller := testIdentity(1)
		ls.stakedProvider(t, caller)
		ls.clock.Advance(WithdrawCooldown)
		_, err := ls.Withdraw(ctx, caller, caller, MinStake)
		require.NoError(t, err)

		_, err = ls.CreateAttestation(ctx, caller, testRef(1), 50, "")
		require.ErrorIs(t, err, ErrInsufficientStake)
	})
}

func TestCreateAttestationDuplicate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		caller := testIdentity(1)
		ls.stakedProvider(t, caller)

		_, err := ls.CreateAttestation(ctx, caller, testRef(1), 40, "first")
		require.NoError(t, err)
		_, err = ls.CreateAttestation(ctx, caller, testRef(1), 60, "second")
		require.ErrorIs(t, err, ErrDuplicateAttestation)

		// The failed attempt changed nothing
		a, err := ls.GetAttestation(ctx, AttestationKey{Provider: caller, TransactionRef: testRef(1)})
		require.NoError(t, err)
		assert.Equal(t, "first", a.Reason)
		p, err := ls.GetProvider(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.AttestationsCount)

		// Another provider may attest to the same transaction
		other := testIdentity(2)
		ls.stakedProvider(t, other)
		_, err = ls.CreateAttestation(ctx, other, testRef(1), 60, "")
		require.NoError(t, err)
	})
}

func TestCreateAttestationConcurrentDuplicates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		caller := testIdentity(1)
		ls.stakedProvider(t, caller)

		const attempts = 16
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = ls.CreateAttestation(ctx, caller, testRef(9), 10, "")
			}()
		}
		wg.Wait()
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.ErrorIs(t, err, ErrDuplicateAttestation)
		}
		assert.Equal(t, 1, succeeded)
		p, err := ls.GetProvider(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.AttestationsCount)
	})
}

func TestVoteReputationProgression(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		owner := testIdentity(1)
		voter := testIdentity(2)
		ls.stakedProvider(t, owner)
		a, err := ls.CreateAttestation(ctx, owner, testRef(1), 70, "")
		require.NoError(t, err)

		// Every vote leaves the ratio above 0.7
		votes := []bool{true, true, true, true, true, true, true, true, false, false}
		var res *VoteResult
		for _, v := range votes {
			res, err = ls.Vote(ctx, voter, a.Key(), v)
			require.NoError(t, err)
			assert.Equal(t, 1, res.ReputationDelta)
		}
		assert.Equal(t, uint64(8), res.Attestation.VotesFor)
		assert.Equal(t, uint64(2), res.Attestation.VotesAgainst)
		assert.InDelta(t, 0.8, res.Attestation.AccuracyRatio(), 1e-9)
		assert.Equal(t, InitialReputation+10, res.Owner.Reputation)
		assert.Equal(t, uint64(10), res.Owner.AccurateAttestations)

		// 8/11 is still above the threshold, so both counters move again
		res, err = ls.Vote(ctx, voter, a.Key(), false)
		require.NoError(t, err)
		assert.InDelta(t, 8.0/11.0, res.Attestation.AccuracyRatio(), 1e-9)
		assert.Equal(t, 1, res.ReputationDelta)
		assert.Equal(t, InitialReputation+11, res.Owner.Reputation)
		assert.Equal(t, uint64(11), res.Owner.AccurateAttestations)
		assert.Equal(t, uint64(1), res.Owner.AttestationsCount)

		// Qualifying votes on a single attestation push the accurate
		// counter past the attestation count
		assert.Greater(t, res.Owner.AccurateAttestations, res.Owner.AttestationsCount)

		stored, err := ls.GetProvider(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, res.Owner, *stored)
		assert.Greater(t, stored.AccurateAttestations, stored.AttestationsCount)
		assert.InDelta(t, 11.0, stored.AccuracyRate(), 1e-9)
	})
}

func TestAccurateAttestationsNotBoundedByCount(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		owner := testIdentity(1)
		ls.stakedProvider(t, owner)
		a, err := ls.CreateAttestation(ctx, owner, testRef(1), 70, "")
		require.NoError(t, err)
		b, err := ls.CreateAttestation(ctx, owner, testRef(2), 20, "")
		require.NoError(t, err)

		for i := range 3 {
			_, err = ls.Vote(ctx, testIdentity(byte(10+i)), a.Key(), true)
			require.NoError(t, err)
		}
		// A losing attestation leaves the accurate counter alone
		_, err = ls.Vote(ctx, testIdentity(20), b.Key(), false)
		require.NoError(t, err)

		stored, err := ls.GetProvider(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), stored.AttestationsCount)
		assert.Equal(t, uint64(3), stored.AccurateAttestations)
		assert.InDelta(t, 1.5, stored.AccuracyRate(), 1e-9)
	})
}

func TestVoteBoundaryRatio(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		owner := testIdentity(1)
		ls.stakedProvider(t, owner)
		a, err := ls.CreateAttestation(ctx, owner, testRef(1), 70, "")
		require.NoError(t, err)

		var res *VoteResult
		for i := range 10 {
			res, err = ls.Vote(ctx, testIdentity(byte(10+i)), a.Key(), i < 7)
			require.NoError(t, err)
		}
		// The last vote lands exactly on 0.7
		assert.Zero(t, res.ReputationDelta)
		assert.Equal(t, InitialReputation+9, res.Owner.Reputation)
		assert.Equal(t, uint64(9), res.Owner.AccurateAttestations)
	})
}

func TestVotePenalty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		owner := testIdentity(1)
		ls.stakedProvider(t, owner)
		a, err := ls.CreateAttestation(ctx, owner, testRef(1), 5, "")
		require.NoError(t, err)

		res, err := ls.Vote(ctx, testIdentity(2), a.Key(), false)
		require.NoError(t, err)
		assert.Equal(t, -2, res.ReputationDelta)
		assert.Equal(t, InitialReputation-2, res.Owner.Reputation)
		assert.Zero(t, res.Owner.AccurateAttestations)

		// 1/2 is neutral
		res, err = ls.Vote(ctx, testIdentity(2), a.Key(), true)
		require.NoError(t, err)
		assert.Zero(t, res.ReputationDelta)
		assert.Equal(t, InitialReputation-2, res.Owner.Reputation)
	})
}

func TestVoteReputationSaturates(t *testing.T) {
	ls := newTestLedger(t, "sqlite")
	ctx := context.Background()
	good := testIdentity(1)
	bad := testIdentity(2)
	voter := testIdentity(3)
	ls.stakedProvider(t, good)
	ls.stakedProvider(t, bad)
	goodAttestation, err := ls.CreateAttestation(ctx, good, testRef(1), 90, "")
	require.NoError(t, err)
	badAttestation, err := ls.CreateAttestation(ctx, bad, testRef(1), 10, "")
	require.NoError(t, err)

	for range int(MaxReputation-InitialReputation) + 5 {
		res, err := ls.Vote(ctx, voter, goodAttestation.Key(), true)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Owner.Reputation, MaxReputation)
	}
	p, err := ls.GetProvider(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, MaxReputation, p.Reputation)

	for range int(InitialReputation)/2 + 5 {
		_, err := ls.Vote(ctx, voter, badAttestation.Key(), false)
		require.NoError(t, err)
	}
	p, err = ls.GetProvider(ctx, bad)
	require.NoError(t, err)
	assert.Zero(t, p.Reputation)
}

func TestVoteNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		key := AttestationKey{Provider: testIdentity(1), TransactionRef: testRef(1)}
		_, err := ls.Vote(context.Background(), testIdentity(2), key, true)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = ls.GetAttestation(context.Background(), key)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConcurrentVotes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		owner := testIdentity(1)
		ls.stakedProvider(t, owner)
		a, err := ls.CreateAttestation(ctx, owner, testRef(1), 50, "")
		require.NoError(t, err)

		const voteCount = 64
		var wg sync.WaitGroup
		for i := range voteCount {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := ls.Vote(ctx, testIdentity(byte(i)), a.Key(), i%3 != 0)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, err := ls.GetAttestation(ctx, a.Key())
		require.NoError(t, err)
		assert.Equal(t, uint64(voteCount), stored.VotesFor+stored.VotesAgainst)
		assert.Equal(
			t,
			float64(voteCount),
			testutil.ToFloat64(ls.metrics.operations.WithLabelValues("vote", "ok")),
		)
	})
}

func TestParallelProviders(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		const providerCount = 8
		var wg sync.WaitGroup
		for i := range providerCount {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := testIdentity(byte(i + 1))
				if _, err := ls.Airdrop(ctx, id, 2*MinStake); !assert.NoError(t, err) {
					return
				}
				if _, err := ls.Stake(ctx, id, 2*MinStake); !assert.NoError(t, err) {
					return
				}
				_, err := ls.CreateAttestation(ctx, id, testRef(1), 10*i, "")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		providers, err := ls.ListProviders(ctx, 0)
		require.NoError(t, err)
		require.Len(t, providers, providerCount)
		for _, p := range providers {
			assert.Equal(t, 2*MinStake, p.Stake)
			assert.Equal(t, uint64(1), p.AttestationsCount)
		}
		attestations, err := ls.ListAttestationsByTransaction(ctx, testRef(1))
		require.NoError(t, err)
		assert.Len(t, attestations, providerCount)
		assert.InDelta(
			t,
			float64(providerCount)*float64(2*MinStake),
			testutil.ToFloat64(ls.metrics.stakedTotal),
			1,
		)
	})
}

func TestListQueries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		low := testIdentity(1)
		high := testIdentity(2)
		ls.stakedProvider(t, low)
		ls.stakedProvider(t, high)

		a, err := ls.CreateAttestation(ctx, high, testRef(1), 80, "")
		require.NoError(t, err)
		_, err = ls.Vote(ctx, low, a.Key(), true)
		require.NoError(t, err)
		ls.clock.Advance(time.Minute)
		_, err = ls.CreateAttestation(ctx, high, testRef(2), 20, "")
		require.NoError(t, err)

		providers, err := ls.ListProviders(ctx, 0)
		require.NoError(t, err)
		require.Len(t, providers, 2)
		assert.Equal(t, high, providers[0].Authority)
		assert.Equal(t, low, providers[1].Authority)

		providers, err = ls.ListProviders(ctx, 1)
		require.NoError(t, err)
		require.Len(t, providers, 1)

		attestations, err := ls.ListAttestationsByProvider(ctx, high)
		require.NoError(t, err)
		require.Len(t, attestations, 2)
		assert.Equal(t, testRef(1), attestations[0].TransactionRef)
		assert.Equal(t, testRef(2), attestations[1].TransactionRef)
		assert.Equal(t, uint64(1), attestations[0].VotesFor)

		attestations, err = ls.ListAttestationsByProvider(ctx, low)
		require.NoError(t, err)
		assert.Empty(t, attestations)
	})
}

func TestAggregateRiskScore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		ref := testRef(1)

		assessment, err := ls.AggregateRiskScore(ctx, ref)
		require.NoError(t, err)
		assert.InDelta(t, float64(DefaultRiskScore), assessment.Score, 1e-9)
		assert.Empty(t, assessment.Attestations)

		a := testIdentity(1)
		b := testIdentity(2)
		ls.stakedProvider(t, a)
		ls.stakedProvider(t, b)
		attA, err := ls.CreateAttestation(ctx, a, ref, 80, "")
		require.NoError(t, err)
		_, err = ls.CreateAttestation(ctx, b, ref, 20, "")
		require.NoError(t, err)

		assessment, err = ls.AggregateRiskScore(ctx, ref)
		require.NoError(t, err)
		assert.InDelta(t, 50.0, assessment.Score, 1e-9)
		assert.Len(t, assessment.Attestations, 2)

		_, err = ls.Vote(ctx, b, attA.Key(), true)
		require.NoError(t, err)
		assessment, err = ls.AggregateRiskScore(ctx, ref)
		require.NoError(t, err)
		assert.InDelta(t, (501.0*80+500.0*20)/1001.0, assessment.Score, 1e-9)
	})
}

func TestAggregateRiskScoreZeroReputation(t *testing.T) {
	ls := newTestLedger(t, "sqlite")
	ctx := context.Background()
	ref := testRef(1)
	a := testIdentity(1)
	b := testIdentity(2)
	ls.stakedProvider(t, a)
	ls.stakedProvider(t, b)
	attA, err := ls.CreateAttestation(ctx, a, ref, 80, "")
	require.NoError(t, err)
	attB, err := ls.CreateAttestation(ctx, b, ref, 20, "")
	require.NoError(t, err)

	for range int(InitialReputation) / 2 {
		_, err := ls.Vote(ctx, a, attB.Key(), false)
		require.NoError(t, err)
	}
	// A provider with no reputation carries no weight
	assessment, err := ls.AggregateRiskScore(ctx, ref)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, assessment.Score, 1e-9)

	for range int(InitialReputation) / 2 {
		_, err := ls.Vote(ctx, b, attA.Key(), false)
		require.NoError(t, err)
	}
	// With no weight anywhere the plain mean is used
	assessment, err = ls.AggregateRiskScore(ctx, ref)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, assessment.Score, 1e-9)
}

func TestAirdrop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		id := testIdentity(1)
		balance, err := ls.Airdrop(ctx, id, 10)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), balance)
		balance, err = ls.Airdrop(ctx, id, 5)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), balance)

		_, err = ls.Airdrop(ctx, id, ^uint64(0))
		require.ErrorIs(t, err, ErrAmountOverflow)
		balance, err = ls.Balance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), balance)
	})
}

func TestAirdropDisabled(t *testing.T) {
	db, err := database.New(nil)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	ls, err := NewLedgerState(LedgerStateConfig{Database: db})
	require.NoError(t, err)
	_, err = ls.Airdrop(context.Background(), testIdentity(1), 10)
	require.ErrorIs(t, err, ErrFaucetDisabled)
	assert.Equal(
		t,
		1.0,
		testutil.ToFloat64(ls.metrics.operations.WithLabelValues("airdrop", "faucet_disabled")),
	)
}

func TestNewLedgerStateRequiresDatabase(t *testing.T) {
	_, err := NewLedgerState(LedgerStateConfig{})
	require.Error(t, err)
}

func TestStakedTotalSeededFromStorage(t *testing.T) {
	ls := newTestLedger(t, "sqlite")
	ls.stakedProvider(t, testIdentity(1))
	ls.stakedProvider(t, testIdentity(2))

	reloaded, err := NewLedgerState(LedgerStateConfig{
		Database:     ls.db,
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	assert.InDelta(
		t,
		float64(2*MinStake),
		testutil.ToFloat64(reloaded.metrics.stakedTotal),
		1,
	)
}

func TestOperationMetrics(t *testing.T) {
	ls := newTestLedger(t, "sqlite")
	ctx := context.Background()
	owner := testIdentity(1)
	ls.stakedProvider(t, owner)
	_, err := ls.Stake(ctx, owner, 1)
	require.ErrorIs(t, err, ErrInsufficientStake)
	a, err := ls.CreateAttestation(ctx, owner, testRef(1), 50, "")
	require.NoError(t, err)
	_, err = ls.Vote(ctx, owner, a.Key(), true)
	require.NoError(t, err)
	_, err = ls.Vote(ctx, owner, a.Key(), false)
	require.NoError(t, err)

	ops := ls.metrics.operations
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("stake", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("stake", "insufficient_stake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("create_attestation", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ls.metrics.attestationsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(ls.metrics.votesTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ls.metrics.votesTotal.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ls.metrics.reputationChanges.WithLabelValues("up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ls.metrics.reputationChanges.WithLabelValues("none")))
	assert.InDelta(t, float64(MinStake), testutil.ToFloat64(ls.metrics.stakedTotal), 1)
}

func TestCanceledContext(t *testing.T) {
	ls := newTestLedger(t, "sqlite")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ls.Airdrop(ctx, testIdentity(1), 10)
	require.ErrorIs(t, err, context.Canceled)
	_, err = ls.GetProvider(ctx, testIdentity(1))
	require.ErrorIs(t, err, context.Canceled)
	balance, err := ls.Balance(context.Background(), testIdentity(1))
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestLedgerEvents(t *testing.T) {
	db, err := database.New(nil)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	ls, err := NewLedgerState(LedgerStateConfig{
		Database:      db,
		EventBus:      bus,
		FaucetEnabled: true,
	})
	require.NoError(t, err)
	_, stakedCh := bus.Subscribe(ProviderStakedEventType)
	_, votedCh := bus.Subscribe(AttestationVotedEventType)

	ctx := context.Background()
	owner := testIdentity(1)
	voter := testIdentity(2)
	_, err = ls.Airdrop(ctx, owner, MinStake)
	require.NoError(t, err)
	_, err = ls.Stake(ctx, owner, MinStake)
	require.NoError(t, err)
	a, err := ls.CreateAttestation(ctx, owner, testRef(1), 50, "")
	require.NoError(t, err)
	_, err = ls.Vote(ctx, voter, a.Key(), false)
	require.NoError(t, err)

	evt := receiveEvent(t, stakedCh)
	staked, ok := evt.Data.(ProviderStakedEvent)
	require.True(t, ok)
	assert.True(t, staked.Created)
	assert.Equal(t, MinStake, staked.Amount)
	assert.Equal(t, owner, staked.Provider.Authority)

	evt = receiveEvent(t, votedCh)
	voted, ok := evt.Data.(AttestationVotedEvent)
	require.True(t, ok)
	assert.Equal(t, voter, voted.Voter)
	assert.False(t, voted.IsAccurate)
	assert.Equal(t, -2, voted.ReputationDelta)
	assert.Equal(t, uint64(1), voted.Attestation.VotesAgainst)
}

func receiveEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return event.Event{}
}

func TestFailedOperationsLeaveNoTrace(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ls *testLedger) {
		ctx := context.Background()
		owner := testIdentity(1)
		ls.stakedProvider(t, owner)
		ls.clock.Advance(WithdrawCooldown)

		before, err := ls.GetProvider(ctx, owner)
		require.NoError(t, err)
		failures := []error{}
		_, err = ls.Withdraw(ctx, owner, owner, MinStake/2)
		failures = append(failures, err)
		_, err = ls.CreateAttestation(ctx, owner, testRef(1), 200, "")
		failures = append(failures, err)
		_, err = ls.Stake(ctx, owner, MinStake)
		failures = append(failures, err)
		for _, err := range failures {
			require.Error(t, err)
			assert.False(t, errors.Is(err, context.Canceled))
		}

		after, err := ls.GetProvider(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		vault, err := ls.VaultBalance(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, MinStake, vault)
	})
}
