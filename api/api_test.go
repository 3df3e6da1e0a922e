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
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/ledger"
	"go.uber.org/goleak"
	"golang.org/x/net/http2"
)

type testClient struct {
	key ed25519.PrivateKey
	id  ledger.Identity
}

func newTestClient(t *testing.T, seed byte) *testClient {
	t.Helper()
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	id, err := ledger.NewIdentity(key.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return &testClient{key: key, id: id}
}

type testEnv struct {
	clock   *ledger.ManualClock
	handler http.Handler
}

func newTestEnv(t *testing.T, faucetEnabled bool) *testEnv {
	t.Helper()
	db, err := database.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	clock := ledger.NewManualClock(time.Unix(1_700_000_000, 0))
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database:      db,
		Clock:         clock,
		FaucetEnabled: faucetEnabled,
	})
	require.NoError(t, err)
	return &testEnv{
		clock:   clock,
		handler: New(Config{}, ls, nil).Handler(),
	}
}

// do sends a request, signing the JSON body when client is set
func (e *testEnv) do(
	t *testing.T,
	method string,
	path string,
	body any,
	client *testClient,
) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	if client != nil {
		require.NoError(t, SignRequest(req, client.key, raw))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret), rec.Body.String())
	return ret
}

func amount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(Config{ListenAddress: "127.0.0.1:0"}, nil, nil)

	err := s.Start(context.Background())
	require.NoError(t, err)
	addr := s.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get("http://" + addr.String() + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	http.DefaultClient.CloseIdleConnections()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.Nil(t, s.Addr())
	// Stopping twice is harmless
	require.NoError(t, s.Stop(stopCtx))
}

func TestStopOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(Config{ListenAddress: "127.0.0.1:0"}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	require.Eventually(t, func() bool {
		return s.Addr() == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCleartextHTTP2(t *testing.T) {
	s := New(Config{ListenAddress: "127.0.0.1:0"}, nil, nil)
	require.NoError(t, s.Start(t.Context()))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = s.Stop(stopCtx)
	}()

	transport := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}
	resp, err := client.Get("http://" + s.Addr().String() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, resp.ProtoMajor)
}

func TestStartAlreadyStarted(t *testing.T) {
	s := New(Config{ListenAddress: "127.0.0.1:0"}, nil, nil)
	require.NoError(t, s.Start(t.Context()))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = s.Stop(stopCtx)
	}()

	err := s.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestHandleRootAndHealth(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	root := decodeResponse[RootResponse](t, rec)
	assert.Equal(t, "vetra", root.Name)
	assert.NotEmpty(t, root.Version)

	rec = env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse[HealthResponse](t, rec).IsHealthy)

	rec = env.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviderLifecycle(t *testing.T) {
	env := newTestEnv(t, true)
	owner := newTestClient(t, 1)
	voter := newTestClient(t, 2)
	ref := bytes.Repeat([]byte{0xcd}, ledger.TransactionRefSize)
	refHex := ledger.TransactionRef(ref).String()

	rec := env.do(t, http.MethodPost, "/api/v1/faucet",
		map[string]any{"amount": amount(2 * ledger.MinStake)}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	wallet := decodeResponse[WalletResponse](t, rec)
	assert.Equal(t, owner.id, wallet.Identity)
	assert.Equal(t, 2*ledger.MinStake, wallet.Balance)

	rec = env.do(t, http.MethodPost, "/api/v1/stake",
		map[string]any{"amount": amount(2 * ledger.MinStake)}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	provider := decodeResponse[ProviderResponse](t, rec)
	assert.Equal(t, 2*ledger.MinStake, provider.Stake)
	assert.Equal(t, ledger.InitialReputation, provider.Reputation)

	rec = env.do(t, http.MethodGet, "/api/v1/providers/"+owner.id.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, provider, decodeResponse[ProviderResponse](t, rec))

	rec = env.do(t, http.MethodPost, "/api/v1/attestations", map[string]any{
		"transaction_ref": refHex,
		"risk_score":      85,
		"reason":          "known counterparty",
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	attestation := decodeResponse[AttestationResponse](t, rec)
	assert.Equal(t, uint8(85), attestation.RiskScore)
	assert.InDelta(t, 0.5, attestation.AccuracyRatio, 1e-9)

	attestationPath := "/api/v1/attestations/" + owner.id.String() + "/" + refHex
	rec = env.do(t, http.MethodPost, attestationPath+"/votes",
		map[string]any{"is_accurate": true}, voter)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	vote := decodeResponse[VoteResponse](t, rec)
	assert.Equal(t, 1, vote.ReputationDelta)
	assert.Equal(t, ledger.InitialReputation+1, vote.Owner.Reputation)
	assert.Equal(t, uint64(1), vote.Attestation.VotesFor)

	rec = env.do(t, http.MethodGet, attestationPath, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, vote.Attestation, decodeResponse[AttestationResponse](t, rec))

	rec = env.do(t, http.MethodGet, "/api/v1/transactions/"+refHex+"/attestations", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	risk := decodeResponse[RiskResponse](t, rec)
	assert.InDelta(t, 85.0, risk.Score, 1e-9)
	assert.Equal(t, 1, risk.AttestationCount)

	rec = env.do(t, http.MethodGet, "/api/v1/providers/"+owner.id.String()+"/attestations", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeResponse[[]AttestationResponse](t, rec), 1)
	assert.Equal(t, "1", rec.Header().Get("X-Pagination-Count-Total"))

	rec = env.do(t, http.MethodGet, "/api/v1/providers?count=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeResponse[[]ProviderResponse](t, rec), 1)

	rec = env.do(t, http.MethodPost, "/api/v1/withdraw",
		map[string]any{"amount": amount(ledger.MinStake)}, owner)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "withdraw_cooldown", decodeResponse[ErrorResponse](t, rec).Kind)

	env.clock.Advance(ledger.WithdrawCooldown)
	rec = env.do(t, http.MethodPost, "/api/v1/withdraw", map[string]any{
		"provider": owner.id.String(),
		"amount":   amount(ledger.MinStake),
	}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ledger.MinStake, decodeResponse[ProviderResponse](t, rec).Stake)

	rec = env.do(t, http.MethodGet, "/api/v1/wallets/"+owner.id.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledger.MinStake, decodeResponse[WalletResponse](t, rec).Balance)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, true)
	client := newTestClient(t, 1)
	body := []byte(`{"amount":"10"}`)

	// No credentials
	rec := env.do(t, http.MethodPost, "/api/v1/faucet", map[string]any{"amount": "10"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeResponse[ErrorResponse](t, rec).Kind)

	send := func(req *http.Request) int {
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Signature over a different body
	req := httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	require.NoError(t, SignRequest(req, client.key, []byte(`{"amount":"99"}`)))
	assert.Equal(t, http.StatusUnauthorized, send(req))

	// Signature made for another endpoint
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	other := httptest.NewRequest(http.MethodPost, "/api/v1/stake", nil)
	require.NoError(t, SignRequest(other, client.key, body))
	req.Header = other.Header.Clone()
	assert.Equal(t, http.StatusUnauthorized, send(req))

	// Malformed headers
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	require.NoError(t, SignRequest(req, client.key, body))
	req.Header.Set(SignatureHeader, "zz")
	assert.Equal(t, http.StatusUnauthorized, send(req))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	require.NoError(t, SignRequest(req, client.key, body))
	req.Header.Set(IdentityHeader, "vetra1invalid")
	assert.Equal(t, http.StatusUnauthorized, send(req))

	// Missing timestamp
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	require.NoError(t, SignRequest(req, client.key, body))
	req.Header.Del(TimestampHeader)
	assert.Equal(t, http.StatusUnauthorized, send(req))

	// Timestamp outside the allowed skew, in either direction
	for _, at := range []time.Time{
		time.Now().Add(-MaxClockSkew - time.Minute),
		time.Now().Add(MaxClockSkew + time.Minute),
	} {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
		require.NoError(t, SignRequestAt(req, client.key, body, at))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, decodeResponse[ErrorResponse](t, rec).Message, ErrStaleTimestamp.Error())
	}

	// Rewriting the timestamp invalidates the signature
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	require.NoError(t, SignRequestAt(req, client.key, body, time.Now().Add(-time.Minute)))
	req.Header.Set(TimestampHeader, strconv.FormatInt(time.Now().Unix(), 10))
	assert.Equal(t, http.StatusUnauthorized, send(req))

	// A request signed slightly in the past is still accepted
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	require.NoError(t, SignRequestAt(req, client.key, body, time.Now().Add(-time.Minute)))
	assert.Equal(t, http.StatusOK, send(req))

	// A properly signed request goes through
	req = httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	require.NoError(t, SignRequest(req, client.key, body))
	assert.Equal(t, http.StatusOK, send(req))
}

func TestSigningMessage(t *testing.T) {
	msg := SigningMessage("POST", "/api/v1/stake", 1_700_000_000, []byte(`{"amount":"1"}`))
	assert.Equal(t, "POST /api/v1/stake\n1700000000\n{\"amount\":\"1\"}", string(msg))
}

func TestOversizedBody(t *testing.T) {
	env := newTestEnv(t, true)
	client := newTestClient(t, 1)
	body := bytes.Repeat([]byte{' '}, maxBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/faucet", bytes.NewReader(body))
	require.NoError(t, SignRequest(req, client.key, body))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	env := newTestEnv(t, true)
	owner := newTestClient(t, 1)
	other := newTestClient(t, 2)
	refHex := ledger.TransactionRef(bytes.Repeat([]byte{1}, ledger.TransactionRefSize)).String()

	rec := env.do(t, http.MethodPost, "/api/v1/stake",
		map[string]any{"amount": amount(ledger.MinStake)}, owner)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_stake", decodeResponse[ErrorResponse](t, rec).Kind)

	env.do(t, http.MethodPost, "/api/v1/faucet",
		map[string]any{"amount": amount(ledger.MinStake)}, owner)
	rec = env.do(t, http.MethodPost, "/api/v1/stake",
		map[string]any{"amount": amount(ledger.MinStake)}, owner)
	require.Equal(t, http.StatusOK, rec.Code)

	testDefs := []struct {
		name   string
		method string
		path   string
		body   any
		client *testClient
		status int
		kind   string
	}{
		{
			name:   "risk score out of range",
			method: http.MethodPost,
			path:   "/api/v1/attestations",
			body:   map[string]any{"transaction_ref": refHex, "risk_score": 101},
			client: owner,
			status: http.StatusBadRequest,
			kind:   "invalid_risk_score",
		},
		{
			name:   "missing transaction ref",
			method: http.MethodPost,
			path:   "/api/v1/attestations",
			body:   map[string]any{"risk_score": 10},
			client: owner,
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "unknown field",
			method: http.MethodPost,
			path:   "/api/v1/stake",
			body:   map[string]any{"amount": "1", "bonus": true},
			client: owner,
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "vote on missing attestation",
			method: http.MethodPost,
			path:   "/api/v1/attestations/" + other.id.String() + "/" + refHex + "/votes",
			body:   map[string]any{"is_accurate": false},
			client: owner,
			status: http.StatusNotFound,
			kind:   "not_found",
		},
		{
			name:   "vote without outcome",
			method: http.MethodPost,
			path:   "/api/v1/attestations/" + owner.id.String() + "/" + refHex + "/votes",
			body:   map[string]any{},
			client: other,
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "withdraw from another provider",
			method: http.MethodPost,
			path:   "/api/v1/withdraw",
			body:   map[string]any{"provider": owner.id.String(), "amount": "1"},
			client: other,
			status: http.StatusForbidden,
			kind:   "unauthorized",
		},
		{
			name:   "unknown provider",
			method: http.MethodGet,
			path:   "/api/v1/providers/" + other.id.String(),
			status: http.StatusNotFound,
			kind:   "not_found",
		},
		{
			name:   "malformed identity",
			method: http.MethodGet,
			path:   "/api/v1/providers/bogus",
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "malformed transaction ref",
			method: http.MethodGet,
			path:   "/api/v1/transactions/xyz/attestations",
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "bad pagination",
			method: http.MethodGet,
			path:   "/api/v1/providers?order=sideways",
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			rec := env.do(t, testDef.method, testDef.path, testDef.body, testDef.client)
			assert.Equal(t, testDef.status, rec.Code, rec.Body.String())
			resp := decodeResponse[ErrorResponse](t, rec)
			assert.Equal(t, testDef.kind, resp.Kind)
			assert.Equal(t, testDef.status, resp.StatusCode)
		})
	}

	body := map[string]any{"transaction_ref": refHex, "risk_score": 10}
	rec = env.do(t, http.MethodPost, "/api/v1/attestations", body, owner)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/attestations", body, owner)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_attestation", decodeResponse[ErrorResponse](t, rec).Kind)
}

func TestFaucetDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodPost, "/api/v1/faucet",
		map[string]any{"amount": "10"}, newTestClient(t, 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "faucet_disabled", decodeResponse[ErrorResponse](t, rec).Kind)
}

func TestLedgerErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, ledgerErrorStatus(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, ledgerErrorStatus(assert.AnError))
	assert.Equal(t, http.StatusUnprocessableEntity, ledgerErrorStatus(ledger.ErrAmountOverflow))
}
