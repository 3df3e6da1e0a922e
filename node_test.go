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

package vetra

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamhnyohei/Vetra/ledger"
)

func runTestNode(t *testing.T, opts ...ConfigOptionFunc) (*Node, <-chan error) {
	t.Helper()
	opts = append(
		[]ConfigOptionFunc{WithPrometheusRegistry(prometheus.NewRegistry())},
		opts...,
	)
	n, err := New(NewConfig(opts...))
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(context.Background())
	}()
	select {
	case <-n.Ready():
	case err := <-errCh:
		t.Fatalf("node failed to start: %s", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for node to start")
	}
	return n, errCh
}

func stopTestNode(t *testing.T, n *Node, errCh <-chan error) {
	t.Helper()
	require.NoError(t, n.Stop())
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for node to stop")
	}
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := New(NewConfig(WithStoragePlugin("nope")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage plugin")

	_, err = New(NewConfig(WithShutdownTimeout(-time.Second)))
	require.Error(t, err)
}

func TestNodeRunStop(t *testing.T) {
	n, errCh := runTestNode(
		t,
		WithApiListenAddress("127.0.0.1:0"),
		WithFaucet(true),
	)
	ls := n.LedgerState()
	require.NotNil(t, ls)
	_, stakedCh := n.EventBus().Subscribe(ledger.ProviderStakedEventType)

	ctx := context.Background()
	id := ledger.Identity(bytes.Repeat([]byte{1}, ledger.IdentitySize))
	_, err := ls.Airdrop(ctx, id, ledger.MinStake)
	require.NoError(t, err)
	_, err = ls.Stake(ctx, id, ledger.MinStake)
	require.NoError(t, err)
	select {
	case evt := <-stakedCh:
		assert.Equal(t, ledger.ProviderStakedEventType, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stake event")
	}

	addr := n.APIAddr()
	require.NotNil(t, addr)
	resp, err := http.Get("http://" + addr.String() + "/api/v1/providers/" + id.String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopTestNode(t, n, errCh)
	// Stop is idempotent
	require.NoError(t, n.Stop())
}

func TestNodeRunContextCancel(t *testing.T) {
	n, err := New(NewConfig(WithPrometheusRegistry(prometheus.NewRegistry())))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	<-n.Ready()
	assert.Nil(t, n.APIAddr())
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for node to stop")
	}
}

func TestNodePersistence(t *testing.T) {
	for _, pluginName := range []string{"sqlite", "badger"} {
		t.Run(pluginName, func(t *testing.T) {
			dataDir := t.TempDir()
			clock := ledger.NewManualClock(time.Unix(1_700_000_000, 0))
			id := ledger.Identity(bytes.Repeat([]byte{2}, ledger.IdentitySize))
			ctx := context.Background()

			n, errCh := runTestNode(
				t,
				WithStoragePlugin(pluginName),
				WithDatabasePath(dataDir),
				WithFaucet(true),
				WithClock(clock),
			)
			_, err := n.LedgerState().Airdrop(ctx, id, 3*ledger.MinStake)
			require.NoError(t, err)
			_, err = n.LedgerState().Stake(ctx, id, 2*ledger.MinStake)
			require.NoError(t, err)
			stopTestNode(t, n, errCh)

			n, errCh = runTestNode(
				t,
				WithStoragePlugin(pluginName),
				WithDatabasePath(dataDir),
				WithClock(clock),
			)
			p, err := n.LedgerState().GetProvider(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 2*ledger.MinStake, p.Stake)
			balance, err := n.LedgerState().Balance(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, ledger.MinStake, balance)
			stopTestNode(t, n, errCh)
		})
	}
}
