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
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/williamhnyohei/Vetra/api"
	"github.com/williamhnyohei/Vetra/database"
	"github.com/williamhnyohei/Vetra/event"
	"github.com/williamhnyohei/Vetra/ledger"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	ledgerState   *ledger.LedgerState
	api           *api.Server
	shutdownFuncs []func(context.Context) error
	config        Config
	ready         chan struct{}
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n.eventBus = event.NewEventBus(cfg.promRegistry, cfg.logger)
	return n, nil
}

// Run starts the node and blocks until it is stopped, either by Stop or by
// cancellation of ctx
func (n *Node) Run(ctx context.Context) error {
	if err := n.start(ctx); err != nil {
		if stopErr := n.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		return err
	}
	close(n.ready)
	select {
	case <-n.done:
	case <-ctx.Done():
		return n.Stop()
	}
	return nil
}

func (n *Node) start(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:       n.config.dataDir,
		Logger:        n.config.logger,
		PromRegistry:  n.config.promRegistry,
		StoragePlugin: n.config.storagePlugin,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Load ledger state
	state, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Logger:        n.config.logger,
		Database:      n.db,
		EventBus:      n.eventBus,
		PromRegistry:  n.config.promRegistry,
		Clock:         n.config.clock,
		FaucetEnabled: n.config.faucet,
	})
	if err != nil {
		return fmt.Errorf("failed to load ledger state: %w", err)
	}
	n.ledgerState = state
	if n.config.faucet {
		n.config.logger.Warn(
			"faucet is enabled, wallets can be funded without limit",
			"component", "node",
		)
	}
	// Configure API server
	if n.config.apiListenAddr != "" {
		n.api = api.New(
			api.Config{
				ListenAddress: n.config.apiListenAddr,
				EventBus:      n.eventBus,
			},
			n.ledgerState,
			n.config.logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}
	n.config.logger.Info(
		"node started",
		"component", "node",
		"storage", n.config.storagePlugin,
		"data_dir", n.config.dataDir,
	)
	return nil
}

// Ready is closed once the node has finished starting
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// LedgerState returns the node's ledger, or nil before startup
func (n *Node) LedgerState() *ledger.LedgerState {
	return n.ledgerState
}

// EventBus returns the node's event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// APIAddr returns the address the API listens on, or nil if it's disabled
func (n *Node) APIAddr() net.Addr {
	if n.api == nil {
		return nil
	}
	return n.api.Addr()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		n.config.shutdownTimeout,
	)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop accepting new work
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Deliver pending events
	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	// Phase 3: Close database
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
