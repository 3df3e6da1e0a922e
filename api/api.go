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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/williamhnyohei/Vetra/event"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const DefaultListenAddress = ":8080"

// Config holds the API server settings
type Config struct {
	ListenAddress string
	// EventBus feeds GET /api/v1/events. The stream is disabled when nil
	EventBus *event.EventBus
}

// Server is the JSON API for the attestation ledger
type Server struct {
	config     Config
	logger     *slog.Logger
	ledger     Ledger
	httpServer *http.Server
	addr       net.Addr
	done       chan struct{}
	mu         sync.Mutex
}

// New creates a new API server instance
func New(
	cfg Config,
	ledger Ledger,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	return &Server{
		config: cfg,
		logger: logger,
		ledger: ledger,
	}
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/providers", s.handleListProviders)
	mux.HandleFunc("GET /api/v1/providers/{authority}", s.handleGetProvider)
	mux.HandleFunc(
		"GET /api/v1/providers/{authority}/attestations",
		s.handleListProviderAttestations,
	)
	mux.HandleFunc(
		"GET /api/v1/attestations/{provider}/{ref}",
		s.handleGetAttestation,
	)
	mux.HandleFunc(
		"GET /api/v1/transactions/{ref}/attestations",
		s.handleTransactionRisk,
	)
	mux.HandleFunc("GET /api/v1/wallets/{identity}", s.handleGetWallet)
	mux.HandleFunc("POST /api/v1/stake", s.handleStake)
	mux.HandleFunc("POST /api/v1/attestations", s.handleCreateAttestation)
	mux.HandleFunc(
		"POST /api/v1/attestations/{provider}/{ref}/votes",
		s.handleVote,
	)
	mux.HandleFunc("POST /api/v1/withdraw", s.handleWithdraw)
	mux.HandleFunc("POST /api/v1/faucet", s.handleFaucet)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	return mux
}

// Start starts the HTTP server in a background goroutine. The server shuts
// down when ctx is cancelled or Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	// Use h2c so clients can speak HTTP/2 without TLS
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}
	done := make(chan struct{})
	s.httpServer = server
	s.done = done
	s.mu.Unlock()

	ln, err := s.startServer(server)
	if err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.done = nil
		s.mu.Unlock()
		return err
	}

	s.logger.Info(
		"API listener started on " + ln.Addr().String(),
	)

	// Monitor context for cancellation
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		s.logger.Debug(
			"context cancelled, shutting down API server",
		)
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			30*time.Second,
		)
		defer cancel()
		//nolint:contextcheck
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	done := s.done
	s.httpServer = nil
	s.addr = nil
	s.done = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	close(done)
	s.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}

// Addr returns the address the server is listening on, or nil when stopped
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine
func (s *Server) startServer(server *http.Server) (net.Listener, error) {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for API server: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return ln, nil
}
