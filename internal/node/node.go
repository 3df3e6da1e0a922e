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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	vetra "github.com/williamhnyohei/Vetra"
	"github.com/williamhnyohei/Vetra/internal/config"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	apiListenAddr := ""
	if cfg.ApiPort > 0 {
		apiListenAddr = fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort)
	}
	n, err := vetra.New(
		vetra.NewConfig(
			vetra.WithLogger(logger),
			vetra.WithDatabasePath(cfg.DatabasePath),
			vetra.WithStoragePlugin(cfg.StoragePlugin),
			vetra.WithApiListenAddress(apiListenAddr),
			vetra.WithFaucet(cfg.Faucet),
			vetra.WithTracing(cfg.Tracing),
			vetra.WithTracingStdout(cfg.TracingStdout),
			vetra.WithShutdownTimeout(shutdownTimeout),
			// Enable metrics with default prometheus registry
			vetra.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}

	var metricsServer *http.Server
	metricsErrChan := make(chan error, 1)
	if cfg.MetricsPort > 0 {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				metricsErrChan <- fmt.Errorf("metrics listener: %w", err)
			}
		}()
	}
	stopMetrics := func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- n.Run(signalCtx)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		stopMetrics()
		if err := n.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		<-errChan
		logger.Info("shutdown complete")
		return nil
	case err := <-metricsErrChan:
		logger.Error("metrics server error", "error", err)
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error", stopErr,
			)
		}
		<-errChan
		return err
	case err := <-errChan:
		stopMetrics()
		if err != nil {
			logger.Error("node error", "error", err)
			return err
		}
		logger.Info("node stopped")
		return nil
	}
}
