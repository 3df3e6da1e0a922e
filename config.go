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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/williamhnyohei/Vetra/database/plugin"
	"github.com/williamhnyohei/Vetra/database/plugin/storage"
	"github.com/williamhnyohei/Vetra/ledger"
)

const DefaultShutdownTimeout = 30 * time.Second

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	clock           ledger.Clock
	dataDir         string
	storagePlugin   string
	apiListenAddr   string
	shutdownTimeout time.Duration
	faucet          bool
	tracing         bool
	tracingStdout   bool
}

func (n *Node) configValidate() error {
	if n.config.shutdownTimeout < 0 {
		return fmt.Errorf(
			"invalid shutdown timeout: %s",
			n.config.shutdownTimeout,
		)
	}
	for _, p := range plugin.GetPlugins(plugin.PluginTypeStorage) {
		if p.Name == n.config.storagePlugin {
			return nil
		}
	}
	return errors.New("unknown storage plugin: " + n.config.storagePlugin)
}

// ConfigOptionFunc is a type that represents functions that modify the Vetra config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new Vetra config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		storagePlugin:   storage.DefaultPlugin,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithStoragePlugin specifies the storage backend to use
func WithStoragePlugin(name string) ConfigOptionFunc {
	return func(c *Config) {
		if name != "" {
			c.storagePlugin = name
		}
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithClock overrides the wall clock used for ledger timestamps
func WithClock(clock ledger.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithApiListenAddress specifies the listen address of the JSON API. An empty
// address disables the API
func WithApiListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddr = addr
	}
}

// WithFaucet enables wallet airdrops. This is only meant for development
// networks
func WithFaucet(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.faucet = enabled
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies how long graceful shutdown may take
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
