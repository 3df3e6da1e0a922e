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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/williamhnyohei/Vetra/database/plugin"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "vetra.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultStoragePlugin   = "sqlite"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config  *Config        `yaml:"config,omitempty"`
	Storage map[string]any `yaml:"storage,omitempty"`
}

type Config struct {
	StoragePlugin   string `yaml:"storagePlugin"   envconfig:"storage_plugin"`
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	ApiPort         uint   `yaml:"apiPort"         split_words:"true"`
	MetricsPort     uint   `yaml:"metricsPort"     split_words:"true"`
	Faucet          bool   `yaml:"faucet"`
	Tracing         bool   `yaml:"tracing"`
	TracingStdout   bool   `yaml:"tracingStdout"   split_words:"true"`
	// Remote snapshot locations
	S3Endpoint         string `yaml:"s3Endpoint"         split_words:"true"`
	S3Region           string `yaml:"s3Region"           split_words:"true"`
	GcsCredentialsFile string `yaml:"gcsCredentialsFile" split_words:"true"`
}

// ShutdownTimeoutDuration parses ShutdownTimeout
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return time.ParseDuration(DefaultShutdownTimeout)
	}
	ret, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return ret, nil
}

func defaultConfig() *Config {
	return &Config{
		StoragePlugin:   DefaultStoragePlugin,
		DatabasePath:    ".vetra",
		BindAddr:        "0.0.0.0",
		ShutdownTimeout: DefaultShutdownTimeout,
		ApiPort:         8080,
		MetricsPort:     12799,
	}
}

var globalConfig = defaultConfig()

// LoadConfig builds the config from defaults, then the config file, then
// VETRA_* environment variables
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.vetra/vetra.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".vetra", "vetra.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/vetra/vetra.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/vetra/vetra.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		if err := loadConfigFile(configFile, cfg); err != nil {
			return nil, err
		}
	}

	// Process environment variables
	if err := envconfig.Process("vetra", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	// Process plugin environment variables
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}

	if _, err := cfg.ShutdownTimeoutDuration(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func loadConfigFile(configFile string, cfg *Config) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	// If config section exists, use it for main config
	if tempCfg.Config != nil {
		// Overlay config values onto existing defaults
		configBytes, err := yaml.Marshal(tempCfg.Config)
		if err != nil {
			return fmt.Errorf("error re-marshalling config: %w", err)
		}
		if err := yaml.Unmarshal(configBytes, cfg); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else {
		// Otherwise unmarshal the whole file as main config
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if tempCfg.Storage == nil {
		return nil
	}
	// Extract plugin name if specified
	if pluginVal, exists := tempCfg.Storage["plugin"]; exists {
		pluginName, ok := pluginVal.(string)
		if !ok {
			return fmt.Errorf("storage plugin must be a string, got %T", pluginVal)
		}
		cfg.StoragePlugin = pluginName
		delete(tempCfg.Storage, "plugin")
	}
	// Build plugin config map
	storageConfig := make(map[string]map[string]any)
	for k, v := range tempCfg.Storage {
		switch val := v.(type) {
		case map[string]any:
			storageConfig[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			storageConfig[k] = stringAnyMap
		default:
			fmt.Fprintf(os.Stderr, "warning: skipping storage config entry %q: expected map, got %T\n", k, v)
		}
	}
	if err := plugin.ProcessConfig(
		map[string]map[string]map[string]any{
			plugin.PluginTypeName(plugin.PluginTypeStorage): storageConfig,
		},
	); err != nil {
		return fmt.Errorf("error processing plugin config: %w", err)
	}
	return nil
}

// GetConfig returns the most recently loaded config
func GetConfig() *Config {
	return globalConfig
}
