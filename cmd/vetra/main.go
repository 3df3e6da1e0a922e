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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/williamhnyohei/Vetra/database/plugin"
	"github.com/williamhnyohei/Vetra/internal/config"
	"github.com/williamhnyohei/Vetra/internal/version"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	programName = "vetra"
)

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func commonRun() *slog.Logger {
	// Configure logger
	logLevel := slog.LevelInfo
	addSource := false
	if globalFlags.debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	// Configure max processes with our logger wrapper, toss undo func
	_, err := maxprocs.Set(maxprocs.Logger(slogPrintf))
	if err != nil {
		// If we hit this, something really wrong happened
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger.Info(
		"version: "+version.GetVersionString(),
		"component", programName,
	)
	return logger
}

func listStoragePlugins() string {
	var buf strings.Builder
	buf.WriteString("Available storage plugins:\n")
	for _, p := range plugin.GetPlugins(plugin.PluginTypeStorage) {
		fmt.Fprintf(&buf, "  %s: %s\n", p.Name, p.Description)
		for _, opt := range p.Options {
			fmt.Fprintf(
				&buf,
				"    --%s-%s-%s: %s\n",
				plugin.PluginTypeName(p.Type),
				p.Name,
				opt.Name,
				opt.Description,
			)
		}
	}
	return buf.String()
}

func listCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all available plugins",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(listStoragePlugins())
		},
	}
	return cmd
}

func configFromCmd(cmd *cobra.Command) *config.Config {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		slog.Error("no config found in context")
		os.Exit(1)
	}
	return cfg
}

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Provider reputation and attestation ledger",
		Run: func(cmd *cobra.Command, args []string) {
			serveRun(cmd, args, configFromCmd(cmd))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().
		StringP("storage", "s", config.DefaultStoragePlugin, "storage plugin to use, 'list' to show available")
	rootCmd.PersistentFlags().
		Bool("faucet", false, "enable the development faucet")

	// Add plugin-specific flags
	if err := plugin.PopulateCmdlineOptions(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Error adding plugin flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Handle plugin listing before config loading
		storagePlugin, _ := cmd.Root().PersistentFlags().GetString("storage")
		if storagePlugin == "list" {
			fmt.Print(listStoragePlugins())
			os.Exit(0)
		}

		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with command line flags
		if cmd.Root().PersistentFlags().Changed("storage") {
			cfg.StoragePlugin = storagePlugin
		}
		if cmd.Root().PersistentFlags().Changed("faucet") {
			cfg.Faucet, _ = cmd.Root().PersistentFlags().GetBool("faucet")
		}

		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(inspectCommand())
	rootCmd.AddCommand(keygenCommand())
	rootCmd.AddCommand(signCommand())
	rootCmd.AddCommand(snapshotCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(versionCommand())

	// Execute cobra command
	if err := rootCmd.Execute(); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}
