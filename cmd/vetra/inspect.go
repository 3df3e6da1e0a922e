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
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/williamhnyohei/Vetra/internal/node"
)

func inspectCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the top providers from the local database",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configFromCmd(cmd)
			// Keep stdout for the table
			logger := slog.New(
				slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelWarn,
				}),
			)
			if err := node.Inspect(cmd.Context(), cfg, logger, os.Stdout, limit); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of providers to show, 0 for all")
	return cmd
}
