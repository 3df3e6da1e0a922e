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
	"github.com/spf13/cobra"
	"github.com/williamhnyohei/Vetra/internal/node"
)

func snapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import a ledger snapshot",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "export <file>",
			Short: "Write the local database to a file, s3://<bucket>/<key> or gcs://<bucket>/<key>",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return node.ExportSnapshot(cmd.Context(), configFromCmd(cmd), commonRun(), args[0])
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Load a snapshot into an empty local database",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return node.ImportSnapshot(cmd.Context(), configFromCmd(cmd), commonRun(), args[0])
			},
		},
	)
	return cmd
}
