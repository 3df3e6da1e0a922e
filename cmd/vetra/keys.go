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
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/williamhnyohei/Vetra/api"
	"github.com/williamhnyohei/Vetra/keystore"
)

// signHeaders returns the authentication headers for a request made at
func signHeaders(
	key *keystore.SigningKey,
	method, path string,
	body []byte,
	at time.Time,
) map[string]string {
	ts := at.Unix()
	sig := key.Sign(api.SigningMessage(strings.ToUpper(method), path, ts, body))
	return map[string]string{
		api.IdentityHeader:  key.Identity().String(),
		api.TimestampHeader: strconv.FormatInt(ts, 10),
		api.SignatureHeader: hex.EncodeToString(sig),
	}
}

func keygenCommand() *cobra.Command {
	var outFile, description string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key and print its identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keystore.Generate()
			if err != nil {
				return err
			}
			if err := keystore.WriteSigningKey(outFile, key, description); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.Identity().String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "vetra.skey", "key file to create")
	cmd.Flags().StringVar(&description, "description", "", "free-form description stored in the key file")
	return cmd
}

func signCommand() *cobra.Command {
	var keyFile, method, bodyFile string
	cmd := &cobra.Command{
		Use:   "sign <path>",
		Short: "Print authentication headers for an API request",
		Long:  "Print authentication headers for an API request. The server accepts them for five minutes either side of the time they were made.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keystore.LoadSigningKey(keyFile)
			if err != nil {
				return err
			}
			var body []byte
			switch bodyFile {
			case "":
			case "-":
				body, err = io.ReadAll(cmd.InOrStdin())
			default:
				body, err = os.ReadFile(bodyFile)
			}
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			headers := signHeaders(key, method, args[0], body, time.Now())
			out := cmd.OutOrStdout()
			for _, name := range []string{api.IdentityHeader, api.TimestampHeader, api.SignatureHeader} {
				fmt.Fprintf(out, "%s: %s\n", name, headers[name])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyFile, "key", "k", "vetra.skey", "key file created by keygen")
	cmd.Flags().StringVarP(&method, "method", "X", "POST", "HTTP method")
	cmd.Flags().StringVarP(&bodyFile, "body", "d", "", "file holding the request body, '-' for stdin")
	return cmd
}
