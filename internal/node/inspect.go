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
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/williamhnyohei/Vetra/internal/config"
	"github.com/williamhnyohei/Vetra/ledger"
)

// Inspect opens the configured database without starting any listeners and
// writes a table of the top providers to w
func Inspect(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	w io.Writer,
	limit int,
) (err error) {
	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}()
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Logger:   logger,
		Database: db,
	})
	if err != nil {
		return err
	}
	providers, err := ls.ListProviders(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AUTHORITY\tREPUTATION\tSTAKE\tATTESTATIONS\tACCURATE\tLAST STAKE")
	for _, p := range providers {
		fmt.Fprintf(
			tw,
			"%s\t%d\t%d\t%d\t%d\t%d\n",
			p.Authority,
			p.Reputation,
			p.Stake,
			p.AttestationsCount,
			p.AccurateAttestations,
			p.LastStakeAt,
		)
	}
	return tw.Flush()
}
