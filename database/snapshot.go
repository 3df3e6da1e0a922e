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

package database

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/williamhnyohei/Vetra/database/models"
)

const (
	snapshotMagic   = "vetra-snapshot"
	snapshotVersion = 1
)

var (
	ErrSnapshotInvalid   = errors.New("invalid snapshot")
	ErrSnapshotNotEmpty  = errors.New("snapshot import requires an empty database")
	ErrSnapshotTruncated = errors.New("snapshot truncated")
)

type snapshotRecordKind uint8

const (
	snapshotRecordProvider snapshotRecordKind = iota + 1
	snapshotRecordAttestation
	snapshotRecordWallet
	snapshotRecordEnd
)

type snapshotHeader struct {
	_         struct{} `cbor:",toarray"`
	Magic     string
	Version   uint
	CreatedAt int64
}

type snapshotRecord struct {
	Provider    *models.Provider    `cbor:"2,keyasint,omitempty"`
	Attestation *models.Attestation `cbor:"3,keyasint,omitempty"`
	Wallet      *models.Wallet      `cbor:"4,keyasint,omitempty"`
	Kind        snapshotRecordKind  `cbor:"1,keyasint"`
}

// SnapshotValidator checks imported records against the ledger rules before
// they are stored. A rejected record fails the import with
// ErrSnapshotInvalid
type SnapshotValidator interface {
	ValidateProvider(*models.Provider) error
	ValidateAttestation(*models.Attestation) error
	ValidateWallet(*models.Wallet) error
}

// SnapshotStats counts the records written or read by a snapshot operation
type SnapshotStats struct {
	Providers    int
	Attestations int
	Wallets      int
}

// ExportSnapshot writes every provider, attestation and wallet to w as a
// zstd-compressed CBOR sequence. The export reads from a single read-only
// transaction, so it is a consistent point-in-time copy
func (d *Database) ExportSnapshot(w io.Writer) (SnapshotStats, error) {
	var stats SnapshotStats
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return stats, err
	}
	enc := cbor.NewEncoder(zw)
	txn := d.Transaction(false)
	defer txn.Release()
	err = func() error {
		if err := enc.Encode(snapshotHeader{
			Magic:     snapshotMagic,
			Version:   snapshotVersion,
			CreatedAt: time.Now().Unix(),
		}); err != nil {
			return err
		}
		providers, err := d.GetProviders(0, txn)
		if err != nil {
			return fmt.Errorf("list providers: %w", err)
		}
		for i := range providers {
			if err := enc.Encode(snapshotRecord{
				Kind:     snapshotRecordProvider,
				Provider: &providers[i],
			}); err != nil {
				return err
			}
			stats.Providers++
			attestations, err := d.GetAttestationsByProvider(providers[i].Authority, txn)
			if err != nil {
				return fmt.Errorf("list attestations: %w", err)
			}
			for j := range attestations {
				if err := enc.Encode(snapshotRecord{
					Kind:        snapshotRecordAttestation,
					Attestation: &attestations[j],
				}); err != nil {
					return err
				}
				stats.Attestations++
			}
		}
		wallets, err := d.GetWallets(txn)
		if err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		for i := range wallets {
			if err := enc.Encode(snapshotRecord{
				Kind:   snapshotRecordWallet,
				Wallet: &wallets[i],
			}); err != nil {
				return err
			}
			stats.Wallets++
		}
		return enc.Encode(snapshotRecord{Kind: snapshotRecordEnd})
	}()
	if err != nil {
		zw.Close()
		return stats, fmt.Errorf("export snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return stats, fmt.Errorf("export snapshot: %w", err)
	}
	return stats, nil
}

// ImportSnapshot loads a snapshot written by ExportSnapshot into an empty
// database. Every record must pass validator, and an attestation must follow
// the record of its provider. Nothing is written unless the whole snapshot is
// read and accepted
func (d *Database) ImportSnapshot(
	r io.Reader,
	validator SnapshotValidator,
) (SnapshotStats, error) {
	var stats SnapshotStats
	if validator == nil {
		return stats, errors.New("import snapshot: no validator")
	}
	zr, err := zstd.NewReader(r)
	if err != nil {
		return stats, err
	}
	defer zr.Close()
	dec := cbor.NewDecoder(zr)
	var header snapshotHeader
	if err := dec.Decode(&header); err != nil {
		return stats, fmt.Errorf("%w: read header: %w", ErrSnapshotInvalid, err)
	}
	if header.Magic != snapshotMagic {
		return stats, fmt.Errorf("%w: bad magic %q", ErrSnapshotInvalid, header.Magic)
	}
	if header.Version != snapshotVersion {
		return stats, fmt.Errorf(
			"%w: unsupported version %d",
			ErrSnapshotInvalid,
			header.Version,
		)
	}
	txn := d.Transaction(true)
	err = txn.Do(func(txn *Txn) error {
		existing, err := d.GetProviders(1, txn)
		if err != nil {
			return err
		}
		wallets, err := d.GetWallets(txn)
		if err != nil {
			return err
		}
		if len(existing) > 0 || len(wallets) > 0 {
			return ErrSnapshotNotEmpty
		}
		for {
			var rec snapshotRecord
			if err := dec.Decode(&rec); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return ErrSnapshotTruncated
				}
				return fmt.Errorf("%w: %w", ErrSnapshotInvalid, err)
			}
			switch rec.Kind {
			case snapshotRecordProvider:
				if rec.Provider == nil {
					return fmt.Errorf("%w: empty provider record", ErrSnapshotInvalid)
				}
				if err := validator.ValidateProvider(rec.Provider); err != nil {
					return fmt.Errorf("%w: provider: %w", ErrSnapshotInvalid, err)
				}
				rec.Provider.ID = 0
				if err := d.CreateProvider(rec.Provider, txn); err != nil {
					if errors.Is(err, models.ErrProviderExists) {
						return fmt.Errorf("%w: %w", ErrSnapshotInvalid, err)
					}
					return err
				}
				stats.Providers++
			case snapshotRecordAttestation:
				if rec.Attestation == nil {
					return fmt.Errorf("%w: empty attestation record", ErrSnapshotInvalid)
				}
				if err := validator.ValidateAttestation(rec.Attestation); err != nil {
					return fmt.Errorf("%w: attestation: %w", ErrSnapshotInvalid, err)
				}
				if _, err := d.GetProvider(rec.Attestation.Provider, txn); err != nil {
					if errors.Is(err, models.ErrProviderNotFound) {
						return fmt.Errorf(
							"%w: attestation before its provider",
							ErrSnapshotInvalid,
						)
					}
					return err
				}
				rec.Attestation.ID = 0
				if err := d.CreateAttestation(rec.Attestation, txn); err != nil {
					if errors.Is(err, models.ErrAttestationExists) {
						return fmt.Errorf("%w: %w", ErrSnapshotInvalid, err)
					}
					return err
				}
				stats.Attestations++
			case snapshotRecordWallet:
				if rec.Wallet == nil {
					return fmt.Errorf("%w: empty wallet record", ErrSnapshotInvalid)
				}
				if err := validator.ValidateWallet(rec.Wallet); err != nil {
					return fmt.Errorf("%w: wallet: %w", ErrSnapshotInvalid, err)
				}
				if err := d.store.SetBalance(
					rec.Wallet.Owner,
					uint64(rec.Wallet.Balance),
					txn.storeTxn,
				); err != nil {
					return err
				}
				stats.Wallets++
			case snapshotRecordEnd:
				return nil
			default:
				return fmt.Errorf(
					"%w: unknown record kind %d",
					ErrSnapshotInvalid,
					rec.Kind,
				)
			}
		}
	})
	if err != nil {
		return SnapshotStats{}, fmt.Errorf("import snapshot: %w", err)
	}
	return stats, nil
}
