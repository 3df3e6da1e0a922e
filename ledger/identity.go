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

package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// IdentityHRP is the human-readable part of bech32-encoded identities
const IdentityHRP = "vetra"

const (
	IdentitySize       = ed25519.PublicKeySize
	TransactionRefSize = 32
)

var (
	ErrInvalidIdentity       = errors.New("invalid identity")
	ErrInvalidTransactionRef = errors.New("invalid transaction reference")
)

// Identity is the ed25519 public key of a ledger participant
type Identity [IdentitySize]byte

func NewIdentity(pub ed25519.PublicKey) (Identity, error) {
	return IdentityFromBytes(pub)
}

func IdentityFromBytes(data []byte) (Identity, error) {
	var ret Identity
	if len(data) != IdentitySize {
		return ret, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidIdentity,
			IdentitySize,
			len(data),
		)
	}
	copy(ret[:], data)
	return ret, nil
}

// ParseIdentity decodes a bech32 identity string
func ParseIdentity(s string) (Identity, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	if hrp != IdentityHRP {
		return Identity{}, fmt.Errorf(
			"%w: unexpected prefix %q",
			ErrInvalidIdentity,
			hrp,
		)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	return IdentityFromBytes(decoded)
}

func (i Identity) Bytes() []byte {
	return i[:]
}

func (i Identity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(i[:])
}

// Verify checks an ed25519 signature made by this identity
func (i Identity) Verify(message, sig []byte) bool {
	return ed25519.Verify(i.PublicKey(), message, sig)
}

func (i Identity) String() string {
	// Conversion of a fixed-size payload cannot fail
	data, _ := bech32.ConvertBits(i[:], 8, 5, true)
	ret, _ := bech32.Encode(IdentityHRP, data)
	return ret
}

func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Identity) UnmarshalText(text []byte) error {
	tmp, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*i = tmp
	return nil
}

// TransactionRef is the opaque identifier of an attested transaction
type TransactionRef [TransactionRefSize]byte

func TransactionRefFromBytes(data []byte) (TransactionRef, error) {
	var ret TransactionRef
	if len(data) != TransactionRefSize {
		return ret, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidTransactionRef,
			TransactionRefSize,
			len(data),
		)
	}
	copy(ret[:], data)
	return ret, nil
}

// ParseTransactionRef decodes a hex transaction reference
func ParseTransactionRef(s string) (TransactionRef, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return TransactionRef{}, fmt.Errorf("%w: %w", ErrInvalidTransactionRef, err)
	}
	return TransactionRefFromBytes(data)
}

func (r TransactionRef) Bytes() []byte {
	return r[:]
}

func (r TransactionRef) String() string {
	return hex.EncodeToString(r[:])
}

func (r TransactionRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *TransactionRef) UnmarshalText(text []byte) error {
	tmp, err := ParseTransactionRef(string(text))
	if err != nil {
		return err
	}
	*r = tmp
	return nil
}

// AttestationKey identifies an attestation by its author and subject
type AttestationKey struct {
	Provider       Identity
	TransactionRef TransactionRef
}

func (k AttestationKey) String() string {
	return k.Provider.String() + "/" + k.TransactionRef.String()
}
