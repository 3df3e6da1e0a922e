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

// Package keystore manages the ed25519 signing keys that identify callers of
// the ledger API
package keystore

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/williamhnyohei/Vetra/ledger"
)

var (
	ErrInsecureFileMode = errors.New("insecure file permissions")
	ErrUnknownKeyType   = errors.New("unknown key type")
	ErrInvalidKey       = errors.New("invalid key")
)

// SigningKey is an ed25519 private key together with the ledger identity it
// controls
type SigningKey struct {
	key      ed25519.PrivateKey
	identity ledger.Identity
}

// Generate creates a new random signing key
func Generate() (*SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return fromPrivateKey(priv)
}

// FromSeed rebuilds a signing key from its 32-byte seed
func FromSeed(seed []byte) (*SigningKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf(
			"%w: seed is %d bytes, expected %d",
			ErrInvalidKey,
			len(seed),
			ed25519.SeedSize,
		)
	}
	return fromPrivateKey(ed25519.NewKeyFromSeed(seed))
}

func fromPrivateKey(priv ed25519.PrivateKey) (*SigningKey, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected public key type", ErrInvalidKey)
	}
	identity, err := ledger.NewIdentity(pub)
	if err != nil {
		return nil, err
	}
	return &SigningKey{key: priv, identity: identity}, nil
}

func (k *SigningKey) Identity() ledger.Identity {
	return k.identity
}

func (k *SigningKey) PrivateKey() ed25519.PrivateKey {
	return k.key
}

func (k *SigningKey) Seed() []byte {
	return k.key.Seed()
}

func (k *SigningKey) Sign(message []byte) []byte {
	return ed25519.Sign(k.key, message)
}
