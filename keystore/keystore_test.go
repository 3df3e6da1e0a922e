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

package keystore

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndSign(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)
	msg := []byte("POST /api/v1/stake\n{}")
	sig := key.Sign(msg)
	assert.True(t, key.Identity().Verify(msg, sig))
	assert.Len(t, key.Seed(), ed25519.SeedSize)

	again, err := FromSeed(key.Seed())
	require.NoError(t, err)
	assert.Equal(t, key.Identity(), again.Identity())
	assert.True(t, bytes.Equal(key.PrivateKey(), again.PrivateKey()))
}

func TestFromSeedInvalid(t *testing.T) {
	_, err := FromSeed(make([]byte, ed25519.SeedSize-1))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestWriteAndLoadSigningKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.skey")
	key, err := Generate()
	require.NoError(t, err)
	require.NoError(t, WriteSigningKey(path, key, "test provider"))

	loaded, err := LoadSigningKey(path)
	require.NoError(t, err)
	assert.Equal(t, key.Identity(), loaded.Identity())

	// Existing files are never overwritten
	err = WriteSigningKey(path, key, "again")
	assert.Error(t, err)
}

func TestParseKeyEnvelopeErrors(t *testing.T) {
	_, err := parseKeyEnvelope([]byte("not json"))
	assert.Error(t, err)

	_, err = parseKeyEnvelope([]byte(`{"type":"PaymentSigningKeyShelley_ed25519","cborHex":"00"}`))
	assert.ErrorIs(t, err, ErrUnknownKeyType)

	_, err = parseKeyEnvelope([]byte(`{"type":"` + SigningKeyType + `","cborHex":"zz"}`))
	assert.Error(t, err)

	short, err := cbor.Marshal(make([]byte, 16))
	require.NoError(t, err)
	_, err = parseKeyEnvelope(
		[]byte(`{"type":"` + SigningKeyType + `","cborHex":"` + hex.EncodeToString(short) + `"}`),
	)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLoadSigningKeyMissing(t *testing.T) {
	_, err := LoadSigningKey(filepath.Join(t.TempDir(), "missing.skey"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
