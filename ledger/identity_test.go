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
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := NewIdentity(pub)
	require.NoError(t, err)
	s := id.String()
	assert.True(t, strings.HasPrefix(s, IdentityHRP+"1"))

	parsed, err := ParseIdentity(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	msg := []byte("stake")
	assert.True(t, id.Verify(msg, ed25519.Sign(priv, msg)))
	assert.False(t, id.Verify([]byte("other"), ed25519.Sign(priv, msg)))

	var decoded Identity
	text, err := id.MarshalText()
	require.NoError(t, err)
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, id, decoded)
}

func TestParseIdentityErrors(t *testing.T) {
	_, err := ParseIdentity("not-bech32")
	require.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = IdentityFromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidIdentity)

	// Valid bech32 with the wrong prefix
	id := Identity(bytes.Repeat([]byte{7}, IdentitySize))
	other := "addr" + strings.TrimPrefix(id.String(), IdentityHRP)
	_, err = ParseIdentity(other)
	require.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestTransactionRef(t *testing.T) {
	ref := TransactionRef(bytes.Repeat([]byte{0xab}, TransactionRefSize))
	assert.Equal(t, strings.Repeat("ab", TransactionRefSize), ref.String())
	parsed, err := ParseTransactionRef(ref.String())
	require.NoError(t, err)
	assert.Equal(t, ref, parsed)

	_, err = ParseTransactionRef("zz")
	require.ErrorIs(t, err, ErrInvalidTransactionRef)
	_, err = ParseTransactionRef("abcd")
	require.ErrorIs(t, err, ErrInvalidTransactionRef)
}
