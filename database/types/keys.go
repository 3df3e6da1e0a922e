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

package types

import (
	"encoding/binary"
	"slices"

	"golang.org/x/crypto/blake2b"
)

const (
	ProviderKeyPrefix           = "p"
	AttestationKeyPrefix        = "a"
	AttestationIndexByProvider  = "ip"
	AttestationIndexByTxRef     = "it"
	WalletKeyPrefix             = "w"
	attestationKeyDomain        = "attestation"
	vaultKeyDomain              = "vault"
	keyHashSize                 = blake2b.Size256
	AttestationIndexEntryLength = keyHashSize
)

// AttestationID derives the storage key for the attestation published by
// provider about the transaction ref
func AttestationID(provider, txRef []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(attestationKeyDomain))
	h.Write(provider)
	h.Write(txRef)
	return h.Sum(nil)
}

// VaultID derives the wallet that holds the collateral staked by authority
func VaultID(authority []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(vaultKeyDomain))
	h.Write(authority)
	return h.Sum(nil)
}

func ProviderKey(authority []byte) []byte {
	return slices.Concat([]byte(ProviderKeyPrefix), authority)
}

func AttestationKey(id []byte) []byte {
	return slices.Concat([]byte(AttestationKeyPrefix), id)
}

// AttestationProviderIndexKey is an empty-valued index entry used to list the
// attestations of a provider in creation order
func AttestationProviderIndexKey(
	provider []byte,
	createdAt uint64,
	id []byte,
) []byte {
	return slices.Concat(
		AttestationProviderIndexPrefix(provider),
		uint64ToBytes(createdAt),
		id,
	)
}

func AttestationProviderIndexPrefix(provider []byte) []byte {
	return slices.Concat([]byte(AttestationIndexByProvider), provider)
}

func AttestationTxRefIndexKey(txRef []byte, id []byte) []byte {
	return slices.Concat(AttestationTxRefIndexPrefix(txRef), id)
}

func AttestationTxRefIndexPrefix(txRef []byte) []byte {
	return slices.Concat([]byte(AttestationIndexByTxRef), txRef)
}

func WalletKey(owner []byte) []byte {
	return slices.Concat([]byte(WalletKeyPrefix), owner)
}

func uint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}
