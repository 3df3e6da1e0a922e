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

package models

import "errors"

var (
	ErrAttestationNotFound = errors.New("attestation not found")
	ErrAttestationExists   = errors.New("attestation already exists")
)

// Attestation is a provider's risk claim about one transaction. AttestationID
// is derived from (Provider, TransactionRef), so its unique index enforces one
// record per pair
type Attestation struct {
	AttestationID  []byte `gorm:"uniqueIndex;size:32"           cbor:"1,keyasint"`
	Provider       []byte `gorm:"index;size:32"                 cbor:"2,keyasint"`
	TransactionRef []byte `gorm:"index;size:32"                 cbor:"3,keyasint"`
	Reason         string `gorm:"size:800"                      cbor:"5,keyasint"`
	ID             uint   `gorm:"primarykey"                    cbor:"-"`
	CreatedAt      int64  `gorm:"autoCreateTime:false;index"    cbor:"6,keyasint"`
	VotesFor       uint64 `                                     cbor:"7,keyasint"`
	VotesAgainst   uint64 `                                     cbor:"8,keyasint"`
	RiskScore      uint8  `                                     cbor:"4,keyasint"`
}

func (Attestation) TableName() string {
	return "attestation"
}
