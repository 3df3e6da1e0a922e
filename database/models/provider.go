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

import (
	"errors"

	"github.com/williamhnyohei/Vetra/database/types"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrProviderExists   = errors.New("provider already exists")
)

// Provider is the persisted state of a signal provider, keyed by the
// identity that staked it
type Provider struct {
	Authority            []byte       `gorm:"uniqueIndex;size:32" cbor:"1,keyasint"`
	ID                   uint         `gorm:"primarykey"          cbor:"-"`
	Stake                types.Uint64 `                           cbor:"2,keyasint"`
	AttestationsCount    uint64       `                           cbor:"4,keyasint"`
	AccurateAttestations uint64       `                           cbor:"5,keyasint"`
	LastStakeAt          int64        `                           cbor:"6,keyasint"`
	Reputation           uint32       `gorm:"index"               cbor:"3,keyasint"`
}

func (Provider) TableName() string {
	return "provider"
}
