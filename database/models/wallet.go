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

var ErrInsufficientFunds = errors.New("insufficient funds")

// Wallet holds a spendable balance. Provider vaults are wallets whose owner
// is derived from the provider authority
type Wallet struct {
	Owner   []byte       `gorm:"uniqueIndex;size:32" cbor:"1,keyasint"`
	ID      uint         `gorm:"primarykey"          cbor:"-"`
	Balance types.Uint64 `                           cbor:"2,keyasint"`
}

func (Wallet) TableName() string {
	return "wallet"
}
