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
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

// Uint64 stores a full-range uint64 as a decimal string, since SQL integer
// columns are signed
//
//nolint:recvcheck
type Uint64 uint64

// GormDataType keeps the column as text so that values above math.MaxInt64
// survive the round trip
func (Uint64) GormDataType() string {
	return "text"
}

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	var v string
	switch tv := val.(type) {
	case string:
		v = tv
	case []byte:
		v = string(tv)
	case int64:
		if tv < 0 {
			return fmt.Errorf("negative value for Uint64: %d", tv)
		}
		*u = Uint64(tv)
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmpUint, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(tmpUint)
	return nil
}

// ErrTxnWrongType is returned when a transaction has the wrong type
var ErrTxnWrongType = errors.New("invalid transaction type")

// ErrNilTxn is returned when a nil transaction is provided where a valid transaction is required
var ErrNilTxn = errors.New("nil transaction")

// ErrTxnFinished is returned when a committed or rolled back transaction is reused
var ErrTxnFinished = errors.New("transaction already finished")

// ErrReadOnlyTxn is returned when a write is attempted in a read-only transaction
var ErrReadOnlyTxn = errors.New("write in read-only transaction")

// ErrNoStoreAvailable is returned when no storage backend is available
var ErrNoStoreAvailable = errors.New("no store available")

// Txn is a simple transaction handle for commit/rollback only.
// The database layer (database.Txn) coordinates the operations inside it.
type Txn interface {
	Commit() error
	Rollback() error
}
