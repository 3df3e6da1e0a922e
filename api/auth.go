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

package api

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/williamhnyohei/Vetra/ledger"
)

const (
	IdentityHeader  = "X-Vetra-Identity"
	SignatureHeader = "X-Vetra-Signature"
	TimestampHeader = "X-Vetra-Timestamp"

	// MaxClockSkew bounds how far a request timestamp may be from the
	// server clock, in either direction
	MaxClockSkew = 5 * time.Minute

	maxBodySize = 64 * 1024
)

var (
	ErrMissingCredentials = errors.New("missing identity, signature or timestamp header")
	ErrBadSignature       = errors.New("signature does not match request")
	ErrStaleTimestamp     = errors.New("request timestamp outside allowed clock skew")
)

// SigningMessage returns the bytes a client signs for a write request: the
// method and path on one line, the unix timestamp in seconds on the next,
// followed by the raw body
func SigningMessage(method string, path string, timestamp int64, body []byte) []byte {
	ts := strconv.FormatInt(timestamp, 10)
	ret := make([]byte, 0, len(method)+len(path)+len(ts)+3+len(body))
	ret = append(ret, method...)
	ret = append(ret, ' ')
	ret = append(ret, path...)
	ret = append(ret, '\n')
	ret = append(ret, ts...)
	ret = append(ret, '\n')
	return append(ret, body...)
}

// SignRequest sets the identity, timestamp and signature headers of req for
// body, stamped with the current time
func SignRequest(req *http.Request, key ed25519.PrivateKey, body []byte) error {
	return SignRequestAt(req, key, body, time.Now())
}

// SignRequestAt is SignRequest with an explicit timestamp
func SignRequestAt(
	req *http.Request,
	key ed25519.PrivateKey,
	body []byte,
	at time.Time,
) error {
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return errors.New("unexpected public key type")
	}
	id, err := ledger.NewIdentity(pub)
	if err != nil {
		return err
	}
	ts := at.Unix()
	sig := ed25519.Sign(key, SigningMessage(req.Method, req.URL.Path, ts, body))
	req.Header.Set(IdentityHeader, id.String())
	req.Header.Set(TimestampHeader, strconv.FormatInt(ts, 10))
	req.Header.Set(SignatureHeader, hex.EncodeToString(sig))
	return nil
}

// authenticate reads the request body and checks that it was signed by the
// identity named in the request headers at a time within MaxClockSkew of now
func authenticate(
	w http.ResponseWriter,
	r *http.Request,
	now time.Time,
) (ledger.Identity, []byte, error) {
	idHeader := r.Header.Get(IdentityHeader)
	sigHeader := r.Header.Get(SignatureHeader)
	tsHeader := r.Header.Get(TimestampHeader)
	if idHeader == "" || sigHeader == "" || tsHeader == "" {
		return ledger.Identity{}, nil, ErrMissingCredentials
	}
	id, err := ledger.ParseIdentity(idHeader)
	if err != nil {
		return ledger.Identity{}, nil, err
	}
	sig, err := hex.DecodeString(sigHeader)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ledger.Identity{}, nil, ErrBadSignature
	}
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return ledger.Identity{}, nil, fmt.Errorf("%w: %s", ErrStaleTimestamp, tsHeader)
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew > MaxClockSkew || skew < -MaxClockSkew {
		return ledger.Identity{}, nil, fmt.Errorf("%w: off by %s", ErrStaleTimestamp, skew.Round(time.Second))
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return ledger.Identity{}, nil, fmt.Errorf("read request body: %w", err)
	}
	if !id.Verify(SigningMessage(r.Method, r.URL.Path, ts, body), sig) {
		return ledger.Identity{}, nil, ErrBadSignature
	}
	return id, body, nil
}
