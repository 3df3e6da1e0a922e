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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// SigningKeyType is the envelope type of a provider signing key file
const SigningKeyType = "VetraSigningKeyEd25519"

// Key files are small; anything larger is not a key file
const maxKeyFileSize = 1 << 20

type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// LoadSigningKey reads a key file written by WriteSigningKey. It returns
// ErrInsecureFileMode if the file is readable by other users.
//
// Permissions are checked on the open handle so the file cannot be swapped
// between the check and the read
func LoadSigningKey(path string) (*SigningKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key, nil
}

// WriteSigningKey writes key to a new file readable only by the current
// user. It never overwrites an existing file
func WriteSigningKey(path string, key *SigningKey, description string) error {
	data, err := encodeKeyEnvelope(key, description)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	return f.Close()
}

func encodeKeyEnvelope(key *SigningKey, description string) ([]byte, error) {
	cborData, err := cbor.Marshal(key.Seed())
	if err != nil {
		return nil, fmt.Errorf("could not encode key: %w", err)
	}
	env := keyFileEnvelope{
		Type:        SigningKeyType,
		Description: description,
		CborHex:     hex.EncodeToString(cborData),
	}
	data, err := json.MarshalIndent(env, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func parseKeyEnvelope(fileBytes []byte) (*SigningKey, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	if env.Type != SigningKeyType {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyType, env.Type)
	}
	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	var seed []byte
	if err := cbor.Unmarshal(cborData, &seed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key CBOR: %w", err)
	}
	return FromSeed(seed)
}
