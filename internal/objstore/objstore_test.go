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

package objstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		input   string
		want    location
		wantErr bool
	}{
		{"snap.bin", location{path: "snap.bin"}, false},
		{"/var/lib/vetra/snap.bin", location{path: "/var/lib/vetra/snap.bin"}, false},
		{"s3://backups/vetra/snap.bin", location{scheme: s3Scheme, bucket: "backups", key: "vetra/snap.bin"}, false},
		{"gcs://backups/snap.bin", location{scheme: gcsScheme, bucket: "backups", key: "snap.bin"}, false},
		{"s3://backups", location{}, true},
		{"gcs:///snap.bin", location{}, true},
		{"", location{}, true},
	}
	for _, tt := range tests {
		got, err := parseLocation(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidLocation, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestLocalFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.bin")

	_, err := Open(ctx, Config{}, path)
	require.ErrorIs(t, err, ErrNotFound)

	w, err := Create(ctx, Config{}, path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "ledger")
	require.NoError(t, err)
	// Nothing is visible until Close
	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, w.Close())

	r, err := Open(ctx, Config{}, path)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "ledger", string(data))

	_, err = Create(ctx, Config{}, path)
	require.ErrorIs(t, err, os.ErrExist)
}

// fakeS3 serves path-style PutObject and GetObject requests
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[key] = data
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(
				w,
				`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`,
			)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	server := httptest.NewServer(fake)
	defer server.Close()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
	cfg := Config{S3Endpoint: server.URL, S3Region: "us-east-1"}
	ctx := context.Background()

	w, err := Create(ctx, cfg, "s3://backups/vetra/snap.bin")
	require.NoError(t, err)
	_, err = io.WriteString(w, "ledger")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	fake.mu.Lock()
	assert.Equal(t, []byte("ledger"), fake.objects["backups/vetra/snap.bin"])
	fake.mu.Unlock()

	r, err := Open(ctx, cfg, "s3://backups/vetra/snap.bin")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "ledger", string(data))

	_, err = Open(ctx, cfg, "s3://backups/missing.bin")
	require.ErrorIs(t, err, ErrNotFound)
}
