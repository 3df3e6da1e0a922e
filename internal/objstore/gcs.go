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
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

func newGCSClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	clientOpts := []option.ClientOption{storage.WithDisabledClientMetrics()}
	if cfg.GCSCredentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(cfg.GCSCredentialsFile),
		)
	}
	client, err := storage.NewGRPCClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: failed in creating storage client: %w", err)
	}
	return client, nil
}

// gcsWriter closes the client along with the object writer
type gcsWriter struct {
	*storage.Writer
	cancel context.CancelFunc
	client *storage.Client
	logger *slog.Logger
	loc    location
}

func newGCSWriter(
	ctx context.Context,
	cfg Config,
	loc location,
	logger *slog.Logger,
) (Writer, error) {
	client, err := newGCSClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	// Refuse to replace an existing object
	obj := client.Bucket(loc.bucket).Object(loc.key).
		If(storage.Conditions{DoesNotExist: true})
	return &gcsWriter{
		Writer: obj.NewWriter(ctx),
		cancel: cancel,
		client: client,
		logger: logger,
		loc:    loc,
	}, nil
}

// Abort cancels the upload before it is finalized
func (w *gcsWriter) Abort() {
	w.cancel()
	_ = w.Writer.Close()
	_ = w.client.Close()
}

func (w *gcsWriter) Close() error {
	defer w.cancel()
	err := w.Writer.Close()
	if closeErr := w.client.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("gcs put %q: %w", w.loc.key, err)
	}
	w.logger.Debug(
		fmt.Sprintf("gcs put %q ok", w.loc.key),
		"bucket", w.loc.bucket,
	)
	return nil
}

type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	err := r.Reader.Close()
	if closeErr := r.client.Close(); err == nil {
		err = closeErr
	}
	return err
}

func openGCS(
	ctx context.Context,
	cfg Config,
	loc location,
	logger *slog.Logger,
) (io.ReadCloser, error) {
	client, err := newGCSClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r, err := client.Bucket(loc.bucket).Object(loc.key).NewReader(ctx)
	if err != nil {
		client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gcs get %q: %w", loc.key, ErrNotFound)
		}
		return nil, fmt.Errorf("gcs get %q: %w", loc.key, err)
	}
	logger.Debug(
		fmt.Sprintf("gcs get %q ok", loc.key),
		"bucket", loc.bucket,
	)
	return &gcsReader{Reader: r, client: client}, nil
}
