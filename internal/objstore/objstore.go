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

// Package objstore reads and writes whole objects addressed by location:
// a local path, s3://<bucket>/<key>, or gcs://<bucket>/<key>
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrInvalidLocation = errors.New("invalid object location")
)

const (
	s3Scheme  = "s3://"
	gcsScheme = "gcs://"
)

// Config holds settings for the remote backends. The zero value uses the
// default credential chains of each cloud SDK
type Config struct {
	Logger *slog.Logger
	// S3Endpoint overrides the S3 endpoint, for S3-compatible services.
	// Path-style addressing is used when it is set
	S3Endpoint string
	// S3Region overrides the region from the AWS config chain
	S3Region string
	// GCSCredentialsFile is a service account key file for GCS
	GCSCredentialsFile string
}

// Writer is a new object. Close commits it; Abort discards it
type Writer interface {
	io.WriteCloser
	Abort()
}

type location struct {
	scheme string
	bucket string
	key    string
	path   string
}

func parseLocation(loc string) (location, error) {
	for _, scheme := range []string{s3Scheme, gcsScheme} {
		rest, ok := strings.CutPrefix(loc, scheme)
		if !ok {
			continue
		}
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return location{}, fmt.Errorf(
				"%w: expected %s<bucket>/<key>, got %q",
				ErrInvalidLocation,
				scheme,
				loc,
			)
		}
		return location{scheme: scheme, bucket: bucket, key: key}, nil
	}
	if loc == "" {
		return location{}, fmt.Errorf("%w: empty path", ErrInvalidLocation)
	}
	return location{path: loc}, nil
}

// Create returns a writer for a new object at loc. The object becomes
// visible once Close returns nil. Local files are never overwritten
func Create(ctx context.Context, cfg Config, loc string) (Writer, error) {
	l, err := parseLocation(loc)
	if err != nil {
		return nil, err
	}
	logger := loggerOrDiscard(cfg.Logger)
	switch l.scheme {
	case s3Scheme:
		return newS3Writer(ctx, cfg, l, logger)
	case gcsScheme:
		return newGCSWriter(ctx, cfg, l, logger)
	default:
		return newFileWriter(l.path)
	}
}

// Open returns a reader for the object at loc, or an error wrapping
// ErrNotFound
func Open(ctx context.Context, cfg Config, loc string) (io.ReadCloser, error) {
	l, err := parseLocation(loc)
	if err != nil {
		return nil, err
	}
	logger := loggerOrDiscard(cfg.Logger)
	switch l.scheme {
	case s3Scheme:
		return openS3(ctx, cfg, l, logger)
	case gcsScheme:
		return openGCS(ctx, cfg, l, logger)
	default:
		return openFile(l.path)
	}
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return logger.With("component", "objstore")
}
