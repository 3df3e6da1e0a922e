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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func newS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3: load default AWS config: %w", err)
	}
	if cfg.S3Region != "" {
		awsCfg.Region = cfg.S3Region
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
		// Checksums only where the API requires them, which keeps
		// S3-compatible services without trailer support working
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}), nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

// s3Writer buffers the object in memory and uploads it on Close
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	logger *slog.Logger
	loc    location
	buf    bytes.Buffer
}

func newS3Writer(
	ctx context.Context,
	cfg Config,
	loc location,
	logger *slog.Logger,
) (Writer, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, client: client, logger: logger, loc: loc}, nil
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3Writer) Abort() {
	w.buf.Reset()
}

func (w *s3Writer) Close() error {
	size := w.buf.Len()
	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.loc.bucket),
		Key:    aws.String(w.loc.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("s3 put %q: %w", w.loc.key, err)
	}
	w.logger.Debug(
		fmt.Sprintf("s3 put %q ok (%d bytes)", w.loc.key, size),
		"bucket", w.loc.bucket,
	)
	return nil
}

func openS3(
	ctx context.Context,
	cfg Config,
	loc location,
	logger *slog.Logger,
) (io.ReadCloser, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.bucket),
		Key:    aws.String(loc.key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("s3 get %q: %w", loc.key, ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get %q: %w", loc.key, err)
	}
	logger.Debug(
		fmt.Sprintf("s3 get %q ok", loc.key),
		"bucket", loc.bucket,
	)
	return out.Body, nil
}
