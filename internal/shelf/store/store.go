// Copyright 2024 The Shelf Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store adapts the object store that backs every checksum in the
// shelf DAG. It is intentionally thin: callers address content purely by
// checksum, and the adapter owns the fan-out key layout, retries, and
// backend selection.
package store

import (
	"context"
	"fmt"
	"os"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/shelferr"
)

// Store puts and gets content-addressed objects. Implementations are
// blocking; retries and backoff are the adapter's responsibility, never
// visible to the snapshot or table components above it.
type Store interface {
	// Put uploads the file at localPath under the key derived from sum.
	Put(ctx context.Context, localPath string, sum model.Checksum) error
	// Get downloads the object addressed by sum to localPath.
	Get(ctx context.Context, sum model.Checksum, localPath string) error
}

// Key returns the fan-out key for a checksum: <cc>/<cc>/<full>, where the
// two two-character prefixes are the checksum's first four hex characters.
// The fan-out spreads writes across prefixes instead of hammering one.
func Key(sum model.Checksum) (string, error) {
	s := string(sum)
	if len(s) < 4 {
		return "", shelferr.Newf(shelferr.IntegrityViolation, "", "checksum %q is too short to key", s)
	}
	return fmt.Sprintf("%s/%s/%s", s[0:2], s[2:4], s), nil
}

// Config is the process-wide object store configuration, sourced from
// environment variables. It is immutable once built, built once at startup
// rather than re-reading the environment on every call.
type Config struct {
	Backend   string // "s3" (default), "gcs", or "azure"
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// AzureAccount is required when Backend == "azure".
	AzureAccount string
}

// Env variable names read by ConfigFromEnv.
const (
	EnvAccessKey = "S3_ACCESS_KEY"
	EnvSecretKey = "S3_SECRET_KEY"
	EnvEndpoint  = "S3_ENDPOINT_URL"
	EnvBucket    = "S3_BUCKET_NAME"

	// EnvBackend lets an operator point shelf at a GCS or Azure Blob
	// bucket using the same Store interface, defaulting to the
	// S3-compatible backend.
	EnvBackend      = "SHELF_STORE_BACKEND"
	EnvAzureAccount = "SHELF_AZURE_STORAGE_ACCOUNT"
)

// ConfigFromEnv reads the object store configuration from the process
// environment.
func ConfigFromEnv() Config {
	backend := os.Getenv(EnvBackend)
	if backend == "" {
		backend = "s3"
	}
	return Config{
		Backend:      backend,
		Bucket:       os.Getenv(EnvBucket),
		Endpoint:     os.Getenv(EnvEndpoint),
		AccessKey:    os.Getenv(EnvAccessKey),
		SecretKey:    os.Getenv(EnvSecretKey),
		AzureAccount: os.Getenv(EnvAzureAccount),
	}
}

// New constructs the Store selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "s3":
		return newS3Store(cfg)
	case "gcs":
		return newGCSStore(ctx, cfg)
	case "azure":
		return newAzureStore(cfg)
	default:
		return nil, errors.Errorf("unknown object store backend %q", cfg.Backend)
	}
}
