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

package store

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"google.golang.org/api/option"

	"github.com/larsyencken/shelf/internal/shelf/model"
)

// gcsStore adapts a Google Cloud Storage bucket to the Store interface,
// wired behind SHELF_STORE_BACKEND=gcs.
type gcsStore struct {
	bucket *storage.BucketHandle
}

func newGCSStore(ctx context.Context, cfg Config) (*gcsStore, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create gcs client")
	}
	return &gcsStore{bucket: client.Bucket(cfg.Bucket)}, nil
}

func (s *gcsStore) Put(ctx context.Context, localPath string, sum model.Checksum) error {
	key, err := Key(sum)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "cannot open %q to upload", localPath)
	}
	defer f.Close() // nolint:errcheck

	w := s.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "cannot upload object to gcs")
	}
	return errors.Wrap(w.Close(), "cannot finalize gcs upload")
}

func (s *gcsStore) Get(ctx context.Context, sum model.Checksum, localPath string) error {
	key, err := Key(sum)
	if err != nil {
		return err
	}

	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot download object from gcs")
	}
	defer r.Close() // nolint:errcheck

	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q to download into", localPath)
	}
	defer f.Close() // nolint:errcheck

	_, err = io.Copy(f, r)
	return errors.Wrap(err, "cannot write downloaded object")
}
