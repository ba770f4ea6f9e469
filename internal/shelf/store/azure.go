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
	"fmt"
	"io"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/larsyencken/shelf/internal/shelf/model"
)

// azureStore adapts an Azure Blob container to the Store interface. Like
// gcsStore, it is wired behind SHELF_STORE_BACKEND=azure; the default
// backend remains S3-compatible.
type azureStore struct {
	client    *azblob.Client
	container string
}

func newAzureStore(cfg Config) (*azureStore, error) {
	if cfg.AzureAccount == "" {
		return nil, errors.New("SHELF_AZURE_STORAGE_ACCOUNT must be set for the azure backend")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccount)
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccount, cfg.SecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build azure shared key credential")
	}

	var opts *azblob.ClientOptions
	if cfg.Endpoint != "" {
		serviceURL = cfg.Endpoint
		opts = &azblob.ClientOptions{ClientOptions: azcore.ClientOptions{}}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, opts)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create azure blob client")
	}

	return &azureStore{client: client, container: cfg.Bucket}, nil
}

func (s *azureStore) Put(ctx context.Context, localPath string, sum model.Checksum) error {
	key, err := Key(sum)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "cannot open %q to upload", localPath)
	}
	defer f.Close() // nolint:errcheck

	_, err = s.client.UploadFile(ctx, s.container, key, f, nil)
	return errors.Wrap(err, "cannot upload object to azure")
}

func (s *azureStore) Get(ctx context.Context, sum model.Checksum, localPath string) error {
	key, err := Key(sum)
	if err != nil {
		return err
	}

	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q to download into", localPath)
	}
	defer f.Close() // nolint:errcheck

	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		return errors.Wrap(err, "cannot download object from azure")
	}
	defer resp.Body.Close() // nolint:errcheck

	_, err = io.Copy(f, resp.Body)
	return errors.Wrap(err, "cannot write downloaded object")
}
