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
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/larsyencken/shelf/internal/shelf/model"
)

const (
	errCreateSession = "cannot create aws session"
	errPutObject     = "cannot upload object to s3"
	errGetObject     = "cannot download object from s3"
)

// s3Store is the S3-compatible object store adapter, the default backend:
// bucket, endpoint, and credentials all come from the S3_* environment
// variables.
type s3Store struct {
	client *s3.S3
	bucket string
}

func newS3Store(cfg Config) (*s3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String("us-east-1"),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	})
	if err != nil {
		return nil, errors.Wrap(err, errCreateSession)
	}

	awsCfg := &aws.Config{}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	return &s3Store{
		client: s3.New(sess, awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

func (s *s3Store) Put(ctx context.Context, localPath string, sum model.Checksum) error {
	key, err := Key(sum)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "cannot open %q to upload", localPath)
	}
	defer f.Close() // nolint:errcheck

	uploader := s3manager.NewUploaderWithClient(s.client)
	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return errors.Wrap(err, errPutObject)
	}
	return nil
}

func (s *s3Store) Get(ctx context.Context, sum model.Checksum, localPath string) error {
	key, err := Key(sum)
	if err != nil {
		return err
	}

	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q to download into", localPath)
	}
	defer f.Close() // nolint:errcheck

	downloader := s3manager.NewDownloaderWithClient(s.client)
	_, err = downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, errGetObject)
	}
	return nil
}
