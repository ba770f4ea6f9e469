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

// Package checksum computes the content hashes that identify steps in the
// shelf DAG: file checksums, directory manifests, and the roll-up checksum
// of a manifest.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/larsyencken/shelf/internal/shelf/model"
)

// blockSize is the streaming read size used while hashing files, so memory
// use stays bounded for arbitrarily large inputs.
const blockSize = 4096

// ignoreFiles holds basenames skipped while walking a directory to build a
// manifest.
var ignoreFiles = map[string]bool{
	".DS_Store": true,
}

// File returns the lowercase hex SHA-256 of the bytes at path.
func File(path string) (model.Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "cannot open %q for checksumming", path)
	}
	defer f.Close() // nolint:errcheck

	h := sha256.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errors.Wrapf(err, "cannot read %q for checksumming", path)
	}

	return model.Checksum(hex.EncodeToString(h.Sum(nil))), nil
}

// Reader returns the lowercase hex SHA-256 of everything read from r,
// streaming in blockSize chunks. It is used wherever a file is already open
// (e.g. against an in-memory afero filesystem in tests) and opening it again
// by path isn't possible or desirable.
func Reader(r io.Reader) (model.Checksum, error) {
	h := sha256.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", errors.Wrap(err, "cannot read stream for checksumming")
	}
	return model.Checksum(hex.EncodeToString(h.Sum(nil))), nil
}

// Folder walks dir recursively and returns a manifest mapping each
// forward-slash relative path to its file checksum. Files whose basename is
// in the ignore set are skipped. Folder fails if the directory contains no
// hashable files.
func Folder(dir string) (model.Manifest, error) {
	manifest := model.Manifest{}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ignoreFiles[info.Name()] {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		sum, err := File(path)
		if err != nil {
			return err
		}
		manifest[rel] = sum
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot walk %q to build manifest", dir)
	}

	if len(manifest) == 0 {
		return nil, errors.Errorf("no files found in %q to checksum", dir)
	}

	return manifest, nil
}

// Manifest returns the roll-up checksum of m: the SHA-256 over the
// concatenation, in path-sorted order, of each path's bytes followed by its
// checksum's bytes.
func Manifest(m model.Manifest) model.Checksum {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte(m[p]))
	}

	return model.Checksum(hex.EncodeToString(h.Sum(nil)))
}
