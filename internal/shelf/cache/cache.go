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

// Package cache implements the executor's local disk cache: a
// content-addressed mirror of recently-fetched snapshot bytes kept under
// ~/.cache/shelf, consulted before any object-store download.
package cache

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/larsyencken/shelf/internal/shelf/model"
)

// DefaultRoot is the cache root used when the caller has no override.
const DefaultRoot = "~/.cache/shelf"

// Local is a filesystem-backed, content-addressed cache. Writers write to a
// temp name and rename into place, so concurrent readers never observe a
// partially-written entry.
type Local struct {
	fs   afero.Fs
	root string
	mu   sync.RWMutex
}

// NewLocal constructs a Local cache rooted at root, expanding a leading "~/"
// against the current user's home directory.
func NewLocal(fs afero.Fs, root string) *Local {
	if root == "" {
		root = DefaultRoot
	}
	return &Local{fs: fs, root: resolveHome(root)}
}

func resolveHome(root string) string {
	const tilde = "~/"
	if strings.HasPrefix(root, tilde) {
		home, err := os.UserHomeDir()
		if err != nil {
			return root
		}
		return filepath.Join(home, strings.TrimPrefix(root, tilde))
	}
	return root
}

// path returns the cache entry path for sum: <root>/<cc>/<cc>/<checksum>,
// mirroring the object store's own fan-out key layout.
func (c *Local) path(sum model.Checksum) (string, error) {
	s := string(sum)
	if len(s) < 4 {
		return "", os.ErrInvalid
	}
	return filepath.Join(c.root, s[0:2], s[2:4], s), nil
}

// Has reports whether sum is present in the cache.
func (c *Local) Has(sum model.Checksum) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, err := c.path(sum)
	if err != nil {
		return false
	}
	info, err := c.fs.Stat(p)
	return err == nil && !info.IsDir()
}

// CopyTo copies the cached entry for sum to destPath, creating parent
// directories as needed.
func (c *Local) CopyTo(sum model.Checksum, destPath string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, err := c.path(sum)
	if err != nil {
		return err
	}

	src, err := c.fs.Open(p)
	if err != nil {
		return err
	}
	defer src.Close() // nolint:errcheck

	if err := c.fs.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	dst, err := c.fs.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close() // nolint:errcheck

	_, err = io.Copy(dst, src)
	return err
}

// Populate copies the file at srcPath into the cache under sum, writing to a
// temporary name first and renaming into place so concurrent CopyTo calls
// never observe a half-written entry.
func (c *Local) Populate(sum model.Checksum, srcPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.path(sum)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(c.fs, dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	src, err := c.fs.Open(srcPath)
	if err != nil {
		tmp.Close() // nolint:errcheck
		c.fs.Remove(tmpName) // nolint:errcheck
		return err
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close() // nolint:errcheck
		src.Close() // nolint:errcheck
		c.fs.Remove(tmpName) // nolint:errcheck
		return err
	}
	src.Close() // nolint:errcheck
	if err := tmp.Close(); err != nil {
		c.fs.Remove(tmpName) // nolint:errcheck
		return err
	}

	return c.fs.Rename(tmpName, p)
}
