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

// Package gitignore appends newly-materialized data paths to the
// repository's .gitignore. It is deliberately minimal: shelf treats
// .gitignore maintenance as a side effect of snapshot creation and only
// ever appends, never rewrites existing lines — but it never duplicates an
// entry that is already present either.
package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileName is the .gitignore file's name at the repository root.
const FileName = ".gitignore"

// Append adds path, relative to the current working directory, as a new
// line in .gitignore, creating the file if it doesn't already exist. It is
// idempotent: if the line is already present, it does nothing.
func Append(fs afero.Fs, path string) error {
	rel := path
	if abs, err := filepath.Abs(path); err == nil {
		if cwd, err := os.Getwd(); err == nil {
			if r, err := filepath.Rel(cwd, abs); err == nil {
				rel = r
			}
		}
	}
	rel = filepath.ToSlash(rel)

	present, err := hasLine(fs, rel)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	f, err := fs.OpenFile(FileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close() // nolint:errcheck

	_, err = fmt.Fprintln(f, rel)
	return err
}

// hasLine reports whether .gitignore already contains line as one of its
// lines verbatim. A missing .gitignore is treated as not containing it.
func hasLine(fs afero.Fs, line string) (bool, error) {
	f, err := fs.Open(FileName)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close() // nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() == line {
			return true, nil
		}
	}
	return false, scanner.Err()
}
