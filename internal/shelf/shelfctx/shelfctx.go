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

// Package shelfctx holds the process-wide configuration shelf reads once
// at startup: object store credentials, the editor to shell out to, and
// the working-tree layout. It is built once and passed down as an
// immutable value rather than re-read from the environment on every call.
package shelfctx

import (
	"os"
	"path/filepath"

	"github.com/larsyencken/shelf/internal/shelf/store"
)

// EnvEditor is the environment variable consulted for an interactive
// editor.
const EnvEditor = "EDITOR"

// DefaultEditor is used when EDITOR is unset.
const DefaultEditor = "vim"

// RegistryFileName is shelf.yaml's fixed name at the repository root.
const RegistryFileName = "shelf.yaml"

// Context is the immutable, process-wide configuration shared by every
// shelf command.
type Context struct {
	Store        store.Config
	Editor       string
	RepoRoot     string
	RegistryPath string
	ScriptDir    string
	DefaultDir   string
	CacheRoot    string
}

// Load builds a Context from the process environment and repoRoot, the
// directory shelf.yaml lives in.
func Load(repoRoot string) Context {
	editor := os.Getenv(EnvEditor)
	if editor == "" {
		editor = DefaultEditor
	}

	return Context{
		Store:        store.ConfigFromEnv(),
		Editor:       editor,
		RepoRoot:     repoRoot,
		RegistryPath: filepath.Join(repoRoot, RegistryFileName),
		ScriptDir:    filepath.Join(repoRoot, "steps", "tables"),
		DefaultDir:   "data",
		CacheRoot:    "", // "" selects cache.DefaultRoot
	}
}
