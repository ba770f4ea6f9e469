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

package main

import (
	"context"

	"github.com/spf13/afero"

	"github.com/larsyencken/shelf/internal/shelf/registry"
	"github.com/larsyencken/shelf/internal/shelf/shelfctx"
	"github.com/larsyencken/shelf/internal/shelf/store"
)

// openRepo loads the process-wide config and the registry at the current
// working directory, and constructs the configured object store. Every
// command that touches the DAG starts here.
func openRepo(ctx context.Context) (shelfctx.Context, afero.Fs, *registry.Registry, store.Store, error) {
	sctx := shelfctx.Load(".")
	fs := afero.NewOsFs()

	reg, err := registry.Load(fs, sctx.RegistryPath)
	if err != nil {
		return sctx, fs, nil, nil, err
	}

	st, err := store.New(ctx, sctx.Store)
	if err != nil {
		return sctx, fs, reg, nil, err
	}

	return sctx, fs, reg, st, nil
}
