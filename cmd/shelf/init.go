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
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/afero"

	"github.com/larsyencken/shelf/internal/shelf/registry"
	"github.com/larsyencken/shelf/internal/shelf/shelfctx"
)

type initCmd struct{}

// Run creates shelf.yaml with an empty step registry if one doesn't
// already exist.
func (c *initCmd) Run(ctx context.Context, p pterm.TextPrinter) error { // nolint:unparam
	sctx := shelfctx.Load(".")
	fs := afero.NewOsFs()

	if err := registry.Init(fs, sctx.RegistryPath); err != nil {
		return err
	}

	p.Println(fmt.Sprintf("initialized %s", sctx.RegistryPath))
	return nil
}
