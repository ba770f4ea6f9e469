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
	"os"
	"path/filepath"

	"github.com/pterm/pterm"

	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

type newTableCmd struct {
	TablePath string   `arg:"" help:"Table path, e.g. income/summary/2020-01-01."`
	Deps      []string `arg:"" optional:"" help:"Dependency step URIs this table is built from."`
	Edit      bool     `name:"edit" help:"Open the new .sql script in $EDITOR."`
}

// Run registers an empty table step with its dependencies and scaffolds an
// empty .sql build script for it.
func (c *newTableCmd) Run(ctx context.Context, p pterm.TextPrinter) error {
	sctx, fs, reg, _, err := openRepo(ctx)
	if err != nil {
		return err
	}

	u := uri.New(uri.Table, c.TablePath)
	if _, exists := reg.Steps[u]; exists {
		return shelferr.Newf(shelferr.AlreadyExists, u.String(), "table already registered")
	}

	deps := make([]uri.URI, len(c.Deps))
	for i, d := range c.Deps {
		du, err := uri.Parse(d)
		if err != nil {
			return err
		}
		if _, ok := reg.Steps[du]; !ok {
			return shelferr.Newf(shelferr.UserInput, du.String(), "dependency %q is not a registered step", du.String())
		}
		deps[i] = du
	}

	if err := reg.Add(u, deps); err != nil {
		return err
	}
	if err := reg.SaveAs(fs, sctx.RegistryPath); err != nil {
		return err
	}

	scriptPath := filepath.Join(sctx.ScriptDir, c.TablePath+".sql")
	if exists, _ := pathExists(scriptPath); exists {
		return shelferr.Newf(shelferr.AlreadyExists, u.String(), "script %q already exists", scriptPath)
	}
	if err := os.MkdirAll(filepath.Dir(scriptPath), 0o755); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot create script directory")
	}
	if err := os.WriteFile(scriptPath, []byte("-- CREATE TABLE data AS SELECT * FROM ...\n"), 0o644); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot scaffold build script")
	}

	if c.Edit {
		if err := openInEditor(sctx.Editor, scriptPath); err != nil {
			return shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot open script in editor")
		}
	}

	p.Println(fmt.Sprintf("registered %s (script: %s)", u.String(), scriptPath))
	return nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
