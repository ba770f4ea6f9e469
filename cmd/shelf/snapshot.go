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
	"os/exec"
	"time"

	"github.com/pterm/pterm"

	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/shelfctx"
	"github.com/larsyencken/shelf/internal/shelf/snapshot"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

type snapshotCmd struct {
	Path string `arg:"" help:"Local file or directory to snapshot."`
	Name string `arg:"" help:"Dataset name, e.g. census/population. A version is appended if missing."`
	Edit bool   `name:"edit" help:"Open the written metadata record in $EDITOR before finishing."`
}

// Run registers a new snapshot step.
func (c *snapshotCmd) Run(ctx context.Context, p pterm.TextPrinter) error {
	sctx, fs, reg, st, err := openRepo(ctx)
	if err != nil {
		return err
	}

	path, err := uri.EnsureVersioned(c.Name, time.Now())
	if err != nil {
		return err
	}
	u := uri.New(uri.Snapshot, path)

	if _, exists := reg.Steps[u]; exists {
		return shelferr.Newf(shelferr.AlreadyExists, u.String(), "snapshot already registered")
	}

	info, err := os.Stat(c.Path)
	if err != nil {
		return shelferr.Wrap(err, shelferr.UserInput, u.String(), "cannot stat source path")
	}

	var snap *snapshot.Snapshot
	if info.IsDir() {
		snap, err = snapshot.CreateDirectory(ctx, fs, st, sctx.DefaultDir, u, c.Path)
	} else {
		snap, err = snapshot.CreateFile(ctx, fs, st, sctx.DefaultDir, u, c.Path)
	}
	if err != nil {
		return err
	}

	if err := reg.Add(u, nil); err != nil {
		return err
	}
	if err := reg.SaveAs(fs, sctx.RegistryPath); err != nil {
		return err
	}

	if c.Edit {
		if err := openInEditor(sctx.Editor, snap.MetadataPath()); err != nil {
			return shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot open metadata in editor")
		}
	}

	p.Println(fmt.Sprintf("registered %s", u.String()))
	return nil
}

func openInEditor(editor, path string) error {
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
