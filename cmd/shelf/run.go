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
	"os"
	"regexp"

	"github.com/pterm/pterm"
	"github.com/spf13/afero"

	"github.com/larsyencken/shelf/internal/shelf/executor"
	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/plan"
	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/shelfctx"
	"github.com/larsyencken/shelf/internal/shelf/snapshot"
	"github.com/larsyencken/shelf/internal/shelf/store"
	"github.com/larsyencken/shelf/internal/shelf/table"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

type runCmd struct {
	Regex  string `arg:"" optional:"" help:"Restrict the run to steps matching this regex, plus their ancestors and descendants."`
	Force  bool   `name:"force" help:"Skip dirty pruning; run every selected step."`
	DryRun bool   `name:"dry-run" help:"Print the planned steps without executing them."`
}

// Run plans and executes the DAG.
func (c *runCmd) Run(ctx context.Context, p pterm.TextPrinter) error {
	sctx, fs, reg, st, err := openRepo(ctx)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if c.Regex != "" {
		pattern, err = regexp.Compile(c.Regex)
		if err != nil {
			return shelferr.Wrap(err, shelferr.UserInput, "", "invalid regex")
		}
	}

	sub := plan.Select(reg.Steps, pattern)

	if !c.Force {
		sub, err = plan.PruneUpToDate(sub, func(u uri.URI) (bool, error) {
			return stepUpToDate(fs, st, sctx, u, reg.Steps[u])
		})
		if err != nil {
			return err
		}
	}

	if len(sub) == 0 {
		p.Println("already up to date")
		return nil
	}

	exec := executor.New(fs, st, sctx.CacheRoot, sctx.DefaultDir, sctx.ScriptDir, sctx.RepoRoot, os.Stdout)
	return exec.Run(ctx, sub, c.DryRun)
}

// stepUpToDate loads u as a model.Step, choosing the snapshot or table
// loader by scheme, and defers to the interface's own up-to-date test
// rather than a snapshot- or table-specific one.
func stepUpToDate(fs afero.Fs, st store.Store, sctx shelfctx.Context, u uri.URI, deps []uri.URI) (bool, error) {
	var step model.Step

	switch u.Scheme {
	case uri.Snapshot:
		snap, err := snapshot.Load(fs, st, sctx.DefaultDir, u)
		if err != nil {
			return false, nil
		}
		step = snap

	case uri.Table:
		t, err := table.Load(fs, sctx.DefaultDir, u, deps)
		if err != nil {
			return false, nil
		}
		step = t

	default:
		return false, shelferr.Newf(shelferr.UserInput, u.String(), "unknown step scheme %q", u.Scheme)
	}

	return step.IsUpToDate()
}
