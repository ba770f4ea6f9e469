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

// Package executor runs a planned sub-DAG: it topologically sorts the
// steps and dispatches each to the snapshot or table component, consulting
// a local disk cache before every snapshot fetch.
package executor

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/larsyencken/shelf/internal/shelf/cache"
	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/snapshot"
	"github.com/larsyencken/shelf/internal/shelf/store"
	"github.com/larsyencken/shelf/internal/shelf/table"
	"github.com/larsyencken/shelf/internal/shelf/toposort"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

// Executor runs a sub-DAG against the filesystem, object store, and table
// build scripts.
type Executor struct {
	fs        afero.Fs
	store     store.Store
	cache     *cache.Local
	dataDir   string
	scriptDir string
	repoRoot  string
	out       io.Writer
}

// New builds an Executor. cacheRoot is passed straight to cache.NewLocal
// ("" selects cache.DefaultRoot).
func New(fs afero.Fs, st store.Store, cacheRoot, dataDir, scriptDir, repoRoot string, out io.Writer) *Executor {
	return &Executor{
		fs:        fs,
		store:     st,
		cache:     cache.NewLocal(fs, cacheRoot),
		dataDir:   dataDir,
		scriptDir: scriptDir,
		repoRoot:  repoRoot,
		out:       out,
	}
}

// installCacheFetcher layers e's disk cache in front of snapshot.FetchVia:
// a cache hit is copied into place directly; a miss falls through to the
// object store and populates the cache for next time.
func (e *Executor) installCacheFetcher() {
	snapshot.FetchVia = func(ctx context.Context, fs afero.Fs, st store.Store, sum model.Checksum, dest string, u uri.URI) error {
		if e.cache.Has(sum) {
			return e.cache.CopyTo(sum, dest)
		}
		tmp := dest + ".download." + uuid.NewString()
		if err := st.Get(ctx, sum, tmp); err != nil {
			return shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot fetch object")
		}
		if err := fs.Rename(tmp, dest); err != nil {
			return err
		}
		return e.cache.Populate(sum, dest)
	}
}

// Run executes every step in dag in topological order. If dryRun is true,
// it only prints the planned order and performs no I/O.
func (e *Executor) Run(ctx context.Context, dag model.Dag, dryRun bool) error {
	order, err := toposort.Sort(dag)
	if err != nil {
		return err
	}

	if dryRun {
		for _, u := range order {
			fmt.Fprintln(e.out, u.String())
		}
		return nil
	}

	e.installCacheFetcher()

	for _, u := range order {
		if err := e.runStep(ctx, u, dag[u]); err != nil {
			return shelferr.Wrap(err, shelferr.KindOf(err), u.String(), "step failed")
		}
	}
	return nil
}

func (e *Executor) runStep(ctx context.Context, u uri.URI, deps []uri.URI) error {
	fmt.Fprintf(e.out, "running %s\n", u.String())

	switch u.Scheme {
	case uri.Snapshot:
		snap, err := snapshot.Load(e.fs, e.store, e.dataDir, u)
		if err != nil {
			return err
		}
		return snap.Fetch(ctx)

	case uri.Table:
		_, err := table.Build(ctx, e.fs, e.dataDir, e.scriptDir, e.repoRoot, u, deps)
		return err

	default:
		return shelferr.Newf(shelferr.UserInput, u.String(), "unknown step scheme %q", u.Scheme)
	}
}
