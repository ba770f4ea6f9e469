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
	"regexp"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/afero"

	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/snapshot"
	"github.com/larsyencken/shelf/internal/shelf/store"
	"github.com/larsyencken/shelf/internal/shelf/table"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

type listCmd struct {
	Regex string `arg:"" optional:"" help:"Only list step URIs matching this regex."`
	Paths bool   `name:"paths" help:"Print each step's on-disk relative path instead of its URI."`
}

// Run prints step URIs (or their on-disk paths) in sorted order.
func (c *listCmd) Run(ctx context.Context, p pterm.TextPrinter) error {
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

	keys := make([]uri.URI, 0, len(reg.Steps))
	for u := range reg.Steps {
		if pattern != nil && !pattern.MatchString(u.String()) {
			continue
		}
		keys = append(keys, u)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	for _, u := range keys {
		if !c.Paths {
			p.Println(u.String())
			continue
		}

		path, err := resolvePath(fs, st, sctx.DefaultDir, u)
		if err != nil {
			return err
		}
		p.Println(path)
	}
	return nil
}

func resolvePath(fs afero.Fs, st store.Store, dataDir string, u uri.URI) (string, error) {
	switch u.Scheme {
	case uri.Snapshot:
		snap, err := snapshot.Load(fs, st, dataDir, u)
		if err != nil {
			return "", err
		}
		return snap.Path(), nil
	case uri.Table:
		return table.OutputPath(dataDir, u.Path), nil
	default:
		return "", shelferr.Newf(shelferr.UserInput, u.String(), "unknown step scheme %q", u.Scheme)
	}
}
