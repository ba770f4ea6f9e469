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

// Package plan implements the planner: it restricts a DAG to the steps
// relevant to an optional regex selection, then prunes everything that is
// already up to date.
package plan

import (
	"regexp"

	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/toposort"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

// UpToDateChecker reports whether a single step's outputs are current. The
// planner calls it once per node during dirty pruning; it never needs to
// know how a step checks itself.
type UpToDateChecker func(u uri.URI) (bool, error)

// Select restricts dag to the steps reachable from any node matching
// pattern, in either direction: descendants (things that depend on a
// match) and ancestors (things a match depends on). A nil or empty pattern
// selects every step. Edges are kept only when both endpoints survive.
func Select(dag model.Dag, pattern *regexp.Regexp) model.Dag {
	if pattern == nil {
		return dag
	}

	reverse := reverseEdges(dag)

	keep := map[uri.URI]bool{}
	for u := range dag {
		if pattern.MatchString(u.String()) {
			markReachable(u, dag, keep)
			markReachable(u, reverse, keep)
		}
	}

	return restrict(dag, keep)
}

func reverseEdges(dag model.Dag) model.Dag {
	rev := make(model.Dag, len(dag))
	for u := range dag {
		rev[u] = nil
	}
	for u, deps := range dag {
		for _, d := range deps {
			rev[d] = append(rev[d], u)
		}
	}
	return rev
}

func markReachable(start uri.URI, dag model.Dag, keep map[uri.URI]bool) {
	if keep[start] {
		return
	}
	keep[start] = true
	for _, next := range dag[start] {
		markReachable(next, dag, keep)
	}
}

func restrict(dag model.Dag, keep map[uri.URI]bool) model.Dag {
	out := make(model.Dag, len(keep))
	for u, deps := range dag {
		if !keep[u] {
			continue
		}
		kept := make([]uri.URI, 0, len(deps))
		for _, d := range deps {
			if keep[d] {
				kept = append(kept, d)
			}
		}
		out[u] = kept
	}
	return out
}

// PruneUpToDate removes every step that is already up to date, along with
// anything only reachable through already-up-to-date ancestors. A step is
// dirty if its own check fails or any of its dependencies is dirty; only
// dirty steps survive. Traversal follows dag in topological order so a
// dependency's dirtiness is always known before its dependents are
// evaluated.
func PruneUpToDate(dag model.Dag, check UpToDateChecker) (model.Dag, error) {
	order, err := toposort.Sort(dag)
	if err != nil {
		return nil, err
	}

	dirty := make(map[uri.URI]bool, len(dag))
	for _, u := range order {
		anyDirtyDep := false
		for _, dep := range dag[u] {
			if dirty[dep] {
				anyDirtyDep = true
				break
			}
		}

		if anyDirtyDep {
			dirty[u] = true
			continue
		}

		ok, err := check(u)
		if err != nil {
			return nil, err
		}
		dirty[u] = !ok
	}

	keep := map[uri.URI]bool{}
	for u, isDirty := range dirty {
		if isDirty {
			keep[u] = true
		}
	}

	return restrict(dag, keep), nil
}
