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

// Package toposort implements Kahn's algorithm over a shelf DAG, with ties
// broken by URI order so the result is deterministic. Both the planner and
// the executor need a topological order; this is shared so they agree.
package toposort

import (
	"sort"

	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

// Sort returns dag's nodes in topological order: every node appears after
// all of its dependencies. Among nodes with no remaining unsatisfied
// dependency at a given step, the lexicographically smallest URI is chosen
// next. It fails if dag contains a cycle.
func Sort(dag model.Dag) ([]uri.URI, error) {
	indegree := make(map[uri.URI]int, len(dag))
	dependents := make(map[uri.URI][]uri.URI, len(dag))
	for u := range dag {
		indegree[u] = 0
	}
	for u, deps := range dag {
		for _, d := range deps {
			indegree[u]++
			dependents[d] = append(dependents[d], u)
		}
	}

	var ready []uri.URI
	for u, n := range indegree {
		if n == 0 {
			ready = append(ready, u)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Less(ready[j]) })

	order := make([]uri.URI, 0, len(dag))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)

		var newlyReady []uri.URI
		for _, dependent := range dependents[u] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		sort.Slice(newlyReady, func(i, j int) bool { return newlyReady[i].Less(newlyReady[j]) })

		ready = mergeSorted(ready, newlyReady)
	}

	if len(order) != len(dag) {
		return nil, shelferr.New(shelferr.InvariantViolation, "", "dag contains a cycle; cannot topologically sort")
	}

	return order, nil
}

// mergeSorted merges two already-sorted (by URI) slices into one sorted
// slice, keeping the ready queue ordered without a full re-sort each round.
func mergeSorted(a, b []uri.URI) []uri.URI {
	if len(b) == 0 {
		return a
	}
	out := make([]uri.URI, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Less(b[j]) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
