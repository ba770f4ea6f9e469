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

package table

import (
	"path/filepath"
	"strings"

	"github.com/larsyencken/shelf/internal/shelf/shelferr"
)

// nameGenerator yields increasingly specific candidate names for a
// dependency's on-disk path: start with the penultimate path segment, then
// extend leftward one segment at a time on collision, and finally fall back
// to the dashless version segment. It returns the same name forever once
// every strategy is exhausted, so the caller can detect non-progress and
// fail loudly rather than loop forever.
type nameGenerator struct {
	parts        []string
	name         string
	nextLeftIdx  int
	fallbackUsed bool
	started      bool
}

func newNameGenerator(depPath string) *nameGenerator {
	parts := strings.Split(filepath.ToSlash(depPath), "/")
	g := &nameGenerator{parts: parts}
	if len(parts) >= 2 {
		g.name = parts[len(parts)-2]
		g.nextLeftIdx = len(parts) - 3
	} else {
		g.name = parts[0]
		g.nextLeftIdx = -1
	}
	return g
}

func (g *nameGenerator) next() string {
	if !g.started {
		g.started = true
		return g.name
	}
	if g.nextLeftIdx >= 0 {
		g.name = g.parts[g.nextLeftIdx] + "_" + g.name
		g.nextLeftIdx--
		return g.name
	}
	if !g.fallbackUsed {
		g.fallbackUsed = true
		version := strings.ReplaceAll(g.parts[len(g.parts)-1], "-", "")
		g.name = g.name + "_" + version
		return g.name
	}
	return g.name
}

// simplifyDependencyNames assigns each dependency path a short, unique name
// suitable for use as a SQL template placeholder.
func simplifyDependencyNames(deps []string) (map[string]string, error) {
	gens := make(map[string]*nameGenerator, len(deps))
	frontier := make(map[string]string, len(deps))
	remaining := make([]string, len(deps))
	copy(remaining, deps)

	for _, d := range deps {
		g := newNameGenerator(d)
		gens[d] = g
		frontier[d] = g.next()
	}

	mapping := map[string]string{}

	for len(remaining) > 0 {
		counts := map[string]int{}
		for _, d := range remaining {
			counts[frontier[d]]++
		}

		var colliding []string
		for _, d := range remaining {
			if counts[frontier[d]] >= 2 {
				colliding = append(colliding, d)
			} else {
				mapping[frontier[d]] = d
			}
		}

		if len(colliding) == 0 {
			return mapping, nil
		}

		prev := make(map[string]string, len(colliding))
		for _, d := range colliding {
			prev[d] = frontier[d]
		}
		for _, d := range colliding {
			frontier[d] = gens[d].next()
		}

		progressed := false
		for _, d := range colliding {
			if frontier[d] != prev[d] {
				progressed = true
				break
			}
		}
		if !progressed {
			return nil, shelferr.Newf(shelferr.UserInput, "", "cannot resolve unique dependency names for %v", colliding)
		}

		remaining = colliding
	}

	return mapping, nil
}
