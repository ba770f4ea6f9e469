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

// Package uri implements the step URI: the (scheme, path) identifier that
// names every node in the shelf DAG.
package uri

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/larsyencken/shelf/internal/shelf/shelferr"
)

// Scheme identifies the kind of step a URI names.
type Scheme string

// The two step kinds shelf knows about.
const (
	Snapshot Scheme = "snapshot"
	Table    Scheme = "table"
)

var versionPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// URI is a step identifier of the form "scheme://path". Its last
// slash-separated path segment is a version, either a YYYY-MM-DD date or the
// literal "latest". URI values are comparable with == and usable as map
// keys; total order and equality both derive from the canonical string
// form.
type URI struct {
	Scheme Scheme
	Path   string
}

// New builds a URI directly from its parts. It does not validate the
// version segment; use Parse when the string comes from user input.
func New(scheme Scheme, path string) URI {
	return URI{Scheme: scheme, Path: path}
}

// String returns the canonical "scheme://path" form.
func (u URI) String() string {
	return fmt.Sprintf("%s://%s", u.Scheme, u.Path)
}

// Less reports whether u sorts before other under the total order defined
// as lexicographic comparison of the canonical string form.
func (u URI) Less(other URI) bool {
	return u.String() < other.String()
}

// IsVersionToken reports whether s is a valid version segment: either
// "latest" or a YYYY-MM-DD date.
func IsVersionToken(s string) bool {
	return s == "latest" || versionPattern.MatchString(s)
}

// Version returns the URI's final path segment, which is its version token.
func (u URI) Version() string {
	parts := strings.Split(u.Path, "/")
	return parts[len(parts)-1]
}

// Parse parses a "scheme://path" string into a URI, rejecting unknown
// schemes and malformed input.
func Parse(s string) (URI, error) {
	scheme, path, ok := strings.Cut(s, "://")
	if !ok {
		return URI{}, shelferr.Newf(shelferr.UserInput, s, "step URI must have the form scheme://path")
	}

	var sc Scheme
	switch Scheme(scheme) {
	case Snapshot:
		sc = Snapshot
	case Table:
		sc = Table
	default:
		return URI{}, shelferr.Newf(shelferr.UserInput, s, "unknown scheme %q", scheme)
	}

	if path == "" {
		return URI{}, shelferr.Newf(shelferr.UserInput, s, "step URI has an empty path")
	}

	return URI{Scheme: sc, Path: path}, nil
}

// EnsureVersioned appends today's local date as a version segment to path
// if its final segment is not already a version token. It fails if path has
// only a single segment and that segment is not a version, since a dataset
// must have both a name and a version.
func EnsureVersioned(path string, today time.Time) (string, error) {
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]

	if IsVersionToken(last) {
		return path, nil
	}

	if len(parts) < 2 {
		return "", shelferr.Newf(shelferr.UserInput, path, "dataset name must have both a name and a version, e.g. %q", path+"/"+today.Format("2006-01-02"))
	}

	return path + "/" + today.Format("2006-01-02"), nil
}
