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

// Package model holds the types shared across shelf's build engine: content
// hashes, directory manifests, and the Step capability set that the planner
// and executor program against rather than concrete snapshot/table records.
package model

import "github.com/larsyencken/shelf/internal/shelf/uri"

// Checksum is a lowercase hex SHA-256 digest.
type Checksum string

// Manifest maps a forward-slash relative file path to its checksum.
type Manifest map[string]Checksum

// Dag is the adjacency map of the step graph: a step URI to the URIs of the
// steps it depends on.
type Dag map[uri.URI][]uri.URI

// Step is the capability set shared by snapshots and tables. It lets
// run's dirty-pruning dispatch treat a loaded snapshot or table uniformly
// once the scheme-specific loader has already picked which one to build.
type Step interface {
	// URI returns the step's canonical identifier.
	URI() uri.URI
	// IsUpToDate reports whether the step's materialized output still
	// matches its recorded checksum(s).
	IsUpToDate() (bool, error)
	// MetadataPath returns the on-disk path of the step's metadata record.
	MetadataPath() string
}
