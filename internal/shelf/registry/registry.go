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

// Package registry loads and saves the DAG of shelf steps from its
// canonical config file, shelf.yaml.
package registry

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/schema"
	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

// Version is the only supported shelf.yaml schema version.
const Version = 1

// Registry is the in-memory form of shelf.yaml: the DAG of every known
// step, keyed by its URI, with values the list of its direct dependencies.
type Registry struct {
	Version int
	DataDir string
	Steps   model.Dag
}

// rawRegistry is the YAML wire form: map keys must be strings, so steps are
// serialized as uri-string -> []uri-string.
type rawRegistry struct {
	Version int                 `yaml:"version"`
	DataDir string              `yaml:"data_dir"`
	Steps   map[string][]string `yaml:"steps"`
}

// New returns an empty registry with the given data directory.
func New(dataDir string) *Registry {
	return &Registry{Version: Version, DataDir: dataDir, Steps: model.Dag{}}
}

// Init writes the minimal registry file if one doesn't already exist at
// path. It is a no-op if the file is already present.
func Init(fs afero.Fs, path string) error {
	if exists, _ := afero.Exists(fs, path); exists {
		return nil
	}
	reg := New("data")
	return reg.SaveAs(fs, path)
}

// Load reads, schema-validates, and parses the registry at path.
func Load(fs afero.Fs, path string) (*Registry, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shelferr.Wrap(err, shelferr.NotFound, path, "registry file not found")
		}
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, path, "cannot read registry file")
	}

	var rr rawRegistry
	if err := yaml.Unmarshal(raw, &rr); err != nil {
		return nil, shelferr.Wrap(err, shelferr.SchemaViolation, path, "cannot parse registry YAML")
	}

	if err := validateSchema(rr); err != nil {
		return nil, shelferr.Wrap(err, shelferr.SchemaViolation, path, "registry failed schema validation")
	}

	reg := &Registry{Version: rr.Version, DataDir: rr.DataDir, Steps: model.Dag{}}
	for key, depStrs := range rr.Steps {
		u, err := uri.Parse(key)
		if err != nil {
			return nil, shelferr.Wrap(err, shelferr.UserInput, key, "invalid step URI in registry")
		}
		if !uri.IsVersionToken(u.Version()) {
			return nil, shelferr.Newf(shelferr.InvariantViolation, key, "step URI's final segment is not a valid version")
		}

		deps := make([]uri.URI, 0, len(depStrs))
		for _, ds := range depStrs {
			du, err := uri.Parse(ds)
			if err != nil {
				return nil, shelferr.Wrap(err, shelferr.UserInput, ds, "invalid dependency URI in registry")
			}
			deps = append(deps, du)
		}
		reg.Steps[u] = deps
	}

	if err := reg.validateClosureAndAcyclicity(); err != nil {
		return nil, err
	}

	return reg, nil
}

func validateSchema(rr rawRegistry) error {
	doc := map[string]any{
		"version":  rr.Version,
		"data_dir": rr.DataDir,
		"steps":    rr.Steps,
	}
	return schema.Validate(schema.Shelf, doc)
}

// validateClosureAndAcyclicity enforces that every dependency is itself a
// registered step and that the DAG contains no cycle.
func (r *Registry) validateClosureAndAcyclicity() error {
	for u, deps := range r.Steps {
		for _, dep := range deps {
			if _, ok := r.Steps[dep]; !ok {
				return shelferr.Newf(shelferr.InvariantViolation, u.String(), "dependency %q is not a registered step", dep.String())
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uri.URI]int, len(r.Steps))

	var visit func(u uri.URI) error
	visit = func(u uri.URI) error {
		color[u] = gray
		for _, dep := range r.Steps[u] {
			switch color[dep] {
			case gray:
				return shelferr.Newf(shelferr.InvariantViolation, u.String(), "dependency cycle detected involving %q", dep.String())
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[u] = black
		return nil
	}

	for u := range r.Steps {
		if color[u] == white {
			if err := visit(u); err != nil {
				return err
			}
		}
	}
	return nil
}

// Save writes the registry to its default location, shelf.yaml, in the
// current working directory.
func (r *Registry) Save(fs afero.Fs) error {
	return r.SaveAs(fs, "shelf.yaml")
}

// SaveAs serializes the registry to path, with step keys sorted by their
// canonical URI string for a deterministic, diff-friendly file.
func (r *Registry) SaveAs(fs afero.Fs, path string) error {
	rr := rawRegistry{
		Version: r.Version,
		DataDir: r.DataDir,
		Steps:   map[string][]string{},
	}

	keys := make([]uri.URI, 0, len(r.Steps))
	for u := range r.Steps {
		keys = append(keys, u)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	for _, u := range keys {
		deps := r.Steps[u]
		depStrs := make([]string, len(deps))
		for i, d := range deps {
			depStrs[i] = d.String()
		}
		rr.Steps[u.String()] = depStrs
	}

	if err := validateSchema(rr); err != nil {
		return shelferr.Wrap(err, shelferr.SchemaViolation, path, "registry failed schema validation before save")
	}

	out, err := marshalOrdered(rr, keys)
	if err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, path, "cannot marshal registry")
	}

	if err := afero.WriteFile(fs, path, out, 0o644); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, path, "cannot write registry file")
	}
	return nil
}

// marshalOrdered renders the registry as YAML with steps emitted in the
// given key order, since Go map iteration (and yaml.v3's default map
// marshaling) would otherwise make the file non-deterministic.
func marshalOrdered(rr rawRegistry, order []uri.URI) ([]byte, error) {
	stepsNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, u := range order {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: u.String()}
		valNode := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, dep := range rr.Steps[u.String()] {
			valNode.Content = append(valNode.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: dep})
		}
		stepsNode.Content = append(stepsNode.Content, keyNode, valNode)
	}

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "version"},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(rr.Version)},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "data_dir"},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: rr.DataDir},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "steps"},
		stepsNode,
	)

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return yaml.Marshal(doc)
}

// LatestOf resolves a URI whose final path segment is the literal "latest"
// to the maximum URI in the registry sharing its scheme and path prefix.
// It returns the input URI unchanged if it isn't a "latest" reference, and
// shelferr.NotFound if no matching concrete version is registered.
func (r *Registry) LatestOf(u uri.URI) (uri.URI, error) {
	if u.Version() != "latest" {
		return u, nil
	}

	prefix := strings.TrimSuffix(u.Path, "latest")

	var best uri.URI
	found := false
	for candidate := range r.Steps {
		if candidate.Scheme != u.Scheme {
			continue
		}
		if candidate.Version() == "latest" {
			continue
		}
		if !strings.HasPrefix(candidate.Path, prefix) {
			continue
		}
		if !found || best.Less(candidate) {
			best = candidate
			found = true
		}
	}

	if !found {
		return uri.URI{}, shelferr.Newf(shelferr.NotFound, u.String(), "no concrete version registered for %q", u.String())
	}
	return best, nil
}

// Add registers a new step with its dependencies, failing if the step
// already exists or if any dependency isn't itself already registered.
func (r *Registry) Add(u uri.URI, deps []uri.URI) error {
	if _, exists := r.Steps[u]; exists {
		return shelferr.Newf(shelferr.AlreadyExists, u.String(), "step already registered")
	}
	for _, dep := range deps {
		if _, ok := r.Steps[dep]; !ok {
			return shelferr.Newf(shelferr.UserInput, dep.String(), "dependency %q is not a registered step", dep.String())
		}
	}
	r.Steps[u] = append([]uri.URI(nil), deps...)
	return r.validateClosureAndAcyclicity()
}
