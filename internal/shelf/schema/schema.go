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

// Package schema loads the JSON-schema documents that govern shelf.yaml and
// the snapshot/table metadata records, and applies them.
package schema

import (
	_ "embed"
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	"github.com/larsyencken/shelf/internal/shelf/shelferr"
)

//go:embed shelf-v1.schema.json
var shelfSchemaJSON []byte

//go:embed snapshot-v1.schema.json
var snapshotSchemaJSON []byte

//go:embed table-v1.schema.json
var tableSchemaJSON []byte

// Name identifies one of the three schemas shelf validates records against.
type Name string

// The three record schemas shelf validates against.
const (
	Shelf    Name = "shelf"
	Snapshot Name = "snapshot"
	Table    Name = "table"
)

var loaders = map[Name][]byte{
	Shelf:    shelfSchemaJSON,
	Snapshot: snapshotSchemaJSON,
	Table:    tableSchemaJSON,
}

var compiled = map[Name]*gojsonschema.Schema{}

func schemaFor(name Name) (*gojsonschema.Schema, error) {
	if s, ok := compiled[name]; ok {
		return s, nil
	}
	raw, ok := loaders[name]
	if !ok {
		return nil, shelferr.Newf(shelferr.UserInput, "", "unknown schema %q", name)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, shelferr.Wrap(err, shelferr.SchemaViolation, "", "cannot compile "+string(name)+" schema")
	}
	compiled[name] = s
	return s, nil
}

// Validate checks doc (any JSON-marshalable value, typically a
// map[string]any built from a record) against the named schema.
func Validate(name Name, doc any) error {
	s, err := schemaFor(name)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return shelferr.Wrap(err, shelferr.SchemaViolation, "", "cannot marshal document for validation")
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return shelferr.Wrap(err, shelferr.SchemaViolation, "", "cannot run schema validation")
	}
	if !result.Valid() {
		msg := "document failed " + string(name) + " schema validation:"
		for _, e := range result.Errors() {
			msg += " " + e.String() + ";"
		}
		return shelferr.New(shelferr.SchemaViolation, "", msg)
	}
	return nil
}
