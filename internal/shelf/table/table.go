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

// Package table implements the table step kind: a derived artifact produced
// by executing a user script against its dependencies.
package table

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/afero"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"gopkg.in/yaml.v3"

	"github.com/larsyencken/shelf/internal/shelf/checksum"
	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/schema"
	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/snapshot"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

// Record is the persisted table metadata, written to
// data/tables/<path>.meta.yaml.
type Record struct {
	URI           string            `yaml:"uri"`
	Version       int               `yaml:"version"`
	Checksum      model.Checksum    `yaml:"checksum"`
	InputManifest map[string]string `yaml:"input_manifest"`
	Schema        map[string]string `yaml:"schema"`

	Name         string `yaml:"name,omitempty"`
	SourceName   string `yaml:"source_name,omitempty"`
	SourceURL    string `yaml:"source_url,omitempty"`
	DateAccessed string `yaml:"date_accessed,omitempty"`
	AccessNotes  string `yaml:"access_notes,omitempty"`
}

// Table is a loaded table step.
type Table struct {
	Record Record

	fs          afero.Fs
	dataDir     string
	scriptDir   string
	repoRoot    string
	u           uri.URI
	currentDeps []uri.URI
}

func base(dataDir, path string) string {
	return filepath.Join(dataDir, "tables", path)
}

// OutputPath returns the table's parquet output path.
func OutputPath(dataDir, path string) string {
	return base(dataDir, path) + ".parquet"
}

// MetadataPath returns the table's metadata record path.
func MetadataPath(dataDir, path string) string {
	return base(dataDir, path) + ".meta.yaml"
}

// URI returns the table's canonical step identifier.
func (t *Table) URI() uri.URI { return t.u }

// MetadataPath returns this table's on-disk metadata record path.
func (t *Table) MetadataPath() string { return MetadataPath(t.dataDir, t.u.Path) }

// OutputPath returns this table's on-disk parquet output path.
func (t *Table) OutputPath() string { return OutputPath(t.dataDir, t.u.Path) }

// scriptCandidates returns the script paths tried, in order, for a table at
// path: its own .py, its own .sql, then the same pair with the final path
// segment dropped so one script can back several sibling versions, and
// finally the parent path itself with no extension at all, for a build
// script that is its own interpreter (a shebang script or compiled binary).
func scriptCandidates(scriptDir, path string) []string {
	parent := filepath.Dir(filepath.ToSlash(path))
	return []string{
		filepath.Join(scriptDir, path+".py"),
		filepath.Join(scriptDir, path+".sql"),
		filepath.Join(scriptDir, parent+".py"),
		filepath.Join(scriptDir, parent+".sql"),
		filepath.Join(scriptDir, parent),
	}
}

// findScript returns the first existing candidate script for path.
func findScript(fs afero.Fs, scriptDir, path string) (string, error) {
	for _, candidate := range scriptCandidates(scriptDir, path) {
		if exists, _ := afero.Exists(fs, candidate); exists {
			return candidate, nil
		}
	}
	return "", shelferr.Newf(shelferr.NotFound, "", "no build script found for table at %q (tried %v)", path, scriptCandidates(scriptDir, path))
}

// Load reads a table's metadata record from disk. currentDeps is the set of
// dependency URIs currently declared for this step in the registry; it is
// needed by IsUpToDate to catch a stale input manifest.
func Load(fs afero.Fs, dataDir string, u uri.URI, currentDeps []uri.URI) (*Table, error) {
	p := MetadataPath(dataDir, u.Path)
	raw, err := afero.ReadFile(fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shelferr.Wrap(err, shelferr.NotFound, u.String(), "table record not found")
		}
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot read table record")
	}

	var rec Record
	if err := yaml.Unmarshal(raw, &rec); err != nil {
		return nil, shelferr.Wrap(err, shelferr.SchemaViolation, u.String(), "cannot parse table record")
	}

	return &Table{Record: rec, fs: fs, dataDir: dataDir, u: u, currentDeps: currentDeps}, nil
}

// IsUpToDate reports whether the table's output is current: the output and
// metadata files must exist, every input manifest entry must still hash to
// its recorded value, and the declared dependency set must match what the
// manifest was built from.
func (t *Table) IsUpToDate() (bool, error) {
	if exists, _ := afero.Exists(t.fs, t.OutputPath()); !exists {
		return false, nil
	}
	if exists, _ := afero.Exists(t.fs, t.MetadataPath()); !exists {
		return false, nil
	}

	for path, sum := range t.Record.InputManifest {
		if exists, _ := afero.Exists(t.fs, path); !exists {
			return false, nil
		}
		current, err := checksum.File(path)
		if err != nil {
			return false, nil
		}
		if string(current) != sum {
			return false, nil
		}
	}

	declared := map[string]bool{}
	for _, dep := range t.currentDeps {
		p, err := depMetadataPath(t.dataDir, dep)
		if err != nil {
			return false, err
		}
		declared[p] = true
	}
	manifestDepPaths := map[string]bool{}
	scriptPath, err := t.scriptPath()
	if err == nil {
		abs, _ := filepath.Abs(scriptPath)
		for path := range t.Record.InputManifest {
			if path == abs {
				continue
			}
			manifestDepPaths[path] = true
		}
	} else {
		for path := range t.Record.InputManifest {
			manifestDepPaths[path] = true
		}
	}
	if len(manifestDepPaths) != len(declared) {
		return false, nil
	}
	for p := range manifestDepPaths {
		if !declared[p] {
			return false, nil
		}
	}

	return true, nil
}

func (t *Table) scriptPath() (string, error) {
	return findScript(t.fs, t.scriptDir, t.u.Path)
}

// depPath resolves a dependency URI to the on-disk path of its data.
func depPath(fs afero.Fs, dataDir string, dep uri.URI) (string, error) {
	switch dep.Scheme {
	case uri.Snapshot:
		snap, err := snapshot.Load(fs, nil, dataDir, dep)
		if err != nil {
			return "", err
		}
		return snap.Path(), nil
	case uri.Table:
		return OutputPath(dataDir, dep.Path), nil
	default:
		return "", shelferr.Newf(shelferr.UserInput, dep.String(), "unknown scheme %q", dep.Scheme)
	}
}

// depMetadataPath resolves a dependency URI to its metadata record path.
func depMetadataPath(dataDir string, dep uri.URI) (string, error) {
	switch dep.Scheme {
	case uri.Snapshot:
		return snapshot.MetadataPath(dataDir, dep.Path), nil
	case uri.Table:
		return MetadataPath(dataDir, dep.Path), nil
	default:
		return "", shelferr.Newf(shelferr.UserInput, dep.String(), "unknown scheme %q", dep.Scheme)
	}
}

// Build runs the table's script against its dependencies, validates the
// output, and writes the resulting metadata record.
func Build(ctx context.Context, fs afero.Fs, dataDir, scriptDir, repoRoot string, u uri.URI, deps []uri.URI) (*Table, error) {
	t := &Table{fs: fs, dataDir: dataDir, scriptDir: scriptDir, repoRoot: repoRoot, u: u, currentDeps: deps}

	scriptPath, err := t.scriptPath()
	if err != nil {
		return nil, err
	}

	depPaths := make([]string, len(deps))
	for i, dep := range deps {
		p, err := depPath(fs, dataDir, dep)
		if err != nil {
			return nil, err
		}
		depPaths[i] = p
	}

	outputPath := t.OutputPath()

	if err := runScript(ctx, repoRoot, scriptPath, depPaths, outputPath); err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "table build script failed")
	}

	if exists, _ := afero.Exists(fs, outputPath); !exists {
		return nil, shelferr.Newf(shelferr.IntegrityViolation, u.String(), "table step did not generate expected output %q", outputPath)
	}

	outSum, err := checksum.File(outputPath)
	if err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot checksum table output")
	}

	inputManifest, err := buildInputManifest(scriptPath, deps, dataDir)
	if err != nil {
		return nil, err
	}

	rec := Record{
		URI:           u.String(),
		Version:       1,
		Checksum:      outSum,
		InputManifest: inputManifest,
	}

	if len(deps) == 1 {
		if err := inheritDescriptiveFields(fs, dataDir, deps[0], &rec); err != nil {
			return nil, err
		}
	}

	colSchema, err := inferSchema(outputPath)
	if err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot infer table schema")
	}
	rec.Schema = colSchema

	if err := validateRecord(rec); err != nil {
		return nil, shelferr.Wrap(err, shelferr.SchemaViolation, u.String(), "table record failed validation")
	}

	if !hasDimensionColumn(colSchema) {
		return nil, shelferr.New(shelferr.InvariantViolation, u.String(), "table output has no column prefixed with dim_")
	}

	t.Record = rec
	if err := t.Save(); err != nil {
		return nil, err
	}

	return t, nil
}

// inferSchema reads the parquet output file's own embedded footer schema
// and returns it as {column: type}, without needing to know the row
// struct in advance (the table's script owns the output's shape, not
// this package).
func inferSchema(path string) (map[string]string, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close() // nolint:errcheck

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	cols := map[string]string{}
	for _, elem := range pr.SchemaHandler.SchemaElements {
		if elem.GetNumChildren() > 0 {
			continue // group/root node, not a leaf column
		}
		typeName := elem.GetType().String()
		if elem.IsSetConvertedType() {
			typeName = elem.GetConvertedType().String()
		}
		cols[elem.Name] = typeName
	}
	if len(cols) == 0 {
		return nil, shelferr.New(shelferr.IntegrityViolation, "", "parquet file has no columns")
	}
	return cols, nil
}

func hasDimensionColumn(colSchema map[string]string) bool {
	for col := range colSchema {
		if strings.HasPrefix(col, "dim_") {
			return true
		}
	}
	return false
}

func buildInputManifest(scriptPath string, deps []uri.URI, dataDir string) (map[string]string, error) {
	manifest := map[string]string{}

	scriptAbs, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, "", "cannot resolve absolute script path")
	}
	scriptSum, err := checksum.File(scriptAbs)
	if err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, "", "cannot checksum build script")
	}
	manifest[scriptAbs] = string(scriptSum)

	for _, dep := range deps {
		depMetaPath, err := depMetadataPath(dataDir, dep)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(depMetaPath)
		if err != nil {
			return nil, shelferr.Wrap(err, shelferr.ExternalFailure, dep.String(), "cannot resolve absolute metadata path")
		}
		sum, err := checksum.File(abs)
		if err != nil {
			return nil, shelferr.Wrap(err, shelferr.ExternalFailure, dep.String(), "cannot checksum dependency metadata")
		}
		manifest[abs] = string(sum)
	}

	return manifest, nil
}

func inheritDescriptiveFields(fs afero.Fs, dataDir string, dep uri.URI, rec *Record) error {
	depMetaPath, err := depMetadataPath(dataDir, dep)
	if err != nil {
		return err
	}
	raw, err := afero.ReadFile(fs, depMetaPath)
	if err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, dep.String(), "cannot read dependency metadata to inherit fields")
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return shelferr.Wrap(err, shelferr.SchemaViolation, dep.String(), "cannot parse dependency metadata")
	}

	for _, field := range []string{"name", "source_name", "source_url", "date_accessed", "access_notes"} {
		v, ok := generic[field]
		if !ok || v == nil {
			continue
		}
		s := toString(v)
		switch field {
		case "name":
			rec.Name = s
		case "source_name":
			rec.SourceName = s
		case "source_url":
			rec.SourceURL = s
		case "date_accessed":
			rec.DateAccessed = s
		case "access_notes":
			rec.AccessNotes = s
		}
	}
	return nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Save writes the table record to its metadata path.
func (t *Table) Save() error {
	p := t.MetadataPath()
	if err := t.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, t.u.String(), "cannot create table metadata directory")
	}

	raw, err := yaml.Marshal(t.Record)
	if err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, t.u.String(), "cannot marshal table record")
	}

	if err := afero.WriteFile(t.fs, p, raw, 0o644); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, t.u.String(), "cannot write table record")
	}
	return nil
}

func validateRecord(rec Record) error {
	doc := map[string]any{
		"uri":            rec.URI,
		"version":        rec.Version,
		"checksum":       string(rec.Checksum),
		"input_manifest": rec.InputManifest,
		"schema":         rec.Schema,
	}
	return schema.Validate(schema.Table, doc)
}

// runScript removes any pre-existing output, then dispatches to the script
// interpreter implied by its extension: python3 for .py, the local
// analytics engine for .sql, the script itself otherwise.
func runScript(ctx context.Context, repoRoot, scriptPath string, depPaths []string, outputPath string) error {
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	switch filepath.Ext(scriptPath) {
	case ".sql":
		return runSQL(ctx, repoRoot, scriptPath, depPaths, outputPath)
	case ".py":
		return runCommand(ctx, repoRoot, "python3", append([]string{scriptPath}, append(depPaths, outputPath)...)...)
	default:
		return runCommand(ctx, repoRoot, scriptPath, append(depPaths, outputPath)...)
	}
}

func runCommand(ctx context.Context, repoRoot, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = repoRoot
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// runSQL renders scriptPath as a Go template, substituting each dependency
// path under its simplified unique name, then pipes the rendered query into
// the local analytics engine (the duckdb CLI) followed by an engine-issued
// COPY. The script's job is only to materialize a table or view named
// "data"; the engine, not the script, is responsible for writing it out to
// outputPath as Parquet.
func runSQL(ctx context.Context, repoRoot, scriptPath string, depPaths []string, outputPath string) error {
	raw, err := os.ReadFile(scriptPath)
	if err != nil {
		return err
	}

	names, err := simplifyDependencyNames(depPaths)
	if err != nil {
		return err
	}

	vars := map[string]string{}
	for name, path := range names {
		vars[name] = path
	}

	tmpl, err := template.New(filepath.Base(scriptPath)).Parse(string(raw))
	if err != nil {
		return err
	}
	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, vars); err != nil {
		return err
	}
	fmt.Fprintf(&rendered, "\nCOPY (SELECT * FROM data) TO '%s' (FORMAT 'parquet');\n", outputPath)

	cmd := exec.CommandContext(ctx, "duckdb", ":memory:")
	cmd.Dir = repoRoot
	cmd.Stdin = &rendered
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
