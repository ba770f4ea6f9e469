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

// Package snapshot implements the snapshot step kind: a user-provided file
// or directory asset uploaded into the object store verbatim and addressed
// by content.
package snapshot

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/larsyencken/shelf/internal/shelf/checksum"
	"github.com/larsyencken/shelf/internal/shelf/gitignore"
	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/schema"
	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/store"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

// Type distinguishes the two shapes a snapshot can take.
type Type string

// The two snapshot kinds.
const (
	File      Type = "file"
	Directory Type = "directory"
)

// Record is the persisted snapshot metadata, written to
// data/snapshots/<path>.meta.yaml.
type Record struct {
	URI          string         `yaml:"uri"`
	Version      int            `yaml:"version"`
	SnapshotType Type           `yaml:"snapshot_type"`
	Checksum     model.Checksum `yaml:"checksum"`
	Extension    string         `yaml:"extension,omitempty"`
	Manifest     model.Manifest `yaml:"manifest,omitempty"`

	Name         string `yaml:"name,omitempty"`
	SourceName   string `yaml:"source_name,omitempty"`
	SourceURL    string `yaml:"source_url,omitempty"`
	DateAccessed string `yaml:"date_accessed,omitempty"`
	AccessNotes  string `yaml:"access_notes,omitempty"`
}

// Snapshot is a loaded snapshot step, ready to be queried or materialized.
type Snapshot struct {
	Record Record

	fs      afero.Fs
	store   store.Store
	dataDir string
	u       uri.URI
}

func metadataPath(dataDir, path string) string {
	return filepath.Join(dataDir, "snapshots", path+".meta.yaml")
}

// MetadataPath returns the on-disk metadata path for the snapshot at path,
// without requiring the record to be loaded. Used by dependents (tables)
// that only need the path, e.g. to build an input manifest.
func MetadataPath(dataDir, path string) string {
	return metadataPath(dataDir, path)
}

// DataPath returns the on-disk path a snapshot's data lives at: a file with
// its original extension, or a directory.
func DataPath(dataDir, path string, snapshotType Type, extension string) string {
	base := filepath.Join(dataDir, "snapshots", path)
	if snapshotType == File {
		return base + extension
	}
	return base
}

// URI returns the snapshot's canonical step identifier.
func (s *Snapshot) URI() uri.URI { return s.u }

// MetadataPath returns the snapshot's on-disk metadata record path.
func (s *Snapshot) MetadataPath() string {
	return metadataPath(s.dataDir, s.u.Path)
}

// Path returns the snapshot's on-disk data path.
func (s *Snapshot) Path() string {
	return DataPath(s.dataDir, s.u.Path, s.Record.SnapshotType, s.Record.Extension)
}

// Load reads a snapshot's metadata record from disk.
func Load(fs afero.Fs, st store.Store, dataDir string, u uri.URI) (*Snapshot, error) {
	p := metadataPath(dataDir, u.Path)
	raw, err := afero.ReadFile(fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shelferr.Wrap(err, shelferr.NotFound, u.String(), "snapshot record not found")
		}
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot read snapshot record")
	}

	var rec Record
	if err := yaml.Unmarshal(raw, &rec); err != nil {
		return nil, shelferr.Wrap(err, shelferr.SchemaViolation, u.String(), "cannot parse snapshot record")
	}
	if err := validateRecord(rec); err != nil {
		return nil, shelferr.Wrap(err, shelferr.SchemaViolation, u.String(), "snapshot record failed validation")
	}
	if rec.SnapshotType == Directory && rec.Manifest == nil {
		return nil, shelferr.New(shelferr.IntegrityViolation, u.String(), "directory snapshot is missing its manifest")
	}

	return &Snapshot{Record: rec, fs: fs, store: st, dataDir: dataDir, u: u}, nil
}

func validateRecord(rec Record) error {
	doc := map[string]any{
		"uri":           rec.URI,
		"version":       rec.Version,
		"snapshot_type": string(rec.SnapshotType),
		"checksum":      string(rec.Checksum),
	}
	if rec.Extension != "" {
		doc["extension"] = rec.Extension
	}
	if rec.Manifest != nil {
		m := map[string]string{}
		for k, v := range rec.Manifest {
			m[k] = string(v)
		}
		doc["manifest"] = m
	}
	return schema.Validate(schema.Snapshot, doc)
}

// CreateFile checksums localPath, copies it into the data directory,
// uploads it to the object store, and writes the snapshot record.
func CreateFile(ctx context.Context, fs afero.Fs, st store.Store, dataDir string, u uri.URI, localPath string) (*Snapshot, error) {
	sum, err := checksumFS(fs, localPath)
	if err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot checksum snapshot source")
	}

	ext := filepath.Ext(localPath)
	destPath := DataPath(dataDir, u.Path, File, ext)
	if err := copyFile(fs, localPath, destPath); err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot copy snapshot into data directory")
	}

	if err := st.Put(ctx, destPath, sum); err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot upload snapshot")
	}

	snap := &Snapshot{
		Record: Record{
			URI:          u.String(),
			Version:      1,
			SnapshotType: File,
			Checksum:     sum,
			Extension:    ext,
		},
		fs:      fs,
		store:   st,
		dataDir: dataDir,
		u:       u,
	}
	if err := snap.Save(); err != nil {
		return nil, err
	}

	if err := gitignore.Append(fs, destPath); err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot update .gitignore")
	}

	return snap, nil
}

// CreateDirectory copies the tree at localPath into the data directory,
// manifests and uploads every file in it, and writes the snapshot record.
func CreateDirectory(ctx context.Context, fs afero.Fs, st store.Store, dataDir string, u uri.URI, localPath string) (*Snapshot, error) {
	destPath := DataPath(dataDir, u.Path, Directory, "")
	if err := copyTree(fs, localPath, destPath); err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot copy snapshot directory into data directory")
	}

	manifest, err := manifestFS(fs, destPath)
	if err != nil {
		return nil, shelferr.Wrap(err, shelferr.IntegrityViolation, u.String(), "cannot build directory manifest")
	}

	for relPath, sum := range manifest {
		if err := st.Put(ctx, filepath.Join(destPath, relPath), sum); err != nil {
			return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot upload "+relPath)
		}
	}

	rollup := checksum.Manifest(manifest)

	snap := &Snapshot{
		Record: Record{
			URI:          u.String(),
			Version:      1,
			SnapshotType: Directory,
			Checksum:     rollup,
			Manifest:     manifest,
		},
		fs:      fs,
		store:   st,
		dataDir: dataDir,
		u:       u,
	}
	if err := snap.Save(); err != nil {
		return nil, err
	}

	if err := gitignore.Append(fs, destPath); err != nil {
		return nil, shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot update .gitignore")
	}

	return snap, nil
}

// Save writes the snapshot record to its metadata path, validating it first.
func (s *Snapshot) Save() error {
	if err := validateRecord(s.Record); err != nil {
		return shelferr.Wrap(err, shelferr.SchemaViolation, s.u.String(), "snapshot record failed validation")
	}

	p := s.MetadataPath()
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, s.u.String(), "cannot create snapshot metadata directory")
	}

	raw, err := yaml.Marshal(s.Record)
	if err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, s.u.String(), "cannot marshal snapshot record")
	}

	if err := afero.WriteFile(s.fs, p, raw, 0o644); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, s.u.String(), "cannot write snapshot record")
	}
	return nil
}

// IsUpToDate reports whether the on-disk data still matches the recorded
// checksum(s).
func (s *Snapshot) IsUpToDate() (bool, error) {
	switch s.Record.SnapshotType {
	case File:
		info, err := s.fs.Stat(s.Path())
		if err != nil {
			return false, nil
		}
		if info.IsDir() {
			return false, nil
		}
		sum, err := checksumFS(s.fs, s.Path())
		if err != nil {
			return false, shelferr.Wrap(err, shelferr.ExternalFailure, s.u.String(), "cannot checksum snapshot")
		}
		return sum == s.Record.Checksum, nil

	case Directory:
		info, err := s.fs.Stat(s.Path())
		if err != nil || !info.IsDir() {
			return false, nil
		}
		manifest, err := manifestFS(s.fs, s.Path())
		if err != nil {
			return false, nil
		}
		return checksum.Manifest(manifest) == s.Record.Checksum, nil

	default:
		return false, shelferr.Newf(shelferr.SchemaViolation, s.u.String(), "unknown snapshot type %q", s.Record.SnapshotType)
	}
}

// Fetch materializes the snapshot from the object store onto disk.
func (s *Snapshot) Fetch(ctx context.Context) error {
	switch s.Record.SnapshotType {
	case File:
		dest := s.Path()
		if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return shelferr.Wrap(err, shelferr.ExternalFailure, s.u.String(), "cannot create destination directory")
		}
		return FetchVia(ctx, s.fs, s.store, s.Record.Checksum, dest, s.u)

	case Directory:
		if s.Record.Manifest == nil {
			return shelferr.New(shelferr.IntegrityViolation, s.u.String(), "directory snapshot has no manifest")
		}
		root := s.Path()
		for relPath, sum := range s.Record.Manifest {
			dest, err := safeJoin(root, relPath)
			if err != nil {
				return shelferr.Wrap(err, shelferr.IntegrityViolation, s.u.String(), "manifest path escapes dataset root")
			}
			if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return shelferr.Wrap(err, shelferr.ExternalFailure, s.u.String(), "cannot create destination directory")
			}
			if err := FetchVia(ctx, s.fs, s.store, sum, dest, s.u); err != nil {
				return err
			}
		}
		return nil

	default:
		return shelferr.Newf(shelferr.SchemaViolation, s.u.String(), "unknown snapshot type %q", s.Record.SnapshotType)
	}
}

// FetchVia is a seam so the executor's disk cache can be layered in front
// of the object store; by default it downloads straight from the store.
// Callers that want cache consultation should reassign it before running
// any fetch (see the executor package).
var FetchVia = func(ctx context.Context, fs afero.Fs, st store.Store, sum model.Checksum, dest string, u uri.URI) error {
	tmp := dest + ".download." + uuid.NewString()
	if err := st.Get(ctx, sum, tmp); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, u.String(), "cannot fetch object")
	}
	return fs.Rename(tmp, dest)
}

// safeJoin joins root and rel, rejecting any rel that would resolve outside
// root after normalization, guarding against a manifest path escaping via "..".
func safeJoin(root, rel string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(root, rel))
	rootClean := filepath.Clean(root)
	if cleaned != rootClean && !hasPathPrefix(cleaned, rootClean) {
		return "", shelferr.Newf(shelferr.IntegrityViolation, "", "path %q escapes root %q", rel, root)
	}
	return cleaned, nil
}

func hasPathPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasDotDotPrefix(rel)
}

func filepathHasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || rel[2] == filepath.Separator)
}

func copyFile(fs afero.Fs, src, dst string) error {
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() // nolint:errcheck

	out, err := fs.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close() // nolint:errcheck

	_, err = io.Copy(out, in)
	return err
}

func copyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0o755)
		}
		return copyFile(fs, path, target)
	})
}

// checksumFS and manifestFS let the checksum package's path-based helpers
// work against an afero.Fs in tests while production code uses the real OS
// filesystem directly (checksum.File/Folder operate on os paths).
func checksumFS(fs afero.Fs, path string) (model.Checksum, error) {
	if _, ok := fs.(*afero.OsFs); ok {
		return checksum.File(path)
	}
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() // nolint:errcheck
	return checksum.Reader(f)
}

func manifestFS(fs afero.Fs, dir string) (model.Manifest, error) {
	if _, ok := fs.(*afero.OsFs); ok {
		return checksum.Folder(dir)
	}
	manifest := model.Manifest{}
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() == ".DS_Store" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		sum, err := checksumFS(fs, path)
		if err != nil {
			return err
		}
		manifest[filepath.ToSlash(rel)] = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(manifest) == 0 {
		return nil, shelferr.Newf(shelferr.IntegrityViolation, "", "no files found in %q to checksum", dir)
	}
	return manifest, nil
}

