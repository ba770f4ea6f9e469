package snapshot_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/snapshot"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

type fakeStore struct {
	fs   afero.Fs
	puts int
	gets int
}

func newFakeStore(fs afero.Fs) *fakeStore { return &fakeStore{fs: fs} }

func (s *fakeStore) Put(ctx context.Context, localPath string, sum model.Checksum) error {
	s.puts++
	return nil
}

func (s *fakeStore) Get(ctx context.Context, sum model.Checksum, localPath string) error {
	s.gets++
	return afero.WriteFile(s.fs, localPath, []byte("restored from store"), 0o644)
}

func TestCreateFileRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := newFakeStore(fs)

	require.NoError(t, afero.WriteFile(fs, "/src/one.txt", []byte("Hello, World!"), 0o644))

	u := uri.New(uri.Snapshot, "test/one/2024-07-26")
	snap, err := snapshot.CreateFile(context.Background(), fs, st, "data", u, "/src/one.txt")
	require.NoError(t, err)
	assert.Equal(t, snapshot.File, snap.Record.SnapshotType)
	assert.Equal(t, ".txt", snap.Record.Extension)
	assert.Equal(t, 1, st.puts)

	ok, err := snap.IsUpToDate()
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := snapshot.Load(fs, st, "data", u)
	require.NoError(t, err)
	assert.Equal(t, snap.Record.Checksum, loaded.Record.Checksum)

	data, err := afero.ReadFile(fs, loaded.Path())
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(data))
}

func TestCreateFileWritesGitignore(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := newFakeStore(fs)
	require.NoError(t, afero.WriteFile(fs, "/src/one.txt", []byte("hi"), 0o644))

	u := uri.New(uri.Snapshot, "test/one/2024-07-26")
	_, err := snapshot.CreateFile(context.Background(), fs, st, "data", u, "/src/one.txt")
	require.NoError(t, err)

	contents, err := afero.ReadFile(fs, ".gitignore")
	require.NoError(t, err)
	assert.Contains(t, string(contents), "data/snapshots/test/one/2024-07-26.txt")
}

func TestCreateDirectoryRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := newFakeStore(fs)

	require.NoError(t, afero.WriteFile(fs, "/src/file1.txt", []byte("Hello, World!"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/file2.txt", []byte("Hello, Cosmos!"), 0o644))

	u := uri.New(uri.Snapshot, "test/bundle/2024-07-26")
	snap, err := snapshot.CreateDirectory(context.Background(), fs, st, "data", u, "/src")
	require.NoError(t, err)
	assert.Equal(t, snapshot.Directory, snap.Record.SnapshotType)
	assert.Len(t, snap.Record.Manifest, 2)
	assert.Equal(t, 2, st.puts)

	ok, err := snap.IsUpToDate()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsUpToDateFalseAfterModification(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := newFakeStore(fs)
	require.NoError(t, afero.WriteFile(fs, "/src/one.txt", []byte("original"), 0o644))

	u := uri.New(uri.Snapshot, "test/one/2024-07-26")
	snap, err := snapshot.CreateFile(context.Background(), fs, st, "data", u, "/src/one.txt")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, snap.Path(), []byte("modified"), 0o644))

	ok, err := snap.IsUpToDate()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchFileFromStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := newFakeStore(fs)
	require.NoError(t, afero.WriteFile(fs, "/src/one.txt", []byte("Hello, World!"), 0o644))

	u := uri.New(uri.Snapshot, "test/one/2024-07-26")
	snap, err := snapshot.CreateFile(context.Background(), fs, st, "data", u, "/src/one.txt")
	require.NoError(t, err)

	require.NoError(t, fs.Remove(snap.Path()))
	ok, err := snap.IsUpToDate()
	require.NoError(t, err)
	assert.False(t, ok)

	err = snap.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.gets)
}

func TestLoadMissingRecordIsNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := newFakeStore(fs)
	u := uri.New(uri.Snapshot, "missing/thing/2024-07-26")
	_, err := snapshot.Load(fs, st, "data", u)
	assert.Error(t, err)
}
