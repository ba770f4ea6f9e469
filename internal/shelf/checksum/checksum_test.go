package checksum_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsyencken/shelf/internal/shelf/checksum"
	"github.com/larsyencken/shelf/internal/shelf/model"
)

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello, World!"), 0o644))

	sum, err := checksum.File(path)
	require.NoError(t, err)
	assert.Equal(t, model.Checksum("dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"), sum)
}

func TestFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file1.txt"), []byte("Hello, World!"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file2.txt"), []byte("Hello, Cosmos!"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("ignored"), 0o644))

	manifest, err := checksum.Folder(dir)
	require.NoError(t, err)
	require.Len(t, manifest, 2)
	assert.Equal(t, model.Checksum("dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"), manifest["file1.txt"])
	assert.Equal(t, model.Checksum("40efcea9db03adb126f27a0f339c595d1828a0713a789ea49d1ae67159d101e0"), manifest["file2.txt"])
}

func TestFolderEmptyFails(t *testing.T) {
	dir := t.TempDir()
	_, err := checksum.Folder(dir)
	assert.Error(t, err)
}

func TestManifestDeterministic(t *testing.T) {
	m1 := model.Manifest{"b.txt": "bbb", "a.txt": "aaa"}
	m2 := model.Manifest{"a.txt": "aaa", "b.txt": "bbb"}
	assert.Equal(t, checksum.Manifest(m1), checksum.Manifest(m2))
}

func TestManifestVariesWithContent(t *testing.T) {
	m1 := model.Manifest{"a.txt": "aaa"}
	m2 := model.Manifest{"a.txt": "zzz"}
	assert.NotEqual(t, checksum.Manifest(m1), checksum.Manifest(m2))
}
