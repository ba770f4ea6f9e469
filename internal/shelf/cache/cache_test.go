package cache_test

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsyencken/shelf/internal/shelf/cache"
	"github.com/larsyencken/shelf/internal/shelf/model"
)

func TestPopulateThenHasAndCopyTo(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := cache.NewLocal(fs, "/cache")

	require.NoError(t, afero.WriteFile(fs, "/src/data.bin", []byte("payload"), 0o644))

	sum := model.Checksum("abcd1234ffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	assert.False(t, c.Has(sum))

	require.NoError(t, c.Populate(sum, "/src/data.bin"))
	assert.True(t, c.Has(sum))

	require.NoError(t, c.CopyTo(sum, "/dest/out.bin"))
	data, err := afero.ReadFile(fs, "/dest/out.bin")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestHasFalseForUnknownChecksum(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := cache.NewLocal(fs, "/cache")
	assert.False(t, c.Has(model.Checksum(strings.Repeat("0", 64))))
}

func TestCopyToMissingEntryFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := cache.NewLocal(fs, "/cache")
	err := c.CopyTo(model.Checksum("abcd1234ffffffffffffffffffffffffffffffffffffffffffffffffffffff"), "/dest/out.bin")
	assert.Error(t, err)
}
