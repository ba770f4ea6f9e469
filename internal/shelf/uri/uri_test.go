package uri_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsyencken/shelf/internal/shelf/uri"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"snapshot://test/one/2024-07-26",
		"table://fancy/dataset/latest",
	}
	for _, s := range cases {
		u, err := uri.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, u.String())
	}
}

func TestParseUnknownScheme(t *testing.T) {
	_, err := uri.Parse("blob://test/one/2024-07-26")
	assert.Error(t, err)
}

func TestParseMalformed(t *testing.T) {
	_, err := uri.Parse("snapshot-test-one")
	assert.Error(t, err)
}

func TestLessIsLexicographic(t *testing.T) {
	a, _ := uri.Parse("snapshot://a/2024-07-26")
	b, _ := uri.Parse("table://a/2024-07-26")
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestIsVersionToken(t *testing.T) {
	assert.True(t, uri.IsVersionToken("latest"))
	assert.True(t, uri.IsVersionToken("2024-07-26"))
	assert.False(t, uri.IsVersionToken("2024-7-26"))
	assert.False(t, uri.IsVersionToken("stable"))
}

func TestEnsureVersionedAppendsDate(t *testing.T) {
	today := time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC)
	got, err := uri.EnsureVersioned("test/one", today)
	require.NoError(t, err)
	assert.Equal(t, "test/one/2024-07-26", got)
}

func TestEnsureVersionedAlreadyVersioned(t *testing.T) {
	today := time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC)
	got, err := uri.EnsureVersioned("test/one/latest", today)
	require.NoError(t, err)
	assert.Equal(t, "test/one/latest", got)
}

func TestEnsureVersionedSingleSegmentFails(t *testing.T) {
	today := time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC)
	_, err := uri.EnsureVersioned("onlyname", today)
	assert.Error(t, err)
}
