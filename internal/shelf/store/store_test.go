package store_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsyencken/shelf/internal/shelf/store"
)

func TestKeyFanOut(t *testing.T) {
	key, err := store.Key("abcdef0123456789")
	require.NoError(t, err)
	assert.Equal(t, "ab/cd/abcdef0123456789", key)
}

func TestKeyTooShort(t *testing.T) {
	_, err := store.Key("ab")
	assert.Error(t, err)
}

func TestConfigFromEnvDefaultsToS3(t *testing.T) {
	for _, v := range []string{store.EnvBackend, store.EnvBucket, store.EnvEndpoint, store.EnvAccessKey, store.EnvSecretKey} {
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}

	cfg := store.ConfigFromEnv()
	assert.Equal(t, "s3", cfg.Backend)
}

func TestConfigFromEnvReadsValues(t *testing.T) {
	t.Setenv(store.EnvBackend, "gcs")
	t.Setenv(store.EnvBucket, "my-bucket")
	t.Setenv(store.EnvEndpoint, "https://example.test")
	t.Setenv(store.EnvAccessKey, "key")
	t.Setenv(store.EnvSecretKey, "secret")

	cfg := store.ConfigFromEnv()
	assert.Equal(t, "gcs", cfg.Backend)
	assert.Equal(t, "my-bucket", cfg.Bucket)
	assert.Equal(t, "https://example.test", cfg.Endpoint)
	assert.Equal(t, "key", cfg.AccessKey)
	assert.Equal(t, "secret", cfg.SecretKey)
}
