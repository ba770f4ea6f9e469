package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/larsyencken/shelf/internal/shelf/schema"
)

func TestValidateShelfRegistry(t *testing.T) {
	doc := map[string]any{
		"version":  1,
		"data_dir": "data",
		"steps": map[string][]string{
			"snapshot://a/2024-07-26": {},
		},
	}
	assert.NoError(t, schema.Validate(schema.Shelf, doc))
}

func TestValidateShelfRejectsMissingVersion(t *testing.T) {
	doc := map[string]any{
		"data_dir": "data",
		"steps":    map[string][]string{},
	}
	assert.Error(t, schema.Validate(schema.Shelf, doc))
}

func TestValidateSnapshotFileRequiresExtension(t *testing.T) {
	doc := map[string]any{
		"uri":           "snapshot://a/2024-07-26",
		"version":       1,
		"snapshot_type": "file",
		"checksum":      "ab12cd34ffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	}
	assert.Error(t, schema.Validate(schema.Snapshot, doc))

	doc["extension"] = ".txt"
	assert.NoError(t, schema.Validate(schema.Snapshot, doc))
}

func TestValidateSnapshotDirectoryRequiresManifest(t *testing.T) {
	doc := map[string]any{
		"uri":           "snapshot://a/2024-07-26",
		"version":       1,
		"snapshot_type": "directory",
		"checksum":      "ab12cd34ffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	}
	assert.Error(t, schema.Validate(schema.Snapshot, doc))

	doc["manifest"] = map[string]string{"a.txt": "ab12cd34ffffffffffffffffffffffffffffffffffffffffffffffffffffffff"}
	assert.NoError(t, schema.Validate(schema.Snapshot, doc))
}

func TestValidateTableRecord(t *testing.T) {
	doc := map[string]any{
		"uri":            "table://a/2024-07-26",
		"version":        1,
		"checksum":       "ab12cd34ffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		"input_manifest": map[string]string{"/abs/script.sql": "ab12cd34ffffffffffffffffffffffffffffffffffffffffffffffffffffffff"},
		"schema":         map[string]string{"dim_year": "INT64"},
	}
	assert.NoError(t, schema.Validate(schema.Table, doc))
}
