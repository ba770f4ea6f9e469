package gitignore

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestAppendCreatesFileWithLine(t *testing.T) {
	fs := afero.NewMemMapFs()

	if err := Append(fs, "data/snapshots/census/2020-01-01.parquet"); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := afero.ReadFile(fs, FileName)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "data/snapshots/census/2020-01-01.parquet") {
		t.Fatalf("expected line in .gitignore, got %q", string(raw))
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()

	for i := 0; i < 3; i++ {
		if err := Append(fs, "data/snapshots/census/2020-01-01.parquet"); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	raw, err := afero.ReadFile(fs, FileName)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	count := 0
	for _, l := range lines {
		if l == "data/snapshots/census/2020-01-01.parquet" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one occurrence after repeated appends, got %d in %q", count, string(raw))
	}
}

func TestAppendAddsDistinctLines(t *testing.T) {
	fs := afero.NewMemMapFs()

	if err := Append(fs, "data/snapshots/a.parquet"); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := Append(fs, "data/snapshots/b.parquet"); err != nil {
		t.Fatalf("append b: %v", err)
	}

	raw, err := afero.ReadFile(fs, FileName)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "data/snapshots/a.parquet") || !strings.Contains(string(raw), "data/snapshots/b.parquet") {
		t.Fatalf("expected both distinct lines, got %q", string(raw))
	}
}

func TestHasLineMissingFileIsFalse(t *testing.T) {
	fs := afero.NewMemMapFs()

	present, err := hasLine(fs, "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if present {
		t.Fatal("expected false when .gitignore does not exist")
	}
}
