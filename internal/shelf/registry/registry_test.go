package registry

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/larsyencken/shelf/internal/shelf/uri"
)

func snap(path string) uri.URI { return uri.New(uri.Snapshot, path) }
func tbl(path string) uri.URI  { return uri.New(uri.Table, path) }

func TestInitWritesMinimalRegistry(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := Init(fs, "shelf.yaml"); err != nil {
		t.Fatalf("init: %v", err)
	}

	reg, err := Load(fs, "shelf.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if reg.Version != 1 || reg.DataDir != "data" || len(reg.Steps) != 0 {
		t.Fatalf("unexpected registry after init: %+v", reg)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := Init(fs, "shelf.yaml"); err != nil {
		t.Fatal(err)
	}
	reg, _ := Load(fs, "shelf.yaml")
	if err := reg.Add(snap("census/2020-01-01"), nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.SaveAs(fs, "shelf.yaml"); err != nil {
		t.Fatal(err)
	}

	if err := Init(fs, "shelf.yaml"); err != nil {
		t.Fatalf("init on existing file: %v", err)
	}

	reg2, err := Load(fs, "shelf.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(reg2.Steps) != 1 {
		t.Fatalf("init should not have overwritten existing registry, got %+v", reg2.Steps)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	reg := New("data")

	s1 := snap("census/2020-01-01")
	if err := reg.Add(s1, nil); err != nil {
		t.Fatal(err)
	}
	t1 := tbl("population/2020-01-01")
	if err := reg.Add(t1, []uri.URI{s1}); err != nil {
		t.Fatal(err)
	}

	if err := reg.SaveAs(fs, "shelf.yaml"); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(fs, "shelf.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(loaded.Steps))
	}
	deps := loaded.Steps[t1]
	if len(deps) != 1 || deps[0] != s1 {
		t.Fatalf("expected %v to depend on %v, got %v", t1, s1, deps)
	}
}

func TestAddRejectsUnregisteredDependency(t *testing.T) {
	reg := New("data")
	err := reg.Add(tbl("population/2020-01-01"), []uri.URI{snap("census/2020-01-01")})
	if err == nil {
		t.Fatal("expected error adding a step whose dependency isn't registered")
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	reg := New("data")
	u := snap("census/2020-01-01")
	if err := reg.Add(u, nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(u, nil); err == nil {
		t.Fatal("expected error re-adding an existing step")
	}
}

func TestLoadRejectsCycle(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw := []byte(`
version: 1
data_dir: data
steps:
  table://a/2020-01-01: ["table://b/2020-01-01"]
  table://b/2020-01-01: ["table://a/2020-01-01"]
`)
	if err := afero.WriteFile(fs, "shelf.yaml", raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(fs, "shelf.yaml"); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestLoadRejectsUnclosedDependency(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw := []byte(`
version: 1
data_dir: data
steps:
  table://a/2020-01-01: ["snapshot://missing/2020-01-01"]
`)
	if err := afero.WriteFile(fs, "shelf.yaml", raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(fs, "shelf.yaml"); err == nil {
		t.Fatal("expected unclosed dependency to be rejected")
	}
}

func TestLatestOf(t *testing.T) {
	reg := New("data")
	old := snap("census/2019-01-01")
	newer := snap("census/2020-06-01")
	if err := reg.Add(old, nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(newer, nil); err != nil {
		t.Fatal(err)
	}

	got, err := reg.LatestOf(snap("census/latest"))
	if err != nil {
		t.Fatalf("latest_of: %v", err)
	}
	if got != newer {
		t.Fatalf("expected %v, got %v", newer, got)
	}
}

func TestLatestOfNotFound(t *testing.T) {
	reg := New("data")
	if _, err := reg.LatestOf(snap("census/latest")); err == nil {
		t.Fatal("expected not-found error when no concrete version is registered")
	}
}
