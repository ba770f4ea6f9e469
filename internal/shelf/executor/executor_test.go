package executor

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/larsyencken/shelf/internal/shelf/model"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

func TestRunDryRunPrintsOrderWithoutExecuting(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	e := New(fs, nil, "", "data", "steps/tables", ".", &out)

	a := uri.New(uri.Snapshot, "census/2020-01-01")
	b := uri.New(uri.Table, "population/2020-01-01")
	dag := model.Dag{a: nil, b: {a}}

	if err := e.Run(context.Background(), dag, true); err != nil {
		t.Fatalf("dry run: %v", err)
	}

	printed := out.String()
	if !strings.Contains(printed, a.String()) || !strings.Contains(printed, b.String()) {
		t.Fatalf("expected both steps printed, got %q", printed)
	}
	if strings.Index(printed, a.String()) > strings.Index(printed, b.String()) {
		t.Fatalf("expected snapshot before table in dry-run order, got %q", printed)
	}
}

func TestRunEmptyDagIsNoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	e := New(fs, nil, "", "data", "steps/tables", ".", &out)

	if err := e.Run(context.Background(), model.Dag{}, false); err != nil {
		t.Fatalf("expected no error running an empty plan, got %v", err)
	}
}
