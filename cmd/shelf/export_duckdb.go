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

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/pterm/pterm"

	"github.com/larsyencken/shelf/internal/shelf/shelferr"
	"github.com/larsyencken/shelf/internal/shelf/table"
	"github.com/larsyencken/shelf/internal/shelf/uri"
)

type exportDuckDBCmd struct {
	DBFile string `arg:"" help:"Path to the DuckDB database file to load tables into."`
}

// Run loads every table:// step's parquet output into db-file, under a
// name sanitized so path separators become underscores, the
// version's dashes are removed, and the extension is stripped.
func (c *exportDuckDBCmd) Run(ctx context.Context, p pterm.TextPrinter) error {
	sctx, _, reg, _, err := openRepo(ctx)
	if err != nil {
		return err
	}

	var tables []uri.URI
	for u := range reg.Steps {
		if u.Scheme == uri.Table {
			tables = append(tables, u)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Less(tables[j]) })

	var script bytes.Buffer
	seen := map[string]uri.URI{}
	for _, u := range tables {
		name := sanitizeTableName(u.Path)
		if prior, ok := seen[name]; ok {
			return shelferr.Newf(shelferr.InvariantViolation, u.String(), "sanitized table name %q collides with %q", name, prior.String())
		}
		seen[name] = u

		outputPath := table.OutputPath(sctx.DefaultDir, u.Path)
		fmt.Fprintf(&script, "CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet('%s');\n", name, outputPath)
	}

	cmd := exec.CommandContext(ctx, "duckdb", c.DBFile)
	cmd.Stdin = &script
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return shelferr.Wrap(err, shelferr.ExternalFailure, "", "duckdb export failed")
	}

	p.Println(fmt.Sprintf("loaded %d tables into %s", len(tables), c.DBFile))
	return nil
}

// sanitizeTableName maps a table step path (e.g. "income/2020-01-01") to a
// safe SQL identifier: slashes become underscores and the version's dashes
// are removed, so "income/2020-01-01" becomes "income_20200101".
func sanitizeTableName(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if uri.IsVersionToken(part) {
			parts[i] = strings.ReplaceAll(part, "-", "")
		}
	}
	return strings.Join(parts, "_")
}
