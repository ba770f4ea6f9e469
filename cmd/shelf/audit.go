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
	"context"
	"fmt"

	"github.com/pterm/pterm"

	shelfaudit "github.com/larsyencken/shelf/internal/shelf/audit"
	"github.com/larsyencken/shelf/internal/shelf/shelferr"
)

type auditCmd struct {
	Fix bool `name:"fix" help:"Repair mismatched directory-snapshot checksums instead of just reporting them."`
}

// Run verifies every snapshot's stored checksum and reports any mismatch,
// repairing it instead when --fix is set.
func (c *auditCmd) Run(ctx context.Context, p pterm.TextPrinter) error {
	_, fs, reg, st, err := openRepo(ctx)
	if err != nil {
		return err
	}

	findings, err := shelfaudit.Run(fs, st, reg.DataDir, reg.Steps, c.Fix)
	if err != nil {
		return err
	}

	for _, f := range findings {
		p.Println(fmt.Sprintf("%s: %s", f.URI.String(), f.Message))
	}

	for _, f := range findings {
		if !f.Fixed {
			return shelferr.New(shelferr.IntegrityViolation, f.URI.String(), f.Message)
		}
	}
	return nil
}
