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

// Command shelf builds datasets as a content-addressed DAG of snapshot and
// table steps.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/pterm/pterm"
)

type cli struct {
	Pretty bool `name:"pretty" help:"Pretty print output."`

	Init         initCmd         `cmd:"" help:"Create shelf.yaml if it does not already exist."`
	Snapshot     snapshotCmd     `cmd:"" help:"Register a file or directory as a content-addressed snapshot."`
	Run          runCmd          `cmd:"" help:"Plan and execute dirty steps."`
	List         listCmd         `cmd:"" help:"List registered step URIs."`
	Audit        auditCmd        `cmd:"" help:"Verify (and optionally repair) stored checksums."`
	ExportDuckDB exportDuckDBCmd `cmd:"" name:"export-duckdb" help:"Load every table step into a DuckDB database file."`
	NewTable     newTableCmd     `cmd:"" name:"new-table" help:"Register an empty table step."`
}

// AfterApply configures global output styling before any command runs.
func (c *cli) AfterApply(ctx *kong.Context) error { // nolint:unparam
	if !c.Pretty {
		pterm.DisableStyling()
	}
	ctx.BindTo(pterm.DefaultBasicText.WithWriter(ctx.Stdout), (*pterm.TextPrinter)(nil))
	return nil
}

func main() {
	c := cli{}

	parser := kong.Must(&c,
		kong.Name("shelf"),
		kong.Description("A content-addressed dataset build tool."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	if len(os.Args) == 1 {
		_, err := parser.Parse([]string{"--help"})
		parser.FatalIfErrorf(err)
		return
	}

	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		defer cancel()
		<-sigCh
		kongCtx.Exit(1)
	}()

	kongCtx.BindTo(ctx, (*context.Context)(nil))
	kongCtx.FatalIfErrorf(kongCtx.Run())
}
