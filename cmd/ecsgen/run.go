// Copyright 2025 go-ecsgen Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-ecsgen/internal/diag"
	"github.com/ajroetker/go-ecsgen/internal/discover"
	"github.com/ajroetker/go-ecsgen/internal/overlay"
	"github.com/ajroetker/go-ecsgen/internal/rewrite"
)

// result is the outcome of one command run.
type result struct {
	Units    []*rewrite.Unit
	Events   []diag.Event
	Manifest string
}

func newGenCommand(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "gen [packages]",
		Short: "Write specialized units and a build overlay",
		Long: `Specialize every eligible query site of the matched packages and write
the generated files, rewritten copies of the calling files, and overlay.json
into the output directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(cmd, opts, out, patterns(args))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".ecsgen", "output directory")
	return cmd
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [packages]",
		Short: "Report diagnostics without writing files",
		Long: `Run the specializer over the matched packages and report what it would
do. The exit status is non-zero when any error diagnostic was reported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, patterns(args))
		},
	}
}

func patterns(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

func runGen(cmd *cobra.Command, opts *rootOptions, out string, pats []string) error {
	ctx := cmd.Context()
	var events diag.Collector
	sink := opts.sink(&events)

	pkgs, units, err := specialize(ctx, opts, pats, sink)
	if err != nil {
		return err
	}
	res := &result{Units: units}
	if len(units) > 0 {
		o, err := overlay.Build(units, overlay.SourceReader(pkgs))
		if err != nil {
			return fmt.Errorf("build overlay: %w", err)
		}
		if res.Manifest, err = o.Write(out); err != nil {
			return fmt.Errorf("write overlay: %w", err)
		}
		sink.Report(diag.Event{
			Severity: diag.Info,
			Code:     diag.CodeBuildNotWired,
			Message:  fmt.Sprintf("%d query site(s) specialized; build with -overlay %s", len(units), res.Manifest),
		})
	}
	res.Events = events.Events()
	return finish(cmd, opts, res)
}

func runCheck(cmd *cobra.Command, opts *rootOptions, pats []string) error {
	ctx := cmd.Context()
	var events diag.Collector
	sink := opts.sink(&events)

	_, units, err := specialize(ctx, opts, pats, sink)
	if err != nil {
		return err
	}
	if len(units) > 0 {
		sink.Report(diag.Event{
			Severity: diag.Info,
			Code:     diag.CodeBuildNotWired,
			Message:  fmt.Sprintf("%d query site(s) can be specialized; the build must use the overlay written by ecsgen gen", len(units)),
		})
	}
	return finish(cmd, opts, &result{Units: units, Events: events.Events()})
}

// sink reports to c and, when verbose, to the logger.
func (o *rootOptions) sink(c *diag.Collector) diag.Sink {
	if !o.verbose {
		return c
	}
	return diag.Tee(c, diag.ZapSink{Logger: o.logger})
}

func specialize(ctx context.Context, opts *rootOptions, pats []string, sink diag.Sink) ([]*discover.Package, []*rewrite.Unit, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	pkgs, err := opts.load(ctx, opts.dir, opts.tags, pats)
	if err != nil {
		return nil, nil, err
	}
	engine := rewrite.New(opts.cfg, sink,
		rewrite.WithMemo(opts.memo),
		rewrite.WithConcurrency(opts.concurrency))
	var units []*rewrite.Unit
	for _, pkg := range pkgs {
		u, err := engine.RunPackage(ctx, pkg)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, u...)
	}
	return pkgs, units, nil
}

// finish prints res and fails when it holds error diagnostics.
func finish(cmd *cobra.Command, opts *rootOptions, res *result) error {
	if err := render(cmd.OutOrStdout(), opts.format, res); err != nil {
		return err
	}
	n := 0
	for _, e := range res.Events {
		if e.Severity == diag.Error {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d error diagnostic(s)", n)
	}
	return nil
}
