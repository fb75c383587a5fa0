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
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajroetker/go-ecsgen/internal/cache"
	"github.com/ajroetker/go-ecsgen/internal/config"
	"github.com/ajroetker/go-ecsgen/internal/discover"
	"github.com/ajroetker/go-ecsgen/internal/rewrite"
)

var validFormats = []string{"text", "json"}

// loadFunc loads the packages matching patterns.
type loadFunc func(ctx context.Context, dir string, tags, patterns []string) ([]*discover.Package, error)

func loadPackages(ctx context.Context, dir string, tags, patterns []string) ([]*discover.Package, error) {
	l := &discover.Loader{Dir: dir, Tags: tags}
	return l.Load(ctx, patterns...)
}

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath  string
	dir         string
	tags        []string
	format      string
	verbose     bool
	concurrency int

	load   loadFunc
	memo   *cache.Memo[*rewrite.PackageResult]
	logger *zap.Logger
	cfg    *config.Config
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(loadPackages)
}

func newRootCommandWith(load loadFunc) *cobra.Command {
	opts := &rootOptions{
		load: load,
		memo: cache.New[*rewrite.PackageResult](),
	}

	cmd := &cobra.Command{
		Use:   "ecsgen",
		Short: "Specialize ECS bulk queries into chunk loops",
		Long: `ecsgen finds bulk-query calls inside functions marked //ecsgen:optimize
and replaces each opted-in callback with a generated loop over the store's
chunks and records. Source files are never edited; the result is a build
overlay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
			}
			cfg := config.Default()
			if opts.configPath != "" {
				var err error
				if cfg, err = config.Load(opts.configPath); err != nil {
					return err
				}
			}
			opts.cfg = cfg
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose)
			rewrite.SetLogger(opts.logger)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&opts.dir, "dir", "", "directory to load packages from")
	flags.StringSliceVar(&opts.tags, "tags", nil, "build tags")
	flags.StringVar(&opts.format, "format", "text", "output format (text|json)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress and diagnostics to stderr")
	flags.IntVarP(&opts.concurrency, "jobs", "j", 0, "sites specialized at once (default GOMAXPROCS)")

	cmd.AddCommand(newGenCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	return cmd
}

// newLogger logs to w: debug and up when verbose, warnings and up otherwise.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	encoder := zap.NewProductionEncoderConfig()
	if verbose {
		level = zapcore.DebugLevel
		encoder = zap.NewDevelopmentEncoderConfig()
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoder), zapcore.AddSync(w), level)
	return zap.New(core)
}
