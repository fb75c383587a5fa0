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


package rewrite

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"path/filepath"
	"runtime"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-ecsgen/internal/cache"
	"github.com/ajroetker/go-ecsgen/internal/config"
	"github.com/ajroetker/go-ecsgen/internal/diag"
	"github.com/ajroetker/go-ecsgen/internal/discover"
	"github.com/ajroetker/go-ecsgen/internal/site"
)

// PackageResult is the memoized outcome of one package snapshot.
type PackageResult struct {
	Units  []*Unit
	Events []diag.Event
}

// Engine runs the specialization pipeline over sites.
type Engine struct {
	cfg      *config.Config
	sink     diag.Sink
	registry *Registry
	memo     *cache.Memo[*PackageResult]
	limit    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMemo shares package results across runs with equal fingerprints.
func WithMemo(m *cache.Memo[*PackageResult]) Option {
	return func(e *Engine) { e.memo = m }
}

// WithRegistry registers units into r instead of a private registry.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithConcurrency bounds the number of sites processed at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// New returns an engine reporting diagnostics to sink.
func New(cfg *config.Config, sink diag.Sink, opts ...Option) *Engine {
	if sink == nil {
		sink = diag.Discard
	}
	e := &Engine{
		cfg:      cfg,
		sink:     sink,
		registry: NewRegistry(),
		limit:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry units are recorded in.
func (e *Engine) Registry() *Registry { return e.registry }

// Transform specializes one site. It returns (nil, nil) when the site opted
// out and a *diag.Abort when it was rejected; the abort's event has already
// been reported. Transform does not register the unit.
func (e *Engine) Transform(s *site.CallbackSite) (*Unit, error) {
	return e.transform(s, e.sink)
}

func (e *Engine) transform(s *site.CallbackSite, sink diag.Sink) (u *Unit, err error) {
	defer func() {
		if r := recover(); r != nil {
			u, err = nil, internalAbort(s, sink, fmt.Errorf("panic: %v", r))
		}
	}()
	u, err = e.pipeline(s, sink)
	if err != nil {
		var abort *diag.Abort
		if !errors.As(err, &abort) {
			err = internalAbort(s, sink, err)
		}
		return nil, err
	}
	return u, nil
}

func internalAbort(s *site.CallbackSite, sink diag.Sink, err error) error {
	ev := diag.Event{
		Severity: diag.Error,
		Code:     diag.CodeInternal,
		Message:  fmt.Sprintf("internal error while specializing: %v", err),
		Pos:      s.Pos,
	}
	sink.Report(ev)
	return &diag.Abort{Event: ev}
}

// prepare resolves the query call and runs the filter. It returns a nil job
// when the site opted out.
func prepare(cfg *config.Config, s *site.CallbackSite, sink diag.Sink) (*job, error) {
	j, err := newJob(cfg, s, sink)
	if err != nil {
		return nil, err
	}
	lit, err := j.filter()
	if err != nil || lit == nil {
		return nil, err
	}
	j.lit = lit
	j.reserved = identNames(lit)
	j.imports = newImportSet(s.Package.Path, j.scope, j.shadowNames(lit), s.Imports)
	return j, nil
}

func (e *Engine) pipeline(s *site.CallbackSite, sink diag.Sink) (*Unit, error) {
	j, err := prepare(e.cfg, s, sink)
	if err != nil || j == nil {
		return nil, err
	}
	lit := j.lit

	params, err := j.classify(lit)
	if err != nil {
		return nil, err
	}
	hoists := j.extract(lit)
	p, err := j.plan(params, hoists)
	if err != nil {
		return nil, err
	}
	body := j.normalize(lit, hoists, p.names)

	id := ID(s.Key())
	name := EntryName(e.cfg.Output.FuncPrefix, s.Method, s.Ordinal, id)
	fn, err := j.synthesize(name, p, body)
	if err != nil {
		return nil, err
	}
	src, err := j.emit(fn)
	if err != nil {
		return nil, err
	}
	sub, err := j.substitution(name, p)
	if err != nil {
		return nil, err
	}
	return &Unit{
		ID:           id,
		Name:         name,
		FileName:     FileName(e.cfg.Output.FilePrefix, id),
		Dir:          filepath.Dir(s.Path),
		Package:      s.Package,
		Site:         s.Key(),
		Source:       src,
		Substitution: sub,
	}, nil
}

// Run specializes sites in parallel and registers the resulting units in
// site order. Rejected sites are reported and skipped; the error is non-nil
// only if ctx is cancelled.
func (e *Engine) Run(ctx context.Context, sites []*site.CallbackSite) ([]*Unit, error) {
	units, err := e.run(ctx, sites, e.sink)
	if err != nil {
		return nil, err
	}
	return e.register(units), nil
}

func (e *Engine) run(ctx context.Context, sites []*site.CallbackSite, sink diag.Sink) ([]*Unit, error) {
	results := make([]*Unit, len(sites))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, s := range sites {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			u, _ := e.transform(s, sink)
			results[i] = u
			if u != nil {
				Logger().Debug("specialized site",
					zap.Stringer("site", s.Key()),
					zap.String("func", u.Name))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lo.Compact(results), nil
}

// register records units in order, dropping any whose identifier collides
// with an already registered site.
func (e *Engine) register(units []*Unit) []*Unit {
	out := make([]*Unit, 0, len(units))
	for _, u := range units {
		if err := e.registry.Register(u); err != nil {
			e.sink.Report(diag.Event{
				Severity: diag.Error,
				Code:     diag.CodeIdentityCollision,
				Message:  err.Error(),
				Pos:      token.Position{Filename: u.Site.File, Line: u.Site.Line, Column: u.Site.Column},
			})
			continue
		}
		out = append(out, u)
	}
	return out
}

// RunPackage discovers and specializes the sites of pkg. With a memo,
// a snapshot whose fingerprint was seen before is not recomputed; its
// diagnostics are reported again so every run observes the same stream.
func (e *Engine) RunPackage(ctx context.Context, pkg *discover.Package) ([]*Unit, error) {
	compute := func() (*PackageResult, error) {
		var events diag.Collector
		units, err := e.run(ctx, discover.Sites(pkg, e.cfg), &events)
		if err != nil {
			return nil, err
		}
		return &PackageResult{Units: units, Events: events.Events()}, nil
	}

	var (
		res    *PackageResult
		cached bool
		err    error
	)
	if e.memo != nil {
		res, cached, err = e.memo.Do(pkg.Fingerprint(e.cfg.Fingerprint()), compute)
	} else {
		res, err = compute()
	}
	if err != nil {
		return nil, fmt.Errorf("specialize %s: %w", pkg.Path, err)
	}
	for _, ev := range res.Events {
		e.sink.Report(ev)
	}
	Logger().Debug("specialized package",
		zap.String("package", pkg.Path),
		zap.Bool("cached", cached),
		zap.Int("units", len(res.Units)),
		zap.Int("diagnostics", len(res.Events)))
	return e.register(res.Units), nil
}
