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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-ecsgen/internal/cache"
	"github.com/ajroetker/go-ecsgen/internal/config"
	"github.com/ajroetker/go-ecsgen/internal/diag"
	"github.com/ajroetker/go-ecsgen/internal/discover"
	"github.com/ajroetker/go-ecsgen/internal/site"
	"github.com/ajroetker/go-ecsgen/internal/testutil"
)

var systems = program(`
type System struct{ world *ecs.World }

//ecsgen:optimize
func (s *System) Update(d ecs.QueryDescription) {
	s.world.Query(d, opt.Static(func(p *Position, v *Velocity) {
		p.X += v.X
		p.Y += v.Y
	}))
	s.world.Query(d, opt.Static(func(e ecs.Entity) {
		total += int(e.ID)
	}))
	s.world.Query(d, func(p *Position) { p.X = 0 })
}

//ecsgen:optimize
func Reset(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(h *Health) { *h = 100 }))
}
`)

func TestRun(t *testing.T) {
	pkg := testutil.Check(t, systems)
	sites := discover.Sites(pkg, config.Default())
	require.Len(t, sites, 4)

	var col diag.Collector
	e := New(config.Default(), &col, WithConcurrency(2))
	units, err := e.Run(context.Background(), sites)
	require.NoError(t, err)
	require.Len(t, units, 3)

	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name[:strings.IndexByte(u.Name, '_')]
	}
	assert.Equal(t, []string{"ecsgenSystemUpdate0", "ecsgenSystemUpdate1", "ecsgenReset0"}, names)
	assert.NotEqual(t, units[0].ID, units[1].ID)
	assert.Equal(t, 3, e.Registry().Len())
	assert.Equal(t, []diag.Code{diag.CodeNotStatic}, codes(col.Events()))

	compile(t, pkg, units...)
}

func TestRunIsDeterministic(t *testing.T) {
	pkg := testutil.Check(t, systems)
	sites := discover.Sites(pkg, config.Default())

	first, err := New(config.Default(), nil).Run(context.Background(), sites)
	require.NoError(t, err)
	second, err := New(config.Default(), nil, WithConcurrency(1)).Run(context.Background(), sites)
	require.NoError(t, err)

	// Reparsing yields fresh syntax; the output must not depend on it.
	again := testutil.Check(t, systems)
	third, err := New(config.Default(), nil).Run(context.Background(), discover.Sites(again, config.Default()))
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
	assert.Empty(t, cmp.Diff(first, third))
}

func TestRunCancelled(t *testing.T) {
	pkg := testutil.Check(t, systems)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(config.Default(), nil).Run(ctx, discover.Sites(pkg, config.Default()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPackageMemo(t *testing.T) {
	memo := cache.New[*PackageResult]()
	run := func(pkg *discover.Package) ([]*Unit, []diag.Event) {
		var col diag.Collector
		units, err := New(config.Default(), &col, WithMemo(memo)).RunPackage(context.Background(), pkg)
		require.NoError(t, err)
		return units, col.Events()
	}

	units, events := run(testutil.Check(t, systems))
	require.Len(t, units, 3)
	require.Len(t, events, 1)

	replayed, again := run(testutil.Check(t, systems))
	assert.Equal(t, units, replayed)
	assert.Equal(t, events, again)
	hits, misses := memo.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	edited := strings.Replace(systems, "*h = 100", "*h = 50", 1)
	run(testutil.Check(t, edited))
	_, misses = memo.Stats()
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 2, memo.Len())
}

func TestRunPackageMultipleFiles(t *testing.T) {
	pkg := testutil.CheckFiles(t, map[string]string{
		"app.go": systems,
		"more.go": `package app

import (
	"example.com/ecs"
	"github.com/ajroetker/go-ecsgen/opt"
)

//ecsgen:optimize
func Update(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(p *Position, v *Velocity) {
		p.X += v.X
		p.Y += v.Y
	}))
}
`,
	})
	units, err := New(config.Default(), nil).RunPackage(context.Background(), pkg)
	require.NoError(t, err)
	require.Len(t, units, 4)

	files := map[string]bool{}
	ids := map[string]bool{}
	for _, u := range units {
		files[u.Site.File] = true
		ids[u.ID] = true
		assert.Equal(t, testutil.AppDir, u.Dir)
	}
	assert.Equal(t, map[string]bool{"app.go": true, "more.go": true}, files)
	assert.Len(t, ids, 4)
	compile(t, pkg, units...)
}

func TestTransformRecoversPanics(t *testing.T) {
	s := *testutil.Site(t, program(`
//ecsgen:optimize
func Run(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(p *Position) { p.X++ }))
}
`))
	s.Types = nil

	var col diag.Collector
	u, err := New(config.Default(), &col).Transform(&s)
	assert.Nil(t, u)
	var abort *diag.Abort
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, diag.CodeInternal, abort.Event.Code)
	assert.Equal(t, s.Pos, abort.Event.Pos)
	assert.Equal(t, []diag.Code{diag.CodeInternal}, codes(col.Events()))
}

func TestRunReportsCollisions(t *testing.T) {
	s := testutil.Site(t, program(`
//ecsgen:optimize
func Run(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(p *Position) { p.X++ }))
}
`))
	reg := NewRegistry()
	other := unitAt(ID(s.Key()), "elsewhere.go", 1, 0)
	require.NoError(t, reg.Register(other))

	var col diag.Collector
	units, err := New(config.Default(), &col, WithRegistry(reg)).Run(context.Background(), []*site.CallbackSite{s})
	require.NoError(t, err)
	assert.Empty(t, units)
	assert.Equal(t, []diag.Code{diag.CodeIdentityCollision}, codes(col.Events()))
	got, _ := reg.Lookup(other.Site)
	assert.Same(t, other, got)
}
