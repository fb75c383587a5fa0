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
	"go/token"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-ecsgen/internal/config"
	"github.com/ajroetker/go-ecsgen/internal/diag"
	"github.com/ajroetker/go-ecsgen/internal/discover"
	"github.com/ajroetker/go-ecsgen/internal/site"
	"github.com/ajroetker/go-ecsgen/internal/testutil"
)

const prelude = `package app

import (
	"example.com/ecs"
	"github.com/ajroetker/go-ecsgen/opt"
)

type Position struct{ X, Y float64 }

type Velocity struct{ X, Y float64 }

type Health int

var (
	total   int
	counter int
	_       = opt.Static[func()]
)

func scale() float64 { return 2 }

func tick() int { return 1 }

`

func program(body string) string { return prelude + body }

// specialize transforms the only site of src and requires a unit.
func specialize(t *testing.T, src string) (*Unit, []diag.Event, *discover.Package) {
	t.Helper()
	pkg := testutil.Check(t, src)
	sites := discover.Sites(pkg, config.Default())
	require.Len(t, sites, 1)
	var col diag.Collector
	u, err := New(config.Default(), &col).Transform(sites[0])
	require.NoError(t, err)
	require.NotNil(t, u)
	return u, col.Events(), pkg
}

// reject transforms the only site of src and requires no unit.
func reject(t *testing.T, src string) ([]diag.Event, error) {
	t.Helper()
	s := testutil.Site(t, src)
	var col diag.Collector
	u, err := New(config.Default(), &col).Transform(s)
	require.Nil(t, u)
	return col.Events(), err
}

func codes(events []diag.Event) []diag.Code {
	out := make([]diag.Code, 0, len(events))
	for _, e := range events {
		out = append(out, e.Code)
	}
	return out
}

// compile type-checks pkg with the units' substitutions applied and their
// files added.
func compile(t *testing.T, pkg *discover.Package, units ...*Unit) {
	t.Helper()
	compileWith(t, pkg, nil, units...)
}

// compileWith is compile with extra in-memory packages available to import.
func compileWith(t *testing.T, pkg *discover.Package, extra map[string]string, units ...*Unit) {
	t.Helper()
	files := make(map[string]string)
	for _, p := range pkg.Paths {
		var subs []Substitution
		for _, u := range units {
			if u.Substitution.Path == p {
				subs = append(subs, u.Substitution)
			}
		}
		files[filepath.Base(p)] = string(applySubstitutions(pkg.Sources[p], subs))
	}
	var dump strings.Builder
	for _, u := range units {
		files[u.FileName] = string(u.Source)
		dump.Write(u.Source)
	}
	fset := token.NewFileSet()
	_, err := discover.Check(fset, pkg.Path, pkg.Dir, files, testutil.NewImporter(fset, extra))
	require.NoError(t, err, "generated:\n%s", dump.String())
}

func applySubstitutions(src []byte, subs []Substitution) []byte {
	subs = slices.Clone(subs)
	slices.SortFunc(subs, func(a, b Substitution) int { return b.Start - a.Start })
	out := slices.Clone(src)
	for _, s := range subs {
		out = slices.Concat(out[:s.Start], []byte(s.Text), out[s.End:])
	}
	return out
}

// before requires a to occur in s, ahead of b.
func before(t *testing.T, s, a, b string) {
	t.Helper()
	i, j := strings.Index(s, a), strings.Index(s, b)
	require.GreaterOrEqual(t, i, 0, "missing %q in\n%s", a, s)
	require.GreaterOrEqual(t, j, 0, "missing %q in\n%s", b, s)
	require.Less(t, i, j, "%q should precede %q in\n%s", a, b, s)
}

func testutilSite(t *testing.T, src string) *site.CallbackSite {
	t.Helper()
	return testutil.Site(t, src)
}

// mustJob prepares the job of an eligible site.
func mustJob(t *testing.T, s *site.CallbackSite) *job {
	t.Helper()
	j, err := prepare(config.Default(), s, diag.Discard)
	require.NoError(t, err)
	require.NotNil(t, j)
	return j
}
