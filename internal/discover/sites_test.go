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


package discover_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-ecsgen/internal/config"
	"github.com/ajroetker/go-ecsgen/internal/discover"
	"github.com/ajroetker/go-ecsgen/internal/testutil"
)

const sitesProgram = `package app

import (
	"example.com/ecs"
	"github.com/ajroetker/go-ecsgen/opt"
)

type Position struct{ X, Y float64 }

type System struct {
	world *ecs.World
}

// Update moves things.
//
//ecsgen:optimize
func (s *System) Update(d ecs.QueryDescription) {
	s.world.Query(d, opt.Static(func(p *Position) { p.X++ }))
	func() {
		s.world.Query(d, opt.Static(func(p *Position) { p.Y++ }))
	}()
}

//ecsgen:optimize
func Tick(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(p *Position) {}))
}

func Untouched(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(p *Position) {}))
}

type Other struct{}

func (Other) Query(a, b any) {}

//ecsgen:optimize
func NotAWorld(o Other, d ecs.QueryDescription) {
	o.Query(d, func(p *Position) {})
}
`

func TestSites(t *testing.T) {
	sites := testutil.Sites(t, sitesProgram)
	require.Len(t, sites, 3)

	type row struct {
		method  string
		ordinal int
		line    int
	}
	var got []row
	for _, s := range sites {
		got = append(got, row{s.Method, s.Ordinal, s.Pos.Line})
		assert.Equal(t, "app.go", s.File)
		assert.Equal(t, "app.go", s.Pos.Filename)
		assert.Equal(t, testutil.AppPath, s.Package.Path)
		assert.Equal(t, "app", s.Package.Name)
		assert.NotNil(t, s.Callback)
		assert.Same(t, s.Call.Args[1], s.Callback)
	}
	assert.Equal(t, []row{
		{"System.Update", 0, 18},
		{"System.Update", 1, 20},
		{"Tick", 0, 26},
	}, got)
}

func TestSitesImports(t *testing.T) {
	sites := testutil.Sites(t, sitesProgram)
	require.NotEmpty(t, sites)
	imports := sites[0].Imports
	require.Len(t, imports, 2)
	assert.Equal(t, "ecs", imports[0].Name)
	assert.Equal(t, testutil.StorePath, imports[0].Path)
	assert.False(t, imports[0].Explicit)
	assert.Equal(t, "opt", imports[1].Name)
}

func TestSitesRenamedImport(t *testing.T) {
	src := `package app

import (
	store "example.com/ecs"
	o "github.com/ajroetker/go-ecsgen/opt"
)

//ecsgen:optimize
func Tick(w store.World, d store.QueryDescription) {
	w.Query(d, o.Static(func(e store.Entity) {}))
}
`
	s := testutil.Site(t, src)
	assert.Equal(t, "Tick", s.Method)
	require.Len(t, s.Imports, 2)
	assert.Equal(t, "store", s.Imports[0].Name)
	assert.True(t, s.Imports[0].Explicit)
}

func TestHasDirective(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"directive", "//ecsgen:optimize\nfunc F() {}", true},
		{"after prose", "// F does things.\n//\n//ecsgen:optimize\nfunc F() {}", true},
		{"with argument", "//ecsgen:optimize fast\nfunc F() {}", true},
		{"spaced", "// ecsgen:optimize\nfunc F() {}", false},
		{"prefix only", "//ecsgen:optimizer\nfunc F() {}", false},
		{"none", "func F() {}", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fset := token.NewFileSet()
			f, err := parser.ParseFile(fset, "x.go", "package x\n"+tt.doc+"\n", parser.ParseComments)
			require.NoError(t, err)
			fd := f.Decls[0].(*ast.FuncDecl)
			assert.Equal(t, tt.want, discover.HasDirective(fd.Doc, config.Default().Markers.Directive))
		})
	}
}

func TestFuncName(t *testing.T) {
	src := `package x
func F() {}
func (T) M() {}
func (t *T) P() {}
func (g *G[K]) Q() {}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "x.go", src, 0)
	require.NoError(t, err)
	var got []string
	for _, d := range f.Decls {
		got = append(got, discover.FuncName(d.(*ast.FuncDecl)))
	}
	assert.Equal(t, []string{"F", "T.M", "T.P", "G.Q"}, got)
}

func TestPackageFingerprint(t *testing.T) {
	a := testutil.Check(t, sitesProgram)
	b := testutil.Check(t, sitesProgram)
	assert.Equal(t, a.Fingerprint("cfg"), b.Fingerprint("cfg"))
	assert.NotEqual(t, a.Fingerprint("cfg"), a.Fingerprint("other"))

	c := testutil.Check(t, sitesProgram+"\nvar _ = 1\n")
	assert.NotEqual(t, a.Fingerprint("cfg"), c.Fingerprint("cfg"))
}

func TestCheckReportsTypeErrors(t *testing.T) {
	fset := token.NewFileSet()
	_, err := discover.Check(fset, testutil.AppPath, testutil.AppDir,
		map[string]string{"app.go": "package app\nvar x int = \"s\"\n"},
		testutil.NewImporter(fset, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type-check")
}
