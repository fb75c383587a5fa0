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


// Package testutil type-checks in-memory test programs against a small
// columnar store package and the real marker package.
package testutil

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-ecsgen/internal/config"
	"github.com/ajroetker/go-ecsgen/internal/discover"
	"github.com/ajroetker/go-ecsgen/internal/site"
)

const (
	// StorePath is the import path of the fake store.
	StorePath = "example.com/ecs"
	// AppPath is the import path test programs are checked under.
	AppPath = "example.com/app"
	// AppDir is the directory test programs pretend to live in.
	AppDir = "/src/app"
)

// StoreSource is a minimal store honouring the iteration contract the
// generated loops call into.
const StoreSource = `package ecs

import "unsafe"

type Entity struct {
	ID      uint32
	Version uint32
}

type QueryDescription struct {
	All []string
}

type Chunk struct {
	Entities []Entity
	Columns  []unsafe.Pointer
}

func (c *Chunk) Indices() func(yield func(int) bool) {
	return func(yield func(int) bool) {
		for i := range c.Entities {
			if !yield(i) {
				return
			}
		}
	}
}

func (c *Chunk) Entity(index int) Entity { return c.Entities[index] }

type World struct {
	chunks []*Chunk
}

func (w *World) Query(description QueryDescription, fn any) {}

func (w *World) Chunks(description QueryDescription) func(yield func(*Chunk) bool) {
	return func(yield func(*Chunk) bool) {
		for _, c := range w.chunks {
			if !yield(c) {
				return
			}
		}
	}
}

type Columns2[A, B any] struct {
	T0 *A
	T1 *B
}

type Columns3[A, B, C any] struct {
	T0 *A
	T1 *B
	T2 *C
}

func GetFirst[A any](c *Chunk) *A { return (*A)(c.Columns[0]) }

func GetFirst2[A, B any](c *Chunk) Columns2[A, B] {
	return Columns2[A, B]{(*A)(c.Columns[0]), (*B)(c.Columns[1])}
}

func GetFirst3[A, B, C any](c *Chunk) Columns3[A, B, C] {
	return Columns3[A, B, C]{(*A)(c.Columns[0]), (*B)(c.Columns[1]), (*C)(c.Columns[2])}
}
`

// Importer resolves the fake store, the marker package, any extra
// in-memory packages, and falls back to the standard library sources.
type Importer struct {
	fset     *token.FileSet
	sources  map[string][]string
	mu       sync.Mutex
	cache    map[string]*types.Package
	fallback types.Importer
}

// NewImporter returns an importer over fset. extra maps import paths to
// package sources.
func NewImporter(fset *token.FileSet, extra map[string]string) *Importer {
	imp := &Importer{
		fset: fset,
		sources: map[string][]string{
			StorePath:             {StoreSource},
			config.MarkersPackage: markerSources(),
		},
		cache:    make(map[string]*types.Package),
		fallback: importer.ForCompiler(fset, "source", nil),
	}
	for path, src := range extra {
		imp.sources[path] = []string{src}
	}
	return imp
}

func (imp *Importer) Import(path string) (*types.Package, error) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.load(path)
}

func (imp *Importer) load(path string) (*types.Package, error) {
	if pkg, ok := imp.cache[path]; ok {
		return pkg, nil
	}
	if path == "unsafe" {
		return types.Unsafe, nil
	}
	srcs, ok := imp.sources[path]
	if !ok {
		return imp.fallback.Import(path)
	}
	var files []*ast.File
	for i, src := range srcs {
		name := fmt.Sprintf("%s/%d.go", path, i)
		f, err := parser.ParseFile(imp.fset, name, src, parser.SkipObjectResolution)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	conf := types.Config{Importer: importerFunc(imp.load)}
	pkg, err := conf.Check(path, imp.fset, files, nil)
	if err != nil {
		return nil, err
	}
	imp.cache[path] = pkg
	return pkg, nil
}

type importerFunc func(string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) { return f(path) }

var markerSources = sync.OnceValue(func() []string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("testutil: cannot locate sources")
	}
	dir := filepath.Join(filepath.Dir(file), "..", "..", "opt")
	entries, err := os.ReadDir(dir)
	if err != nil {
		panic(err)
	}
	var srcs []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			panic(err)
		}
		srcs = append(srcs, string(data))
	}
	slices.Sort(srcs)
	return srcs
})

// Check type-checks a single-file program named app.go.
func Check(t testing.TB, src string) *discover.Package {
	t.Helper()
	return CheckFiles(t, map[string]string{"app.go": src})
}

// CheckFiles type-checks a multi-file program.
func CheckFiles(t testing.TB, files map[string]string) *discover.Package {
	t.Helper()
	fset := token.NewFileSet()
	pkg, err := discover.Check(fset, AppPath, AppDir, files, NewImporter(fset, nil))
	require.NoError(t, err)
	return pkg
}

// Sites type-checks src and returns its query sites under the default
// configuration.
func Sites(t testing.TB, src string) []*site.CallbackSite {
	t.Helper()
	return discover.Sites(Check(t, src), config.Default())
}

// Site is Sites for programs with exactly one query site.
func Site(t testing.TB, src string) *site.CallbackSite {
	t.Helper()
	sites := Sites(t, src)
	require.Len(t, sites, 1)
	return sites[0]
}
