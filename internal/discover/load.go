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

// Package discover is the discovery feed: it loads and type-checks Go
// packages and yields the bulk-query call sites inside functions that opted
// in with the optimize directive.
package discover

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Package is one type-checked package ready for site discovery.
type Package struct {
	Path string
	Name string
	Dir  string
	// Root is the directory file identities are made relative to, usually
	// the module root.
	Root string

	Fset    *token.FileSet
	Files   []*ast.File
	Paths   []string // absolute path of each entry in Files
	Sources map[string][]byte
	Types   *types.Package
	Info    *types.Info
}

// FileIdentity returns the stable identity of the i-th file.
func (p *Package) FileIdentity(i int) string {
	return fileIdentity(p.Root, p.Paths[i])
}

// Fingerprint digests the package's sources together with salt (usually a
// configuration fingerprint). Two snapshots with equal fingerprints yield the
// same sites.
func (p *Package) Fingerprint(salt string) string {
	h := sha256.New()
	h.Write([]byte("ecsgen/package/v1"))
	h.Write([]byte{0})
	h.Write([]byte(salt))
	h.Write([]byte{0})
	h.Write([]byte(p.Path))
	for i, path := range p.Paths {
		h.Write([]byte{0})
		h.Write([]byte(p.FileIdentity(i)))
		h.Write([]byte{0})
		h.Write(p.Sources[path])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Loader loads packages with golang.org/x/tools/go/packages.
type Loader struct {
	Dir  string   // working directory for the go command
	Tags []string // build tags
}

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo |
	packages.NeedImports | packages.NeedModule

// Load loads the packages matching patterns. Any package error fails the
// whole load: specializing a package that does not type-check would only
// produce noise.
func (l *Loader) Load(ctx context.Context, patterns ...string) ([]*Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     l.Dir,
	}
	if len(l.Tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(l.Tags, ",")}
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var errs []error
	for _, p := range pkgs {
		for _, e := range p.Errors {
			errs = append(errs, fmt.Errorf("%s: %s", p.PkgPath, e.Msg))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := make([]*Package, 0, len(pkgs))
	for _, p := range pkgs {
		pkg, err := fromPackages(p, l.Dir)
		if err != nil {
			return nil, err
		}
		out = append(out, pkg)
	}
	slices.SortFunc(out, func(a, b *Package) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out, nil
}

func fromPackages(p *packages.Package, dir string) (*Package, error) {
	root := dir
	if p.Module != nil && p.Module.Dir != "" {
		root = p.Module.Dir
	}
	pkg := &Package{
		Path:    p.PkgPath,
		Name:    p.Name,
		Root:    root,
		Fset:    p.Fset,
		Sources: make(map[string][]byte),
		Types:   p.Types,
		Info:    p.TypesInfo,
	}
	for i, f := range p.Syntax {
		if i >= len(p.CompiledGoFiles) {
			break
		}
		path := p.CompiledGoFiles[i]
		if !strings.HasSuffix(path, ".go") {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		pkg.Files = append(pkg.Files, f)
		pkg.Paths = append(pkg.Paths, path)
		pkg.Sources[path] = src
		if pkg.Dir == "" {
			pkg.Dir = filepath.Dir(path)
		}
	}
	return pkg, nil
}

// Check parses and type-checks a package held in memory. files maps base
// file names to sources; they are placed under dir, which is also the root
// of file identities.
func Check(fset *token.FileSet, path, dir string, files map[string]string, imp types.Importer) (*Package, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	pkg := &Package{
		Path:    path,
		Dir:     dir,
		Root:    dir,
		Fset:    fset,
		Sources: make(map[string][]byte),
	}
	for _, name := range names {
		full := filepath.Join(dir, name)
		f, err := parser.ParseFile(fset, full, files[name], parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pkg.Files = append(pkg.Files, f)
		pkg.Paths = append(pkg.Paths, full)
		pkg.Sources[full] = []byte(files[name])
	}

	info := NewInfo()
	conf := types.Config{Importer: imp}
	tpkg, err := conf.Check(path, fset, pkg.Files, info)
	if err != nil {
		return nil, fmt.Errorf("type-check %s: %w", path, err)
	}
	pkg.Name = tpkg.Name()
	pkg.Types = tpkg
	pkg.Info = info
	return pkg, nil
}

// NewInfo returns a types.Info recording everything the rewrite stages ask
// about.
func NewInfo() *types.Info {
	return &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Scopes:     make(map[ast.Node]*types.Scope),
		Instances:  make(map[*ast.Ident]types.Instance),
	}
}

func fileIdentity(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
