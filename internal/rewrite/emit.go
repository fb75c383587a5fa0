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
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"go/types"
	"path"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/ajroetker/go-ecsgen/internal/site"
)

// Unit is the generated code for one site.
type Unit struct {
	ID       string
	Name     string // entry function
	FileName string // base name of the generated file
	Dir      string // directory of the site's file, where FileName goes
	Package  site.PackageRef
	Site     site.Key
	Source   []byte

	Substitution Substitution
}

// Substitution redirects a query call to its entry function by replacing
// Source[Start:End] of the file at Path, the text "recv.Query(", with Text.
type Substitution struct {
	Path  string
	Start int
	End   int
	Text  string
}

// emit assembles the unit file around the entry function and prunes the
// imports it does not use.
func (j *job) emit(fn []byte) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by %s. DO NOT EDIT.\n\n", j.cfg.Output.Generator)
	fmt.Fprintf(&b, "package %s\n\n", j.site.Package.Name)
	imports := j.imports.sorted()
	if len(imports) > 0 {
		b.WriteString("import (\n")
		for _, e := range imports {
			if e.Dot && !j.dotUsed(e.Path) {
				continue
			}
			fmt.Fprintf(&b, "%s\n", e.spec())
		}
		b.WriteString(")\n\n")
	}
	b.Write(fn)

	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format unit: %w\n%s", err, b.Bytes())
	}
	return pruneImports(src)
}

// pruneImports deletes imports whose name no selector in the file uses.
func pruneImports(src []byte) ([]byte, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "unit.go", src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse unit: %w", err)
	}
	used := make(map[string]bool)
	ast.Inspect(f, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok {
				used[id.Name] = true
			}
		}
		return true
	})
	changed := false
	for _, group := range astutil.Imports(fset, f) {
		for _, spec := range group {
			p, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				return nil, fmt.Errorf("import %s: %w", spec.Path.Value, err)
			}
			name := ""
			if spec.Name != nil {
				name = spec.Name.Name
			}
			if name == "." || name == "_" {
				continue
			}
			ref := name
			if ref == "" {
				ref = importName(p)
			}
			if !used[ref] {
				changed = astutil.DeleteNamedImport(fset, f, name, p) || changed
			}
		}
	}
	if !changed {
		return src, nil
	}
	var out bytes.Buffer
	if err := format.Node(&out, fset, f); err != nil {
		return nil, fmt.Errorf("print unit: %w", err)
	}
	return format.Source(out.Bytes())
}

// importName is the name an unnamed import of p is referred to by. Unnamed
// specs are only emitted when the package name equals the last path
// element.
func importName(p string) string {
	return path.Base(p)
}

// dotUsed reports whether the callback refers to a dot-imported package.
func (j *job) dotUsed(pkgPath string) bool {
	sels := make(map[*ast.Ident]bool)
	used := false
	ast.Inspect(j.lit, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr:
			sels[n.Sel] = true
		case *ast.Ident:
			if !sels[n] && j.refersTo(n, pkgPath) {
				used = true
			}
		}
		return !used
	})
	return used
}

func (j *job) refersTo(n ast.Node, pkgPath string) bool {
	id, ok := n.(*ast.Ident)
	if !ok {
		return false
	}
	obj := j.types.ObjectOf(id)
	if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != pkgPath {
		return false
	}
	_, isPkg := obj.(*types.PkgName)
	return !isPkg && obj.Parent() == obj.Pkg().Scope()
}

// substitution computes the edit that sends the call to the entry function.
func (j *job) substitution(name string, p *plan) (Substitution, error) {
	call := j.site.Call
	file := j.site.Fset.File(call.Pos())
	if file == nil {
		return Substitution{}, fmt.Errorf("no file for %s", j.site.Key())
	}
	var recv bytes.Buffer
	if err := printer.Fprint(&recv, j.site.Fset, j.sel.X); err != nil {
		return Substitution{}, fmt.Errorf("print receiver: %w", err)
	}
	amp := ""
	if p.addrOf {
		amp = "&"
	}
	return Substitution{
		Path:  j.site.Path,
		Start: file.Offset(call.Pos()),
		End:   file.Offset(call.Lparen) + 1,
		Text:  fmt.Sprintf("%s(%s%s, ", name, amp, recv.String()),
	}, nil
}
