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

package discover

import (
	"go/ast"
	"go/types"
	"path"
	"strconv"
	"strings"

	"github.com/ajroetker/go-ecsgen/internal/config"
	"github.com/ajroetker/go-ecsgen/internal/site"
)

// Sites returns the query call sites of pkg in source order. Only functions
// whose doc comment carries the optimize directive are searched; inside
// them every call of the world type's query method with two arguments is a
// site, including calls nested in function literals. Ordinals count sites
// per function.
func Sites(pkg *Package, cfg *config.Config) []*site.CallbackSite {
	resolver := site.InfoResolver{Info: pkg.Info}
	ref := site.PackageRef{Path: pkg.Path, Name: pkg.Name}

	var sites []*site.CallbackSite
	for i, f := range pkg.Files {
		identity := pkg.FileIdentity(i)
		imports := fileImports(f, pkg.Info)

		for _, decl := range f.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Body == nil || !HasDirective(fd.Doc, cfg.Markers.Directive) {
				continue
			}
			method := FuncName(fd)
			ordinal := 0
			ast.Inspect(fd.Body, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok || !isQueryCall(call, pkg.Info, cfg) {
					return true
				}
				pos := pkg.Fset.Position(call.Pos())
				pos.Filename = identity
				sites = append(sites, &site.CallbackSite{
					File:     identity,
					Path:     pkg.Paths[i],
					Pos:      pos,
					Method:   method,
					Package:  ref,
					Ordinal:  ordinal,
					Fset:     pkg.Fset,
					Func:     fd,
					Call:     call,
					Callback: call.Args[1],
					Comments: f.Comments,
					Imports:  imports,
					Types:    resolver,
				})
				ordinal++
				return true
			})
		}
	}
	return sites
}

// HasDirective reports whether doc contains the line //<directive>.
func HasDirective(doc *ast.CommentGroup, directive string) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		text, ok := strings.CutPrefix(c.Text, "//")
		if !ok {
			continue
		}
		if fields := strings.Fields(text); len(fields) > 0 && fields[0] == directive && strings.HasPrefix(text, directive) {
			return true
		}
	}
	return false
}

// FuncName returns "Name" for functions and "Recv.Name" for methods.
func FuncName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return fd.Name.Name
	}
	if id := recvTypeIdent(fd.Recv.List[0].Type); id != nil {
		return id.Name + "." + fd.Name.Name
	}
	return fd.Name.Name
}

func recvTypeIdent(expr ast.Expr) *ast.Ident {
	for {
		switch e := expr.(type) {
		case *ast.Ident:
			return e
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		default:
			return nil
		}
	}
}

// isQueryCall matches recv.<QueryMethod>(a, b) where the method is declared
// on the configured world type.
func isQueryCall(call *ast.CallExpr, info *types.Info, cfg *config.Config) bool {
	if len(call.Args) != 2 || call.Ellipsis.IsValid() {
		return false
	}
	sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != cfg.Store.QueryMethod {
		return false
	}
	selection := info.Selections[sel]
	if selection == nil || selection.Kind() != types.MethodVal {
		return false
	}
	sig, ok := selection.Obj().Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return false
	}
	return namedTypeName(sig.Recv().Type()) == cfg.Store.WorldType
}

func namedTypeName(t types.Type) string {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := types.Unalias(t).(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}

// fileImports lists the imports of f with the names the file uses for them.
func fileImports(f *ast.File, info *types.Info) []site.Import {
	imports := make([]site.Import, 0, len(f.Imports))
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imp := site.Import{Path: p}
		switch {
		case spec.Name != nil:
			imp.Name = spec.Name.Name
			imp.Explicit = true
		case info != nil && info.PkgNameOf(spec) != nil:
			imp.Name = info.PkgNameOf(spec).Imported().Name()
		default:
			imp.Name = path.Base(p)
		}
		imports = append(imports, imp)
	}
	return imports
}
