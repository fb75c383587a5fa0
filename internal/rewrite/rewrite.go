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


// Package rewrite specializes bulk-query call sites. Each site runs through
// a fixed pipeline:
//
//	filter -> classify -> extract hoists -> name -> normalize -> synthesize -> emit
//
// Stages never mutate the syntax they are given. Rewritten statements are
// built copy-on-write, so sites that share subtrees can be processed in
// parallel.
package rewrite

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path"

	"github.com/ajroetker/go-ecsgen/internal/config"
	"github.com/ajroetker/go-ecsgen/internal/diag"
	"github.com/ajroetker/go-ecsgen/internal/site"
)

// job is the per-site state threaded through the stages.
type job struct {
	cfg   *config.Config
	site  *site.CallbackSite
	sink  diag.Sink
	types site.TypeResolver

	sel    *ast.SelectorExpr // receiver.Query
	method *types.Func       // the query method
	store  *types.Package    // package declaring the world type
	scope  *types.Scope      // package scope of the site

	lit      *ast.FuncLit
	reserved map[string]bool // every identifier spelled in the callback
	imports  *importSet
}

func newJob(cfg *config.Config, s *site.CallbackSite, sink diag.Sink) (*job, error) {
	j := &job{cfg: cfg, site: s, sink: sink, types: s.Types}
	sel, ok := s.Receiver()
	if !ok {
		return nil, j.abort(diag.Error, diag.CodeInternal, s.Call, "query call has no receiver")
	}
	selection := s.Types.Selection(sel)
	if selection == nil {
		return nil, j.abort(diag.Error, diag.CodeInternal, sel, "cannot resolve %s", sel.Sel.Name)
	}
	method, ok := selection.Obj().(*types.Func)
	if !ok || method.Pkg() == nil {
		return nil, j.abort(diag.Error, diag.CodeInternal, sel, "%s is not a method", sel.Sel.Name)
	}
	j.sel = sel
	j.method = method
	j.store = method.Pkg()
	if obj := s.Types.ObjectOf(s.Func.Name); obj != nil && obj.Pkg() != nil {
		j.scope = obj.Pkg().Scope()
	}
	return j, nil
}

// position maps n to a diagnostic position carrying the file identity.
func (j *job) position(n ast.Node) token.Position {
	if n == nil {
		return j.site.Pos
	}
	pos := j.site.Fset.Position(n.Pos())
	pos.Filename = j.site.File
	return pos
}

func (j *job) report(sev diag.Severity, code diag.Code, n ast.Node, format string, args ...any) diag.Event {
	ev := diag.Event{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Pos:      j.position(n),
	}
	j.sink.Report(ev)
	return ev
}

// abort reports an event and returns the error that stops the site.
func (j *job) abort(sev diag.Severity, code diag.Code, n ast.Node, format string, args ...any) error {
	return &diag.Abort{Event: j.report(sev, code, n, format, args...)}
}

// marker returns the name of the marker function call invokes, or "".
func (j *job) marker(call *ast.CallExpr) string {
	fun := ast.Unparen(call.Fun)
	switch f := fun.(type) {
	case *ast.IndexExpr:
		fun = ast.Unparen(f.X)
	case *ast.IndexListExpr:
		fun = ast.Unparen(f.X)
	}
	var id *ast.Ident
	switch f := fun.(type) {
	case *ast.Ident:
		id = f
	case *ast.SelectorExpr:
		id = f.Sel
	default:
		return ""
	}
	fn, ok := j.types.ObjectOf(id).(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != j.cfg.Markers.Package {
		return ""
	}
	return fn.Name()
}

// markerCall returns e as a call of the named marker.
func (j *job) markerCall(e ast.Expr, name string) (*ast.CallExpr, bool) {
	call, ok := ast.Unparen(e).(*ast.CallExpr)
	if !ok || j.marker(call) != name {
		return nil, false
	}
	return call, true
}

// markerRef is how messages spell a marker, e.g. "opt.Static".
func (j *job) markerRef(name string) string {
	return path.Base(j.cfg.Markers.Package) + "." + name
}

// isBreakType reports whether t is exactly the break marker type.
func (j *job) isBreakType(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Name() == j.cfg.Markers.Break && obj.Pkg() != nil && obj.Pkg().Path() == j.cfg.Markers.Package
}

// isIdentityType reports whether t is exactly the store's identity type.
func (j *job) isIdentityType(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Name() == j.cfg.Store.IdentityType && obj.Pkg() == j.store
}

// within reports whether pos lies inside n.
func within(pos token.Pos, n ast.Node) bool {
	return n != nil && pos.IsValid() && n.Pos() <= pos && pos < n.End()
}

// isFuncLocal reports whether obj is declared inside a function body.
func isFuncLocal(obj types.Object) bool {
	if obj == nil || obj.Pkg() == nil {
		return false
	}
	if _, ok := obj.(*types.PkgName); ok {
		return false
	}
	parent := obj.Parent()
	return parent != nil && parent != obj.Pkg().Scope() && parent != types.Universe
}

// inspectShallow walks n without entering function literals other than n
// itself.
func inspectShallow(n ast.Node, f func(ast.Node) bool) {
	ast.Inspect(n, func(m ast.Node) bool {
		if _, ok := m.(*ast.FuncLit); ok && m != n {
			return false
		}
		return f(m)
	})
}

// identNames collects the names of every identifier under n, including
// labels and identifiers inside nested literals.
func identNames(n ast.Node) map[string]bool {
	names := make(map[string]bool)
	ast.Inspect(n, func(m ast.Node) bool {
		if id, ok := m.(*ast.Ident); ok && id.Name != "_" {
			names[id.Name] = true
		}
		return true
	})
	return names
}

// shadowNames collects the names in lit that denote something other than an
// imported package. A package can only be referred to from the unit under a
// name outside this set.
func (j *job) shadowNames(lit *ast.FuncLit) map[string]bool {
	names := make(map[string]bool)
	ast.Inspect(lit, func(n ast.Node) bool {
		id, ok := n.(*ast.Ident)
		if !ok || id.Name == "_" {
			return true
		}
		if _, isPkg := j.types.ObjectOf(id).(*types.PkgName); !isPkg {
			names[id.Name] = true
		}
		return true
	})
	return names
}
