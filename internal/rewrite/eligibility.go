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
	"go/ast"
	"go/types"

	"github.com/ajroetker/go-ecsgen/internal/diag"
)

// filter decides whether a site can be specialized and returns its callback
// literal. It returns (nil, nil) when the site opted out; every other
// rejection is an abort carrying its diagnostic.
func (j *job) filter() (*ast.FuncLit, error) {
	expr := j.site.Callback
	static, optOut := false, false
unwrap:
	for {
		call, ok := ast.Unparen(expr).(*ast.CallExpr)
		if !ok || len(call.Args) != 1 || call.Ellipsis.IsValid() {
			break
		}
		switch {
		case j.marker(call) == j.cfg.Markers.Static:
			static = true
		case j.marker(call) == j.cfg.Markers.NoOptimize:
			optOut = true
		case j.isConversion(call):
		default:
			break unwrap
		}
		expr = call.Args[0]
	}

	lit, ok := ast.Unparen(expr).(*ast.FuncLit)
	if !ok {
		return nil, j.abort(diag.Info, diag.CodeNotLiteral, j.site.Callback,
			"callback is not a function literal; the query keeps generic dispatch")
	}
	if optOut {
		return nil, nil
	}
	if !static {
		return nil, j.abort(diag.Error, diag.CodeNotStatic, lit,
			"callback must be wrapped in %s to be specialized", j.markerRef(j.cfg.Markers.Static))
	}
	if results := lit.Type.Results; results != nil && results.NumFields() > 0 {
		return nil, j.abort(diag.Warning, diag.CodeValueCallback, results,
			"callbacks that return values are not specialized")
	}
	if isGeneric(j.site.Func) {
		return nil, j.abort(diag.Info, diag.CodeGenericEnclosing, j.site.Func.Name,
			"queries inside generic functions are not specialized")
	}
	if id, obj := j.capture(lit); obj != nil {
		what := "local declaration"
		if _, ok := obj.(*types.Var); ok {
			what = "local variable"
		}
		return nil, j.abort(diag.Error, diag.CodeCapture, id,
			"%s callback refers to %s %s of the enclosing function", j.markerRef(j.cfg.Markers.Static), what, id.Name)
	}
	if d := findDefer(lit); d != nil {
		return nil, j.abort(diag.Error, diag.CodeDefer, d,
			"defer in a specialized callback would run once per query instead of once per record")
	}
	return lit, nil
}

// isConversion reports whether call converts its operand to a function type.
func (j *job) isConversion(call *ast.CallExpr) bool {
	switch fun := ast.Unparen(call.Fun).(type) {
	case *ast.FuncType:
		return true
	case *ast.Ident:
		_, ok := j.types.ObjectOf(fun).(*types.TypeName)
		return ok
	case *ast.SelectorExpr:
		_, ok := j.types.ObjectOf(fun.Sel).(*types.TypeName)
		return ok
	}
	return false
}

// capture returns the first identifier in lit that refers to a declaration
// of an enclosing function.
func (j *job) capture(lit *ast.FuncLit) (id *ast.Ident, obj types.Object) {
	ast.Inspect(lit, func(n ast.Node) bool {
		if obj != nil {
			return false
		}
		ident, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		if o := j.types.ObjectOf(ident); isFuncLocal(o) && !within(o.Pos(), lit) {
			id, obj = ident, o
		}
		return true
	})
	return id, obj
}

func findDefer(lit *ast.FuncLit) (found *ast.DeferStmt) {
	inspectShallow(lit, func(n ast.Node) bool {
		if d, ok := n.(*ast.DeferStmt); ok && found == nil {
			found = d
		}
		return found == nil
	})
	return found
}

func isGeneric(fd *ast.FuncDecl) bool {
	if fd.Type.TypeParams.NumFields() > 0 {
		return true
	}
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return false
	}
	recv := fd.Recv.List[0].Type
	if star, ok := recv.(*ast.StarExpr); ok {
		recv = star.X
	}
	switch ast.Unparen(recv).(type) {
	case *ast.IndexExpr, *ast.IndexListExpr:
		return true
	}
	return false
}
