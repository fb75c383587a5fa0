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
	"go/parser"
	"go/token"
	"go/types"

	"github.com/ajroetker/go-ecsgen/internal/diag"
)

// Shape is the syntactic form an OutOfScope occurrence was found in.
type Shape int

const (
	ShapeDecl   Shape = iota // x := marker, var x [T] = marker
	ShapeAssign              // target = marker
	ShapeExpr                // marker as a statement
)

func (s Shape) String() string {
	switch s {
	case ShapeDecl:
		return "declaration"
	case ShapeAssign:
		return "assignment"
	}
	return "expression"
}

// Hoist is one OutOfScope occurrence moved in front of the record loop.
type Hoist struct {
	Shape   Shape
	Call    *ast.CallExpr // the marker call
	Expr    ast.Expr      // the hoisted expression
	Removed ast.Stmt      // statement deleted from the callback body
	Stmt    ast.Stmt      // statement that runs once per query
}

// hoistCandidate is a statement whose whole right-hand side is a marker call.
type hoistCandidate struct {
	shape  Shape
	stmt   ast.Stmt
	call   *ast.CallExpr
	name   *ast.Ident // ShapeDecl
	typ    ast.Expr   // ShapeDecl with an explicit type
	target ast.Expr   // ShapeAssign
}

// extract finds OutOfScope occurrences in the callback body and builds their
// hoisted statements. Occurrences that cannot be hoisted are reported and
// stay in the body, where they still evaluate correctly once per record.
func (j *job) extract(lit *ast.FuncLit) []*Hoist {
	var candidates []*hoistCandidate
	var visit func(s ast.Stmt, top bool)
	visitList := func(list []ast.Stmt) {
		for _, s := range list {
			visit(s, true)
		}
	}
	visit = func(s ast.Stmt, top bool) {
		if top {
			if c := j.hoistShape(s); c != nil {
				candidates = append(candidates, c)
				return
			}
		}
		switch s := s.(type) {
		case *ast.BlockStmt:
			visitList(s.List)
		case *ast.IfStmt:
			visitList(s.Body.List)
			if s.Else != nil {
				visit(s.Else, false)
			}
		case *ast.ForStmt:
			visitList(s.Body.List)
		case *ast.RangeStmt:
			visitList(s.Body.List)
		case *ast.SwitchStmt:
			visitList(s.Body.List)
		case *ast.TypeSwitchStmt:
			visitList(s.Body.List)
		case *ast.SelectStmt:
			visitList(s.Body.List)
		case *ast.CaseClause:
			visitList(s.Body)
		case *ast.CommClause:
			visitList(s.Body)
		case *ast.LabeledStmt:
			visit(s.Stmt, false)
		}
	}
	visitList(lit.Body.List)

	hoistable := make(map[*ast.CallExpr]bool, len(candidates))
	for _, c := range candidates {
		hoistable[c.call] = true
	}
	inspectShallow(lit.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if ok && !hoistable[call] && j.marker(call) == j.cfg.Markers.OutOfScope {
			j.report(diag.Warning, diag.CodeHoistNested, call,
				"%s inside a larger expression is not hoisted", j.markerRef(j.cfg.Markers.OutOfScope))
		}
		return true
	})

	declared := j.declaredNames(lit)
	hoisted := make(map[types.Object]bool)
	hoistedNames := make(map[string]bool)
	var out []*Hoist
	for _, c := range candidates {
		h := j.hoist(lit, c, declared, hoisted, hoistedNames)
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// hoistShape matches the statement forms whose right-hand side may move.
func (j *job) hoistShape(s ast.Stmt) *hoistCandidate {
	marker := func(e ast.Expr) *ast.CallExpr {
		call, _ := j.markerCall(e, j.cfg.Markers.OutOfScope)
		return call
	}
	switch s := s.(type) {
	case *ast.ExprStmt:
		if call := marker(s.X); call != nil {
			return &hoistCandidate{shape: ShapeExpr, stmt: s, call: call}
		}
	case *ast.AssignStmt:
		if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
			return nil
		}
		call := marker(s.Rhs[0])
		if call == nil {
			return nil
		}
		lhs := ast.Unparen(s.Lhs[0])
		if id, ok := lhs.(*ast.Ident); ok && id.Name == "_" {
			return &hoistCandidate{shape: ShapeExpr, stmt: s, call: call}
		}
		switch s.Tok {
		case token.DEFINE:
			if id, ok := lhs.(*ast.Ident); ok {
				return &hoistCandidate{shape: ShapeDecl, stmt: s, call: call, name: id}
			}
		case token.ASSIGN:
			return &hoistCandidate{shape: ShapeAssign, stmt: s, call: call, target: s.Lhs[0]}
		}
	case *ast.DeclStmt:
		gd, ok := s.Decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR || len(gd.Specs) != 1 {
			return nil
		}
		vs := gd.Specs[0].(*ast.ValueSpec)
		if len(vs.Names) != 1 || len(vs.Values) != 1 {
			return nil
		}
		call := marker(vs.Values[0])
		if call == nil {
			return nil
		}
		if vs.Names[0].Name == "_" {
			return &hoistCandidate{shape: ShapeExpr, stmt: s, call: call}
		}
		return &hoistCandidate{shape: ShapeDecl, stmt: s, call: call, name: vs.Names[0], typ: vs.Type}
	}
	return nil
}

// hoist validates one candidate and builds its hoisted statement. hoisted
// holds the declarations moved so far; later hoisted expressions may use
// them.
func (j *job) hoist(lit *ast.FuncLit, c *hoistCandidate, declared map[string][]types.Object,
	hoisted map[types.Object]bool, hoistedNames map[string]bool) *Hoist {
	marker := j.markerRef(j.cfg.Markers.OutOfScope)
	if len(c.call.Args) != 1 {
		j.report(diag.Error, diag.CodeHoistNotLiteral, c.call, "%s takes exactly one function literal", marker)
		return nil
	}
	fn, ok := ast.Unparen(c.call.Args[0]).(*ast.FuncLit)
	if !ok {
		j.report(diag.Error, diag.CodeHoistNotLiteral, c.call.Args[0],
			"argument of %s must be a function literal", marker)
		return nil
	}
	var ret *ast.ReturnStmt
	if len(fn.Body.List) == 1 {
		ret, _ = fn.Body.List[0].(*ast.ReturnStmt)
	}
	if ret == nil || len(ret.Results) != 1 {
		j.report(diag.Error, diag.CodeHoistBlock, fn.Body,
			"function literal passed to %s must be a single return statement", marker)
		return nil
	}
	expr := ret.Results[0]

	if id := j.localRef(expr, lit, expr, hoisted); id != nil {
		j.report(diag.Error, diag.CodeHoistReference, id,
			"hoisted expression refers to %s, which is declared inside the callback", id.Name)
		return nil
	}
	if c.shape == ShapeAssign {
		if id := j.localRef(c.target, lit, nil, hoisted); id != nil {
			j.report(diag.Error, diag.CodeHoistReference, id,
				"hoisted assignment target refers to %s, which is declared inside the callback", id.Name)
			return nil
		}
	}
	var obj types.Object
	if c.shape == ShapeDecl {
		obj = j.types.ObjectOf(c.name)
		if conflicts(c.name.Name, obj, declared) || hoistedNames[c.name.Name] {
			j.report(diag.Error, diag.CodeHoistConflict, c.name,
				"hoisted declaration %s conflicts with another use of the name in the callback", c.name.Name)
			return nil
		}
	}

	value, err := j.hoistValue(c.call, expr)
	if err != nil {
		j.report(diag.Error, diag.CodeUnresolvedType, c.call, "cannot hoist: %v", err)
		return nil
	}

	h := &Hoist{Shape: c.shape, Call: c.call, Expr: expr, Removed: c.stmt}
	switch c.shape {
	case ShapeDecl:
		if c.typ != nil {
			h.Stmt = &ast.DeclStmt{Decl: &ast.GenDecl{
				Tok: token.VAR,
				Specs: []ast.Spec{&ast.ValueSpec{
					Names:  []*ast.Ident{c.name},
					Type:   c.typ,
					Values: []ast.Expr{value},
				}},
			}}
		} else {
			h.Stmt = &ast.AssignStmt{Lhs: []ast.Expr{c.name}, Tok: token.DEFINE, Rhs: []ast.Expr{value}}
		}
		if obj != nil {
			hoisted[obj] = true
		}
		hoistedNames[c.name.Name] = true
	case ShapeAssign:
		h.Stmt = &ast.AssignStmt{Lhs: []ast.Expr{c.target}, Tok: token.ASSIGN, Rhs: []ast.Expr{value}}
	default:
		h.Stmt = &ast.AssignStmt{Lhs: []ast.Expr{ast.NewIdent("_")}, Tok: token.ASSIGN, Rhs: []ast.Expr{value}}
	}
	return h
}

// hoistValue returns expr, converted to the marker's result type when its
// own static type could differ once it is moved out of the literal.
func (j *job) hoistValue(call *ast.CallExpr, expr ast.Expr) (ast.Expr, error) {
	want := j.types.TypeOf(call)
	if want == nil {
		return expr, nil
	}
	if got := j.types.TypeOf(expr); got != nil && !j.types.IsConstant(expr) && types.Identical(got, want) {
		return expr, nil
	}
	typ, err := j.typeExpr(want)
	if err != nil {
		return nil, err
	}
	return &ast.CallExpr{Fun: typ, Args: []ast.Expr{expr}}, nil
}

// typeExpr spells t as an expression usable in conversion position.
func (j *job) typeExpr(t types.Type) (ast.Expr, error) {
	s, err := j.typeString(t)
	if err != nil {
		return nil, err
	}
	e, err := parser.ParseExpr(s)
	if err != nil {
		return nil, err
	}
	switch e.(type) {
	case *ast.StarExpr, *ast.FuncType, *ast.ChanType:
		e = &ast.ParenExpr{X: e}
	}
	return e, nil
}

// localRef returns the first identifier in e that refers to something
// declared inside lit but outside skip, other than an allowed object.
func (j *job) localRef(e ast.Expr, lit *ast.FuncLit, skip ast.Node, allowed map[types.Object]bool) (found *ast.Ident) {
	ast.Inspect(e, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		id, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		obj := j.types.ObjectOf(id)
		if !isFuncLocal(obj) || allowed[obj] {
			return true
		}
		if within(obj.Pos(), lit) && !within(obj.Pos(), skip) {
			found = id
		}
		return true
	})
	return found
}

// declaredNames maps each name spelled in lit to the objects it denotes.
// Field and method selectors are left out: they live in their own name
// spaces and cannot be shadowed by a local.
func (j *job) declaredNames(lit *ast.FuncLit) map[string][]types.Object {
	names := make(map[string][]types.Object)
	ast.Inspect(lit, func(n ast.Node) bool {
		id, ok := n.(*ast.Ident)
		if !ok || id.Name == "_" {
			return true
		}
		obj := j.types.ObjectOf(id)
		switch o := obj.(type) {
		case nil:
			return true
		case *types.Var:
			if o.IsField() {
				return true
			}
		case *types.Func:
			if sig, ok := o.Type().(*types.Signature); ok && sig.Recv() != nil {
				return true
			}
		}
		for _, seen := range names[id.Name] {
			if seen == obj {
				return true
			}
		}
		names[id.Name] = append(names[id.Name], obj)
		return true
	})
	return names
}

// conflicts reports whether name denotes anything other than obj in the
// callback.
func conflicts(name string, obj types.Object, declared map[string][]types.Object) bool {
	for _, o := range declared[name] {
		if o != obj {
			return true
		}
	}
	return false
}
