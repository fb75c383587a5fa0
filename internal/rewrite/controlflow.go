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
	"go/token"
	"go/types"

	"github.com/ajroetker/go-ecsgen/internal/diag"
)

// normalized is a callback body rewritten to run inside the record loop.
type normalized struct {
	Body     *ast.BlockStmt
	Continue bool // the record loop label is used
	Break    bool // the chunk loop label is used
	Catch    bool // break panics remain and must be recovered
}

// normalize rewrites the callback body for the record loop: hoisted
// statements are deleted, a return advances to the next record, and a
// break-marker panic ends the query. Nothing else changes, and nested
// function literals are never entered.
func (j *job) normalize(lit *ast.FuncLit, hoists []*Hoist, nm names) *normalized {
	removed := make(map[ast.Stmt]bool, len(hoists))
	for _, h := range hoists {
		removed[h.Removed] = true
	}
	n := &normalized{}
	rewritten := make(map[*ast.CallExpr]bool)

	c := &cow{leaf: func(s ast.Stmt, loops int) (ast.Stmt, bool) {
		if removed[s] {
			return nil, true
		}
		switch s := s.(type) {
		case *ast.ReturnStmt:
			br := &ast.BranchStmt{TokPos: s.Return, Tok: token.CONTINUE}
			if loops > 0 {
				br.Label = ast.NewIdent(nm.Records)
				n.Continue = true
			}
			return br, true
		case *ast.ExprStmt:
			call := j.breakCall(s.X)
			if call == nil {
				return nil, false
			}
			if !sideEffectFree(call.Args[0]) {
				j.report(diag.Warning, diag.CodeBreakSideEffect, call.Args[0],
					"break value may have side effects; the panic is kept")
				return nil, false
			}
			rewritten[call] = true
			n.Break = true
			return &ast.BranchStmt{TokPos: s.Pos(), Tok: token.BREAK, Label: ast.NewIdent(nm.Chunks)}, true
		}
		return nil, false
	}}
	n.Body, _ = c.block(lit.Body, 0)

	ast.Inspect(lit.Body, func(m ast.Node) bool {
		if call, ok := m.(*ast.CallExpr); ok && !rewritten[call] && j.breakCall(call) != nil {
			n.Catch = true
		}
		return !n.Catch
	})
	return n
}

// breakCall matches panic(v) where panic is the builtin and v has exactly
// the break marker type.
func (j *job) breakCall(e ast.Expr) *ast.CallExpr {
	call, ok := ast.Unparen(e).(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		return nil
	}
	id, ok := ast.Unparen(call.Fun).(*ast.Ident)
	if !ok || id.Name != "panic" {
		return nil
	}
	if _, ok := j.types.ObjectOf(id).(*types.Builtin); !ok {
		return nil
	}
	if !j.isBreakType(j.types.TypeOf(call.Args[0])) {
		return nil
	}
	return call
}

func sideEffectFree(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Ident, *ast.BasicLit:
		return true
	case *ast.ParenExpr:
		return sideEffectFree(e.X)
	case *ast.SelectorExpr:
		return sideEffectFree(e.X)
	case *ast.CompositeLit:
		for _, elt := range e.Elts {
			if kv, ok := elt.(*ast.KeyValueExpr); ok {
				elt = kv.Value
			}
			if !sideEffectFree(elt) {
				return false
			}
		}
		return true
	}
	return false
}
