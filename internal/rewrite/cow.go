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

import "go/ast"

// cow rewrites statement trees copy-on-write: a statement is copied only if
// something beneath it changed, and untouched subtrees are shared with the
// input. The input is never modified.
type cow struct {
	// leaf returns a replacement for s and true, or false to descend into s.
	// A nil replacement deletes s. loops counts the for and range statements
	// between s and the root.
	leaf func(s ast.Stmt, loops int) (ast.Stmt, bool)
}

func (c *cow) list(in []ast.Stmt, loops int) ([]ast.Stmt, bool) {
	var out []ast.Stmt
	changed := false
	for i, s := range in {
		r, ch := c.stmt(s, loops)
		if ch && !changed {
			changed = true
			out = make([]ast.Stmt, 0, len(in))
			out = append(out, in[:i]...)
		}
		if changed && r != nil {
			out = append(out, r)
		}
	}
	if !changed {
		return in, false
	}
	return out, true
}

func (c *cow) block(b *ast.BlockStmt, loops int) (*ast.BlockStmt, bool) {
	list, changed := c.list(b.List, loops)
	if !changed {
		return b, false
	}
	cp := *b
	cp.List = list
	return &cp, true
}

func (c *cow) stmt(s ast.Stmt, loops int) (ast.Stmt, bool) {
	if r, ok := c.leaf(s, loops); ok {
		return r, true
	}
	switch s := s.(type) {
	case *ast.BlockStmt:
		return c.block(s, loops)
	case *ast.IfStmt:
		body, ch := c.block(s.Body, loops)
		els, chElse := s.Else, false
		if s.Else != nil {
			els, chElse = c.stmt(s.Else, loops)
			if els == nil {
				els = &ast.BlockStmt{Lbrace: s.Else.Pos(), Rbrace: s.Else.End() - 1}
			}
		}
		if !ch && !chElse {
			return s, false
		}
		cp := *s
		cp.Body, cp.Else = body, els
		return &cp, true
	case *ast.ForStmt:
		body, ch := c.block(s.Body, loops+1)
		if !ch {
			return s, false
		}
		cp := *s
		cp.Body = body
		return &cp, true
	case *ast.RangeStmt:
		body, ch := c.block(s.Body, loops+1)
		if !ch {
			return s, false
		}
		cp := *s
		cp.Body = body
		return &cp, true
	case *ast.SwitchStmt:
		body, ch := c.block(s.Body, loops)
		if !ch {
			return s, false
		}
		cp := *s
		cp.Body = body
		return &cp, true
	case *ast.TypeSwitchStmt:
		body, ch := c.block(s.Body, loops)
		if !ch {
			return s, false
		}
		cp := *s
		cp.Body = body
		return &cp, true
	case *ast.SelectStmt:
		body, ch := c.block(s.Body, loops)
		if !ch {
			return s, false
		}
		cp := *s
		cp.Body = body
		return &cp, true
	case *ast.CaseClause:
		list, ch := c.list(s.Body, loops)
		if !ch {
			return s, false
		}
		cp := *s
		cp.Body = list
		return &cp, true
	case *ast.CommClause:
		list, ch := c.list(s.Body, loops)
		if !ch {
			return s, false
		}
		cp := *s
		cp.Body = list
		return &cp, true
	case *ast.LabeledStmt:
		inner, ch := c.stmt(s.Stmt, loops)
		if !ch {
			return s, false
		}
		if inner == nil {
			inner = &ast.EmptyStmt{Semicolon: s.Stmt.Pos(), Implicit: true}
		}
		cp := *s
		cp.Stmt = inner
		return &cp, true
	}
	return s, false
}
