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
	"go/printer"
	"go/types"
	"path"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/go-ecsgen/internal/diag"
	"github.com/ajroetker/go-ecsgen/internal/site"
)

var printConfig = printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}

// plan is everything the loop synthesizer needs once the callback has been
// analysed: spelled types, package names, and fresh identifiers.
type plan struct {
	params []site.Param
	used   []bool   // parameter is referenced by the body
	types  []string // spelled component type per parameter ("" for identity)
	hoists []*Hoist
	hoist  []string // printed hoisted statements

	recvType string
	addrOf   bool     // the call site passes &recv
	argTypes []string // declared types of the query method's parameters
	callback int      // index of the callback argument

	store   string // import names
	unsafe  string
	markers string

	names names
}

// plan spells every type the entry function mentions and then picks fresh
// names, so no synthesized identifier can collide with a spelled one.
func (j *job) plan(params []site.Param, hoists []*Hoist) (*plan, error) {
	p := &plan{params: params, hoists: hoists, callback: len(j.site.Call.Args) - 1}
	taken := make(map[string]bool, len(j.reserved))
	for name := range j.reserved {
		taken[name] = true
	}

	sig, ok := j.types.TypeOf(j.sel).(*types.Signature)
	if !ok {
		return nil, j.abort(diag.Error, diag.CodeInternal, j.sel, "cannot resolve the signature of %s", j.sel.Sel.Name)
	}
	recv := j.types.TypeOf(j.sel.X)
	if recv == nil {
		return nil, j.abort(diag.Error, diag.CodeUnresolvedType, j.sel.X, "cannot resolve the query receiver type")
	}
	if _, isPtr := recv.Underlying().(*types.Pointer); !isPtr {
		if types.NewMethodSet(recv).Lookup(j.method.Pkg(), j.method.Name()) == nil {
			recv = types.NewPointer(recv)
			p.addrOf = true
		}
	}
	var err error
	if p.recvType, err = j.typeString(recv); err != nil {
		return nil, j.abort(diag.Error, diag.CodeUnresolvedType, j.sel.X, "query receiver: %v", err)
	}
	words(p.recvType, taken)

	for i := range sig.Params().Len() {
		t := sig.Params().At(i).Type()
		prefix := ""
		if sig.Variadic() && i == sig.Params().Len()-1 {
			t = t.(*types.Slice).Elem()
			prefix = "..."
		}
		s, err := j.typeString(t)
		if err != nil {
			return nil, j.abort(diag.Error, diag.CodeUnresolvedType, j.site.Call, "query parameter %d: %v", i, err)
		}
		p.argTypes = append(p.argTypes, prefix+s)
		words(s, taken)
	}
	if len(p.argTypes) != len(j.site.Call.Args) {
		return nil, j.abort(diag.Error, diag.CodeInternal, j.site.Call,
			"query method takes %d parameters, call passes %d", len(p.argTypes), len(j.site.Call.Args))
	}

	for _, param := range params {
		s := ""
		if param.Role == site.RoleComponent {
			if s, err = j.typeString(param.Type); err != nil {
				return nil, j.abort(diag.Error, diag.CodeUnresolvedType, param.Ident, "%v", err)
			}
			words(s, taken)
		}
		p.types = append(p.types, s)
		p.used = append(p.used, j.paramUsed(param))
	}

	for _, h := range hoists {
		var b bytes.Buffer
		if err := printConfig.Fprint(&b, j.site.Fset, h.Stmt); err != nil {
			return nil, j.abort(diag.Error, diag.CodeInternal, h.Call, "print hoisted statement: %v", err)
		}
		p.hoist = append(p.hoist, b.String())
		words(b.String(), taken)
	}

	p.store = j.imports.name(j.store.Path(), j.store.Name())
	p.unsafe = j.imports.name("unsafe", "unsafe")
	p.markers = j.imports.name(j.cfg.Markers.Package, path.Base(j.cfg.Markers.Package))
	for name := range j.imports.names() {
		taken[name] = true
	}
	p.names = freshNames(taken)
	return p, nil
}

// paramUsed reports whether the callback body refers to param.
func (j *job) paramUsed(param site.Param) bool {
	if param.Ident == nil || param.Name == "_" {
		return false
	}
	obj := j.types.ObjectOf(param.Ident)
	if obj == nil {
		return false
	}
	used := false
	ast.Inspect(j.lit.Body, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && j.types.ObjectOf(id) == obj {
			used = true
		}
		return !used
	})
	return used
}

// synthesize writes the entry function: hoisted statements, then the chunk
// loop, the column fetch, the record loop, one binding per parameter, and
// the normalized body.
func (j *job) synthesize(name string, p *plan, body *normalized) ([]byte, error) {
	nm := p.names
	store := j.cfg.Store
	var b bytes.Buffer

	args := []string{nm.World + " " + p.recvType}
	var chunkArgs []string
	for i, t := range p.argTypes {
		if i == p.callback {
			args = append(args, "_ "+t)
			continue
		}
		arg := nm.Description
		if len(chunkArgs) > 0 {
			arg = fmt.Sprintf("%s%d", nm.Description, len(chunkArgs))
		}
		chunkArgs = append(chunkArgs, arg)
		args = append(args, arg+" "+t)
	}
	fmt.Fprintf(&b, "func %s(%s) {\n", name, strings.Join(args, ", "))
	if body.Catch {
		fmt.Fprintf(&b, "defer %s.%s()\n", p.markers, j.cfg.Markers.CatchBreak)
	}
	for _, h := range p.hoist {
		fmt.Fprintf(&b, "%s\n", h)
	}

	if body.Break {
		fmt.Fprintf(&b, "%s:\n", nm.Chunks)
	}
	fmt.Fprintf(&b, "for %s := range %s.%s(%s) {\n", nm.Chunk, nm.World, store.ChunksMethod, strings.Join(chunkArgs, ", "))

	components := lo.Filter(lo.Range(len(p.params)), func(i, _ int) bool {
		return p.params[i].Role == site.RoleComponent
	})
	switch len(components) {
	case 0:
	case 1:
		fmt.Fprintf(&b, "%s := %s.%s[%s](%s)\n", nm.Cols, p.store, store.ColumnsFunc, p.types[components[0]], nm.Chunk)
	default:
		spelled := lo.Map(components, func(i, _ int) string { return p.types[i] })
		fmt.Fprintf(&b, "%s := %s.%s%d[%s](%s)\n", nm.Cols, p.store, store.ColumnsFunc, len(components),
			strings.Join(spelled, ", "), nm.Chunk)
	}

	if body.Continue {
		fmt.Fprintf(&b, "%s:\n", nm.Records)
	}
	if len(p.params) == 0 {
		fmt.Fprintf(&b, "for range %s.%s() {\n", nm.Chunk, store.IndicesMethod)
	} else {
		fmt.Fprintf(&b, "for %s := range %s.%s() {\n", nm.Index, nm.Chunk, store.IndicesMethod)
	}

	column := 0
	for i, param := range p.params {
		lhs, op := param.Name, ":="
		if !p.used[i] {
			lhs, op = "_", "="
		}
		var rhs string
		if param.Role == site.RoleEntity {
			rhs = fmt.Sprintf("%s.%s(%s)", nm.Chunk, store.IdentityMethod, nm.Index)
		} else {
			base := nm.Cols
			if len(components) > 1 {
				base = fmt.Sprintf("%s.%s%d", nm.Cols, store.ColumnField, column)
			}
			column++
			rhs = fmt.Sprintf("(*%s)(%s.Add(%s.Pointer(%s), uintptr(%s)*%s.Sizeof(*%s)))",
				p.types[i], p.unsafe, p.unsafe, base, nm.Index, p.unsafe, base)
			if !param.ByRef {
				rhs = "*" + rhs
			}
		}
		fmt.Fprintf(&b, "%s %s %s\n", lhs, op, rhs)
	}

	text, err := j.printBody(body.Body, p.hoists)
	if err != nil {
		return nil, err
	}
	b.WriteString(text)
	b.WriteString("\n}\n}\n}\n")
	return b.Bytes(), nil
}

// printBody prints the normalized body without its braces, keeping the
// comments of statements that stayed.
func (j *job) printBody(body *ast.BlockStmt, hoists []*Hoist) (string, error) {
	fset := j.site.Fset
	comments := lo.Filter(j.site.Comments, func(cg *ast.CommentGroup, _ int) bool {
		for _, h := range hoists {
			if within(cg.Pos(), h.Removed) {
				return false
			}
			if cg.Pos() >= h.Removed.End() && fset.Position(cg.Pos()).Line == fset.Position(h.Removed.End()).Line {
				return false
			}
		}
		return true
	})
	var b bytes.Buffer
	if err := printConfig.Fprint(&b, fset, &printer.CommentedNode{Node: body, Comments: comments}); err != nil {
		return "", fmt.Errorf("print body: %w", err)
	}
	text := strings.TrimSpace(b.String())
	text = strings.TrimPrefix(text, "{")
	text = strings.TrimSuffix(text, "}")
	return text, nil
}
