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
	"github.com/ajroetker/go-ecsgen/internal/site"
)

// classify assigns a role to every callback parameter, in declaration
// order. A parameter of exactly the store's identity type is the entity
// binding; every other parameter is a component column, by reference for
// pointer parameters and by value otherwise.
func (j *job) classify(lit *ast.FuncLit) ([]site.Param, error) {
	var (
		params   []site.Param
		identity bool
	)
	for _, field := range lit.Type.Params.List {
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			return nil, j.abort(diag.Error, diag.CodeUnresolvedType, field.Type,
				"variadic callback parameters cannot be bound to columns")
		}
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		t := j.types.TypeOf(field.Type)
		for _, name := range names {
			p, err := j.role(field, name, t)
			if err != nil {
				return nil, err
			}
			if p.Role == site.RoleEntity {
				if identity {
					return nil, j.abort(diag.Error, diag.CodeDuplicateIdentity, field,
						"callback declares more than one %s parameter", j.cfg.Store.IdentityType)
				}
				identity = true
			}
			params = append(params, p)
		}
	}
	return params, nil
}

func (j *job) role(field *ast.Field, name *ast.Ident, t types.Type) (site.Param, error) {
	p := site.Param{Ident: name}
	if name != nil {
		p.Name = name.Name
	}
	label := p.Name
	if label == "" || label == "_" {
		label = types.ExprString(field.Type)
	}

	if t == nil || t == types.Typ[types.Invalid] {
		return p, j.abort(diag.Error, diag.CodeUnresolvedType, field.Type,
			"cannot resolve the type of parameter %s", label)
	}
	if hasTypeParam(t) {
		return p, j.abort(diag.Error, diag.CodeUnresolvedType, field.Type,
			"parameter %s depends on type parameters", label)
	}
	if obj := j.unnameable(t); obj != nil {
		return p, j.abort(diag.Error, diag.CodeUnresolvedType, field.Type,
			"type %s of parameter %s cannot be named outside its declaration", obj.Name(), label)
	}

	if j.isIdentityType(t) {
		p.Role = site.RoleEntity
		p.Type = t
		return p, nil
	}
	p.Role = site.RoleComponent
	p.Type = t
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
		if j.isIdentityType(ptr.Elem()) {
			return p, j.abort(diag.Error, diag.CodeUnresolvedType, field.Type,
				"parameter %s points at %s, which is not a column", label, j.cfg.Store.IdentityType)
		}
		p.Type = ptr.Elem()
		p.ByRef = true
	}
	return p, nil
}
