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

// Package site is the data model shared by the discovery feed and the
// rewrite stages: one CallbackSite per bulk-query call, and the roles its
// callback parameters play.
package site

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"github.com/samber/lo"
)

// TypeResolver answers static type questions about a site's syntax.
// InfoResolver implements it over go/types.
type TypeResolver interface {
	TypeOf(e ast.Expr) types.Type
	ObjectOf(id *ast.Ident) types.Object
	Selection(sel *ast.SelectorExpr) *types.Selection
	// IsConstant reports whether e is a constant or untyped nil, whose
	// recorded type is the one its context gave it.
	IsConstant(e ast.Expr) bool
}

// InfoResolver resolves types from a checked package.
type InfoResolver struct {
	Info *types.Info
}

func (r InfoResolver) TypeOf(e ast.Expr) types.Type        { return r.Info.TypeOf(e) }
func (r InfoResolver) ObjectOf(id *ast.Ident) types.Object { return r.Info.ObjectOf(id) }

func (r InfoResolver) Selection(sel *ast.SelectorExpr) *types.Selection {
	return r.Info.Selections[sel]
}

func (r InfoResolver) IsConstant(e ast.Expr) bool {
	tv, ok := r.Info.Types[e]
	return ok && (tv.Value != nil || tv.IsNil())
}

// PackageRef names the package that encloses a site.
type PackageRef struct {
	Path string
	Name string
}

// Import is one import of the site's file. Name is the name the file refers
// to the package by; it is always set, even when the import is unnamed.
type Import struct {
	Name string
	Path string
	// Explicit reports whether the file spelled the name out.
	Explicit bool
}

// CallbackSite is one bulk-query call whose callback argument may be
// specialized. Sites are built once by discovery and never modified; every
// stage treats the syntax trees they point to as read-only.
type CallbackSite struct {
	File    string         // stable file identity (slash path relative to the module root)
	Path    string         // absolute file path
	Pos     token.Position // position of the call
	Method  string         // enclosing function, "Recv.Name" for methods
	Package PackageRef
	Ordinal int // index of this call among the query calls of Method

	Fset     *token.FileSet
	Func     *ast.FuncDecl
	Call     *ast.CallExpr
	Callback ast.Expr
	Comments []*ast.CommentGroup
	Imports  []Import
	Types    TypeResolver
}

// Key returns the identity of the site within a compilation.
func (s *CallbackSite) Key() Key {
	return Key{File: s.File, Line: s.Pos.Line, Column: s.Pos.Column, Ordinal: s.Ordinal}
}

// Receiver returns the call's receiver expression and method selector.
func (s *CallbackSite) Receiver() (*ast.SelectorExpr, bool) {
	sel, ok := ast.Unparen(s.Call.Fun).(*ast.SelectorExpr)
	return sel, ok
}

// Key identifies a site: file identity, source position, and ordinal.
type Key struct {
	File    string
	Line    int
	Column  int
	Ordinal int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d#%d", k.File, k.Line, k.Column, k.Ordinal)
}

// RoleKind is the semantic role of a callback parameter.
type RoleKind int

const (
	RoleEntity RoleKind = iota
	RoleComponent
)

func (k RoleKind) String() string {
	if k == RoleEntity {
		return "EntityIdentity"
	}
	return "ComponentRef"
}

// Param is one classified callback parameter.
type Param struct {
	Name  string // "" or "_" for unnamed parameters
	Ident *ast.Ident
	Role  RoleKind
	// Type is the component type (the element for pointer parameters) or
	// the identity type.
	Type types.Type
	// ByRef is set for *T component parameters, which bind a pointer into the
	// column; T parameters bind a copy.
	ByRef bool
}

func (p Param) String() string {
	if p.Role == RoleEntity {
		return fmt.Sprintf("%s %s", p.Name, p.Role)
	}
	return fmt.Sprintf("%s %s(%s)", p.Name, p.Role, p.Type)
}

// Components returns the component parameters in declaration order.
func Components(params []Param) []Param {
	return lo.Filter(params, func(p Param, _ int) bool {
		return p.Role == RoleComponent
	})
}
