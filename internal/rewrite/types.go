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
	"fmt"
	"go/types"
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/go-ecsgen/internal/site"
)

type importEntry struct {
	Name string
	Path string
	Dot  bool
}

// spec renders the entry as an import spec.
func (e *importEntry) spec() string {
	switch {
	case e.Dot:
		return fmt.Sprintf(". %q", e.Path)
	case e.Name != path.Base(e.Path):
		return fmt.Sprintf("%s %q", e.Name, e.Path)
	}
	return fmt.Sprintf("%q", e.Path)
}

// importSet is the import table of one generated unit. It starts from the
// site file's imports so the moved callback body resolves unchanged, and
// grows as the unit needs more packages.
type importSet struct {
	self     string
	scope    *types.Scope
	reserved map[string]bool
	entries  []*importEntry
	byName   map[string]*importEntry
}

func newImportSet(self string, scope *types.Scope, reserved map[string]bool, file []site.Import) *importSet {
	s := &importSet{
		self:     self,
		scope:    scope,
		reserved: reserved,
		byName:   make(map[string]*importEntry),
	}
	for _, imp := range file {
		switch imp.Name {
		case "_":
			continue
		case ".":
			s.entries = append(s.entries, &importEntry{Name: ".", Path: imp.Path, Dot: true})
			continue
		}
		if s.byName[imp.Name] != nil {
			continue
		}
		e := &importEntry{Name: imp.Name, Path: imp.Path}
		s.entries = append(s.entries, e)
		s.byName[e.Name] = e
	}
	return s
}

// name returns an identifier that refers to the package at path from the
// unit, adding an import if no usable one exists. Names the callback binds
// to anything but a package are never used, so synthesized code cannot be
// shadowed by the callback's own declarations.
func (s *importSet) name(pkgPath, pkgName string) string {
	if pkgPath == s.self {
		return ""
	}
	for _, e := range s.entries {
		if e.Path == pkgPath && !e.Dot && !s.reserved[e.Name] {
			return e.Name
		}
	}
	name := pkgName
	for i := 1; s.taken(name); i++ {
		name = fmt.Sprintf("%s%d", pkgName, i)
	}
	e := &importEntry{Name: name, Path: pkgPath}
	s.entries = append(s.entries, e)
	s.byName[name] = e
	return name
}

func (s *importSet) taken(name string) bool {
	if s.byName[name] != nil || s.reserved[name] || types.Universe.Lookup(name) != nil {
		return true
	}
	return s.scope != nil && s.scope.Lookup(name) != nil
}

func (s *importSet) qualifier(p *types.Package) string {
	return s.name(p.Path(), p.Name())
}

// names returns every package name the unit may refer to.
func (s *importSet) names() map[string]bool {
	return lo.SliceToMap(lo.Reject(s.entries, func(e *importEntry, _ int) bool { return e.Dot }),
		func(e *importEntry) (string, bool) { return e.Name, true })
}

// sorted returns the entries ordered by path, then name.
func (s *importSet) sorted() []*importEntry {
	out := slices.Clone(s.entries)
	slices.SortFunc(out, func(a, b *importEntry) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// typeString spells t for the unit, or fails when some part of t cannot be
// named outside its declaring function or package.
func (j *job) typeString(t types.Type) (string, error) {
	if obj := j.unnameable(t); obj != nil {
		return "", fmt.Errorf("type %s cannot be named here", obj.Name())
	}
	if hasTypeParam(t) {
		return "", fmt.Errorf("type %s depends on type parameters", t)
	}
	return types.TypeString(t, j.imports.qualifier), nil
}

// unnameable returns the first declared type in t that a file of the site's
// package cannot refer to.
func (j *job) unnameable(t types.Type) (found types.Object) {
	walkType(t, func(t types.Type) bool {
		var obj *types.TypeName
		switch t := t.(type) {
		case *types.Named:
			obj = t.Obj()
		case *types.Alias:
			obj = t.Obj()
		default:
			return true
		}
		switch {
		case obj.Pkg() == nil:
		case isFuncLocal(obj):
			found = obj
		case obj.Pkg().Path() != j.site.Package.Path && !obj.Exported():
			found = obj
		}
		return found == nil
	})
	return found
}

func hasTypeParam(t types.Type) (found bool) {
	walkType(t, func(t types.Type) bool {
		if _, ok := t.(*types.TypeParam); ok {
			found = true
		}
		return !found
	})
	return found
}

// walkType calls visit for t and the types it is spelled with. Declared
// types contribute their type arguments, not their underlying types.
func walkType(t types.Type, visit func(types.Type) bool) bool {
	if t == nil || !visit(t) {
		return t == nil
	}
	switch t := t.(type) {
	case *types.Pointer:
		return walkType(t.Elem(), visit)
	case *types.Slice:
		return walkType(t.Elem(), visit)
	case *types.Array:
		return walkType(t.Elem(), visit)
	case *types.Chan:
		return walkType(t.Elem(), visit)
	case *types.Map:
		return walkType(t.Key(), visit) && walkType(t.Elem(), visit)
	case *types.Tuple:
		for v := range t.Variables() {
			if !walkType(v.Type(), visit) {
				return false
			}
		}
	case *types.Signature:
		return walkType(t.Params(), visit) && walkType(t.Results(), visit)
	case *types.Struct:
		for f := range t.Fields() {
			if !walkType(f.Type(), visit) {
				return false
			}
		}
	case *types.Interface:
		for m := range t.ExplicitMethods() {
			if !walkType(m.Type(), visit) {
				return false
			}
		}
		for e := range t.EmbeddedTypes() {
			if !walkType(e, visit) {
				return false
			}
		}
	case *types.Named:
		for a := range t.TypeArgs().Types() {
			if !walkType(a, visit) {
				return false
			}
		}
	case *types.Alias:
		for a := range t.TypeArgs().Types() {
			if !walkType(a, visit) {
				return false
			}
		}
	}
	return true
}
