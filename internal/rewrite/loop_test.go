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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecializeIdentityAndTwoComponents(t *testing.T) {
	u, events, pkg := specialize(t, program(`
//ecsgen:optimize
func Move(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(e ecs.Entity, p *Position, v *Velocity) {
		if e.ID == 0 {
			return
		}
		// integrate
		p.X += v.X
		p.Y += v.Y
	}))
}
`))
	assert.Empty(t, events)
	src := string(u.Source)

	id := ID(u.Site)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "ecsgenMove0_"+id, u.Name)
	assert.Equal(t, "z_ecsgen_"+id+".gen.go", u.FileName)
	assert.Equal(t, "/src/app", u.Dir)

	assert.True(t, strings.HasPrefix(src, "// Code generated by ecsgen. DO NOT EDIT.\n"), src)
	assert.Contains(t, src, "package app\n")
	assert.Contains(t, src, "func "+u.Name+"(world *ecs.World, description ecs.QueryDescription, _ any) {")
	assert.Contains(t, src, "for chunk := range world.Chunks(description) {")
	assert.Contains(t, src, "cols := ecs.GetFirst2[Position, Velocity](chunk)")
	assert.Contains(t, src, "for index := range chunk.Indices() {")
	assert.Contains(t, src, "// integrate")
	before(t, src, "cols := ", "for index := ")
	before(t, src, "e := chunk.Entity(index)", "p := (*Position)(unsafe.Add(unsafe.Pointer(cols.T0)")
	before(t, src, "p := (*Position)(unsafe.Add(unsafe.Pointer(cols.T0)", "v := (*Velocity)(unsafe.Add(unsafe.Pointer(cols.T1)")
	before(t, src, "v := (*Velocity)", "p.X += v.X")
	assert.Contains(t, src, "unsafe.Sizeof(*cols.T1)")
	assert.Contains(t, src, "continue")
	assert.NotContains(t, src, "return")
	assert.NotContains(t, src, "records:")
	assert.NotContains(t, src, "chunks:")
	assert.Contains(t, src, `"unsafe"`)
	assert.NotContains(t, src, "go-ecsgen/opt")

	sub := u.Substitution
	assert.Equal(t, "/src/app/app.go", sub.Path)
	assert.Equal(t, "w.Query(", string(pkg.Sources[sub.Path][sub.Start:sub.End]))
	assert.Equal(t, u.Name+"(w, ", sub.Text)

	compile(t, pkg, u)
}

func TestSpecializeBindings(t *testing.T) {
	tests := []struct {
		name     string
		callback string
		want     []string
		absent   []string
	}{
		{
			name:     "one component by value",
			callback: `func(h Health) { total += int(h) }`,
			want: []string{
				"cols := ecs.GetFirst[Health](chunk)",
				"h := *(*Health)(unsafe.Add(unsafe.Pointer(cols), ",
				"unsafe.Sizeof(*cols)",
			},
		},
		{
			name:     "no parameters",
			callback: `func() { counter++ }`,
			want:     []string{"for range chunk.Indices() {", "counter++"},
			absent:   []string{"cols", "index", "unsafe"},
		},
		{
			name:     "blank and unused parameters",
			callback: `func(_ ecs.Entity, p *Position, v *Velocity) { p.X = 1 }`,
			want: []string{
				"_ = chunk.Entity(index)",
				"p := (*Position)(unsafe.Add(unsafe.Pointer(cols.T0)",
				"_ = (*Velocity)(unsafe.Add(unsafe.Pointer(cols.T1)",
			},
		},
		{
			name:     "unnamed parameter",
			callback: `func(*Position) { counter++ }`,
			want:     []string{"_ = (*Position)(unsafe.Add(unsafe.Pointer(cols)"},
		},
		{
			name:     "identity only",
			callback: `func(e ecs.Entity) { total += int(e.ID) }`,
			want:     []string{"e := chunk.Entity(index)"},
			absent:   []string{"cols", "unsafe"},
		},
		{
			name:     "three components",
			callback: `func(p *Position, v *Velocity, h *Health) { p.X += v.X * float64(*h) }`,
			want: []string{
				"cols := ecs.GetFirst3[Position, Velocity, Health](chunk)",
				"h := (*Health)(unsafe.Add(unsafe.Pointer(cols.T2)",
			},
		},
		{
			name:     "identity after components",
			callback: `func(p *Position, e ecs.Entity) { p.X = float64(e.Version) }`,
			want: []string{
				"cols := ecs.GetFirst[Position](chunk)",
				"p := (*Position)(unsafe.Add(unsafe.Pointer(cols)",
				"e := chunk.Entity(index)",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, events, pkg := specialize(t, program(`
//ecsgen:optimize
func Run(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(`+tt.callback+`))
}
`))
			assert.Empty(t, events)
			src := string(u.Source)
			for _, want := range tt.want {
				assert.Contains(t, src, want)
			}
			for _, absent := range tt.absent {
				assert.NotContains(t, src, absent)
			}
			compile(t, pkg, u)
		})
	}
}

func TestSpecializeParameterOrder(t *testing.T) {
	u, _, _ := specialize(t, program(`
//ecsgen:optimize
func Run(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(p *Position, e ecs.Entity, v *Velocity) { p.X = v.X + float64(e.ID) }))
}
`))
	src := string(u.Source)
	before(t, src, "p := (*Position)", "e := chunk.Entity(index)")
	before(t, src, "e := chunk.Entity(index)", "v := (*Velocity)")
	assert.Contains(t, src, "unsafe.Pointer(cols.T1)")
}

func TestSpecializeFreshNames(t *testing.T) {
	u, _, pkg := specialize(t, program(`
//ecsgen:optimize
func Shadow(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(chunk *Position) {
		index := 1
		cols := 2
		world := index + cols
		chunk.X = float64(world)
	}))
}
`))
	src := string(u.Source)
	assert.Contains(t, src, "(world1 *ecs.World, description ecs.QueryDescription, _ any)")
	assert.Contains(t, src, "for chunk1 := range world1.Chunks(description) {")
	assert.Contains(t, src, "cols1 := ecs.GetFirst[Position](chunk1)")
	assert.Contains(t, src, "for index1 := range chunk1.Indices() {")
	assert.Contains(t, src, "chunk := (*Position)(unsafe.Add(unsafe.Pointer(cols1)")
	compile(t, pkg, u)
}

func TestSpecializeShadowedImportName(t *testing.T) {
	u, _, pkg := specialize(t, program(`
//ecsgen:optimize
func Run(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(unsafe *Position) { unsafe.X = 1 }))
}
`))
	src := string(u.Source)
	assert.Contains(t, src, `unsafe1 "unsafe"`)
	assert.Contains(t, src, "unsafe := (*Position)(unsafe1.Add(unsafe1.Pointer(cols)")
	compile(t, pkg, u)
}

func TestSpecializeAddressableReceiver(t *testing.T) {
	u, _, pkg := specialize(t, `package app

import (
	store "example.com/ecs"
	"github.com/ajroetker/go-ecsgen/opt"
)

type Position struct{ X float64 }

//ecsgen:optimize
func Tick(w store.World, d store.QueryDescription) {
	w.Query(d, opt.Static(func(e store.Entity, p *Position) { p.X = float64(e.ID) }))
}
`)
	src := string(u.Source)
	assert.Contains(t, src, `store "example.com/ecs"`)
	assert.Contains(t, src, "(world *store.World, description store.QueryDescription, _ any)")
	assert.Contains(t, src, "cols := store.GetFirst[Position](chunk)")
	assert.Equal(t, u.Name+"(&w, ", u.Substitution.Text)
	compile(t, pkg, u)
}

func TestSpecializeFieldReceiver(t *testing.T) {
	u, _, pkg := specialize(t, program(`
type System struct {
	world *ecs.World
	query ecs.QueryDescription
}

//ecsgen:optimize
func (s *System) Update() {
	s.world.Query(s.query, opt.Static(func(p *Position) { p.Y-- }))
}
`))
	assert.Equal(t, "ecsgenSystemUpdate0_"+u.ID, u.Name)
	assert.Equal(t, u.Name+"(s.world, ", u.Substitution.Text)
	assert.Equal(t, "s.world.Query(", string(pkg.Sources[u.Substitution.Path][u.Substitution.Start:u.Substitution.End]))
	compile(t, pkg, u)
}

func TestSpecializeFileImportsFollowBody(t *testing.T) {
	u, _, pkg := specialize(t, `package app

import (
	"strings"

	"example.com/ecs"
	"github.com/ajroetker/go-ecsgen/opt"
)

type Name struct{ S string }

//ecsgen:optimize
func Upper(w *ecs.World, d ecs.QueryDescription) {
	w.Query(d, opt.Static(func(n *Name) { n.S = strings.ToUpper(n.S) }))
}
`)
	src := string(u.Source)
	assert.Contains(t, src, `"strings"`)
	assert.Contains(t, src, "n.S = strings.ToUpper(n.S)")
	require.NotContains(t, src, "go-ecsgen/opt")
	compile(t, pkg, u)
}
