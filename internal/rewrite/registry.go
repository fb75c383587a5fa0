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
	"slices"
	"strings"
	"sync"

	"github.com/ajroetker/go-ecsgen/internal/site"
)

// Registry maps sites to their units for one compilation. It is safe for
// concurrent use, though the engine registers in a deterministic order.
type Registry struct {
	mu     sync.Mutex
	bySite map[site.Key]*Unit
	byID   map[string]site.Key
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bySite: make(map[site.Key]*Unit),
		byID:   make(map[string]site.Key),
	}
}

// CollisionError reports two sites whose identifiers are equal.
type CollisionError struct {
	ID          string
	First, Next site.Key
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("sites %s and %s share identifier %s", e.First, e.Next, e.ID)
}

// Register records u. Registering the same site again replaces its unit; a
// different site with the same identifier is a *CollisionError and u is not
// recorded.
func (r *Registry) Register(u *Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byID[u.ID]; ok && prev != u.Site {
		return &CollisionError{ID: u.ID, First: prev, Next: u.Site}
	}
	if old, ok := r.bySite[u.Site]; ok && old.ID != u.ID {
		delete(r.byID, old.ID)
	}
	r.bySite[u.Site] = u
	r.byID[u.ID] = u.Site
	return nil
}

// Lookup returns the unit registered for key.
func (r *Registry) Lookup(key site.Key) (*Unit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.bySite[key]
	return u, ok
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySite)
}

// Units returns the registered units ordered by file, position, and ordinal.
func (r *Registry) Units() []*Unit {
	r.mu.Lock()
	out := make([]*Unit, 0, len(r.bySite))
	for _, u := range r.bySite {
		out = append(out, u)
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b *Unit) int { return compareKeys(a.Site, b.Site) })
	return out
}

func compareKeys(a, b site.Key) int {
	if c := strings.Compare(a.File, b.File); c != 0 {
		return c
	}
	if a.Line != b.Line {
		return a.Line - b.Line
	}
	if a.Column != b.Column {
		return a.Column - b.Column
	}
	return a.Ordinal - b.Ordinal
}
