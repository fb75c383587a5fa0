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


// Package cache memoizes pure computations keyed by content hashes.
package cache

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Memo caches the results of a pure function by key. Concurrent requests
// for a missing key share a single computation. Errors are not cached.
type Memo[V any] struct {
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]V

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns an empty Memo.
func New[V any]() *Memo[V] {
	return &Memo[V]{entries: make(map[string]V)}
}

// Get returns the cached value for key.
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Do returns the value for key, calling fn to compute it on a miss. cached
// is false only for the caller whose fn ran.
func (m *Memo[V]) Do(key string, fn func() (V, error)) (v V, cached bool, err error) {
	if v, ok := m.Get(key); ok {
		m.hits.Add(1)
		return v, true, nil
	}
	ran := false
	res, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		ran = true
		v, err := fn()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries[key] = v
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	if ran {
		m.misses.Add(1)
	} else {
		m.hits.Add(1)
	}
	return res.(V), !ran, nil
}

// Forget drops key.
func (m *Memo[V]) Forget(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	m.group.Forget(key)
}

// Len returns the number of cached entries.
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns the hit and miss counts.
func (m *Memo[V]) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}
