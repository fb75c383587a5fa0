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


package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoDo(t *testing.T) {
	m := New[int]()
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	v, cached, err := m.Do("k", compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, cached)

	v, cached, err = m.Do("k", compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, cached)
	assert.Equal(t, 1, calls)

	hits, misses := m.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, m.Len())
}

func TestMemoErrorsAreNotCached(t *testing.T) {
	m := New[string]()
	boom := errors.New("boom")
	_, _, err := m.Do("k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())

	v, cached, err := m.Do("k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.False(t, cached)
}

func TestMemoForget(t *testing.T) {
	m := New[int]()
	_, _, _ = m.Do("k", func() (int, error) { return 1, nil })
	m.Forget("k")
	_, ok := m.Get("k")
	assert.False(t, ok)

	v, cached, err := m.Do("k", func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.False(t, cached)
}

func TestMemoConcurrent(t *testing.T) {
	m := New[int]()
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 16
	var wg sync.WaitGroup
	results := make([]int, n)
	fresh := make([]bool, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, cached, err := m.Do("k", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			assert.NoError(t, err)
			results[i] = v
			fresh[i] = !cached
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
	computed := 0
	for _, f := range fresh {
		if f {
			computed++
		}
	}
	assert.Equal(t, 1, computed)
}
