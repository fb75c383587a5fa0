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
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajroetker/go-ecsgen/internal/site"
)

func TestID(t *testing.T) {
	key := site.Key{File: "systems/move.go", Line: 12, Column: 2, Ordinal: 0}
	id := ID(key)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), id)
	assert.Equal(t, id, ID(key))

	others := []site.Key{
		{File: "systems/move.go", Line: 12, Column: 2, Ordinal: 1},
		{File: "systems/move.go", Line: 12, Column: 3, Ordinal: 0},
		{File: "systems/move.go", Line: 13, Column: 2, Ordinal: 0},
		{File: "systems/other.go", Line: 12, Column: 2, Ordinal: 0},
		// Field boundaries are part of the digest.
		{File: "systems/move.go1", Line: 2, Column: 2, Ordinal: 0},
	}
	seen := map[string]site.Key{id: key}
	for _, k := range others {
		got := ID(k)
		prev, dup := seen[got]
		assert.False(t, dup, "%s and %s share %s", prev, k, got)
		seen[got] = k
	}
}

func TestEntryName(t *testing.T) {
	tests := []struct {
		method  string
		ordinal int
		want    string
	}{
		{"Update", 0, "ecsgenUpdate0_00ff"},
		{"tick", 2, "ecsgenTick2_00ff"},
		{"System.Update", 1, "ecsgenSystemUpdate1_00ff"},
		{"movement.apply", 0, "ecsgenMovementApply0_00ff"},
		{"HTTPServer.serve", 3, "ecsgenHTTPServerServe3_00ff"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, EntryName("ecsgen", tt.method, tt.ordinal, "00ff"))
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "z_ecsgen_0123456789abcdef.gen.go", FileName("z_ecsgen_", "0123456789abcdef"))
}
