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
	"strconv"
	"strings"
	"unicode"
)

// names are the identifiers synthesized code declares.
type names struct {
	World       string
	Description string
	Chunk       string
	Index       string
	Cols        string
	Chunks      string // label of the chunk loop
	Records     string // label of the record loop
}

// freshNames picks names absent from taken, and marks them taken.
func freshNames(taken map[string]bool) names {
	pick := func(base string) string {
		name := base
		for i := 1; taken[name]; i++ {
			name = base + strconv.Itoa(i)
		}
		taken[name] = true
		return name
	}
	return names{
		World:       pick("world"),
		Description: pick("description"),
		Chunk:       pick("chunk"),
		Index:       pick("index"),
		Cols:        pick("cols"),
		Chunks:      pick("chunks"),
		Records:     pick("records"),
	}
}

// words adds every identifier-like word of s to set.
func words(s string, set map[string]bool) {
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = true
	}
}
