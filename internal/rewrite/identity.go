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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ajroetker/go-ecsgen/internal/site"
)

// idDomain separates site identifiers from every other digest the tool
// computes.
const idDomain = "ecsgen/site/v1"

// ID returns the stable identifier of a site: the first eight bytes of a
// domain-separated SHA-256 of its file identity, position, and ordinal, in
// hex. It depends on nothing but the key.
func ID(key site.Key) string {
	h := sha256.New()
	h.Write([]byte(idDomain))
	h.Write([]byte{0})
	h.Write([]byte(key.File))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d:%d", key.Line, key.Column)
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", key.Ordinal)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// EntryName builds the generated function name, e.g.
// ecsgenSystemUpdate0_1a2b3c4d5e6f7081 for ordinal 0 of method
// System.Update.
func EntryName(prefix, method string, ordinal int, id string) string {
	caser := cases.Title(language.Und, cases.NoLower)
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, part := range strings.Split(method, ".") {
		sb.WriteString(caser.String(part))
	}
	fmt.Fprintf(&sb, "%d_%s", ordinal, id)
	return sb.String()
}

// FileName is the name of the unit file for id.
func FileName(prefix, id string) string {
	return prefix + id + ".gen.go"
}
