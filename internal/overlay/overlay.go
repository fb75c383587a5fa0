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


// Package overlay turns specialized units into a Go build overlay: the
// generated files, rewritten copies of the files whose query calls were
// redirected, and the overlay.json that `go build -overlay` reads. Source
// trees are never modified.
package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/go-ecsgen/internal/discover"
	"github.com/ajroetker/go-ecsgen/internal/rewrite"
)

// ManifestName is the file name of the overlay manifest.
const ManifestName = "overlay.json"

// File is one replacement the build sees.
type File struct {
	Target string // absolute path the compiler reads
	Name   string // slash path relative to the output directory
	Data   []byte
}

// Overlay is the set of replacements for one run, ordered by Target.
type Overlay struct {
	Files []File
}

// ReadFunc returns the current contents of a source file.
type ReadFunc func(path string) ([]byte, error)

// SourceReader reads files from the loaded packages and falls back to disk
// for anything they do not hold.
func SourceReader(pkgs []*discover.Package) ReadFunc {
	sources := make(map[string][]byte)
	for _, p := range pkgs {
		for path, src := range p.Sources {
			sources[path] = src
		}
	}
	return func(path string) ([]byte, error) {
		if src, ok := sources[path]; ok {
			return src, nil
		}
		return os.ReadFile(path)
	}
}

// Build assembles the overlay of units. Substitutions of the same file are
// applied together; overlapping substitutions are an error.
func Build(units []*rewrite.Unit, read ReadFunc) (*Overlay, error) {
	o := &Overlay{}
	for _, u := range units {
		o.Files = append(o.Files, File{
			Target: filepath.Join(u.Dir, u.FileName),
			Name:   path.Join(packageDir(u), u.FileName),
			Data:   u.Source,
		})
	}

	byPath := lo.GroupBy(units, func(u *rewrite.Unit) string { return u.Substitution.Path })
	paths := lo.Keys(byPath)
	slices.Sort(paths)
	for _, p := range paths {
		group := byPath[p]
		src, err := read(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		subs := lo.Map(group, func(u *rewrite.Unit, _ int) rewrite.Substitution { return u.Substitution })
		data, err := Apply(src, subs)
		if err != nil {
			return nil, fmt.Errorf("rewrite %s: %w", p, err)
		}
		o.Files = append(o.Files, File{
			Target: p,
			Name:   path.Join(packageDir(group[0]), filepath.Base(p)),
			Data:   data,
		})
	}

	slices.SortFunc(o.Files, func(a, b File) int { return strings.Compare(a.Target, b.Target) })
	for i := 1; i < len(o.Files); i++ {
		if o.Files[i].Target == o.Files[i-1].Target {
			return nil, fmt.Errorf("two overlay entries for %s", o.Files[i].Target)
		}
	}
	return o, nil
}

// packageDir is the output subdirectory of u's package.
func packageDir(u *rewrite.Unit) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(u.Package.Path)
}

// Apply returns a copy of src with subs applied. Each substitution must lie
// within src and none may overlap another.
func Apply(src []byte, subs []rewrite.Substitution) ([]byte, error) {
	subs = slices.Clone(subs)
	slices.SortFunc(subs, func(a, b rewrite.Substitution) int { return a.Start - b.Start })
	for i, s := range subs {
		if s.Start < 0 || s.End < s.Start || s.End > len(src) {
			return nil, fmt.Errorf("substitution [%d,%d) out of range", s.Start, s.End)
		}
		if i > 0 && subs[i-1].End > s.Start {
			return nil, fmt.Errorf("substitutions [%d,%d) and [%d,%d) overlap",
				subs[i-1].Start, subs[i-1].End, s.Start, s.End)
		}
	}
	var b bytes.Buffer
	b.Grow(len(src))
	last := 0
	for _, s := range subs {
		b.Write(src[last:s.Start])
		b.WriteString(s.Text)
		last = s.End
	}
	b.Write(src[last:])
	return b.Bytes(), nil
}

// Manifest renders overlay.json for files written under outDir.
func (o *Overlay) Manifest(outDir string) ([]byte, error) {
	replace := make(map[string]string, len(o.Files))
	for _, f := range o.Files {
		replace[f.Target] = filepath.Join(outDir, filepath.FromSlash(f.Name))
	}
	data, err := json.MarshalIndent(struct {
		Replace map[string]string
	}{replace}, "", "\t")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write stores the overlay under outDir and returns the absolute path of its
// manifest.
func (o *Overlay) Write(outDir string) (string, error) {
	dir, err := filepath.Abs(outDir)
	if err != nil {
		return "", err
	}
	for _, f := range o.Files {
		dst := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, f.Data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", dst, err)
		}
	}
	manifest, err := o.Manifest(dir)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	out := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(out, manifest, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}
