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

// Package config holds the specializer's settings: the names of the store
// contract the generated loops call into, the marker package, and output
// naming.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// MarkersPackage is the import path of the marker package.
const MarkersPackage = "github.com/ajroetker/go-ecsgen/opt"

// Config is the full configuration. The zero value is not usable; start
// from Default.
type Config struct {
	Markers Markers `yaml:"markers"`
	Store   Store   `yaml:"store"`
	Output  Output  `yaml:"output"`

	// BaselineImports are always offered to generated units. Unused ones
	// are pruned after emission.
	BaselineImports []string `yaml:"baseline_imports"`
}

// Markers names the opt-in constructs recognized in user code.
type Markers struct {
	Package    string `yaml:"package"`
	Directive  string `yaml:"directive"`
	Static     string `yaml:"static"`
	NoOptimize string `yaml:"no_optimize"`
	OutOfScope string `yaml:"out_of_scope"`
	Break      string `yaml:"break"`
	CatchBreak string `yaml:"catch_break"`
}

// Store names the host store's iteration contract. The store package is the
// package that declares WorldType.
type Store struct {
	WorldType      string `yaml:"world_type"`
	QueryMethod    string `yaml:"query_method"`
	ChunksMethod   string `yaml:"chunks_method"`
	IndicesMethod  string `yaml:"indices_method"`
	IdentityMethod string `yaml:"identity_method"`
	IdentityType   string `yaml:"identity_type"`
	ColumnsFunc    string `yaml:"columns_func"`
	ColumnField    string `yaml:"column_field"`
}

// Output controls generated names.
type Output struct {
	FilePrefix string `yaml:"file_prefix"`
	FuncPrefix string `yaml:"func_prefix"`
	Generator  string `yaml:"generator"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Markers: Markers{
			Package:    MarkersPackage,
			Directive:  "ecsgen:optimize",
			Static:     "Static",
			NoOptimize: "NoOptimize",
			OutOfScope: "OutOfScope",
			Break:      "Break",
			CatchBreak: "CatchBreak",
		},
		Store: Store{
			WorldType:      "World",
			QueryMethod:    "Query",
			ChunksMethod:   "Chunks",
			IndicesMethod:  "Indices",
			IdentityMethod: "Entity",
			IdentityType:   "Entity",
			ColumnsFunc:    "GetFirst",
			ColumnField:    "T",
		},
		Output: Output{
			FilePrefix: "z_ecsgen_",
			FuncPrefix: "ecsgen",
			Generator:  "ecsgen",
		},
		BaselineImports: []string{"unsafe"},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every name the generator emits is a Go identifier.
func (c *Config) Validate() error {
	idents := []struct {
		field, value string
	}{
		{"markers.static", c.Markers.Static},
		{"markers.no_optimize", c.Markers.NoOptimize},
		{"markers.out_of_scope", c.Markers.OutOfScope},
		{"markers.break", c.Markers.Break},
		{"markers.catch_break", c.Markers.CatchBreak},
		{"store.world_type", c.Store.WorldType},
		{"store.query_method", c.Store.QueryMethod},
		{"store.chunks_method", c.Store.ChunksMethod},
		{"store.indices_method", c.Store.IndicesMethod},
		{"store.identity_method", c.Store.IdentityMethod},
		{"store.identity_type", c.Store.IdentityType},
		{"store.columns_func", c.Store.ColumnsFunc},
		{"store.column_field", c.Store.ColumnField},
		{"output.func_prefix", c.Output.FuncPrefix},
	}
	var errs []error
	for _, id := range idents {
		if !token.IsIdentifier(id.value) {
			errs = append(errs, fmt.Errorf("%s: %q is not a Go identifier", id.field, id.value))
		}
	}
	if c.Markers.Package == "" {
		errs = append(errs, errors.New("markers.package: must not be empty"))
	}
	if c.Markers.Directive == "" {
		errs = append(errs, errors.New("markers.directive: must not be empty"))
	}
	return errors.Join(errs...)
}

// Fingerprint is a stable digest of the configuration, used to key caches.
func (c *Config) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		// Config only holds strings and string slices.
		panic(fmt.Sprintf("config: marshal: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
