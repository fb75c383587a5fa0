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


package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/ajroetker/go-ecsgen/internal/diag"
)

type jsonEvent struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

type jsonUnit struct {
	ID      string `json:"id"`
	Func    string `json:"func"`
	File    string `json:"file"`
	Package string `json:"package"`
	Site    string `json:"site"`
}

type jsonResult struct {
	Units       []jsonUnit  `json:"units"`
	Diagnostics []jsonEvent `json:"diagnostics"`
	Overlay     string      `json:"overlay,omitempty"`
}

func render(w io.Writer, format string, res *result) error {
	if format == "json" {
		return renderJSON(w, res)
	}
	return renderText(w, res)
}

func renderJSON(w io.Writer, res *result) error {
	out := jsonResult{
		Units:       []jsonUnit{},
		Diagnostics: []jsonEvent{},
		Overlay:     res.Manifest,
	}
	for _, u := range res.Units {
		out.Units = append(out.Units, jsonUnit{
			ID:      u.ID,
			Func:    u.Name,
			File:    u.FileName,
			Package: u.Package.Path,
			Site:    u.Site.String(),
		})
	}
	for _, e := range res.Events {
		out.Diagnostics = append(out.Diagnostics, jsonEvent{
			Severity: e.Severity.String(),
			Code:     e.Code.String(),
			Message:  e.Message,
			File:     e.Pos.Filename,
			Line:     e.Pos.Line,
			Column:   e.Pos.Column,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderText(w io.Writer, res *result) error {
	r := lipgloss.NewRenderer(w)
	styles := map[diag.Severity]lipgloss.Style{
		diag.Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		diag.Warning: r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		diag.Info:    r.NewStyle().Foreground(lipgloss.Color("12")),
	}
	dim := r.NewStyle().Faint(true)

	for _, e := range res.Events {
		var loc string
		if e.Pos.IsValid() {
			loc = e.Pos.String() + ": "
		}
		label := styles[e.Severity].Render(e.Severity.String())
		if _, err := fmt.Fprintf(w, "%s%s %s %s\n", loc, label, dim.Render(e.Code.String()), e.Message); err != nil {
			return err
		}
	}
	for _, u := range res.Units {
		if _, err := fmt.Fprintf(w, "%s %s -> %s\n", dim.Render("specialized"), u.Site, u.Name); err != nil {
			return err
		}
	}
	return nil
}
