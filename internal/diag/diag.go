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

// Package diag is the diagnostics channel of the specializer. Every stage
// reports typed events to a Sink; sinks accept concurrent, order-independent
// appends.
package diag

import (
	"fmt"
	"go/token"
	"slices"
	"strings"
	"sync"
)

// Severity classifies an Event.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Code identifies the kind of an Event. Codes are stable across releases.
type Code int

const (
	CodeBuildNotWired      Code = 0  // units were produced; the build must use the overlay
	CodeNotStatic          Code = 1  // callback lacks opt.Static
	CodeValueCallback      Code = 2  // callback returns values
	CodeHoistBlock         Code = 3  // OutOfScope literal is not a single return
	CodeHoistNotLiteral    Code = 4  // OutOfScope argument is not a function literal
	CodeDuplicateIdentity  Code = 5  // two identity parameters
	CodeNotLiteral         Code = 6  // callback is not a function literal
	CodeUnresolvedType     Code = 7  // parameter type cannot be resolved
	CodeCapture            Code = 8  // Static callback captures a local
	CodeDefer              Code = 9  // defer in callback body
	CodeHoistNested        Code = 10 // OutOfScope inside a larger expression
	CodeHoistReference     Code = 11 // hoisted code references per-record state
	CodeHoistConflict      Code = 12 // hoisted declaration name conflicts
	CodeBreakSideEffect    Code = 13 // Break operand may have side effects
	CodeIdentityCollision  Code = 14 // two sites hash to the same identifier
	CodeInternal           Code = 15 // unexpected shape while specializing
	CodeGenericEnclosing   Code = 16 // query inside a generic function
)

func (c Code) String() string {
	return fmt.Sprintf("ECS%03d", int(c))
}

// Event is one diagnostic.
type Event struct {
	Severity Severity
	Code     Code
	Message  string
	Pos      token.Position
}

func (e Event) String() string {
	var sb strings.Builder
	if e.Pos.IsValid() {
		sb.WriteString(e.Pos.String())
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s %s: %s", e.Severity, e.Code, e.Message)
	return sb.String()
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Report(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Tee reports each event to all sinks in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Report(e)
		}
	})
}

// Collector stores events in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Report(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Events returns a sorted copy of the collected events. The order depends
// only on event contents, never on arrival order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	out := slices.Clone(c.events)
	c.mu.Unlock()
	slices.SortFunc(out, Compare)
	return out
}

// Count returns the number of collected events with the given severity.
func (c *Collector) Count(sev Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether any Error event was collected.
func (c *Collector) HasErrors() bool {
	return c.Count(Error) > 0
}

// Compare orders events by file, line, column, code, then message.
func Compare(a, b Event) int {
	if c := strings.Compare(a.Pos.Filename, b.Pos.Filename); c != 0 {
		return c
	}
	if a.Pos.Line != b.Pos.Line {
		return a.Pos.Line - b.Pos.Line
	}
	if a.Pos.Column != b.Pos.Column {
		return a.Pos.Column - b.Pos.Column
	}
	if a.Code != b.Code {
		return int(a.Code) - int(b.Code)
	}
	return strings.Compare(a.Message, b.Message)
}

// Abort is the error a stage returns when it gives up on a site. It always
// carries the event that explains why.
type Abort struct {
	Event Event
}

func (a *Abort) Error() string {
	return a.Event.String()
}
