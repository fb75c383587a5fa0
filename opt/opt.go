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

package opt

// Static marks a query callback as context-free: it captures no variable of
// the enclosing function. It returns fn unchanged.
func Static[F any](fn F) F {
	return fn
}

// NoOptimize keeps a query callback on the generic dispatch path.
// It returns fn unchanged.
func NoOptimize[F any](fn F) F {
	return fn
}

// OutOfScope returns fn(). Inside a specialized callback the call is hoisted
// and evaluated once per query rather than once per record.
func OutOfScope[T any](fn func() T) T {
	return fn()
}

// Break is the sentinel that ends a query early. Only a value whose static
// type is exactly Break is turned into a structural break.
type Break struct{}

func (Break) Error() string { return "opt: query break" }

// CatchBreak recovers a Break panic and re-panics anything else. It must be
// deferred directly:
//
//	defer opt.CatchBreak()
func CatchBreak() {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(Break); ok {
		return
	}
	panic(r)
}
