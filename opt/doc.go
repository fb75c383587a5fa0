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

// Package opt holds the markers that ecsgen recognizes inside query
// callbacks. Every marker is an identity at run time, so code that uses them
// behaves the same whether or not the call site was specialized.
//
// # Opting in
//
// A function opts in with the //ecsgen:optimize directive. Inside it, each
// bulk query whose callback is wrapped in Static is specialized:
//
//	//ecsgen:optimize
//	func Move(world *ecs.World, q ecs.QueryDescription) {
//	    world.Query(q, opt.Static(func(pos *Position, vel *Velocity) {
//	        pos.X += vel.X
//	        pos.Y += vel.Y
//	    }))
//	}
//
// Static asserts that the callback captures nothing from the enclosing
// function; ecsgen verifies it and relocates the body into a generated loop.
// NoOptimize keeps a callback on the generic path without a diagnostic.
//
// # Escape hatches
//
// OutOfScope evaluates its argument once before the loop instead of once per
// record:
//
//	rng := opt.OutOfScope(func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) })
//
// Panicking with a Break value stops the whole query:
//
//	if pos.X > limit {
//	    panic(opt.Break{})
//	}
package opt
