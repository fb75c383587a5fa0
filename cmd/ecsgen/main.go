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


// Command ecsgen specializes bulk ECS queries into direct chunk loops.
//
//	ecsgen gen ./...         write specialized units and overlay.json
//	ecsgen check ./...       report diagnostics only
//
// Build with the emitted overlay:
//
//	go build -overlay .ecsgen/overlay.json ./...
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ecsgen:", err)
		os.Exit(1)
	}
}
