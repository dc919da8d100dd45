// Copyright 2022 Chainguard, Inc.
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

package packager

import "github.com/dlorenc/rbld/pkg/recipe"

// RunExports is info/run_exports.json, the same shape the graph's
// run-export propagation consumes (spec GLOSSARY, "run_exports").
type RunExports struct {
	NoArch           []string `json:"noarch,omitempty"`
	Strong           []string `json:"strong,omitempty"`
	Weak             []string `json:"weak,omitempty"`
	StrongConstrains []string `json:"strong_constrains,omitempty"`
	WeakConstrains   []string `json:"weak_constrains,omitempty"`
}

// BuildRunExports assembles run_exports.json from the rendered Stage1's
// RunExports block.
func BuildRunExports(r recipe.RunExports) RunExports {
	return RunExports{
		NoArch:           matchSpecStrings(r.NoArch),
		Strong:           matchSpecStrings(r.Strong),
		Weak:             matchSpecStrings(r.Weak),
		StrongConstrains: matchSpecStrings(r.StrongConstrains),
		WeakConstrains:   matchSpecStrings(r.WeakConstrains),
	}
}
