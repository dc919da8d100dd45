// Copyright 2024 Chainguard, Inc.
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

package graph

import "github.com/dlorenc/rbld/pkg/recipe"

// PropagateRunExports folds done's run_exports into every sibling output
// that lists done among its Dependencies, per spec §4.4's run_exports
// propagation: a package listed as a host dependency injects its strong
// run_exports into the consumer's host+run requirements, and its weak
// run_exports into the consumer's run requirements only.
//
// Call this once done transitions to Built, before any dependent begins
// environment resolution.
func (g *Graph) PropagateRunExports(done string) {
	src, ok := g.outputs[done]
	if !ok {
		return
	}
	exports := src.Rendered.Stage1.Build.RunExports

	for _, o := range g.outputs {
		if !dependsOn(o, done) {
			continue
		}
		req := &o.Rendered.Stage1.Requirements
		req.Host = appendMissing(req.Host, exports.Strong...)
		req.Run = appendMissing(req.Run, exports.Strong...)
		req.Run = appendMissing(req.Run, exports.Weak...)
		req.RunConstrained = appendMissing(req.RunConstrained, exports.StrongConstrains...)
		req.RunConstrained = appendMissing(req.RunConstrained, exports.WeakConstrains...)
	}
}

func dependsOn(o *Output, name string) bool {
	for _, d := range o.Dependencies {
		if d == name {
			return true
		}
	}
	return false
}

func appendMissing(dst []recipe.MatchSpec, specs ...recipe.MatchSpec) []recipe.MatchSpec {
	for _, s := range specs {
		found := false
		for _, existing := range dst {
			if existing == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// ApplySkips marks every output whose Stage1 build.skip evaluated true as
// Skipped, and cascades Skipped to their dependents (spec §4.4's "skip
// handling").
func (g *Graph) ApplySkips() {
	for name, o := range g.outputs {
		if o.Rendered.Stage1.Build.Skip && o.State() == Pending {
			o.setState(Skipped)
			g.MarkDependentsSkipped(name, "dependency "+name+" has build.skip: true")
		}
	}
}
