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

package build

import (
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
	"github.com/dlorenc/rbld/pkg/template"
)

// baseContext builds the Variant Resolver's base Context (spec §4.2):
// the platform facts is_linux/is_osx/is_win/is_unix read, plus
// target_platform itself, read against (template.EvaluateTree calls
// fnPlatformProbe("linux"|"osx"|"win"), which look up the bare "linux"/
// "osx"/"win"/"unix" variable names).
func baseContext(target solver.Platform) *template.Context {
	c := template.NewContext()
	c.Set("target_platform", string(target))

	osName := strings.SplitN(string(target), "-", 2)[0]
	c.Set("linux", osName == "linux")
	c.Set("osx", osName == "osx")
	c.Set("win", osName == "win")
	c.Set("unix", osName == "linux" || osName == "osx")

	return c
}

// evaluateContext evaluates a recipe's top-level context: block (if
// present) against base, binding each entry into base in document order
// so later context entries and the rest of the recipe can reference
// earlier ones (rattler-build context block semantics; pkg/variant's
// Resolve documents this as the caller's responsibility since it only
// consumes an already-complete base Context).
func evaluateContext(doc *recipe.Document, base *template.Context) error {
	node, ok := doc.ContextNode()
	if !ok {
		return nil
	}
	for _, entry := range node.Mapping {
		v, err := template.EvaluateTree(base, entry.Value)
		if err != nil {
			return err
		}
		base.Set(entry.Key, v)
	}
	return nil
}
