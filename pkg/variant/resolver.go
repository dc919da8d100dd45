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

package variant

import (
	"fmt"
	"sort"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/template"
)

// Rendered is one surviving candidate out of the Variant Resolver
// (spec §4.2): the bound Variant, the fully-evaluated Stage-1 recipe,
// the set of variable names it actually used, and its computed hash and
// build_string.
type Rendered struct {
	Variant     Variant
	Stage1      *recipe.Stage1
	UsedVars    map[string]bool
	Hash        string
	BuildString string
}

// Resolve runs the full Variant Resolver algorithm (spec §4.2 steps 1-6)
// for one recipe document against cfg and a base Context carrying
// platform facts and `context:` values. base must not itself hold
// variant-axis bindings; those are layered in per candidate.
func Resolve(doc *recipe.Document, cfg *Config, base *template.Context) ([]Rendered, error) {
	used, err := UsedVars(doc.Root)
	if err != nil {
		return nil, fmt.Errorf("computing used_vars: %w", err)
	}

	var axes []string
	for name := range used {
		if _, ok := cfg.Values[name]; ok {
			axes = append(axes, name)
		}
	}
	sort.Strings(axes)

	candidates, err := Expand(cfg, axes)
	if err != nil {
		return nil, fmt.Errorf("expanding variant axes: %w", err)
	}
	if len(axes) == 0 {
		candidates = []Variant{{}}
	}

	seen := map[string]bool{}
	var out []Rendered
	for _, v := range candidates {
		ctx := base.Clone()
		for k, val := range v {
			if val != nil {
				ctx.Set(k, val)
			}
		}
		tracked, trackMap := ctx.WithTracking()

		tree, err := template.EvaluateTree(tracked, doc.Root)
		if err != nil {
			return nil, fmt.Errorf("rendering variant %v: %w", v, err)
		}

		s1, err := DecodeStage1(tree)
		if err != nil {
			return nil, fmt.Errorf("decoding stage1 for variant %v: %w", v, err)
		}

		outUsed := map[string]bool{}
		for k := range *trackMap {
			if _, ok := v[k]; ok {
				outUsed[k] = true
			}
		}

		restricted := Variant{}
		for k := range outUsed {
			restricted[k] = v[k]
		}

		dedupKey := stage1DedupKey(restricted, s1)
		if seen[dedupKey] {
			continue
		}
		seen[dedupKey] = true

		hash, err := Hash(restricted, s1.Package.Name, s1.Package.Version, s1.Build.Noarch)
		if err != nil {
			return nil, fmt.Errorf("hashing variant %v: %w", v, err)
		}
		buildString := s1.Build.String
		if buildString == "" {
			buildString = BuildString(restricted, cfg, hash, s1.Build.Number)
		}

		out = append(out, Rendered{
			Variant:     restricted,
			Stage1:      s1,
			UsedVars:    outUsed,
			Hash:        hash,
			BuildString: buildString,
		})
	}

	return out, nil
}

// stage1DedupKey implements spec §4.2 step 5's canonicalization: two
// candidates with the same used_vars that render identical Stage-1
// recipes collapse to one. The variant's restricted key=value pairs
// plus the rendered package name, version and noarch kind are a sufficient
// proxy for "identical Stage-1 recipe" without a full structural diff,
// since every templated field is itself driven by the same used_vars.
func stage1DedupKey(v Variant, s1 *recipe.Stage1) string {
	key := fmt.Sprintf("%s/%s/%s", s1.Package.Name, s1.Package.Version, s1.Build.Noarch)
	for _, k := range v.Keys() {
		key += fmt.Sprintf("|%s=%v", k, v[k])
	}
	return key
}
