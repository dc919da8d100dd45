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
	"sort"

	"github.com/dlorenc/rbld/pkg/template"
)

// Variant is spec §3's Variant: a mapping from variant key to a bound
// value, containing exactly the axes used by the recipe being rendered.
type Variant map[string]template.Value

// Keys returns the variant's keys in sorted order.
func (v Variant) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// axisIndex pairs an axis name with the chosen index into its config
// candidate list, needed to check zip_keys group membership.
type axisIndex struct {
	name string
	idx  int
}

// Expand computes the cartesian product of cfg's candidate values
// restricted to axes, then removes any tuple that violates a zip_keys
// grouping: within a zip_keys group, every member axis must be indexed
// by the same position into its own candidate list (spec §4.2 steps 2-3).
func Expand(cfg *Config, axes []string) ([]Variant, error) {
	sortedAxes := append([]string(nil), axes...)
	sort.Strings(sortedAxes)

	lists := make([][]template.Value, len(sortedAxes))
	for i, a := range sortedAxes {
		vals, ok := cfg.Values[a]
		if !ok || len(vals) == 0 {
			lists[i] = []template.Value{nil}
			continue
		}
		lists[i] = vals
	}

	var out []Variant
	indices := make([]int, len(sortedAxes))
	for {
		tuple := make([]axisIndex, len(sortedAxes))
		for i, a := range sortedAxes {
			tuple[i] = axisIndex{name: a, idx: indices[i]}
		}
		if satisfiesZipKeys(cfg.ZipKeys, tuple) {
			v := Variant{}
			for i, a := range sortedAxes {
				v[a] = lists[i][indices[i]]
			}
			out = append(out, v)
		}

		pos := len(sortedAxes) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(lists[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out, nil
}

// satisfiesZipKeys checks that, for every zip_keys group, all member axes
// present in tuple share the same candidate-list index.
func satisfiesZipKeys(groups [][]string, tuple []axisIndex) bool {
	idxByName := map[string]int{}
	for _, t := range tuple {
		idxByName[t.name] = t.idx
	}
	for _, group := range groups {
		var want int
		haveWant := false
		for _, name := range group {
			idx, ok := idxByName[name]
			if !ok {
				continue
			}
			if !haveWant {
				want = idx
				haveWant = true
				continue
			}
			if idx != want {
				return false
			}
		}
	}
	return true
}
