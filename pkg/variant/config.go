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

// Package variant implements the Variant Resolver (spec §4.2): it
// enumerates the cartesian product of variant axes used by a recipe,
// applies zip_keys constraints, deduplicates identical Stage-1 renders,
// and computes each surviving candidate's hash and build_string.
package variant

import "github.com/dlorenc/rbld/pkg/template"

// Config is a Variant Config: candidate values per axis plus zip_keys
// grouping and tie-break directives (spec §4.2 inputs). Multiple
// --variant-config files merge into one Config in argument order, later
// files overriding earlier ones key-by-key (SPEC_FULL supplement).
type Config struct {
	Values               map[string][]template.Value
	ZipKeys              [][]string
	PinRunAsBuild        []string
	DownPrioritizeVariant []string
}

// NewConfig returns an empty Config ready for Merge calls.
func NewConfig() *Config {
	return &Config{Values: map[string][]template.Value{}}
}

// Merge layers other onto c: other's per-key value lists replace c's for
// any key present in both, matching --variant-config's documented
// last-wins-per-key override order.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	for k, v := range other.Values {
		c.Values[k] = v
	}
	if len(other.ZipKeys) > 0 {
		c.ZipKeys = other.ZipKeys
	}
	if len(other.PinRunAsBuild) > 0 {
		c.PinRunAsBuild = other.PinRunAsBuild
	}
	if len(other.DownPrioritizeVariant) > 0 {
		c.DownPrioritizeVariant = other.DownPrioritizeVariant
	}
}

// SetOverride applies a single --variant KEY=VALUE override, replacing
// that axis's candidate list with the single given value.
func (c *Config) SetOverride(key string, value template.Value) {
	c.Values[key] = []template.Value{value}
}

func (c *Config) isDownPrioritized(key string) bool {
	for _, k := range c.DownPrioritizeVariant {
		if k == key {
			return true
		}
	}
	return false
}
