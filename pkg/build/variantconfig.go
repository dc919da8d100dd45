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
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dlorenc/rbld/pkg/template"
	"github.com/dlorenc/rbld/pkg/variant"
)

// variantConfigFile is the on-disk shape of a --variant-config YAML
// file: scalar or list values per axis, plus the reserved zip_keys/
// pin_run_as_build/down_prioritize_variant directives (SPEC_FULL
// supplement, rattler-build variant_config.yaml shape).
type variantConfigFile struct {
	ZipKeys               [][]string          `yaml:"zip_keys,omitempty"`
	PinRunAsBuild         []string            `yaml:"pin_run_as_build,omitempty"`
	DownPrioritizeVariant []string            `yaml:"down_prioritize_variant,omitempty"`
	Axes                  map[string]yaml.Node `yaml:",inline"`
}

// loadVariantConfig builds a merged variant.Config from a list of
// --variant-config file paths (merged in argument order, later files
// overriding earlier ones per-key) plus --variant KEY=VALUE overrides,
// applied last (spec §4.2/SPEC_FULL's documented merge order).
func loadVariantConfig(paths []string, overrides map[string]string) (*variant.Config, error) {
	cfg := variant.NewConfig()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading variant config %s: %w", p, err)
		}
		next, err := parseVariantConfig(data)
		if err != nil {
			return nil, fmt.Errorf("parsing variant config %s: %w", p, err)
		}
		cfg.Merge(next)
	}

	for _, group := range cfg.ZipKeys {
		want := -1
		for _, k := range group {
			vals, ok := cfg.Values[k]
			if !ok {
				continue
			}
			if want == -1 {
				want = len(vals)
			} else if len(vals) != want {
				return nil, fmt.Errorf("zip_keys group %v: %s has %d values, expected %d", group, k, len(vals), want)
			}
		}
	}

	if len(overrides) > 0 {
		over := variant.NewConfig()
		for k, v := range overrides {
			over.Values[k] = []template.Value{v}
		}
		cfg.Merge(over)
	}

	return cfg, nil
}

func parseVariantConfig(data []byte) (*variant.Config, error) {
	var raw variantConfigFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	cfg := variant.NewConfig()
	cfg.ZipKeys = raw.ZipKeys
	cfg.PinRunAsBuild = raw.PinRunAsBuild
	cfg.DownPrioritizeVariant = raw.DownPrioritizeVariant

	for key, node := range raw.Axes {
		values, err := decodeAxisValues(&node)
		if err != nil {
			return nil, fmt.Errorf("axis %s: %w", key, err)
		}
		cfg.Values[key] = values
	}

	return cfg, nil
}

// decodeAxisValues accepts either a scalar ("3.11") or a list (["3.10",
// "3.11"]) for one axis, matching rattler-build's variant_config.yaml
// relaxed shape.
func decodeAxisValues(n *yaml.Node) ([]template.Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []template.Value{scalarValue(n)}, nil
	case yaml.SequenceNode:
		out := make([]template.Value, 0, len(n.Content))
		for _, item := range n.Content {
			out = append(out, scalarValue(item))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported node kind %d", n.Kind)
	}
}

func scalarValue(n *yaml.Node) template.Value {
	switch n.Tag {
	case "!!bool":
		b, _ := strconv.ParseBool(n.Value)
		return b
	case "!!int":
		i, _ := strconv.ParseInt(n.Value, 10, 64)
		return i
	default:
		return n.Value
	}
}

// parseVariantOverride splits a --variant KEY=VALUE argument.
func parseVariantOverride(s string) (key, value string, err error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", fmt.Errorf("invalid --variant %q: expected KEY=VALUE", s)
	}
	return k, v, nil
}
