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
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// Hash computes spec §3's "hash = BLAKE-family digest over {sorted
// used-variant key→value, recipe name, version, noarch kind}" for one
// rendered output.
func Hash(v Variant, name recipe.PackageName, version recipe.Version, noarch recipe.NoarchKind) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("creating blake2b hasher: %w", err)
	}

	for _, k := range v.Keys() {
		fmt.Fprintf(h, "%s=%v\n", k, v[k])
	}
	fmt.Fprintf(h, "name=%s\n", string(name))
	fmt.Fprintf(h, "version=%s\n", string(version))
	fmt.Fprintf(h, "noarch=%s\n", string(noarch))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// BuildString computes spec §3's build_string:
// "<concat of sorted used-variant values>h<first 7 chars of hash>_<build_number>"
// unless the recipe overrides it explicitly.
func BuildString(v Variant, cfg *Config, hash string, buildNumber uint64) string {
	keys := v.Keys()
	// down_prioritize_variant axes sort after non-prioritized ones so
	// their values land at the end of the concatenation, per SPEC_FULL's
	// "tiebreaker, not a hash input exclusion" resolution.
	sort.SliceStable(keys, func(i, j int) bool {
		di := cfg != nil && cfg.isDownPrioritized(keys[i])
		dj := cfg != nil && cfg.isDownPrioritized(keys[j])
		if di != dj {
			return !di
		}
		return keys[i] < keys[j]
	})

	var sb strings.Builder
	for _, k := range keys {
		val := v[k]
		if val == nil {
			continue
		}
		sb.WriteString(sanitizeBuildStringComponent(fmt.Sprintf("%v", val)))
	}
	sb.WriteByte('h')
	if len(hash) >= 7 {
		sb.WriteString(hash[:7])
	} else {
		sb.WriteString(hash)
	}
	sb.WriteByte('_')
	fmt.Fprintf(&sb, "%d", buildNumber)
	return sb.String()
}

// sanitizeBuildStringComponent strips characters that are not legal in a
// package filename segment (notably '.' in version-like variant values).
func sanitizeBuildStringComponent(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
