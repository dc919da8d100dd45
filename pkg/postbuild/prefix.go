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

package postbuild

import (
	"bytes"
	"os"
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// PlaceholderKind is spec §4.7c's prefix_placeholder_kind.
type PlaceholderKind string

const (
	PlaceholderNone   PlaceholderKind = ""
	PlaceholderText   PlaceholderKind = "text"
	PlaceholderBinary PlaceholderKind = "binary"
)

// PlaceholderRecord is one file's prefix-placeholder scan result.
type PlaceholderRecord struct {
	Path        string
	Kind        PlaceholderKind
	Occurrences int
}

// ScanPrefixPlaceholder implements spec §4.7c: scan full for occurrences
// of prefix (and, on Windows, its backslash variant), honoring the
// force-text/force-binary/ignore overrides in policy.
func ScanPrefixPlaceholder(relPath, absPath, prefix string, policy recipe.PrefixDetectionPolicy) (*PlaceholderRecord, error) {
	if policy.Ignore.Match(relPath) {
		return &PlaceholderRecord{Path: relPath, Kind: PlaceholderNone}, nil
	}

	data, err := os.ReadFile(absPath) // #nosec G304 - path comes from our own prefix walk
	if err != nil {
		return nil, err
	}

	needles := [][]byte{[]byte(prefix)}
	if back := strings.ReplaceAll(prefix, "/", `\`); back != prefix {
		needles = append(needles, []byte(back))
	}

	count := 0
	for _, needle := range needles {
		count += bytes.Count(data, needle)
	}
	if count == 0 {
		return &PlaceholderRecord{Path: relPath, Kind: PlaceholderNone}, nil
	}

	kind := PlaceholderText
	switch {
	case policy.ForceBinary.Match(relPath):
		kind = PlaceholderBinary
	case policy.ForceText.Match(relPath):
		kind = PlaceholderText
	case IsBinaryContent(data):
		kind = PlaceholderBinary
	}

	return &PlaceholderRecord{Path: relPath, Kind: kind, Occurrences: count}, nil
}
