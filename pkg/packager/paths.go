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

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dlorenc/rbld/pkg/postbuild"
)

// PathRecord is one info/paths.json entry.
type PathRecord struct {
	Path            string `json:"_path"`
	PathType        string `json:"path_type"` // "hardlink" or "softlink"
	Sha256          string `json:"sha256"`
	SizeInBytes     int64  `json:"size_in_bytes"`
	PrefixPlaceholder string `json:"file_mode,omitempty"` // "text" or "binary", only when a placeholder was found
}

// Paths is info/paths.json.
type Paths struct {
	PathsVersion int          `json:"paths_version"`
	Paths        []PathRecord `json:"paths"`
}

// BuildPaths walks newFiles under prefixRoot, hashing each one and
// attaching the prefix-placeholder kind the Post-Build Pass recorded
// for it (spec §4.8, "info/paths.json (per-file records)").
func BuildPaths(prefixRoot string, newFiles []string, placeholders []*postbuild.PlaceholderRecord) (Paths, error) {
	byPath := make(map[string]*postbuild.PlaceholderRecord, len(placeholders))
	for _, p := range placeholders {
		byPath[p.Path] = p
	}

	sorted := append([]string(nil), newFiles...)
	sort.Strings(sorted)

	paths := Paths{PathsVersion: 1}
	for _, rel := range sorted {
		abs := filepath.Join(prefixRoot, rel)
		info, err := os.Lstat(abs)
		if err != nil {
			return Paths{}, err
		}

		rec := PathRecord{Path: rel, PathType: "hardlink", SizeInBytes: info.Size()}
		if info.Mode()&os.ModeSymlink != 0 {
			rec.PathType = "softlink"
		} else {
			sum, err := sha256File(abs)
			if err != nil {
				return Paths{}, err
			}
			rec.Sha256 = sum
		}
		if p, ok := byPath[rel]; ok && p.Kind != postbuild.PlaceholderNone {
			rec.PrefixPlaceholder = string(p.Kind)
		}
		paths.Paths = append(paths.Paths, rec)
	}
	return paths, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is a file this process just built
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
