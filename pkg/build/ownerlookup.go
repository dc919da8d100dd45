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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dlorenc/rbld/pkg/postbuild"
	"github.com/dlorenc/rbld/pkg/recipe"
)

// condaMetaRecord is the subset of a standard conda-meta/<dist>.json
// record this package needs: the installed package's identity and the
// prefix-relative files it owns.
type condaMetaRecord struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Build   string   `json:"build"`
	Files   []string `json:"files"`
}

// buildOwnerLookup scans hostPrefix's conda-meta directory (the
// standard location any conda-compliant Installer writes package
// manifests to) to answer spec §4.7d's PE-import "file->owner lookup"
// by basename. Prefixes with no conda-meta directory (e.g. a test
// double) yield a lookup that always misses rather than erroring.
func buildOwnerLookup(hostPrefix string) (postbuild.OwnerLookup, error) {
	dir := filepath.Join(hostPrefix, "conda-meta")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return func(string) (recipe.MatchSpec, bool) { return "", false }, nil
		}
		return nil, err
	}

	bySoname := map[string]recipe.MatchSpec{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name())) // #nosec G304 - path derived from a conda-meta directory we just listed
		if err != nil {
			continue
		}
		var rec condaMetaRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		spec := recipe.MatchSpec(rec.Name + " ==" + rec.Version + "=" + rec.Build)
		for _, f := range rec.Files {
			bySoname[filepath.Base(f)] = spec
		}
	}

	return func(soname string) (recipe.MatchSpec, bool) {
		spec, ok := bySoname[soname]
		return spec, ok
	}, nil
}
