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
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

// Index is info/index.json (spec §6, "Package on-disk layout").
type Index struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Build        string   `json:"build"`
	BuildNumber  uint64   `json:"build_number"`
	Subdir       string   `json:"subdir"`
	Depends      []string `json:"depends"`
	Constrains   []string `json:"constrains,omitempty"`
	Timestamp    int64    `json:"timestamp"`
	License      string   `json:"license,omitempty"`
	LicenseFamily string  `json:"license_family,omitempty"`
	Noarch       string   `json:"noarch,omitempty"`
	Platform     string   `json:"platform,omitempty"`
	Arch         string   `json:"arch,omitempty"`
}

// BuildIndex assembles index.json from the rendered Stage1, the
// variant's computed build string, the resolved run dependencies, and
// the single build_timestamp for the whole run.
func BuildIndex(s1 *recipe.Stage1, buildString string, buildNum uint64, subdir solver.Platform, run []recipe.MatchSpec, constrains []recipe.MatchSpec, timestamp recipe.BuildTimestamp) Index {
	idx := Index{
		Name:        string(s1.Package.Name),
		Version:     string(s1.Package.Version),
		Build:       buildString,
		BuildNumber: buildNum,
		Subdir:      string(subdir),
		Depends:     matchSpecStrings(run),
		Constrains:  matchSpecStrings(constrains),
		Timestamp:   timestamp.UnixMilli(),
		License:     string(s1.About.License),
	}
	if s1.Build.Noarch != recipe.NoarchNone {
		idx.Noarch = string(s1.Build.Noarch)
		idx.Subdir = "noarch"
	} else {
		idx.Platform, idx.Arch = platformArch(subdir)
	}
	return idx
}

func matchSpecStrings(specs []recipe.MatchSpec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, string(s))
	}
	return out
}

// platformArch splits a conda subdir ("linux-64") into its index.json
// platform ("linux") and arch ("x86_64") fields.
func platformArch(subdir solver.Platform) (string, string) {
	s := string(subdir)
	i := strings.LastIndex(s, "-")
	if i < 0 {
		return s, ""
	}
	plat, arch := s[:i], s[i+1:]
	switch arch {
	case "64":
		arch = "x86_64"
	case "32":
		arch = "x86"
	}
	return plat, arch
}
