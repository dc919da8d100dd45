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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// LinkingReport is spec §4.7d's overlinking/overdepending analysis
// result: warnings unless the corresponding behavior is "error", in
// which case they surface as LinkingError.
type LinkingReport struct {
	Overlinked   []string // libs in linkedLibs not reachable from declaredHost
	Overdepended []string // declaredHost entries referenced by no linked library
}

// AnalyzeLinking implements spec §4.7d. ownerOf maps a shared-library
// soname to the declared host match-spec (package name) that provides
// it; a soname with no owner is never considered "declared".
func AnalyzeLinking(linkedLibs []string, declaredHost []recipe.MatchSpec, ownerOf func(soname string) (recipe.MatchSpec, bool)) LinkingReport {
	declared := make(map[recipe.MatchSpec]bool, len(declaredHost))
	for _, d := range declaredHost {
		declared[d] = true
	}

	referenced := make(map[recipe.MatchSpec]bool)
	var report LinkingReport

	for _, lib := range linkedLibs {
		soname := filepath.Base(lib)
		owner, ok := ownerOf(soname)
		if !ok || !declared[owner] {
			report.Overlinked = append(report.Overlinked, soname)
			continue
		}
		referenced[owner] = true
	}

	for _, d := range declaredHost {
		if !referenced[d] {
			report.Overdepended = append(report.Overdepended, string(d))
		}
	}

	return report
}

// Enforce converts a LinkingReport into LinkingError when the
// corresponding behavior is "error", per spec §4.7d's "Both are
// downgraded to errors when dynamic_linking.{overlinking,
// overdepending}_behavior == 'error'."
func (r LinkingReport) Enforce(policy recipe.DynamicLinkingPolicy) error {
	if policy.OverlinkingBehavior == recipe.LinkingError && len(r.Overlinked) > 0 {
		return &LinkingError{Kind: LinkingOverlinking, Details: strings.Join(r.Overlinked, ", ")}
	}
	if policy.OverdependingBehavior == recipe.LinkingError && len(r.Overdepended) > 0 {
		return &LinkingError{Kind: LinkingOverdepending, Details: strings.Join(r.Overdepended, ", ")}
	}
	return nil
}

// Warnings renders any non-fatal findings as log lines.
func (r LinkingReport) Warnings() []string {
	var out []string
	for _, lib := range r.Overlinked {
		out = append(out, fmt.Sprintf("overlinking: %s is linked but not declared in host deps", lib))
	}
	for _, dep := range r.Overdepended {
		out = append(out, fmt.Sprintf("overdepending: %s is a host dep but nothing links against it", dep))
	}
	return out
}
