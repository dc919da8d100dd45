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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/recipe"
)

func ownerMap(m map[string]recipe.MatchSpec) func(string) (recipe.MatchSpec, bool) {
	return func(soname string) (recipe.MatchSpec, bool) {
		spec, ok := m[soname]
		return spec, ok
	}
}

func TestAnalyzeLinkingFindsOverlinkingAndOverdepending(t *testing.T) {
	owner := ownerMap(map[string]recipe.MatchSpec{
		"libz.so.1": "zlib",
	})
	declared := []recipe.MatchSpec{"zlib", "openssl"}

	report := AnalyzeLinking([]string{"libz.so.1", "libzzz.so.1"}, declared, owner)
	assert.Equal(t, []string{"libzzz.so.1"}, report.Overlinked)
	assert.Equal(t, []string{"openssl"}, report.Overdepended)
}

func TestLinkingReportEnforceRespectsBehavior(t *testing.T) {
	report := LinkingReport{Overlinked: []string{"libzzz.so.1"}}

	warnOnly := recipe.DynamicLinkingPolicy{OverlinkingBehavior: recipe.LinkingWarn}
	assert.NoError(t, report.Enforce(warnOnly))

	strict := recipe.DynamicLinkingPolicy{OverlinkingBehavior: recipe.LinkingError}
	err := report.Enforce(strict)
	require.Error(t, err)
	var linkErr *LinkingError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, LinkingOverlinking, linkErr.Kind)
}
