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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
	"github.com/dlorenc/rbld/pkg/variant"
)

// recordingSolver resolves every spec to a trivial installed record named
// after the spec itself.
type recordingSolver struct{}

func (recordingSolver) Solve(_ context.Context, specs []recipe.MatchSpec, _ []solver.Channel, _ solver.Platform, _ []recipe.MatchSpec, _ solver.Strategy, _ solver.ChannelPriority) ([]solver.PackageRecord, error) {
	out := make([]solver.PackageRecord, 0, len(specs))
	for _, s := range specs {
		out = append(out, solver.PackageRecord{Name: recipe.PackageName(s), Version: "0"})
	}
	return out, nil
}

// materializingInstaller creates targetPrefix on disk, the way a real
// Installer's unpack step would, so the Post-Build Pass has a directory
// to snapshot.
type materializingInstaller struct{}

func (materializingInstaller) Install(_ context.Context, records []solver.PackageRecord, targetPrefix string) (*solver.Report, error) {
	if err := os.MkdirAll(targetPrefix, 0o755); err != nil {
		return nil, err
	}
	return &solver.Report{Installed: records, Prefix: targetPrefix}, nil
}

func baseTestConfig(t *testing.T, recipeYAML string) Config {
	t.Helper()
	return Config{
		RecipeData:     []byte(recipeYAML),
		TargetPlatform: solver.Platform("linux-64"),
		OutputDir:      t.TempDir(),
		WorkDir:        t.TempDir(),
		NoBuildID:      true,
		TestMode:       TestSkip,
		Solver:         recordingSolver{},
		Installer:      materializingInstaller{},
	}
}

func TestNewFromConfigKeepsEveryVariantCandidate(t *testing.T) {
	recipeYAML := `
package:
  name: foo
  version: "1.0.0"
requirements:
  host:
    - "python ${{ python }}.*"
`
	cfg := baseTestConfig(t, recipeYAML)
	cfg.VariantOverrides = nil

	dir := t.TempDir()
	variantFile := filepath.Join(dir, "variants.yaml")
	require.NoError(t, os.WriteFile(variantFile, []byte("python:\n  - \"3.11\"\n  - \"3.12\"\n"), 0o644))
	cfg.VariantConfigPaths = []string{variantFile}

	o, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, o.perOutputRenders["foo"], 2, "both python variant candidates must survive, not just the last one")

	seen := map[string]bool{}
	for _, r := range o.perOutputRenders["foo"] {
		seen[r.BuildString] = true
	}
	assert.Len(t, seen, 2, "each variant candidate keeps its own distinct build string")
}

func TestCartesianRendersExpandsIndependently(t *testing.T) {
	a1 := variant.Rendered{BuildString: "a1"}
	a2 := variant.Rendered{BuildString: "a2"}
	b1 := variant.Rendered{BuildString: "b1"}

	perOutput := map[string][]variant.Rendered{
		"a": {a1, a2},
		"b": {b1},
	}

	combos := cartesianRenders(perOutput, []string{"a", "b"})
	require.Len(t, combos, 2, "2 candidates for a times 1 for b")

	var buildStringsOfA []string
	for _, combo := range combos {
		require.Contains(t, combo, "a")
		require.Contains(t, combo, "b")
		assert.Equal(t, "b1", combo["b"].BuildString)
		buildStringsOfA = append(buildStringsOfA, combo["a"].BuildString)
	}
	assert.ElementsMatch(t, []string{"a1", "a2"}, buildStringsOfA)
}

func TestCartesianRendersSingleCandidatePerOutput(t *testing.T) {
	perOutput := map[string][]variant.Rendered{
		"a": {{BuildString: "only"}},
	}
	combos := cartesianRenders(perOutput, []string{"a"})
	require.Len(t, combos, 1)
	assert.Equal(t, "only", combos[0]["a"].BuildString)
}

func TestRunBuildsOnePackagePerVariantCandidate(t *testing.T) {
	recipeYAML := `
package:
  name: foo
  version: "1.0.0"
requirements:
  host:
    - "python ${{ python }}.*"
`
	cfg := baseTestConfig(t, recipeYAML)

	dir := t.TempDir()
	variantFile := filepath.Join(dir, "variants.yaml")
	require.NoError(t, os.WriteFile(variantFile, []byte("python:\n  - \"3.11\"\n  - \"3.12\"\n"), 0o644))
	cfg.VariantConfigPaths = []string{variantFile}

	o, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	written, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, written, 2, "one archive per surviving variant candidate")

	for _, p := range written {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestRunBuildsSingleOutputWithoutVariantAxes(t *testing.T) {
	recipeYAML := `
package:
  name: bar
  version: "2.0.0"
`
	cfg := baseTestConfig(t, recipeYAML)

	o, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	written, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.FileExists(t, written[0])
}
