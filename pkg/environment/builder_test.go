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

package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/graph"
	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
	"github.com/dlorenc/rbld/pkg/variant"
)

type fakeSolver struct {
	calls []string
}

func (f *fakeSolver) Solve(_ context.Context, specs []recipe.MatchSpec, _ []solver.Channel, _ solver.Platform, _ []recipe.MatchSpec, _ solver.Strategy, _ solver.ChannelPriority) ([]solver.PackageRecord, error) {
	var names []string
	for _, s := range specs {
		names = append(names, string(s))
	}
	f.calls = append(f.calls, names...)

	out := make([]solver.PackageRecord, 0, len(specs))
	for _, s := range specs {
		out = append(out, solver.PackageRecord{Name: recipe.PackageName(s), Version: "1.0"})
	}
	return out, nil
}

type fakeInstaller struct{}

func (fakeInstaller) Install(_ context.Context, records []solver.PackageRecord, targetPrefix string) (*solver.Report, error) {
	return &solver.Report{Installed: records, Prefix: targetPrefix}, nil
}

func testOutput() *graph.Output {
	s1 := &recipe.Stage1{
		Package: recipe.Package{Name: "foo", Version: "1.0"},
		Requirements: recipe.Requirements{
			Build: []recipe.MatchSpec{"gcc"},
			Host:  []recipe.MatchSpec{"zlib"},
			Run:   []recipe.MatchSpec{"zlib"},
		},
	}
	rendered := &variant.Rendered{Stage1: s1, Variant: variant.Variant{"python": "3.12"}, Hash: "h1"}
	g, err := graph.New(map[string]*variant.Rendered{"foo": rendered})
	if err != nil {
		panic(err)
	}
	return g.Output("foo")
}

func TestBuilderBuildsHostAndBuildPrefixes(t *testing.T) {
	fs := &fakeSolver{}
	b := &Builder{
		Solver:    fs,
		Installer: fakeInstaller{},
		Subdir:    "linux-64",
		WorkRoot:  t.TempDir(),
	}

	prefixes, err := b.Build(context.Background(), testOutput())
	require.NoError(t, err)

	require.Contains(t, prefixes, KindBuild)
	require.Contains(t, prefixes, KindHost)
	assert.NotContains(t, prefixes, KindTest, "no tests declared, no test prefix built")

	hostVal, ok := prefixes[KindHost].Activation.Lookup("PREFIX")
	require.True(t, ok)
	assert.Equal(t, prefixes[KindHost].Path, hostVal)

	assert.Contains(t, fs.calls, "gcc")
	assert.Contains(t, fs.calls, "zlib")
}

func TestBuilderBuildsTestPrefixWhenTestsDeclared(t *testing.T) {
	s1 := &recipe.Stage1{
		Package: recipe.Package{Name: "foo", Version: "1.0"},
		Requirements: recipe.Requirements{
			Host: []recipe.MatchSpec{"zlib"},
			Run:  []recipe.MatchSpec{"zlib"},
		},
		Tests: []recipe.Test{{PythonImports: []string{"foo"}}},
	}
	rendered := &variant.Rendered{Stage1: s1, Variant: variant.Variant{}, Hash: "h1"}
	g, err := graph.New(map[string]*variant.Rendered{"foo": rendered})
	require.NoError(t, err)

	b := &Builder{Solver: &fakeSolver{}, Installer: fakeInstaller{}, Subdir: "linux-64", WorkRoot: t.TempDir()}
	prefixes, err := b.Build(context.Background(), g.Output("foo"))
	require.NoError(t, err)
	require.Contains(t, prefixes, KindTest)
}
