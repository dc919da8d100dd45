// Copyright 2024 Chainguard, Inc.
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

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/template"
	"github.com/dlorenc/rbld/pkg/variant"
)

func renderOf(name string, host ...recipe.MatchSpec) *variant.Rendered {
	return &variant.Rendered{
		Variant: variant.Variant{},
		Stage1: &recipe.Stage1{
			Package: recipe.Package{Name: recipe.PackageName(name)},
			Requirements: recipe.Requirements{
				Host: host,
			},
		},
		UsedVars:    map[string]bool{},
		BuildString: "h0000000_0",
	}
}

func TestNewResolvesPinSubpackageEdges(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba"),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
	}

	g, err := New(renders)
	require.NoError(t, err)

	b := g.Output("libb")
	require.NotNil(t, b)
	assert.Equal(t, []string{"liba"}, b.Dependencies)

	a := g.Output("liba")
	require.NotNil(t, a)
	assert.Empty(t, a.Dependencies)
}

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba"),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
		"libc": renderOf("libc", recipe.MatchSpec(template.PinPrefix+"subpackage:libb:lower:upper:false")),
	}
	g, err := New(renders)
	require.NoError(t, err)

	sorted, err := g.TopoSort()
	require.NoError(t, err)
	require.Len(t, sorted, 3)

	pos := map[string]int{}
	for i, o := range sorted {
		pos[o.Name] = i
	}
	assert.Less(t, pos["liba"], pos["libb"])
	assert.Less(t, pos["libb"], pos["libc"])
}

func TestTopoSortDetectsCycle(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba", recipe.MatchSpec(template.PinPrefix+"subpackage:libb:lower:upper:false")),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
	}
	g, err := New(renders)
	require.NoError(t, err)

	_, err = g.TopoSort()
	require.Error(t, err)
	var cyclic *CyclicOutputsError
	require.ErrorAs(t, err, &cyclic)
}

func TestReadyRespectsDependencyState(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba"),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
	}
	g, err := New(renders)
	require.NoError(t, err)

	assert.Equal(t, []string{"liba"}, g.Ready())

	g.Advance("liba", Built)
	assert.Equal(t, []string{"libb"}, g.Ready())
}

func TestMarkDependentsSkippedCascades(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba"),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
		"libc": renderOf("libc", recipe.MatchSpec(template.PinPrefix+"subpackage:libb:lower:upper:false")),
	}
	g, err := New(renders)
	require.NoError(t, err)

	g.MarkDependentsSkipped("liba", "liba build failed")

	assert.Equal(t, Skipped, g.Output("libb").State())
	assert.Equal(t, Skipped, g.Output("libc").State())
}

func TestPropagateRunExportsInjectsStrongIntoHostAndRun(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba"),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
	}
	renders["liba"].Stage1.Build.RunExports.Strong = []recipe.MatchSpec{"liba >=1.0"}

	g, err := New(renders)
	require.NoError(t, err)

	g.PropagateRunExports("liba")

	b := g.Output("libb").Rendered.Stage1
	assert.Contains(t, b.Requirements.Host, recipe.MatchSpec("liba >=1.0"))
	assert.Contains(t, b.Requirements.Run, recipe.MatchSpec("liba >=1.0"))
}

func TestApplySkipsCascades(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba"),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
	}
	renders["liba"].Stage1.Build.Skip = true

	g, err := New(renders)
	require.NoError(t, err)

	g.ApplySkips()

	assert.Equal(t, Skipped, g.Output("liba").State())
	assert.Equal(t, Skipped, g.Output("libb").State())
}

func TestSchedulerRunBuildsInOrder(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba"),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
	}
	g, err := New(renders)
	require.NoError(t, err)

	var built []string
	sched := &Scheduler{
		Graph:       g,
		Concurrency: 2,
		Build: func(_ context.Context, o *Output) (State, error) {
			built = append(built, o.Name)
			return Built, nil
		},
	}

	require.NoError(t, sched.Run(context.Background()))
	require.Len(t, built, 2)
	assert.Equal(t, "liba", built[0], "dependency must build before its dependent")
	assert.Equal(t, Built, g.Output("liba").State())
	assert.Equal(t, Built, g.Output("libb").State())
}

func TestSchedulerContinueOnFailureSkipsDependents(t *testing.T) {
	renders := map[string]*variant.Rendered{
		"liba": renderOf("liba"),
		"libb": renderOf("libb", recipe.MatchSpec(template.PinPrefix+"subpackage:liba:lower:upper:false")),
	}
	g, err := New(renders)
	require.NoError(t, err)

	sched := &Scheduler{
		Graph:             g,
		Concurrency:       1,
		ContinueOnFailure: true,
		Build: func(_ context.Context, o *Output) (State, error) {
			if o.Name == "liba" {
				return Failed, assert.AnError
			}
			return Built, nil
		},
	}

	require.NoError(t, sched.Run(context.Background()))
	assert.Equal(t, Failed, g.Output("liba").State())
	assert.Equal(t, Skipped, g.Output("libb").State())
}
