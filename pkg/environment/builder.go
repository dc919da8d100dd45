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
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dlorenc/rbld/pkg/graph"
	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

// Builder assembles build/host/test prefixes for one output by driving
// an external Solver and Installer (spec §4.5 steps 1-3); it never
// resolves or installs packages itself.
type Builder struct {
	Solver    solver.Solver
	Installer solver.Installer

	Channels        []solver.Channel
	Subdir          solver.Platform
	VirtualPackages []recipe.MatchSpec
	Strategy        solver.Strategy
	Priority        solver.ChannelPriority

	// WorkRoot is the directory under which per-output, per-kind
	// prefixes are created (<WorkRoot>/<output>/<kind>).
	WorkRoot string

	// ExtraEnv overlays the activation envelope of every prefix this
	// Builder assembles, sourced from --env-file/--vars-file. Nil
	// leaves the computed envelope untouched.
	ExtraEnv map[string]string
}

// Prefix is one materialized build/host/test environment plus the
// activation envelope scripts run under.
type Prefix struct {
	Kind       Kind
	Path       string
	Activation *Activation
	Report     *solver.Report
}

// Build resolves and installs the build, host and (if the output
// declares tests) test environments for o, and returns their
// activations (spec §4.5's "per build/host/test" scope).
func (b *Builder) Build(ctx context.Context, o *graph.Output) (map[Kind]*Prefix, error) {
	s1 := o.Rendered.Stage1

	srcDir := filepath.Join(b.WorkRoot, o.Name, "work")
	buildPrefix := filepath.Join(b.WorkRoot, o.Name, string(KindBuild))

	variant := variantStrings(o.Rendered.Variant)

	prefixes := make(map[Kind]*Prefix, 3)

	build, err := b.buildOne(ctx, o, KindBuild, s1.Requirements.Build, srcDir, buildPrefix, variant)
	if err != nil {
		return nil, err
	}
	prefixes[KindBuild] = build

	host, err := b.buildOne(ctx, o, KindHost, s1.Requirements.Host, srcDir, buildPrefix, variant)
	if err != nil {
		return nil, err
	}
	prefixes[KindHost] = host

	if len(s1.Tests) > 0 {
		testSpecs := append(append([]recipe.MatchSpec{}, s1.Requirements.Host...), s1.Requirements.Run...)
		test, err := b.buildOne(ctx, o, KindTest, testSpecs, srcDir, buildPrefix, variant)
		if err != nil {
			return nil, err
		}
		prefixes[KindTest] = test
	}

	return prefixes, nil
}

func (b *Builder) buildOne(ctx context.Context, o *graph.Output, kind Kind, specs []recipe.MatchSpec, srcDir, buildPrefix string, variant map[string]string) (*Prefix, error) {
	sorted := sortedSpecs(specs)

	records, err := b.Solver.Solve(ctx, sorted, b.Channels, b.Subdir, b.VirtualPackages, b.Strategy, b.Priority)
	if err != nil {
		return nil, &BuildEnvError{Output: o.Name, Kind: kind, Err: err}
	}

	prefix := filepath.Join(b.WorkRoot, o.Name, string(kind))
	report, err := b.Installer.Install(ctx, records, prefix)
	if err != nil {
		return nil, &BuildEnvError{Output: o.Name, Kind: kind, Err: err}
	}

	act := NewActivation(
		o.Rendered.Stage1.Package,
		kind,
		prefix,
		buildPrefix,
		srcDir,
		o.Rendered.Hash,
		o.Rendered.Stage1.Build.Number,
		b.Subdir,
		variant,
		b.ExtraEnv,
	)

	return &Prefix{Kind: kind, Path: prefix, Activation: act, Report: report}, nil
}

// sortedSpecs returns specs deduplicated and lexically sorted, matching
// spec §4.5 step 1's "sorted match-spec list after run_exports
// amendment" (run_exports amendment itself happens upstream in
// pkg/graph.PropagateRunExports before the Environment Builder ever
// sees the Requirements).
func sortedSpecs(specs []recipe.MatchSpec) []recipe.MatchSpec {
	seen := make(map[recipe.MatchSpec]bool, len(specs))
	out := make([]recipe.MatchSpec, 0, len(specs))
	for _, s := range specs {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func variantStrings(v map[string]any) map[string]string {
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = fmt.Sprintf("%v", val)
	}
	return out
}
