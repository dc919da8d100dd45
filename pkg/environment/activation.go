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

// Package environment implements the Environment Builder (spec §4.5):
// per-output build/host/test prefixes assembled by an external Solver
// and Installer, plus the activation envelope the Script Executor runs
// build scripts under.
package environment

import (
	"fmt"
	"maps"
	"runtime"
	"sort"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

// Kind is which of the three prefixes an Activation was built for.
type Kind string

const (
	KindBuild Kind = "build"
	KindHost  Kind = "host"
	KindTest  Kind = "test"
)

// Activation is the deterministic env-var envelope a build, host
// or test script runs under (spec §4.5 step 4). It follows melange's
// SubstitutionMap flat string-keyed map pattern, generalized
// from melange's `${{...}}` substitution holes to plain shell
// environment variables.
type Activation struct {
	vars map[string]string
}

// Env returns the envelope as "KEY=VALUE" pairs in a stable sorted
// order, suitable for os/exec.Cmd.Env.
func (a *Activation) Env() []string {
	keys := make([]string, 0, len(a.vars))
	for k := range a.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, a.vars[k]))
	}
	return out
}

// Lookup returns a single variable's value, for callers (the Script
// Executor's interpreter dispatch, the Post-Build Pass's prefix
// detector) that need one value rather than the whole envelope.
func (a *Activation) Lookup(key string) (string, bool) {
	v, ok := a.vars[key]
	return v, ok
}

// compilerTriples maps target_platform to the GNU-style triple the
// toolchain packages in this prefix expose as CC/CXX/etc, following
// conda-forge's cross-compilation naming (spec §4.5's "compiler
// triples").
var compilerTriples = map[solver.Platform]string{
	"linux-64":     "x86_64-conda-linux-gnu",
	"linux-aarch64": "aarch64-conda-linux-gnu",
	"linux-ppc64le": "powerpc64le-conda-linux-gnu",
	"osx-64":       "x86_64-apple-darwin13.4.0",
	"osx-arm64":    "arm64-apple-darwin20.0.0",
	"win-64":       "x86_64-w64-mingw32",
}

// NewActivation builds the activation envelope for one output's one
// prefix kind (spec §4.5 step 4's PREFIX/BUILD_PREFIX/SRC_DIR/PKG_*/
// CPU_COUNT/CMAKE_ARGS/target_platform/compiler-triple/variant-mapping
// list).
func NewActivation(pkg recipe.Package, kind Kind, prefix, buildPrefix, srcDir, hash string, buildNum uint64, platform solver.Platform, variant, extraEnv map[string]string) *Activation {
	vars := map[string]string{
		"PREFIX":         prefix,
		"BUILD_PREFIX":   buildPrefix,
		"SRC_DIR":        srcDir,
		"PKG_NAME":       string(pkg.Name),
		"PKG_VERSION":    string(pkg.Version),
		"PKG_HASH":       hash,
		"PKG_BUILDNUM":   fmt.Sprintf("%d", buildNum),
		"CPU_COUNT":      fmt.Sprintf("%d", runtime.NumCPU()),
		"CMAKE_ARGS":     cmakeArgs(prefix, buildPrefix),
		"target_platform": string(platform),
		"PREFIX_KIND":    string(kind),
	}

	if triple, ok := compilerTriples[platform]; ok {
		vars["HOST"] = triple
		vars["BUILD"] = triple
		vars["CC"] = triple + "-cc"
		vars["CXX"] = triple + "-c++"
	}

	maps.Copy(vars, variant)

	// --env-file/--vars-file overlays last, overriding both the
	// computed envelope and the variant mapping, matching melange's
	// config loader ("overlay the environment in the YAML on top as
	// override").
	maps.Copy(vars, extraEnv)

	return &Activation{vars: vars}
}

func cmakeArgs(prefix, buildPrefix string) string {
	return fmt.Sprintf(
		"-DCMAKE_INSTALL_PREFIX=%s -DCMAKE_PREFIX_PATH=%s -DCMAKE_FIND_ROOT_PATH=%s",
		prefix, prefix, buildPrefix,
	)
}
