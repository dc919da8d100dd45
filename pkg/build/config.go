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
	"fmt"
	"time"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
	"github.com/dlorenc/rbld/pkg/tester"
)

// TestMode selects how aggressively an output's declared tests[] run
// against architectures other than the host's (spec §6 --test flag).
type TestMode string

const (
	TestSkip              TestMode = "skip"
	TestNative            TestMode = "native"
	TestNativeAndEmulated TestMode = "native-and-emulated"
)

// PackageFormat selects the Packager's output archive shape (spec §6
// --package-format). Only conda is implemented; tar-bz2 is accepted on
// the CLI surface but rejected here (see DESIGN.md).
type PackageFormat string

const (
	FormatConda  PackageFormat = "conda"
	FormatTarBz2 PackageFormat = "tar-bz2"
)

// Config is all immutable configuration for building one recipe
// document (spec §2's "CLI -> Recipe Model -> ... -> Tester" pipeline,
// minus the CLI layer itself). A multi-output recipe's outputs are all
// scheduled from a single Config.
type Config struct {
	// RecipePath names the recipe file on disk. Used for error spans and
	// as the default ConfigFileRepositoryURL-equivalent provenance field,
	// and read from disk unless RecipeData is set.
	RecipePath string

	// RecipeData, if non-nil, is used instead of reading RecipePath from
	// disk (recipe-dir batch mode and tests supply this directly).
	RecipeData []byte

	// VariantConfigPaths are --variant-config files, merged in argument
	// order with later files overriding earlier ones per-key.
	VariantConfigPaths []string

	// VariantOverrides are --variant KEY=VALUE entries, applied as a
	// single-candidate axis override after every VariantConfigPaths file
	// has merged (highest-priority override).
	VariantOverrides map[string]string

	// Channels are the conda channels the Solver consults, in priority
	// order.
	Channels []solver.Channel

	// TargetPlatform is the conda subdir outputs are built for
	// ("linux-64", "osx-arm64", "noarch", ...).
	TargetPlatform solver.Platform

	// VirtualPackages are synthesized system-fact records the Solver
	// treats as already installed (e.g. __glibc, __osx).
	VirtualPackages []recipe.MatchSpec

	// Strategy and ChannelPriority are passed through to the Solver
	// unchanged.
	Strategy        solver.Strategy
	ChannelPriority solver.ChannelPriority

	// OutputDir is where finished packages are written.
	OutputDir string

	// WorkDir is the root for per-output work/build/host/test
	// directories. A temp directory is used if empty.
	WorkDir string

	// CacheDir is where the Source Cache persists fetched tarballs,
	// git checkouts and patched trees across runs. Defaults to a
	// subdirectory of WorkDir when empty.
	CacheDir string

	// NoBuildID disables the unique build-id suffix on per-output work
	// directories (spec §6 --no-build-id); two concurrent builds of the
	// same recipe would then collide, so this is for reproducible
	// debugging, not concurrent use.
	NoBuildID bool

	// SkipExisting marks an output Skipped without invoking the
	// Environment Builder if a package with the same name/version/
	// build_string already exists in OutputDir (SPEC_FULL supplement).
	SkipExisting bool

	// ContinueOnFailure keeps scheduling independent outputs after one
	// fails instead of aborting the whole run (spec §6, exit code 3).
	ContinueOnFailure bool

	// TestMode controls whether and how tests[] run.
	TestMode TestMode

	// PackageFormat selects the archive format Write produces.
	PackageFormat PackageFormat

	// CompressionLevel records the requested zstd compression level
	// (0-22). It is not passed to the Packager, whose tar.zst streams
	// always use the zstd encoder's default level.
	CompressionLevel int

	// Concurrency bounds how many outputs build at once (spec §5).
	Concurrency int

	// SourceDateEpoch pins the single build_timestamp recorded across
	// every output's archive (spec §4.8/§9). Zero means "now", captured
	// once by NewFromConfig.
	SourceDateEpoch time.Time

	// PythonBin is passed to the Post-Build Pass for pyc compilation and
	// entry-point generation (spec §4.7e); defaults to "python3".
	PythonBin string

	// Solver and Installer are the external collaborators the
	// Environment Builder drives (spec §6); required.
	Solver    solver.Solver
	Installer solver.Installer

	// Downstream resolves tests[].downstream_of package names to a
	// build of that other recipe, when declared. Optional: a recipe
	// that declares downstream_of without this set fails at test time.
	Downstream tester.DownstreamBuilder

	// ExtraEnv overlays the build/host/test activation envelope,
	// loaded from --env-file/--vars-file (SPEC_FULL ambient stack).
	// Optional.
	ExtraEnv map[string]string
}

// Validate checks that the fields Run cannot proceed without are set.
func (c *Config) Validate() error {
	if c.RecipePath == "" && c.RecipeData == nil {
		return fmt.Errorf("either RecipePath or RecipeData must be set")
	}
	if c.TargetPlatform == "" {
		return fmt.Errorf("TargetPlatform is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OutputDir is required")
	}
	if c.Solver == nil {
		return fmt.Errorf("Solver is required")
	}
	if c.Installer == nil {
		return fmt.Errorf("Installer is required")
	}
	if c.PackageFormat == FormatTarBz2 {
		return fmt.Errorf("package format %q is not implemented", c.PackageFormat)
	}
	if c.PackageFormat == "" {
		c.PackageFormat = FormatConda
	}
	if c.TestMode == "" {
		c.TestMode = TestNative
	}
	if c.Strategy == "" {
		c.Strategy = solver.StrategyHighest
	}
	if c.ChannelPriority == "" {
		c.ChannelPriority = solver.ChannelPriorityStrict
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PythonBin == "" {
		c.PythonBin = "python3"
	}
	return nil
}
