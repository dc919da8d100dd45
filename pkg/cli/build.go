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

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dlorenc/rbld/pkg/build"
	"github.com/dlorenc/rbld/pkg/solver"
	"github.com/dlorenc/rbld/pkg/solver/micromamba"
)

// exitError carries a process exit code through cobra's RunE return
// path (spec §6: 0 success, 1 build failure, 2 invalid invocation, 3
// partial success with --continue-on-failure).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode extracts the process exit code a cli command returned, 1 for
// any other error and 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if ok := asExitError(err, &ee); ok {
		return ee.code
	}
	return 1
}

func asExitError(err error, target **exitError) bool {
	for err != nil {
		if ee, ok := err.(*exitError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// BuildFlags is every --build flag's destination (spec §6's abbreviated
// CLI surface).
type BuildFlags struct {
	RecipePath        string
	RecipeDir         string
	VariantConfigs    []string
	VariantOverrides  []string
	Channels          []string
	TargetPlatform    string
	HostPlatform      string
	BuildPlatform     string
	OutputDir         string
	WorkDir           string
	NoBuildID         bool
	SkipExisting      bool
	ContinueOnFailure bool
	Test              string
	PackageFormat     string
	CompressionLevel  int
	ChannelPriority   string
	MicromambaBin     string
	Concurrency       int
	EnvFile           string
}

func addBuildFlags(fs *pflag.FlagSet, f *BuildFlags) {
	fs.StringVar(&f.RecipePath, "recipe", "", "path to a single recipe.yaml")
	fs.StringVar(&f.RecipeDir, "recipe-dir", "", "directory to scan for recipe.yaml files")
	fs.StringArrayVar(&f.VariantConfigs, "variant-config", nil, "variant config YAML file (repeatable)")
	fs.StringArrayVar(&f.VariantOverrides, "variant", nil, "KEY=VALUE variant override (repeatable)")
	fs.StringArrayVar(&f.Channels, "channel", nil, "conda channel, in priority order (repeatable)")
	fs.StringVar(&f.TargetPlatform, "target-platform", "", "conda subdir to build for (e.g. linux-64)")
	// host-platform/build-platform are accepted for spec-surface
	// compatibility; cross-compilation emulation is not implemented, so
	// they are recorded but not yet wired into build.Config.
	fs.StringVar(&f.HostPlatform, "host-platform", "", "conda subdir for the host environment; defaults to --target-platform")
	fs.StringVar(&f.BuildPlatform, "build-platform", "", "conda subdir for the build environment; defaults to the running host")
	fs.StringVar(&f.OutputDir, "output-dir", "./output", "directory finished packages are written to")
	fs.StringVar(&f.WorkDir, "work-dir", "", "root directory for build/host/test prefixes (temp dir if empty)")
	fs.BoolVar(&f.NoBuildID, "no-build-id", false, "reuse a fixed work directory instead of a per-run unique one")
	fs.BoolVar(&f.SkipExisting, "skip-existing", false, "skip outputs that already exist in --output-dir")
	fs.BoolVar(&f.ContinueOnFailure, "continue-on-failure", false, "keep building independent outputs after one fails")
	fs.StringVar(&f.Test, "test", "native", "test mode: skip, native, or native-and-emulated")
	fs.StringVar(&f.PackageFormat, "package-format", "conda", "output archive format: conda or tar-bz2")
	fs.IntVar(&f.CompressionLevel, "compression-level", 0, "zstd compression level, 0-22 (recorded; the packager uses the zstd default level)")
	fs.StringVar(&f.ChannelPriority, "channel-priority", "strict", "channel priority: strict or disabled")
	fs.StringVar(&f.MicromambaBin, "micromamba-bin", "", "micromamba executable used to solve and install dependencies (defaults to micromamba on PATH)")
	fs.IntVar(&f.Concurrency, "concurrency", 1, "number of outputs to build concurrently")
	fs.StringVar(&f.EnvFile, "env-file", "", "dotenv-format file of KEY=VALUE vars overlaid onto every build/host/test environment")
}

// ToConfig converts parsed flags into a pkg/build.Config. recipePath
// overrides f.RecipePath, used for --recipe-dir batch invocations where
// each recipe gets its own Config sharing every other flag.
func (f *BuildFlags) ToConfig(recipePath string) (build.Config, error) {
	target := solver.Platform(f.TargetPlatform)
	if target == "" {
		return build.Config{}, fmt.Errorf("--target-platform is required")
	}

	channels := make([]solver.Channel, len(f.Channels))
	for i, c := range f.Channels {
		channels[i] = solver.Channel(c)
	}

	overrides := map[string]string{}
	for _, kv := range f.VariantOverrides {
		k, v, err := parseCLIVariantOverride(kv)
		if err != nil {
			return build.Config{}, err
		}
		overrides[k] = v
	}

	mm := &micromamba.Adapter{BinPath: f.MicromambaBin}

	var extraEnv map[string]string
	if f.EnvFile != "" {
		var err error
		extraEnv, err = godotenv.Read(f.EnvFile)
		if err != nil {
			return build.Config{}, fmt.Errorf("loading --env-file %s: %w", f.EnvFile, err)
		}
	}

	return build.Config{
		RecipePath:         recipePath,
		VariantConfigPaths: f.VariantConfigs,
		VariantOverrides:   overrides,
		Channels:           channels,
		TargetPlatform:     target,
		OutputDir:          f.OutputDir,
		WorkDir:            f.WorkDir,
		NoBuildID:          f.NoBuildID,
		SkipExisting:       f.SkipExisting,
		ContinueOnFailure:  f.ContinueOnFailure,
		TestMode:           build.TestMode(f.Test),
		PackageFormat:      build.PackageFormat(f.PackageFormat),
		CompressionLevel:   f.CompressionLevel,
		ChannelPriority:    solver.ChannelPriority(f.ChannelPriority),
		Concurrency:        f.Concurrency,
		Solver:             mm,
		Installer:          mm,
		ExtraEnv:           extraEnv,
	}, nil
}

func parseCLIVariantOverride(s string) (key, value string, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("invalid --variant %q: expected KEY=VALUE", s)
}

func buildCmd() *cobra.Command {
	f := &BuildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build one or more recipes into packages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipes, err := recipePaths(f)
			if err != nil {
				return &exitError{code: 2, err: err}
			}

			var anyFailed bool
			for _, path := range recipes {
				cfg, err := f.ToConfig(path)
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				if err := runOneRecipe(cmd.Context(), cfg); err != nil {
					anyFailed = true
					clog.FromContext(cmd.Context()).Errorf("building %s: %v", path, err)
					if !f.ContinueOnFailure {
						return &exitError{code: 1, err: err}
					}
				}
			}

			if anyFailed {
				return &exitError{code: 3, err: fmt.Errorf("one or more recipes failed to build")}
			}
			return nil
		},
	}

	addBuildFlags(cmd.Flags(), f)
	return cmd
}

func runOneRecipe(ctx context.Context, cfg build.Config) error {
	o, err := build.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	written, err := o.Run(ctx)
	for _, w := range written {
		clog.FromContext(ctx).Infof("wrote %s", w)
	}
	return err
}

// recipePaths resolves --recipe/--recipe-dir into a concrete file list.
func recipePaths(f *BuildFlags) ([]string, error) {
	if f.RecipePath != "" && f.RecipeDir != "" {
		return nil, fmt.Errorf("--recipe and --recipe-dir are mutually exclusive")
	}
	if f.RecipePath != "" {
		return []string{f.RecipePath}, nil
	}
	if f.RecipeDir == "" {
		return nil, fmt.Errorf("one of --recipe or --recipe-dir is required")
	}

	var found []string
	err := filepath.WalkDir(f.RecipeDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (d.Name() == "recipe.yaml" || d.Name() == "recipe.yml") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", f.RecipeDir, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no recipe.yaml found under %s", f.RecipeDir)
	}
	return found, nil
}
