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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlorenc/rbld/pkg/build"
)

// testCmd runs an output's declared tests[] by driving the same
// Orchestrator with --test forced on and --skip-existing forced off: the
// package is rebuilt and then tested, since an output skipped as
// already existing never reaches its tests.
func testCmd() *cobra.Command {
	f := &BuildFlags{}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run an output's tests against a built package",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.Test == "skip" {
				f.Test = "native"
			}
			f.SkipExisting = false

			recipes, err := recipePaths(f)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			for _, path := range recipes {
				cfg, err := f.ToConfig(path)
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				if cfg.TestMode == build.TestSkip {
					return &exitError{code: 2, err: fmt.Errorf("rbld test requires --test=native or native-and-emulated")}
				}
				if err := runOneRecipe(cmd.Context(), cfg); err != nil {
					return &exitError{code: 1, err: err}
				}
			}
			return nil
		},
	}

	addBuildFlags(cmd.Flags(), f)
	return cmd
}

// rebuildCmd re-renders and rebuilds a package already present in
// --output-dir, the spec §6 "rebuild" subcommand: it is build with
// --skip-existing forced off so the existing archive is always
// replaced rather than short-circuited.
func rebuildCmd() *cobra.Command {
	f := &BuildFlags{}

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild a package, replacing any existing archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.SkipExisting = false

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
					if !f.ContinueOnFailure {
						return &exitError{code: 1, err: err}
					}
				}
			}
			if anyFailed {
				return &exitError{code: 3, err: fmt.Errorf("one or more recipes failed to rebuild")}
			}
			return nil
		},
	}

	addBuildFlags(cmd.Flags(), f)
	return cmd
}
