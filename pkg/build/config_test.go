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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

func minimalConfig() Config {
	return Config{
		RecipePath:     "recipe.yaml",
		TargetPlatform: solver.Platform("linux-64"),
		OutputDir:      "out",
		Solver:         fakeSolverStub{},
		Installer:      fakeInstallerStub{},
	}
}

type fakeSolverStub struct{}

func (fakeSolverStub) Solve(context.Context, []recipe.MatchSpec, []solver.Channel, solver.Platform, []recipe.MatchSpec, solver.Strategy, solver.ChannelPriority) ([]solver.PackageRecord, error) {
	return nil, nil
}

type fakeInstallerStub struct{}

func (fakeInstallerStub) Install(context.Context, []solver.PackageRecord, string) (*solver.Report, error) {
	return nil, nil
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := minimalConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, FormatConda, cfg.PackageFormat)
	assert.Equal(t, TestNative, cfg.TestMode)
	assert.Equal(t, solver.StrategyHighest, cfg.Strategy)
	assert.Equal(t, solver.ChannelPriorityStrict, cfg.ChannelPriority)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "python3", cfg.PythonBin)
}

func TestValidateRejectsTarBz2(t *testing.T) {
	cfg := minimalConfig()
	cfg.PackageFormat = FormatTarBz2
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresSolverAndInstaller(t *testing.T) {
	cfg := minimalConfig()
	cfg.Solver = nil
	assert.Error(t, cfg.Validate())

	cfg = minimalConfig()
	cfg.Installer = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresRecipeAndOutputDir(t *testing.T) {
	cfg := minimalConfig()
	cfg.RecipePath = ""
	cfg.RecipeData = nil
	assert.Error(t, cfg.Validate())

	cfg = minimalConfig()
	cfg.OutputDir = ""
	assert.Error(t, cfg.Validate())

	cfg = minimalConfig()
	cfg.TargetPlatform = ""
	assert.Error(t, cfg.Validate())
}
