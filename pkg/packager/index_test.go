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

package packager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

func testStage1() *recipe.Stage1 {
	return &recipe.Stage1{
		Package: recipe.Package{Name: "foo", Version: "1.0.0"},
		About:   recipe.About{License: "MIT"},
	}
}

func TestBuildIndexPlatformPackage(t *testing.T) {
	s1 := testStage1()
	ts := recipe.BuildTimestamp{Time: time.Unix(1700000000, 0)}
	idx := BuildIndex(s1, "h1234567_0", 0, solver.Platform("linux-64"), []recipe.MatchSpec{"python >=3.11"}, nil, ts)

	assert.Equal(t, "foo", idx.Name)
	assert.Equal(t, "1.0.0", idx.Version)
	assert.Equal(t, "linux-64", idx.Subdir)
	assert.Equal(t, "linux", idx.Platform)
	assert.Equal(t, "x86_64", idx.Arch)
	assert.Equal(t, []string{"python >=3.11"}, idx.Depends)
	assert.Equal(t, "MIT", idx.License)
}

func TestBuildIndexNoarchForcesNoarchSubdir(t *testing.T) {
	s1 := testStage1()
	s1.Build.Noarch = recipe.NoarchPython
	ts := recipe.BuildTimestamp{Time: time.Unix(1700000000, 0)}

	idx := BuildIndex(s1, "pyh_0", 0, solver.Platform("linux-64"), nil, nil, ts)

	assert.Equal(t, "python", idx.Noarch)
	assert.Equal(t, "noarch", idx.Subdir)
	assert.Empty(t, idx.Platform)
	assert.Empty(t, idx.Arch)
}

func TestPlatformArchOSXArm64(t *testing.T) {
	plat, arch := platformArch(solver.Platform("osx-arm64"))
	assert.Equal(t, "osx", plat)
	assert.Equal(t, "arm64", arch)
}
