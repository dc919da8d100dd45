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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

func TestNewActivationSetsCoreVars(t *testing.T) {
	pkg := recipe.Package{Name: "zlib", Version: "1.3.1"}
	act := NewActivation(pkg, KindHost, "/opt/host", "/opt/build", "/work/src", "abc123", 2, "linux-64", map[string]string{"python": "3.12"}, nil)

	v, ok := act.Lookup("PREFIX")
	assert.True(t, ok)
	assert.Equal(t, "/opt/host", v)

	v, ok = act.Lookup("PKG_NAME")
	assert.True(t, ok)
	assert.Equal(t, "zlib", v)

	v, ok = act.Lookup("PKG_BUILDNUM")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	v, ok = act.Lookup("python")
	assert.True(t, ok)
	assert.Equal(t, "3.12", v)

	v, ok = act.Lookup("HOST")
	assert.True(t, ok)
	assert.Equal(t, "x86_64-conda-linux-gnu", v)
}

func TestActivationEnvIsSorted(t *testing.T) {
	act := NewActivation(recipe.Package{Name: "a", Version: "1"}, KindBuild, "/p", "/bp", "/s", "h", 0, solver.Platform("osx-arm64"), nil, nil)
	env := act.Env()
	for i := 1; i < len(env); i++ {
		assert.LessOrEqual(t, env[i-1], env[i])
	}
}

func TestNewActivationExtraEnvOverridesVariantAndComputedVars(t *testing.T) {
	pkg := recipe.Package{Name: "zlib", Version: "1.3.1"}
	variant := map[string]string{"python": "3.12"}
	extraEnv := map[string]string{"python": "3.11", "PREFIX": "/custom/prefix"}

	act := NewActivation(pkg, KindHost, "/opt/host", "/opt/build", "/work/src", "abc123", 2, "linux-64", variant, extraEnv)

	v, ok := act.Lookup("python")
	assert.True(t, ok)
	assert.Equal(t, "3.11", v)

	v, ok = act.Lookup("PREFIX")
	assert.True(t, ok)
	assert.Equal(t, "/custom/prefix", v)
}
