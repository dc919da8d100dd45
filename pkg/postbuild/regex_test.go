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

package postbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/recipe"
)

func TestApplyPostProcessRewritesMatchingFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "bin", "launcher")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("#!/opt/old/bin/python\n"), 0o755))

	steps := []recipe.PostProcessStep{
		{
			Files: recipe.GlobVec{"bin/*"},
			Regex: recipe.RegexReplace{Pattern: `/opt/old/bin/python`, Replacement: "/usr/bin/env python3"},
		},
	}

	require.NoError(t, ApplyPostProcess(root, []string{"bin/launcher"}, steps))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "#!/usr/bin/env python3\n", string(data))
}

func TestApplyPostProcessSkipsNonMatchingFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "share", "doc", "readme")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("/opt/old/bin/python"), 0o644))

	steps := []recipe.PostProcessStep{
		{Files: recipe.GlobVec{"bin/*"}, Regex: recipe.RegexReplace{Pattern: "x", Replacement: "y"}},
	}

	require.NoError(t, ApplyPostProcess(root, []string{"share/doc/readme"}, steps))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "/opt/old/bin/python", string(data))
}
