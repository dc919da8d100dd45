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

func TestNewFilesDiffsSnapshots(t *testing.T) {
	root := t.TempDir()
	before, err := TakeSnapshot(root)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "tool"), []byte("x"), 0o755))

	after, err := TakeSnapshot(root)
	require.NoError(t, err)

	got := NewFiles(before, after)
	assert.Contains(t, got, filepath.Join("bin", "tool"))
}

func TestApplyFilesFilterIncludeExclude(t *testing.T) {
	paths := []string{"bin/tool", "lib/libfoo.so", "share/doc/readme"}
	filter := recipe.FilesFilter{
		Include: recipe.GlobVec{"bin/*", "lib/*"},
		Exclude: recipe.GlobVec{"lib/libfoo.so"},
	}
	got := ApplyFilesFilter(paths, filter)
	assert.Equal(t, []string{"bin/tool"}, got)
}

func TestRejectEscapingSymlinksCatchesTraversal(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	err := RejectEscapingSymlinks(root, []string{"escape"})
	require.Error(t, err)
	var escErr *PathEscapeError
	assert.ErrorAs(t, err, &escErr)
}

func TestRejectEscapingSymlinksAllowsInternalLinks(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "real"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))

	assert.NoError(t, RejectEscapingSymlinks(root, []string{"link"}))
}
