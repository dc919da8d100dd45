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

package sourcecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePatch = `--- a/hello.txt
+++ b/hello.txt
@@ -1,3 +1,3 @@
 line one
-line two
+line TWO
 line three
`

func TestApplyPatchesAtCorrectStripLevel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("line one\nline two\nline three\n"), 0o644))

	patchFile := filepath.Join(dir, "fix.patch")
	require.NoError(t, os.WriteFile(patchFile, []byte(samplePatch), 0o644))

	require.NoError(t, applyPatches(dir, []string{patchFile}))

	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline TWO\nline three\n", string(data))
}

func TestApplyPatchesFailsWhenContextNeverMatches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("totally different content\n"), 0o644))

	patchFile := filepath.Join(dir, "fix.patch")
	require.NoError(t, os.WriteFile(patchFile, []byte(samplePatch), 0o644))

	err := applyPatches(dir, []string{patchFile})
	require.Error(t, err)
	var noClean *NoCleanPatchError
	assert.ErrorAs(t, err, &noClean)
}

func TestParseUnifiedDiffSingleFile(t *testing.T) {
	files, err := parseUnifiedDiff(samplePatch)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a/hello.txt", files[0].oldPath)
	assert.Equal(t, "b/hello.txt", files[0].newPath)
	require.Len(t, files[0].hunks, 1)
	assert.Equal(t, 1, files[0].hunks[0].oldStart)
}

func TestStripComponents(t *testing.T) {
	assert.Equal(t, "hello.txt", stripComponents("a/hello.txt", 1))
	assert.Equal(t, "a/hello.txt", stripComponents("a/hello.txt", 0))
	assert.Equal(t, "", stripComponents("hello.txt", 1))
}
