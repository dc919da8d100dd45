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
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
}

func TestDetectFormatBySniffAndExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src.tar.gz")
	writeTestTarGz(t, path, map[string]string{"proj-1.0/a.txt": "hi"})

	assert.Equal(t, "gz", detectFormat(path))
}

func TestExtractArchiveStripsCommonTopLevelDir(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "src.tar.gz")
	writeTestTarGz(t, archive, map[string]string{
		"proj-1.0/a.txt":       "hello",
		"proj-1.0/sub/b.txt":   "world",
	})

	dest := filepath.Join(dir, "extracted")
	require.NoError(t, extractArchive(archive, dest))

	data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestExtractArchiveRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")

	f, err := os.Create(archive)
	require.NoError(t, err)
	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	var buf bytes.Buffer
	buf.WriteString("pwned")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "../../etc/passwd",
		Mode: 0o644,
		Size: int64(buf.Len()),
	}))
	_, err = tw.Write(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	f.Close()

	dest := filepath.Join(dir, "extracted")
	err = extractArchive(archive, dest)
	require.Error(t, err)
}

func TestCommonTopLevelDir(t *testing.T) {
	assert.Equal(t, "proj-1.0", commonTopLevelDir([]string{"proj-1.0/a", "proj-1.0/b/c"}))
	assert.Equal(t, "", commonTopLevelDir([]string{"a", "proj-1.0/b"}))
	assert.Equal(t, "", commonTopLevelDir(nil))
}
