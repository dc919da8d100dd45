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
)

func writeHead(t *testing.T, dir string, name string, head []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, head, 0o644))
	return path
}

func TestSniffFormatRecognizesELF(t *testing.T) {
	dir := t.TempDir()
	path := writeHead(t, dir, "a.out", []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	assert.Equal(t, FormatELF, SniffFormat(path))
}

func TestSniffFormatRecognizesMachO(t *testing.T) {
	dir := t.TempDir()
	path := writeHead(t, dir, "a.out", []byte{0xfe, 0xed, 0xfa, 0xce, 0, 0})
	assert.Equal(t, FormatMachO, SniffFormat(path))
}

func TestSniffFormatRecognizesPE(t *testing.T) {
	dir := t.TempDir()
	path := writeHead(t, dir, "a.exe", []byte{'M', 'Z', 0x90, 0})
	assert.Equal(t, FormatPE, SniffFormat(path))
}

func TestSniffFormatNoneForText(t *testing.T) {
	dir := t.TempDir()
	path := writeHead(t, dir, "readme", []byte("hello world"))
	assert.Equal(t, FormatNone, SniffFormat(path))
}

func TestIsBinaryContentDetectsNulByte(t *testing.T) {
	assert.True(t, IsBinaryContent([]byte{'a', 0, 'b'}))
	assert.False(t, IsBinaryContent([]byte("plain text")))
}
