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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOwnerLookupMatchesByBasename(t *testing.T) {
	prefix := t.TempDir()
	metaDir := filepath.Join(prefix, "conda-meta")
	require.NoError(t, os.MkdirAll(metaDir, 0o755))

	record := `{"name": "zlib", "version": "1.3", "build": "h5eee18b_0", "files": ["lib/libz.so.1.3"]}`
	require.NoError(t, os.WriteFile(filepath.Join(metaDir, "zlib-1.3-h5eee18b_0.json"), []byte(record), 0o644))

	lookup, err := buildOwnerLookup(prefix)
	require.NoError(t, err)

	spec, ok := lookup("libz.so.1.3")
	require.True(t, ok)
	assert.Equal(t, "zlib ==1.3=h5eee18b_0", string(spec))

	_, ok = lookup("unknown.so")
	assert.False(t, ok)
}

func TestBuildOwnerLookupMissingCondaMetaAlwaysMisses(t *testing.T) {
	lookup, err := buildOwnerLookup(t.TempDir())
	require.NoError(t, err)

	_, ok := lookup("anything.so")
	assert.False(t, ok)
}
