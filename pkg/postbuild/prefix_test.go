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

func TestScanPrefixPlaceholderFindsTextOccurrences(t *testing.T) {
	root := t.TempDir()
	prefix := filepath.Join(root, "opt", "host")
	file := filepath.Join(root, "bin", "config")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("PREFIX="+prefix+"\nOTHER="+prefix+"/lib\n"), 0o644))

	rec, err := ScanPrefixPlaceholder("bin/config", file, prefix, recipe.PrefixDetectionPolicy{})
	require.NoError(t, err)
	assert.Equal(t, PlaceholderText, rec.Kind)
	assert.Equal(t, 2, rec.Occurrences)
}

func TestScanPrefixPlaceholderHonorsIgnore(t *testing.T) {
	root := t.TempDir()
	prefix := filepath.Join(root, "opt", "host")
	file := filepath.Join(root, "bin", "config")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(prefix), 0o644))

	policy := recipe.PrefixDetectionPolicy{Ignore: recipe.GlobVec{"bin/*"}}
	rec, err := ScanPrefixPlaceholder("bin/config", file, prefix, policy)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderNone, rec.Kind)
}

func TestScanPrefixPlaceholderForceBinary(t *testing.T) {
	root := t.TempDir()
	prefix := filepath.Join(root, "opt", "host")
	file := filepath.Join(root, "share", "weird.dat")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(prefix), 0o644))

	policy := recipe.PrefixDetectionPolicy{ForceBinary: recipe.GlobVec{"share/*"}}
	rec, err := ScanPrefixPlaceholder("share/weird.dat", file, prefix, policy)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderBinary, rec.Kind)
}
