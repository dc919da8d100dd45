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

func TestParseVariantConfigScalarAndList(t *testing.T) {
	data := []byte(`
python:
  - "3.10"
  - "3.11"
zlib: "1.3"
zip_keys:
  - ["python"]
pin_run_as_build:
  - python
`)
	cfg, err := parseVariantConfig(data)
	require.NoError(t, err)

	assert.Equal(t, []any{"3.10", "3.11"}, cfg.Values["python"])
	assert.Equal(t, []any{"1.3"}, cfg.Values["zlib"])
	assert.Equal(t, [][]string{{"python"}}, cfg.ZipKeys)
	assert.Equal(t, []string{"python"}, cfg.PinRunAsBuild)
}

func TestParseVariantConfigTypedScalars(t *testing.T) {
	cfg, err := parseVariantConfig([]byte("debug: true\nnjobs: 4\n"))
	require.NoError(t, err)

	assert.Equal(t, []any{true}, cfg.Values["debug"])
	assert.Equal(t, []any{int64(4)}, cfg.Values["njobs"])
}

func TestLoadVariantConfigMergesFilesInOrderAndAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.yaml")
	second := filepath.Join(dir, "second.yaml")
	require.NoError(t, os.WriteFile(first, []byte("python: \"3.10\"\nzlib: \"1.2\"\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("python: \"3.11\"\n"), 0o644))

	cfg, err := loadVariantConfig([]string{first, second}, map[string]string{"zlib": "1.3"})
	require.NoError(t, err)

	assert.Equal(t, []any{"3.11"}, cfg.Values["python"], "second file's value for a shared key wins")
	assert.Equal(t, []any{"1.3"}, cfg.Values["zlib"], "--variant override wins over every file")
}

func TestParseVariantOverride(t *testing.T) {
	k, v, err := parseVariantOverride("python=3.11")
	require.NoError(t, err)
	assert.Equal(t, "python", k)
	assert.Equal(t, "3.11", v)

	_, _, err = parseVariantOverride("no-equals-sign")
	assert.Error(t, err)
}
