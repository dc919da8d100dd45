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

package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/template"
)

func TestResolveVariantMatrix(t *testing.T) {
	data := []byte(`
package:
  name: foo
  version: "1.0.0"
requirements:
  host:
    - "python ${{ python }}.*"
`)
	doc, err := recipe.Parse("recipe.yaml", data)
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.Values["python"] = []template.Value{"3.11", "3.12"}

	base := template.NewContext()
	rendered, err := Resolve(doc, cfg, base)
	require.NoError(t, err)
	require.Len(t, rendered, 2, "one output per python axis value")

	buildStrings := map[string]bool{}
	for _, r := range rendered {
		buildStrings[r.BuildString] = true
		assert.True(t, r.UsedVars["python"])
		require.Len(t, r.Stage1.Requirements.Host, 1)
	}
	assert.Len(t, buildStrings, 2, "distinct variant values produce distinct build_strings")
}

func TestResolveNoAxesUsed(t *testing.T) {
	data := []byte(`
package:
  name: foo
  version: "1.0.0"
`)
	doc, err := recipe.Parse("recipe.yaml", data)
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.Values["python"] = []template.Value{"3.11", "3.12"}

	base := template.NewContext()
	rendered, err := Resolve(doc, cfg, base)
	require.NoError(t, err)
	require.Len(t, rendered, 1, "python is never referenced, so it contributes no axis")
}

func TestExpandZipKeys(t *testing.T) {
	cfg := NewConfig()
	cfg.Values["python"] = []template.Value{"3.11", "3.12"}
	cfg.Values["python_abi"] = []template.Value{"cp311", "cp312"}
	cfg.ZipKeys = [][]string{{"python", "python_abi"}}

	variants, err := Expand(cfg, []string{"python", "python_abi"})
	require.NoError(t, err)
	require.Len(t, variants, 2, "zip_keys excludes the mismatched cross-product tuples")

	for _, v := range variants {
		if v["python"] == "3.11" {
			assert.Equal(t, "cp311", v["python_abi"])
		}
		if v["python"] == "3.12" {
			assert.Equal(t, "cp312", v["python_abi"])
		}
	}
}

func TestUsedVarsPinSubpackage(t *testing.T) {
	data := []byte(`
package:
  name: foo
requirements:
  run:
    - "${{ pin_subpackage('libfoo') }}"
`)
	doc, err := recipe.Parse("recipe.yaml", data)
	require.NoError(t, err)

	used, err := UsedVars(doc.Root)
	require.NoError(t, err)
	assert.True(t, used["pin_subpackage.libfoo"])
}
