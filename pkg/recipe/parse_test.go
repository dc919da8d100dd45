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

package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicRecipe(t *testing.T) {
	data := []byte(`
package:
  name: foo
  version: "1.0.0"
build:
  number: 0
requirements:
  host:
    - python
`)
	doc, err := Parse("recipe.yaml", data)
	require.NoError(t, err)

	pkgNode, ok := doc.PackageNode()
	require.True(t, ok)
	nameNode, ok := pkgNode.Get("name")
	require.True(t, ok)
	name, err := ScalarAsString(nameNode)
	require.NoError(t, err)
	assert.Equal(t, "foo", name)
	assert.NotZero(t, nameNode.Span.Line)
}

func TestParseConditional(t *testing.T) {
	data := []byte(`
package:
  name: foo
build:
  skip:
    if: win
    then: true
    else: false
`)
	doc, err := Parse("recipe.yaml", data)
	require.NoError(t, err)

	buildNode, ok := doc.BuildNode()
	require.True(t, ok)
	skipNode, ok := buildNode.Get("skip")
	require.True(t, ok)
	require.Equal(t, KindConditional, skipNode.Kind)
	require.NotNil(t, skipNode.Conditional)
	assert.Equal(t, "win", skipNode.Conditional.If)
	assert.NotNil(t, skipNode.Conditional.Else)
}

func TestParseConditionalSequenceItem(t *testing.T) {
	data := []byte(`
requirements:
  host:
    - python
    - if: unix
      then: ncurses
`)
	doc, err := Parse("recipe.yaml", data)
	require.NoError(t, err)

	reqNode, ok := doc.RequirementsNode()
	require.True(t, ok)
	hostNode, ok := reqNode.Get("host")
	require.True(t, ok)
	require.Len(t, hostNode.Sequence, 2)
	assert.Equal(t, KindScalar, hostNode.Sequence[0].Kind)
	assert.Equal(t, KindConditional, hostNode.Sequence[1].Kind)
}

func TestIsMultiOutputMutualExclusion(t *testing.T) {
	data := []byte(`
package:
  name: foo
outputs:
  - package:
      name: bar
`)
	doc, err := Parse("recipe.yaml", data)
	require.NoError(t, err)
	_, err = doc.IsMultiOutput()
	require.Error(t, err)
}

func TestIsMultiOutputNeitherSet(t *testing.T) {
	data := []byte(`
build:
  number: 0
`)
	doc, err := Parse("recipe.yaml", data)
	require.NoError(t, err)
	_, err = doc.IsMultiOutput()
	require.Error(t, err)
}

func TestOutputDocumentsMerge(t *testing.T) {
	data := []byte(`
build:
  number: 3
outputs:
  - package:
      name: foo
      version: "1.0"
  - package:
      name: bar
      version: "2.0"
    build:
      number: 5
`)
	doc, err := Parse("recipe.yaml", data)
	require.NoError(t, err)

	docs, err := doc.OutputDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 2)

	fooBuild, ok := docs[0].BuildNode()
	require.True(t, ok)
	n, ok := fooBuild.Get("number")
	require.True(t, ok)
	v, err := ScalarAsUint(n)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v, "foo inherits the recipe-level build.number")

	barBuild, ok := docs[1].BuildNode()
	require.True(t, ok)
	n, ok = barBuild.Get("number")
	require.True(t, ok)
	v, err = ScalarAsUint(n)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v, "bar overrides build.number")
}
