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

package tester

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/environment"
	"github.com/dlorenc/rbld/pkg/recipe"
)

func testPrefix(t *testing.T, path string) *environment.Prefix {
	t.Helper()
	act := environment.NewActivation(
		recipe.Package{Name: "foo", Version: "1.0.0"},
		environment.KindTest,
		path, path, path, "h0", 0, "linux-64", nil, nil,
	)
	return &environment.Prefix{Kind: environment.KindTest, Path: path, Activation: act}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("bash path targets POSIX semantics")
	}
}

func TestRunExecutesScript(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	marker := filepath.Join(dir, "out.txt")

	s1 := &recipe.Stage1{Tests: []recipe.Test{{Script: []string{"echo hi > " + marker}}}}

	tt := Tester{}
	require.NoError(t, tt.Run(context.Background(), s1, testPrefix(t, dir), nil))

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestAssertCommandExistsFailsWhenMissing(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()

	s1 := &recipe.Stage1{Tests: []recipe.Test{{CommandsExist: []string{"definitely-not-a-real-command"}}}}

	tt := Tester{}
	err := tt.Run(context.Background(), s1, testPrefix(t, dir), nil)
	require.Error(t, err)
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertionCommandExist, assertErr.Kind)
}

func TestAssertCommandExistsPassesForShellBuiltin(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()

	s1 := &recipe.Stage1{Tests: []recipe.Test{{CommandsExist: []string{"cd"}}}}

	tt := Tester{}
	require.NoError(t, tt.Run(context.Background(), s1, testPrefix(t, dir), nil))
}

func TestRunDownstreamOfRequiresBuilder(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	s1 := &recipe.Stage1{Tests: []recipe.Test{{DownstreamOf: []recipe.PackageName{"bar"}}}}

	tt := Tester{}
	err := tt.Run(context.Background(), s1, testPrefix(t, dir), nil)
	require.Error(t, err)
}

func TestRunDownstreamOfInvokesBuilder(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	s1 := &recipe.Stage1{Tests: []recipe.Test{{DownstreamOf: []recipe.PackageName{"bar"}}}}

	var built []recipe.PackageName
	tt := Tester{}
	err := tt.Run(context.Background(), s1, testPrefix(t, dir), func(_ context.Context, name recipe.PackageName) error {
		built = append(built, name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []recipe.PackageName{"bar"}, built)
}
