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

package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Expr
		wantErr bool
	}{
		{
			name:  "bare variable",
			input: "python",
			want:  Expr{Kind: ExprVar, Name: "python"},
		},
		{
			name:  "dotted variable",
			input: "env.HOME",
			want:  Expr{Kind: ExprVar, Name: "env.HOME"},
		},
		{
			name:  "string literal",
			input: "'hello'",
			want:  Expr{Kind: ExprString, Str: "hello"},
		},
		{
			name:  "int literal",
			input: "42",
			want:  Expr{Kind: ExprInt, Int: 42},
		},
		{
			name:  "bool literal",
			input: "true",
			want:  Expr{Kind: ExprBool, Bool: true},
		},
		{
			name:    "unterminated string",
			input:   "'hello",
			wantErr: true,
		},
		{
			name:    "trailing garbage",
			input:   "python extra",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCallAndPipe(t *testing.T) {
	e, err := Parse("compiler('c') | upper")
	require.NoError(t, err)
	assert.Equal(t, ExprPipe, e.Kind)
	assert.Equal(t, "upper", e.FilterName)
	require.NotNil(t, e.Base)
	assert.Equal(t, ExprCall, e.Base.Kind)
	assert.Equal(t, "compiler", e.Base.Name)
	require.Len(t, e.Base.Args, 1)
	assert.Equal(t, "c", e.Base.Args[0].Str)
}

func TestParseQualifiedCall(t *testing.T) {
	e, err := Parse("env.get('HOME')")
	require.NoError(t, err)
	assert.Equal(t, ExprCall, e.Kind)
	assert.Equal(t, "env.get", e.Name)
	require.Len(t, e.Args, 1)
	assert.Equal(t, "HOME", e.Args[0].Str)
}

func TestParseParenGrouping(t *testing.T) {
	e, err := Parse("(python)")
	require.NoError(t, err)
	assert.Equal(t, Expr{Kind: ExprVar, Name: "python"}, e)
}
