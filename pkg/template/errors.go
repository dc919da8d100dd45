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

import "fmt"

// Span is a minimal location type carried by this package's errors;
// callers attach the real recipe.Span when wrapping these errors.
type Span struct {
	File   string
	Line   int
	Column int
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// UndefinedVariableError is spec §4.1/§7's UndefinedVariable(name, span).
type UndefinedVariableError struct {
	Name string
	Span Span
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%s: undefined variable %q", e.Span, e.Name)
}

// UnknownFunctionError is spec §4.1/§7's UnknownFunction.
type UnknownFunctionError struct {
	Name string
	Span Span
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("%s: unknown function %q", e.Span, e.Name)
}
