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

import "fmt"

// AssertionKind names which content assertion failed.
type AssertionKind string

const (
	AssertionPythonImport AssertionKind = "python_import"
	AssertionCommandExist AssertionKind = "command_exists"
)

// AssertionError is returned when a tests[] content assertion
// (python.imports or commands) fails against the materialized test
// prefix.
type AssertionError struct {
	Kind   AssertionKind
	Target string
	Err    error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("test assertion %s(%s) failed: %v", e.Kind, e.Target, e.Err)
}

func (e *AssertionError) Unwrap() error { return e.Err }
