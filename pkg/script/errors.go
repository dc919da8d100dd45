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

package script

import "fmt"

// FailedError is spec §7's ScriptFailed{exit_code, stderr_tail}.
type FailedError struct {
	ExitCode   int
	StderrTail string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("script exited %d: %s", e.ExitCode, e.StderrTail)
}

// UnrecognizedInterpreterError names an interpreter that spec §4.6 does
// not recognize, whether supplied explicitly or inferred from a file
// extension.
type UnrecognizedInterpreterError struct {
	Interpreter string
}

func (e *UnrecognizedInterpreterError) Error() string {
	return fmt.Sprintf("unrecognized interpreter %q", e.Interpreter)
}
