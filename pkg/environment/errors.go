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

package environment

import "fmt"

// BuildEnvError wraps a Solve or Install failure with the output/kind
// context the Environment Builder was working on when it occurred.
type BuildEnvError struct {
	Output string
	Kind   Kind
	Err    error
}

func (e *BuildEnvError) Error() string {
	return fmt.Sprintf("building %s environment for %s: %v", e.Kind, e.Output, e.Err)
}

func (e *BuildEnvError) Unwrap() error { return e.Err }
