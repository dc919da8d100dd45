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

import "fmt"

// Stage names one point in an output's pipeline, used by OutputError to
// report where a build failed (spec §7's per-stage error taxonomy is
// reported by the failing component itself; OutputError only adds which
// output and which stage).
type Stage string

const (
	StageSource      Stage = "source"
	StageEnvironment Stage = "environment"
	StageScript      Stage = "script"
	StagePostBuild   Stage = "post-build"
	StagePackage     Stage = "package"
	StageTest        Stage = "test"
)

// OutputError wraps a failure with the output and stage it occurred in.
type OutputError struct {
	Output string
	Stage  Stage
	Err    error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output %q: %s: %v", e.Output, e.Stage, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
