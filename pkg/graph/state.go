// Copyright 2024 Chainguard, Inc.
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

// Package graph implements the Output Graph Scheduler (spec §4.4): it
// builds a DAG of rendered outputs linked by pin_subpackage/host-or-build
// dependencies, topologically sorts it, propagates run_exports along
// edges, and drives each output through its build state machine.
package graph

// State is one of the Output lifecycle states (spec §4.4).
type State int

const (
	Pending State = iota
	Rendering
	SourceReady
	EnvReady
	Built
	Tested
	Skipped
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Rendering:
		return "rendering"
	case SourceReady:
		return "source_ready"
	case EnvReady:
		return "env_ready"
	case Built:
		return "built"
	case Tested:
		return "tested"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one a node stops progressing from.
func (s State) Terminal() bool {
	return s == Built || s == Tested || s == Skipped || s == Failed
}
