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

// Package tester runs a recipe's tests[] entries (spec scenario 1's
// tests.python.imports, and the script/commands/downstream forms) in a
// test prefix the Environment Builder (pkg/environment) already
// materialized.
package tester

import (
	"context"
	"fmt"

	"github.com/dlorenc/rbld/pkg/environment"
	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/script"
)

// DownstreamBuilder builds and tests a consumer package against the
// package under test (spec §3's tests[].downstream_of: "builds a
// consumer package against this one"). It is an external collaborator
// because building a whole other output is the Build orchestrator's
// job, not the Tester's.
type DownstreamBuilder func(ctx context.Context, name recipe.PackageName) error

// Tester runs one output's declared tests against its test prefix.
type Tester struct {
	Executor script.Executor
}

// Run executes every tests[] entry in s1 in order, stopping at the
// first failure. prefix must be the KindTest prefix the Environment
// Builder produced for this output.
func (t Tester) Run(ctx context.Context, s1 *recipe.Stage1, prefix *environment.Prefix, buildDownstream DownstreamBuilder) error {
	for i, test := range s1.Tests {
		if err := t.runOne(ctx, test, prefix, buildDownstream); err != nil {
			return fmt.Errorf("tests[%d]: %w", i, err)
		}
	}
	return nil
}

func (t Tester) runOne(ctx context.Context, test recipe.Test, prefix *environment.Prefix, buildDownstream DownstreamBuilder) error {
	if len(test.Script) > 0 {
		req := script.Request{Statements: test.Script, Dir: prefix.Path, Env: prefix.Activation.Env()}
		if err := t.Executor.Run(ctx, req); err != nil {
			return fmt.Errorf("running test script: %w", err)
		}
	}

	for _, mod := range test.PythonImports {
		if err := t.assertPythonImport(ctx, mod, prefix); err != nil {
			return err
		}
	}

	for _, cmd := range test.CommandsExist {
		if err := t.assertCommandExists(ctx, cmd, prefix); err != nil {
			return err
		}
	}

	for _, name := range test.DownstreamOf {
		if buildDownstream == nil {
			return fmt.Errorf("downstream_of %s declared but no downstream builder configured", name)
		}
		if err := buildDownstream(ctx, name); err != nil {
			return fmt.Errorf("downstream build of %s: %w", name, err)
		}
	}

	return nil
}

func (t Tester) assertPythonImport(ctx context.Context, module string, prefix *environment.Prefix) error {
	req := script.Request{
		Statements: []string{fmt.Sprintf("python -c \"import %s\"", module)},
		Dir:        prefix.Path,
		Env:        prefix.Activation.Env(),
	}
	if err := t.Executor.Run(ctx, req); err != nil {
		return &AssertionError{Kind: AssertionPythonImport, Target: module, Err: err}
	}
	return nil
}

func (t Tester) assertCommandExists(ctx context.Context, command string, prefix *environment.Prefix) error {
	req := script.Request{
		Statements: []string{fmt.Sprintf("command -v %s", command)},
		Dir:        prefix.Path,
		Env:        prefix.Activation.Env(),
	}
	if err := t.Executor.Run(ctx, req); err != nil {
		return &AssertionError{Kind: AssertionCommandExist, Target: command, Err: err}
	}
	return nil
}
