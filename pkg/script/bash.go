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

import (
	"context"
	"errors"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// runBash executes body as POSIX shell using mvdan.cc/sh/v3's pure-Go
// interpreter, so bash scripts behave identically on Linux, macOS and
// Windows without depending on a system /bin/sh (spec §4.6's
// determinism requirement). "set -e equivalents" are enforced by
// running with interp.Params("-e").
func runBash(ctx context.Context, body, dir string, env []string, stdout, stderr *lineLogger) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(body), "build.sh")
	if err != nil {
		return err
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return err
	}

	runErr := runner.Run(ctx, file)
	if runErr == nil {
		return nil
	}

	var status interp.ExitStatus
	if errors.As(runErr, &status) {
		return &FailedError{ExitCode: int(status), StderrTail: stderr.Tail()}
	}
	return runErr
}
