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
	"os"
	"os/exec"
	"strings"
)

// Request is everything the Script Executor needs to run one output's
// build, host, or test script (spec §4.6).
type Request struct {
	Statements  []string // list-form script statements, joined per interpreter
	Interpreter string   // explicit interpreter:, or "" to infer
	ScriptFile  string    // script file path, or "" for inline Statements
	Dir         string    // working directory; spec §4.6's SRC_DIR
	Env         []string  // "KEY=VALUE" activation envelope (pkg/environment.Activation.Env())
}

// Executor runs a Request through the interpreter spec §4.6 selects,
// streaming output line by line and translating a nonzero exit into
// FailedError (spec §7's ScriptFailed).
type Executor struct{}

// Run dispatches req to the selected interpreter. ctx cancellation
// kills the child process (or, for bash, the in-process interpreter).
func (Executor) Run(ctx context.Context, req Request) error {
	i, err := Select(req.Interpreter, req.ScriptFile)
	if err != nil {
		return err
	}

	stdout := newLineLogger(ctx, "info")
	stderr := newLineLogger(ctx, "error")
	defer stdout.Close()
	defer stderr.Close()

	if i == Bash && req.ScriptFile == "" {
		body := strings.Join(req.Statements, "\n") + "\n"
		return runBash(ctx, body, req.Dir, req.Env, stdout, stderr)
	}

	if req.ScriptFile == "" && requiresFile(i) {
		path, cleanup, err := materializeScript(req.Dir, i, req.Statements)
		if err != nil {
			return err
		}
		defer cleanup()
		req.ScriptFile = path
	}

	name, args := commandFor(i, req)
	return runExternal(ctx, name, args, req.Dir, req.Env, stdout, stderr)
}

// requiresFile reports whether i always invokes its interpreter
// against a file on disk rather than supporting an inline "-c"-style
// form (spec §4.6 names python/perl/ruby/nodejs/rscript this way).
func requiresFile(i Interpreter) bool {
	switch i {
	case Python, Perl, Ruby, NodeJS, RScript, Bash:
		return true
	default:
		return false
	}
}

func materializeScript(dir string, i Interpreter, statements []string) (string, func(), error) {
	ext := map[Interpreter]string{
		Bash: ".sh", Python: ".py", Perl: ".pl", Ruby: ".rb", NodeJS: ".js", RScript: ".R",
	}[i]
	f, err := os.CreateTemp(dir, "rbld-script-*"+ext)
	if err != nil {
		return "", nil, err
	}
	body := strings.Join(statements, "\n") + "\n"
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}

// commandFor picks the interpreter binary and argv for every
// non-bash interpreter (spec §4.6's recognized list); for list-form
// scripts run under cmd.exe, each statement gets an ERRORLEVEL check
// appended so a failing command aborts the batch the same way `set -e`
// does for bash.
func commandFor(i Interpreter, req Request) (string, []string) {
	switch i {
	case CmdExe:
		if req.ScriptFile != "" {
			return "cmd.exe", []string{"/D", "/E:ON", "/C", req.ScriptFile}
		}
		return "cmd.exe", []string{"/D", "/E:ON", "/C", injectErrorlevelChecks(req.Statements)}
	case PowerShell:
		if req.ScriptFile != "" {
			return "powershell.exe", []string{"-NoProfile", "-NonInteractive", "-File", req.ScriptFile}
		}
		return "powershell.exe", []string{"-NoProfile", "-NonInteractive", "-Command", strings.Join(req.Statements, "; ")}
	case Nushell:
		if req.ScriptFile != "" {
			return "nu", []string{req.ScriptFile}
		}
		return "nu", []string{"-c", strings.Join(req.Statements, "; ")}
	case Python:
		return "python3", []string{req.ScriptFile}
	case Perl:
		return "perl", []string{req.ScriptFile}
	case Ruby:
		return "ruby", []string{req.ScriptFile}
	case NodeJS:
		return "node", []string{req.ScriptFile}
	case RScript:
		return "Rscript", []string{req.ScriptFile}
	default:
		return "bash", []string{req.ScriptFile}
	}
}

// injectErrorlevelChecks implements spec §4.6's "on Windows, the
// executor injects an `if %ERRORLEVEL% neq 0 exit /b %ERRORLEVEL%`
// after each command in a list-form script."
func injectErrorlevelChecks(statements []string) string {
	var b strings.Builder
	for _, s := range statements {
		b.WriteString(s)
		b.WriteString(" & if %ERRORLEVEL% neq 0 exit /b %ERRORLEVEL%")
		b.WriteString(" & ")
	}
	return strings.TrimSuffix(b.String(), " & ")
}

func runExternal(ctx context.Context, name string, args []string, dir string, env []string, stdout, stderr *lineLogger) error {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 - interpreter and args are derived from the recipe's own declared script, not external input
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &FailedError{ExitCode: exitErr.ExitCode(), StderrTail: stderr.Tail()}
	}
	return err
}
