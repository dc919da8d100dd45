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

// Package script implements the Script Executor (spec §4.6): interpreter
// selection and dispatch for a build/host/test script under a
// deterministic environment-variable envelope.
package script

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Interpreter is one of spec §4.6's recognized interpreters.
type Interpreter string

const (
	Bash       Interpreter = "bash"
	CmdExe     Interpreter = "cmd.exe"
	Nushell    Interpreter = "nushell"
	PowerShell Interpreter = "powershell"
	Python     Interpreter = "python"
	Perl       Interpreter = "perl"
	Ruby       Interpreter = "ruby"
	NodeJS     Interpreter = "nodejs"
	RScript    Interpreter = "rscript"
)

var byExtension = map[string]Interpreter{
	".sh":   Bash,
	".bat":  CmdExe,
	".ps1":  PowerShell,
	".nu":   Nushell,
	".py":   Python,
	".pl":   Perl,
	".rb":   Ruby,
	".js":   NodeJS,
	".r":    RScript,
}

var recognized = map[Interpreter]bool{
	Bash: true, CmdExe: true, Nushell: true, PowerShell: true,
	Python: true, Perl: true, Ruby: true, NodeJS: true, RScript: true,
}

// Select implements spec §4.6's interpreter selection: an explicit
// `interpreter:` value wins; otherwise the scriptFile extension decides;
// otherwise (inline, extensionless content) the platform default is
// bash on Unix and cmd.exe on Windows.
func Select(explicit, scriptFile string) (Interpreter, error) {
	if explicit != "" {
		i := Interpreter(strings.ToLower(explicit))
		if !recognized[i] {
			return "", &UnrecognizedInterpreterError{Interpreter: explicit}
		}
		return i, nil
	}

	if scriptFile != "" {
		ext := strings.ToLower(filepath.Ext(scriptFile))
		if i, ok := byExtension[ext]; ok {
			return i, nil
		}
		return "", &UnrecognizedInterpreterError{Interpreter: ext}
	}

	if runtime.GOOS == "windows" {
		return CmdExe, nil
	}
	return Bash, nil
}
