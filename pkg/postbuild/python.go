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

package postbuild

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// CompilePyc implements spec §4.7e's ".py -> .pyc" step: every .py file
// in pyFiles not matched by skip is compiled in place by shelling to
// pythonBin (resolved through PATH), the same way pkg/script dispatches
// to an external interpreter rather than reimplementing pyc bytecode
// generation.
func CompilePyc(ctx context.Context, pythonBin, prefixRoot string, pyFiles []string, skip recipe.GlobVec) error {
	var toCompile []string
	for _, rel := range pyFiles {
		if skip.Match(rel) {
			continue
		}
		toCompile = append(toCompile, filepath.Join(prefixRoot, rel))
	}
	if len(toCompile) == 0 {
		return nil
	}

	args := append([]string{"-m", "py_compile"}, toCompile...)
	cmd := exec.CommandContext(ctx, pythonBin, args...) // #nosec G204 - pythonBin/paths come from the prefix we just built
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("compiling pyc files: %w: %s", err, out)
	}
	return nil
}

// GenerateEntryPoints implements spec §4.7e's "generate entry-point
// launcher scripts per python.entry_points": name -> "module:function"
// becomes a bin/<name> launcher that imports module and calls function.
func GenerateEntryPoints(prefixRoot string, entryPoints map[string]string) error {
	if len(entryPoints) == 0 {
		return nil
	}

	binDir := filepath.Join(prefixRoot, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	for name, target := range entryPoints {
		module, fn, ok := strings.Cut(target, ":")
		if !ok {
			return fmt.Errorf("entry point %q: expected MODULE:FUNCTION, got %q", name, target)
		}

		script := fmt.Sprintf("#!/bin/sh\nexec python3 -c \"import %s; %s.%s()\" \"$@\"\n", module, module, fn)
		path := filepath.Join(binDir, name)
		if err := os.WriteFile(path, []byte(script), 0o755); err != nil { //nolint:gosec // launcher scripts are meant to be executable
			return err
		}
	}
	return nil
}

// RelocateNoarchSitePackages implements spec §4.7e's "on noarch-python
// packages move site-packages/ to the canonical site-packages path."
func RelocateNoarchSitePackages(prefixRoot, from string) error {
	src := filepath.Join(prefixRoot, from)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(prefixRoot, "site-packages")
	if src == dst {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}
