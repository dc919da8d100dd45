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

package template

import (
	"fmt"
	"os"
	"strings"
)

// PinPrefix marks the opaque placeholder text produced by pin_subpackage
// and pin_compatible. The Output Graph Scheduler (pkg/graph) resolves
// these into concrete match specs once the referenced sibling output has
// been built (spec GLOSSARY, "Pin subpackage"); nothing in this package
// can resolve them itself, since that requires the build graph.
const PinPrefix = "\x00pin:"

// BuiltinFunctions returns the closed allowlist from spec §4.1: compiler,
// pin_subpackage, pin_compatible, cdt, match, is_linux/is_osx/is_win/
// is_unix, env.get/env.exists, load_from_file, and the latest_tag/git
// helpers. Any name not in this map fails with UnknownFunctionError.
func BuiltinFunctions() map[string]Func {
	return map[string]Func{
		"compiler":        fnCompiler,
		"pin_subpackage":  fnPinSubpackage,
		"pin_compatible":  fnPinCompatible,
		"cdt":             fnCDT,
		"match":           fnMatch,
		"is_linux":        fnPlatformProbe("linux"),
		"is_osx":          fnPlatformProbe("osx"),
		"is_win":          fnPlatformProbe("win"),
		"is_unix":         fnIsUnix,
		"env.get":         fnEnvGet,
		"env.exists":      fnEnvExists,
		"load_from_file":  fnLoadFromFile,
		"git.latest_tag":  fnGitLatestTag,
		"latest_tag":      fnGitLatestTag,
	}
}

func argString(args []Value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string, got %T", i, args[i])
	}
	return s, nil
}

func optString(args []Value, i int, def string) string {
	if i >= len(args) {
		return def
	}
	if s, ok := args[i].(string); ok {
		return s
	}
	return def
}

// fnCompiler resolves compiler(lang) to the conventional variant-keyed
// build dependency name, e.g. compiler("c") with c_compiler=gcc and
// c_compiler_version=12 -> "gcc_c 12.*" ("c_compiler_stub" when
// c_compiler is unbound). Looking up c_compiler/c_compiler_version
// records them as used variant axes.
func fnCompiler(c *Context, args []Value) (Value, error) {
	lang, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("compiler(): %w", err)
	}
	key := lang + "_compiler"
	if v, ok := c.Lookup(key); ok {
		if s, ok := v.(string); ok {
			ver, _ := c.Lookup(key + "_version")
			if vs, ok := ver.(string); ok && vs != "" {
				return fmt.Sprintf("%s_%s %s.*", s, lang, vs), nil
			}
			return fmt.Sprintf("%s_%s", s, lang), nil
		}
	}
	return fmt.Sprintf("%s_%s", lang, "compiler_stub"), nil
}

func fnPinSubpackage(c *Context, args []Value) (Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("pin_subpackage(): %w", err)
	}
	lower := optString(args, 1, "")
	upper := optString(args, 2, "")
	exact := optString(args, 3, "")
	if c.Track != nil {
		c.Track["pin_subpackage."+name] = true
	}
	return fmt.Sprintf("%ssubpackage:%s:%s:%s:%s", PinPrefix, name, lower, upper, exact), nil
}

func fnPinCompatible(c *Context, args []Value) (Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("pin_compatible(): %w", err)
	}
	lower := optString(args, 1, "")
	upper := optString(args, 2, "")
	exact := optString(args, 3, "")
	if c.Track != nil {
		c.Track["pin_compatible."+name] = true
	}
	return fmt.Sprintf("%scompatible:%s:%s:%s:%s", PinPrefix, name, lower, upper, exact), nil
}

// fnCDT resolves cdt(name) to a "Core Dependency Tree" package name used
// by cross-compiling recipes to depend on sysroot packages.
func fnCDT(c *Context, args []Value) (Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("cdt(): %w", err)
	}
	arch, _ := c.Lookup("target_platform")
	as, _ := arch.(string)
	if as == "" {
		as = "linux-64"
	}
	return fmt.Sprintf("%s-cos6-%s", name, strings.ReplaceAll(as, "-", "_")), nil
}

// fnMatch evaluates match(version, spec): true if version satisfies the
// match-spec-style range in spec. Delegated loosely here since full
// version comparison is the external match-spec parser's job (spec §1);
// this supports the common "=="/">="/"<" prefix forms directly so
// ${{ if match(python, ">=3.11") }} works without the external solver.
func fnMatch(c *Context, args []Value) (Value, error) {
	version, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("match(): %w", err)
	}
	spec, err := argString(args, 1)
	if err != nil {
		return nil, fmt.Errorf("match(): %w", err)
	}
	return matchVersionSpec(version, spec), nil
}

func fnPlatformProbe(plat string) Func {
	return func(c *Context, args []Value) (Value, error) {
		v, _ := c.Lookup(plat)
		b, _ := v.(bool)
		return b, nil
	}
}

func fnIsUnix(c *Context, args []Value) (Value, error) {
	v, _ := c.Lookup("unix")
	b, _ := v.(bool)
	return b, nil
}

func fnEnvGet(c *Context, args []Value) (Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("env.get(): %w", err)
	}
	return os.Getenv(name), nil
}

func fnEnvExists(c *Context, args []Value) (Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("env.exists(): %w", err)
	}
	_, ok := os.LookupEnv(name)
	return ok, nil
}

func fnLoadFromFile(c *Context, args []Value) (Value, error) {
	path, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("load_from_file(): %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - recipe-declared path, evaluated at render time on the maintainer's own machine
	if err != nil {
		return nil, fmt.Errorf("load_from_file(%q): %w", path, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// fnGitLatestTag is a stub resolved by the caller wiring a real Git
// lookup into the context under "git.latest_tag.<url>"; when absent the
// call itself returns an error saying no tag could be determined.
func fnGitLatestTag(c *Context, args []Value) (Value, error) {
	url, err := argString(args, 0)
	if err != nil {
		return nil, fmt.Errorf("git.latest_tag(): %w", err)
	}
	if v, ok := c.Lookup("git.latest_tag." + url); ok {
		return v, nil
	}
	return nil, fmt.Errorf("git.latest_tag(%q): no cached tag resolution available", url)
}
