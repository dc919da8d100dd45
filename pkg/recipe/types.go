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

package recipe

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	spdxexp "github.com/github/go-spdx/v2/spdxexp"
)

// PackageName is a validated conda package name (lowercase, digits, '-',
// '_', '.').
type PackageName string

var packageNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ParsePackageName validates and constructs a PackageName.
func ParsePackageName(s string) (PackageName, error) {
	if !packageNameRegex.MatchString(s) {
		return "", fmt.Errorf("invalid package name %q: must match %s", s, packageNameRegex.String())
	}
	return PackageName(s), nil
}

// Version is a conda package version string. Full PEP440/conda version
// comparison is delegated to the match-spec parser (spec §1, "assumed"
// external collaborator); this type only carries the raw text through the
// pipeline.
type Version string

// Url is a source download URL.
type Url string

// MatchSpec is an opaque dependency specifier string ("python >=3.11,<3.13"),
// resolved by the external solver (spec §6). The core never parses it, only
// threads it through requirements and run_exports.
type MatchSpec string

// License is an SPDX license expression (spec §3, License (SPDX)).
type License string

// Validate checks the expression against the SPDX license list using the
// same expression grammar SPDX tooling uses (AND/OR/WITH, parens).
func (l License) Validate() error {
	if l == "" {
		return nil
	}
	if ok, invalid := spdxexp.ValidateLicenses([]string{string(l)}); !ok {
		return fmt.Errorf("invalid SPDX license expression %q: unrecognized identifiers %v", l, invalid)
	}
	return nil
}

// GlobVec is an ordered list of glob patterns, used for files.include,
// files.exclude, patch-strip allowlists, and similar filters. Patterns use
// '/'-separated forward slashes regardless of host OS (spec §3, File
// Record invariant).
type GlobVec []string

// Match reports whether relPath (forward-slash separated) matches any
// pattern in the vector.
func (g GlobVec) Match(relPath string) bool {
	relPath = filepathToSlash(relPath)
	for _, pat := range g {
		if ok, _ := path.Match(pat, relPath); ok {
			return true
		}
		// Support a simple '**' prefix/suffix for directory-recursive globs,
		// which path.Match does not understand.
		if matchDoubleStar(pat, relPath) {
			return true
		}
	}
	return false
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, `/`)
}

func matchDoubleStar(pattern, name string) bool {
	if !strings.Contains(pattern, "**") {
		return false
	}
	parts := strings.SplitN(pattern, "**", 2)
	prefix, suffix := parts[0], strings.TrimPrefix(parts[1], "/")
	if prefix != "" && !strings.HasPrefix(name, prefix) {
		return false
	}
	rest := strings.TrimPrefix(name, prefix)
	if suffix == "" {
		return true
	}
	ok, _ := path.Match(suffix, path.Base(rest))
	if ok {
		return true
	}
	return strings.HasSuffix(rest, suffix)
}

// NoarchKind distinguishes platform-independent package flavors (spec
// GLOSSARY, "noarch").
type NoarchKind string

const (
	NoarchNone    NoarchKind = ""
	NoarchGeneric NoarchKind = "generic"
	NoarchPython  NoarchKind = "python"
)
