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

// Package postbuild implements the Post-Build Pass (spec §4.7): file
// discovery, ELF/Mach-O/PE binary rewriting, prefix-placeholder
// detection, overlinking/overdepending validation, and Python/regex
// post-processing, run in order over the host prefix a build just
// populated.
package postbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// Snapshot is a before/after inventory of a prefix, keyed by path
// relative to root (spec §4.7a's "subtract a snapshot taken before
// script execution").
type Snapshot map[string]os.FileInfo

// TakeSnapshot walks root and records every regular file, directory and
// symlink under it.
func TakeSnapshot(root string) (Snapshot, error) {
	snap := make(Snapshot)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		snap[rel] = info
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshotting %s: %w", root, err)
	}
	return snap, nil
}

// NewFiles returns the paths present in after but not in before,
// sorted for deterministic downstream processing.
func NewFiles(before, after Snapshot) []string {
	var out []string
	for rel := range after {
		if _, existed := before[rel]; !existed {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out
}

// ApplyFilesFilter narrows paths to those included by filter.Include
// (or all, if unset) and not excluded by filter.Exclude (spec §4.7a's
// "Apply files: {include, exclude} globs").
func ApplyFilesFilter(paths []string, filter recipe.FilesFilter) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if len(filter.Include) > 0 && !filter.Include.Match(p) {
			continue
		}
		if filter.Exclude.Match(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// RejectEscapingSymlinks implements spec §4.7a's "reject any symlink
// escaping the prefix."
func RejectEscapingSymlinks(root string, paths []string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	for _, rel := range paths {
		full := filepath.Join(root, rel)
		info, err := os.Lstat(full)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(full)
		if err != nil {
			return err
		}
		resolved := target
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.Dir(full), target)
		}
		absResolved, err := filepath.Abs(resolved)
		if err != nil {
			return err
		}
		if absResolved != absRoot && !strings.HasPrefix(absResolved, absRoot+string(filepath.Separator)) {
			return &PathEscapeError{Path: rel}
		}
	}
	return nil
}
