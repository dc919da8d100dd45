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

package sourcecache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
)

func patchesFor(entry recipe.SourceEntry) []string {
	if entry.Kind == recipe.SourceURL {
		return entry.URL.Patches
	}
	return nil
}

// applyPatches applies each patch file, in order, against dir. For each
// patch it tries strip levels 0, 1, 2 in turn and commits the first one
// that applies without a hunk failure (spec §4.3 step 7).
//
// There is no unified-diff-apply library in the dependency corpus (only
// diff-computing libraries, go-diff and go-difflib); this is a
// hand-rolled applier, justified in DESIGN.md.
func applyPatches(dir string, patches []string) error {
	for _, p := range patches {
		data, err := os.ReadFile(p) // #nosec G304 - patch path comes from a recipe-declared source list
		if err != nil {
			return fmt.Errorf("reading patch %s: %w", p, err)
		}
		files, err := parseUnifiedDiff(string(data))
		if err != nil {
			return fmt.Errorf("parsing patch %s: %w", p, err)
		}

		applied := false
		for _, strip := range []int{0, 1, 2} {
			if tryApply(dir, files, strip) == nil {
				applied = true
				break
			}
		}
		if !applied {
			return &NoCleanPatchError{Patch: p, StripLevels: []int{0, 1, 2}}
		}
	}
	return nil
}

type diffHunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []string // prefixed with ' ', '+', or '-'
}

type diffFile struct {
	oldPath string
	newPath string
	hunks   []diffHunk
}

// parseUnifiedDiff parses a minimal unified-diff (the "---"/"+++"/"@@"
// subset produced by `diff -u` and `git diff`), enough to apply the
// patches recipes embed.
func parseUnifiedDiff(data string) ([]diffFile, error) {
	var files []diffFile
	var cur *diffFile
	var hunk *diffHunk

	scanner := bufio.NewScanner(strings.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "--- "):
			if cur != nil {
				files = append(files, *cur)
			}
			cur = &diffFile{oldPath: fieldPath(line[4:])}
			hunk = nil
		case strings.HasPrefix(line, "+++ "):
			if cur == nil {
				cur = &diffFile{}
			}
			cur.newPath = fieldPath(line[4:])
		case strings.HasPrefix(line, "@@"):
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			if cur == nil {
				cur = &diffFile{}
			}
			cur.hunks = append(cur.hunks, h)
			hunk = &cur.hunks[len(cur.hunks)-1]
		case hunk != nil && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-")):
			hunk.lines = append(hunk.lines, line)
		case line == `\ No newline at end of file`:
			// ignore
		default:
			// preamble / diff --git lines between files; ignore
		}
	}
	if cur != nil {
		files = append(files, *cur)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func fieldPath(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	return s
}

func parseHunkHeader(line string) (diffHunk, error) {
	// @@ -oldStart,oldCount +newStart,newCount @@ optional context
	parts := strings.Fields(line)
	if len(parts) < 3 {
		return diffHunk{}, fmt.Errorf("malformed hunk header: %q", line)
	}
	oldStart, oldCount, err := parseRange(parts[1])
	if err != nil {
		return diffHunk{}, err
	}
	newStart, newCount, err := parseRange(parts[2])
	if err != nil {
		return diffHunk{}, err
	}
	return diffHunk{oldStart: oldStart, oldCount: oldCount, newStart: newStart, newCount: newCount}, nil
}

func parseRange(s string) (start, count int, err error) {
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "+")
	parts := strings.SplitN(s, ",", 2)
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	count = 1
	if len(parts) == 2 {
		count, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, err
		}
	}
	return start, count, nil
}

// tryApply applies files to dir using the given strip level, without
// committing any change if any hunk fails to match; it writes all-or-
// nothing per patch.
func tryApply(dir string, files []diffFile, strip int) error {
	type pending struct {
		path string
		data []byte
	}
	var results []pending

	for _, f := range files {
		target := stripComponents(f.newPath, strip)
		if target == "" {
			target = stripComponents(f.oldPath, strip)
		}
		full := filepath.Join(dir, target)

		original, err := os.ReadFile(full) // #nosec G304 - path resolved under the source checkout we just extracted
		if err != nil {
			return err
		}
		patched, err := applyHunks(string(original), f.hunks)
		if err != nil {
			return err
		}
		results = append(results, pending{path: full, data: []byte(patched)})
	}

	for _, r := range results {
		if err := os.WriteFile(r.path, r.data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func stripComponents(path string, n int) string {
	path = filepath.ToSlash(path)
	parts := strings.Split(path, "/")
	if len(parts) <= n {
		return ""
	}
	return strings.Join(parts[n:], "/")
}

func applyHunks(original string, hunks []diffHunk) (string, error) {
	lines := strings.Split(original, "\n")
	var out []string
	cursor := 0

	for _, h := range hunks {
		start := h.oldStart - 1
		if start < cursor || start > len(lines) {
			return "", fmt.Errorf("hunk does not apply: out-of-range context at line %d", h.oldStart)
		}
		out = append(out, lines[cursor:start]...)

		pos := start
		for _, l := range h.lines {
			tag, content := l[0], l[1:]
			switch tag {
			case ' ':
				if pos >= len(lines) || lines[pos] != content {
					return "", fmt.Errorf("hunk does not apply: context mismatch at line %d", pos+1)
				}
				out = append(out, content)
				pos++
			case '-':
				if pos >= len(lines) || lines[pos] != content {
					return "", fmt.Errorf("hunk does not apply: deletion mismatch at line %d", pos+1)
				}
				pos++
			case '+':
				out = append(out, content)
			}
		}
		cursor = pos
	}
	out = append(out, lines[cursor:]...)
	return strings.Join(out, "\n"), nil
}
