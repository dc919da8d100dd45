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

package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// sourceTargetDir returns the recipe-declared subdirectory (relative to
// SRC_DIR) a source entry's files should land under, or "" for SRC_DIR
// itself.
func sourceTargetDir(entry recipe.SourceEntry) string {
	switch entry.Kind {
	case recipe.SourceURL:
		return entry.URL.TargetDir
	case recipe.SourceGit:
		return entry.Git.TargetDir
	case recipe.SourcePath:
		return entry.Path.TargetDir
	default:
		return ""
	}
}

// populateSrcDir copies every source entry's cache-resolved, read-only
// path into srcDir, honoring each entry's TargetDir (spec §4.3: the
// cache returns a shared extracted/checked-out directory; the orchestrator
// owns copying it into the per-output work tree since the cache must stay
// reusable across outputs and re-runs).
func populateSrcDir(srcDir string, cachedPaths, targetDirs []string) error {
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return fmt.Errorf("creating source directory: %w", err)
	}
	for i, cached := range cachedPaths {
		dest := srcDir
		if td := targetDirs[i]; td != "" {
			dest = filepath.Join(srcDir, td)
		}
		if err := copyTree(cached, dest); err != nil {
			return fmt.Errorf("populating source directory from %s: %w", cached, err)
		}
	}
	return nil
}

// copyTree recursively copies src into dst. src may be a file or a
// directory; dst's parent directories are created as needed.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return copyFile(src, dst, info.Mode())
	}

	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := dst
		if rel != "." {
			target = filepath.Join(dst, rel)
		}

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return copyFile(p, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src) // #nosec G304 - path derived from the source cache's own resolved entries
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return nil
}
