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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zealic/xignore"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// fetchPath materializes a path source into a cache-key-scoped copy,
// applying its files filter and, when UseGitignore is set, the nearest
// .gitignore rules, so builds never mutate the user's working tree.
func (c *Cache) fetchPath(key string, src recipe.PathSource) (string, error) {
	dest := filepath.Join(c.Root, key+"_checkout")
	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	var ignorePatterns []*xignore.Pattern
	if src.UseGitignore {
		patterns, err := loadGitignore(src.Path)
		if err != nil {
			return "", err
		}
		ignorePatterns = patterns
	}

	err := filepath.Walk(src.Path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src.Path, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if len(src.Filter) > 0 && !src.Filter.Match(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(ignorePatterns, rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		return copyFile(p, target, info.Mode())
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func matchesAny(patterns []*xignore.Pattern, rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if p.Match(rel) {
			return true
		}
	}
	return false
}

func loadGitignore(root string) ([]*xignore.Pattern, error) {
	path := filepath.Join(root, ".gitignore")
	data, err := os.ReadFile(path) // #nosec G304 - path derived from a recipe-declared source directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	ignF := xignore.Ignorefile{}
	if err := ignF.FromReader(strings.NewReader(string(data))); err != nil {
		return nil, err
	}

	patterns := make([]*xignore.Pattern, 0, len(ignF.Patterns))
	for _, rule := range ignF.Patterns {
		pattern := xignore.NewPattern(rule)
		if err := pattern.Prepare(); err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src) // #nosec G304 - path derived from a recipe-declared source directory
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
