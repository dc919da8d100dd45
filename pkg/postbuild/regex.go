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
	"os"
	"path/filepath"
	"regexp"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// ApplyPostProcess implements spec §4.7f: "Apply each post_process[].
// regex to files matching post_process[].files."
func ApplyPostProcess(prefixRoot string, newFiles []string, steps []recipe.PostProcessStep) error {
	for _, step := range steps {
		re, err := regexp.Compile(step.Regex.Pattern)
		if err != nil {
			return err
		}
		replacement := []byte(step.Regex.Replacement)

		for _, rel := range newFiles {
			if !step.Files.Match(rel) {
				continue
			}
			full := filepath.Join(prefixRoot, rel)
			data, err := os.ReadFile(full) // #nosec G304 - path comes from our own prefix walk
			if err != nil {
				return err
			}
			updated := re.ReplaceAll(data, replacement)
			if len(updated) == len(data) && string(updated) == string(data) {
				continue
			}
			info, err := os.Stat(full)
			if err != nil {
				return err
			}
			if err := os.WriteFile(full, updated, info.Mode()); err != nil {
				return err
			}
		}
	}
	return nil
}
