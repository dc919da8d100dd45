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

package packager

import "github.com/dlorenc/rbld/pkg/recipe"

// About is info/about.json.
type About struct {
	Home        string   `json:"home,omitempty"`
	DevURL      string   `json:"dev_url,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	License     string   `json:"license,omitempty"`
	LicenseFile []string `json:"license_file,omitempty"`
}

// BuildAbout assembles about.json from the rendered Stage1's About
// block.
func BuildAbout(a recipe.About) About {
	return About{
		Home:        a.Homepage,
		DevURL:      a.Repository,
		Summary:     a.Summary,
		Description: a.Description,
		License:     string(a.License),
		LicenseFile: a.LicenseFile,
	}
}
