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

import "fmt"

// LinkingKind is spec §7's LinkingError kind discriminator.
type LinkingKind string

const (
	LinkingOverlinking   LinkingKind = "overlinking"
	LinkingOverdepending LinkingKind = "overdepending"
	LinkingMissing       LinkingKind = "missing"
)

// LinkingError is spec §7's LinkingError{kind, details}.
type LinkingError struct {
	Kind    LinkingKind
	Details string
}

func (e *LinkingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

// PathEscapeError is step (a)'s "reject any symlink escaping the
// prefix."
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("symlink %q escapes the prefix", e.Path)
}
