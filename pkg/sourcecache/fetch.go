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
	"context"
	"fmt"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// fetch dispatches by source kind and returns the path to the fetched
// artifact (an archive/file for URL sources, a checkout directory for
// Git/Path sources), its checksum (when computable), and a best-effort
// package URL for provenance.
func (c *Cache) fetch(ctx context.Context, key string, entry recipe.SourceEntry) (path, checksum, purl string, err error) {
	switch entry.Kind {
	case recipe.SourceURL:
		return c.fetchURL(ctx, key, *entry.URL)
	case recipe.SourceGit:
		p, err := c.fetchGit(ctx, key, *entry.Git)
		return p, "", gitPackageURL(*entry.Git), err
	case recipe.SourcePath:
		p, err := c.fetchPath(key, *entry.Path)
		return p, "", "", err
	default:
		return "", "", "", fmt.Errorf("unknown source kind %d", entry.Kind)
	}
}
