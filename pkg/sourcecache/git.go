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
	"os"
	"os/exec"
	"path/filepath"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// fetchGit clones src into a cache-key-scoped checkout directory and
// resolves the requested ref (spec §4.3 step 4, "Git via ... clone +
// fetch + checkout").
func (c *Cache) fetchGit(ctx context.Context, key string, src recipe.GitSource) (string, error) {
	log := clog.FromContext(ctx)
	dest := filepath.Join(c.Root, key+"_checkout")

	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		if err := pullLatest(ctx, dest); err != nil {
			log.Warn("git fetch failed, recloning", "error", err)
			_ = os.RemoveAll(dest)
		}
	}

	if _, err := os.Stat(dest); os.IsNotExist(err) {
		depth := src.Depth
		if depth == 0 {
			depth = 1
		}
		log.Info("cloning git source", "url", src.URL)
		_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL:   src.URL,
			Depth: depth,
		})
		if err != nil {
			return "", fmt.Errorf("cloning %s: %w", src.URL, err)
		}
	}

	repo, err := git.PlainOpenWithOptions(dest, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("opening checkout: %w", err)
	}

	ref, err := resolveRef(ctx, repo, src)
	if err != nil {
		return "", err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: ref}); err != nil {
		return "", fmt.Errorf("checking out %s: %w", src.Ref, err)
	}

	if src.LFS {
		if err := pullLFS(ctx, dest); err != nil {
			return "", fmt.Errorf("pulling git LFS objects: %w", err)
		}
	}

	return dest, nil
}

func resolveRef(ctx context.Context, repo *git.Repository, src recipe.GitSource) (plumbing.Hash, error) {
	switch src.RefKind {
	case recipe.GitRefCommit:
		return plumbing.NewHash(src.Ref), nil
	case recipe.GitRefBranch:
		ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", src.Ref), true)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("resolving branch %s: %w", src.Ref, err)
		}
		return ref.Hash(), nil
	case recipe.GitRefTag:
		ref, err := repo.Tag(src.Ref)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("resolving tag %s: %w", src.Ref, err)
		}
		return ref.Hash(), nil
	case recipe.GitRefLatestTag:
		return latestTagHash(repo)
	default:
		return plumbing.ZeroHash, fmt.Errorf("unknown git ref kind %q", src.RefKind)
	}
}

func latestTagHash(repo *git.Repository) (plumbing.Hash, error) {
	tags, err := repo.Tags()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var latest *plumbing.Reference
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		latest = ref
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if latest == nil {
		return plumbing.ZeroHash, fmt.Errorf("repository has no tags")
	}
	return latest.Hash(), nil
}

// pullLatest fetches new refs into an existing checkout without
// re-cloning from scratch.
func pullLatest(ctx context.Context, dest string) error {
	repo, err := git.PlainOpenWithOptions(dest, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return err
	}
	err = repo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin", Tags: git.AllTags})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return err
	}
	return nil
}

// pullLFS shells to the git CLI for LFS support: go-git does not
// implement the LFS smudge/clean filter protocol.
func pullLFS(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, "git", "lfs", "pull") // #nosec G204 - fixed argv, no user input reaches argv
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
