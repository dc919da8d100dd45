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

// Package sourcecache implements the Source Cache (spec §4.3):
// content-addressed fetch/extract/patch for URL, Git, and path sources,
// with inter-process advisory locking per cache key and a staleness
// prune policy.
package sourcecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/time/rate"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// Cache is a content-addressed store rooted at Root, guarded by one
// advisory lock file per cache key under Root/.locks.
type Cache struct {
	Root string

	// RateLimiter throttles outgoing mirror requests, shared across
	// every fetch this Cache drives, so many outputs pulling sources
	// from the same upstream host don't trip its rate limits. Nil
	// disables throttling.
	RateLimiter *rate.Limiter

	sem chan struct{} // bounds max_concurrent_downloads in-process
}

// New creates a Cache rooted at root, bounding concurrent fetches to
// maxConcurrentDownloads (spec §4.3, "an async mutex bounded by
// max_concurrent_downloads prevents self-DoS").
func New(root string, maxConcurrentDownloads int) *Cache {
	if maxConcurrentDownloads < 1 {
		maxConcurrentDownloads = 1
	}
	return &Cache{
		Root: root,
		sem:  make(chan struct{}, maxConcurrentDownloads),
	}
}

// entryMetadata is the per-cache-key commit record written on success.
type entryMetadata struct {
	CacheKey     string    `json:"cache_key"`
	Checksum     string    `json:"checksum,omitempty"`
	PackageURL   string    `json:"package_url,omitempty"`
	ExtractedDir string    `json:"extracted_dir,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

func (c *Cache) metadataPath(key string) string {
	return filepath.Join(c.Root, key+".json")
}

func (c *Cache) lockPath(key string) string {
	return filepath.Join(c.Root, ".locks", key+".lock")
}

func (c *Cache) extractedDir(key string) string {
	return filepath.Join(c.Root, key+"_extracted")
}

func (c *Cache) readMetadata(key string) (*entryMetadata, error) {
	data, err := os.ReadFile(c.metadataPath(key)) // #nosec G304 - path built from our own cache key
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m entryMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Cache) writeMetadata(m *entryMetadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.metadataPath(m.CacheKey) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.metadataPath(m.CacheKey))
}

// Get fetches, extracts, and patches entry, returning the local path of
// the (possibly extracted) source tree, per spec §4.3's numbered
// protocol.
func (c *Cache) Get(ctx context.Context, entry recipe.SourceEntry) (string, error) {
	log := clog.FromContext(ctx)

	key, err := cacheKey(entry)
	if err != nil {
		return "", fmt.Errorf("computing cache key: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(c.Root, ".locks"), 0o755); err != nil {
		return "", err
	}

	unlock, err := acquireLock(c.lockPath(key))
	if err != nil {
		return "", fmt.Errorf("locking cache entry %s: %w", key, err)
	}
	defer unlock()

	expected := expectedChecksum(entry)

	if m, err := c.readMetadata(key); err != nil {
		return "", err
	} else if m != nil && (expected == "" || m.Checksum == expected) {
		m.LastUsedAt = time.Now()
		if err := c.writeMetadata(m); err != nil {
			return "", err
		}
		log.Info("source cache hit", "key", key)
		return c.resolvedPath(key, entry, m), nil
	}

	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	artifactPath, actual, purl, err := c.fetch(ctx, key, entry)
	if err != nil {
		return "", &SourceFetchError{Source: describeSource(entry), Err: err}
	}

	if expected != "" && actual != "" && expected != actual {
		return "", &ChecksumMismatchError{Expected: expected, Actual: actual, Source: describeSource(entry)}
	}

	extractedDir := ""
	if isArchive(artifactPath) {
		extractedDir = c.extractedDir(key)
		if err := extractArchive(artifactPath, extractedDir); err != nil {
			return "", fmt.Errorf("extracting %s: %w", artifactPath, err)
		}
		patches := patchesFor(entry)
		if len(patches) > 0 {
			if err := applyPatches(extractedDir, patches); err != nil {
				return "", err
			}
		}
	}

	m := &entryMetadata{
		CacheKey:     key,
		Checksum:     actual,
		PackageURL:   purl,
		ExtractedDir: extractedDir,
		FetchedAt:    time.Now(),
		LastUsedAt:   time.Now(),
	}
	if err := c.writeMetadata(m); err != nil {
		return "", err
	}

	log.Info("source cache fetched", "key", key)
	return c.resolvedPath(key, entry, m), nil
}

func (c *Cache) resolvedPath(key string, entry recipe.SourceEntry, m *entryMetadata) string {
	if m.ExtractedDir != "" {
		return m.ExtractedDir
	}
	switch entry.Kind {
	case recipe.SourceGit, recipe.SourcePath:
		return filepath.Join(c.Root, key+"_checkout")
	default:
		return filepath.Join(c.Root, key+"_artifact")
	}
}

// Prune removes entries whose last_used_at is older than maxAge.
func (c *Cache) Prune(ctx context.Context, maxAge time.Duration) error {
	log := clog.FromContext(ctx)
	entries, err := os.ReadDir(c.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		key := e.Name()[:len(e.Name())-len(".json")]
		m, err := c.readMetadata(key)
		if err != nil || m == nil {
			continue
		}
		if m.LastUsedAt.After(cutoff) {
			continue
		}

		unlock, err := acquireLock(c.lockPath(key))
		if err != nil {
			continue
		}
		log.Info("pruning stale source cache entry", "key", key, "last_used_at", m.LastUsedAt)
		_ = os.Remove(c.metadataPath(key))
		_ = os.RemoveAll(c.extractedDir(key))
		_ = os.RemoveAll(filepath.Join(c.Root, key+"_checkout"))
		_ = os.RemoveAll(filepath.Join(c.Root, key+"_artifact"))
		unlock()
		_ = os.Remove(c.lockPath(key))
	}
	return nil
}

func expectedChecksum(entry recipe.SourceEntry) string {
	switch entry.Kind {
	case recipe.SourceURL:
		if entry.URL.Sha256 != "" {
			return "sha256:" + entry.URL.Sha256
		}
		if entry.URL.MD5 != "" {
			return "md5:" + entry.URL.MD5
		}
	case recipe.SourceGit:
		if entry.Git.RefKind == recipe.GitRefCommit {
			return "commit:" + entry.Git.Ref
		}
	}
	return ""
}

func describeSource(entry recipe.SourceEntry) string {
	switch entry.Kind {
	case recipe.SourceURL:
		if len(entry.URL.URLs) > 0 {
			return string(entry.URL.URLs[0])
		}
	case recipe.SourceGit:
		return entry.Git.URL
	case recipe.SourcePath:
		return entry.Path.Path
	}
	return "unknown source"
}

// cacheKey deterministically identifies a source entry's fetched
// content, independent of variant axes (spec §4.3 step 1).
func cacheKey(entry recipe.SourceEntry) (string, error) {
	h := sha256.New()
	switch entry.Kind {
	case recipe.SourceURL:
		urls := make([]string, len(entry.URL.URLs))
		for i, u := range entry.URL.URLs {
			urls[i] = string(u)
		}
		sort.Strings(urls)
		fmt.Fprintf(h, "url\n")
		for _, u := range urls {
			fmt.Fprintf(h, "%s\n", u)
		}
		fmt.Fprintf(h, "sha256=%s\nmd5=%s\nfilename=%s\n", entry.URL.Sha256, entry.URL.MD5, entry.URL.FileName)
	case recipe.SourceGit:
		fmt.Fprintf(h, "git\n%s\n%s=%s\n", entry.Git.URL, entry.Git.RefKind, entry.Git.Ref)
	case recipe.SourcePath:
		abs, err := filepath.Abs(entry.Path.Path)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "path\n%s\n", abs)
	default:
		return "", fmt.Errorf("unknown source kind %d", entry.Kind)
	}
	return hex.EncodeToString(h.Sum(nil))[:32], nil
}
