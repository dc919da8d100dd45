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
	"crypto/md5"  //nolint:gosec // upstream-provided checksum algorithm, not used for security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"
	purl "github.com/package-url/packageurl-go"

	"github.com/dlorenc/rbld/internal/contextreader"
	rbldhttp "github.com/dlorenc/rbld/pkg/http"
	"github.com/dlorenc/rbld/pkg/recipe"
)

// fetchURL downloads the first reachable mirror URL. Each request is
// retried by retryablehttp with bounded exponential backoff on 5xx and
// connection errors; a body that fails mid-download is not retried and
// falls through to the next mirror (spec §4.3 step 4, "Honor mirrors:
// try URLs in listed order"). The returned checksum carries an
// "sha256:" or "md5:" prefix, matching expectedChecksum.
func (c *Cache) fetchURL(ctx context.Context, key string, src recipe.URLSource) (path, checksum, pkgURL string, err error) {
	log := clog.FromContext(ctx)
	if len(src.URLs) == 0 {
		return "", "", "", fmt.Errorf("url source has no URLs")
	}

	dest := filepath.Join(c.Root, key+"_artifact")
	if src.FileName != "" {
		dest = filepath.Join(c.Root, key+"_artifact", src.FileName)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", "", "", err
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 5
	client.Logger = nil
	client.HTTPClient.Timeout = httpTimeout
	if c.RateLimiter != nil {
		client.HTTPClient.Transport = &rbldhttp.RateLimitedTransport{
			Base:        client.HTTPClient.Transport,
			Ratelimiter: c.RateLimiter,
		}
	}

	var lastErr error
	for _, u := range src.URLs {
		n, sum, err := downloadOne(ctx, client, string(u), dest, src)
		if err != nil {
			lastErr = err
			log.Warn("mirror failed, trying next", "url", u, "error", err)
			continue
		}
		log.Info("downloaded source", "url", u, "size", humanize.Bytes(uint64(n)))
		return dest, sum, urlPackageURL(string(u)), nil
	}
	return "", "", "", fmt.Errorf("all mirrors failed, last error: %w", lastErr)
}

func downloadOne(ctx context.Context, client *retryablehttp.Client, url, dest string, src recipe.URLSource) (int64, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp) // #nosec G304 - destination built from our own cache root
	if err != nil {
		return 0, "", err
	}

	var h hash.Hash
	algo := ""
	switch {
	case src.Sha256 != "":
		h = sha256.New()
		algo = "sha256:"
	case src.MD5 != "":
		h = md5.New() //nolint:gosec
		algo = "md5:"
	}

	var w io.Writer = f
	if h != nil {
		w = io.MultiWriter(f, h)
	}

	n, err := io.Copy(w, contextreader.New(ctx, resp.Body))
	f.Close()
	if err != nil {
		os.Remove(tmp)
		return 0, "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return 0, "", err
	}

	sum := ""
	if h != nil {
		sum = algo + hex.EncodeToString(h.Sum(nil))
	}
	return n, sum, nil
}

func urlPackageURL(rawURL string) string {
	p := purl.PackageURL{
		Type:    "generic",
		Name:    filepath.Base(rawURL),
		Subpath: rawURL,
	}
	if err := p.Normalize(); err != nil {
		return rawURL
	}
	return p.ToString()
}

func gitPackageURL(src recipe.GitSource) string {
	p := purl.PackageURL{
		Type:    "generic",
		Name:    filepath.Base(src.URL),
		Version: src.Ref,
		Subpath: src.URL,
	}
	if err := p.Normalize(); err != nil {
		return src.URL
	}
	return p.ToString()
}

// httpTimeout bounds each HTTP request attempt, body included;
// retryablehttp applies it afresh to every retry.
const httpTimeout = 30 * time.Minute
