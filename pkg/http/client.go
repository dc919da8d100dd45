// Copyright 2024 Chainguard, Inc.
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

// Package http provides a rate-limited HTTP client used for fetching
// recipe sources from upstream mirrors, so many concurrent outputs
// pulling from the same host don't trip its rate limits.
package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// RLHTTPClient wraps an *http.Client, optionally blocking each request
// on a shared rate.Limiter before it goes out.
type RLHTTPClient struct {
	Client      *http.Client
	Ratelimiter *rate.Limiter
}

// NewClient builds an RLHTTPClient. A nil limiter disables throttling.
func NewClient(rl *rate.Limiter) *RLHTTPClient {
	return &RLHTTPClient{Client: &http.Client{}, Ratelimiter: rl}
}

// Do waits for the rate limiter (if any) and issues the request.
func (c *RLHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.Ratelimiter != nil {
		if err := c.Ratelimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	return c.Client.Do(req)
}

// GetArtifactSHA256 downloads url and returns the hex-encoded sha256 of
// its body, used to verify a mirror's content against a recipe's
// declared checksum without buffering to disk first.
func (c *RLHTTPClient) GetArtifactSHA256(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	h := sha256.New()
	if _, err := io.Copy(h, resp.Body); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// RateLimitedTransport adapts a rate.Limiter into an http.RoundTripper,
// so it can be plugged into another HTTP client (e.g. retryablehttp's)
// as that client's Transport rather than replacing the client outright.
type RateLimitedTransport struct {
	Base        http.RoundTripper
	Ratelimiter *rate.Limiter
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Ratelimiter != nil {
		if err := t.Ratelimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
