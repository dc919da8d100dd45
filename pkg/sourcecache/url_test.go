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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dlorenc/rbld/pkg/recipe"
)

func TestFetchURLDownloadsAndVerifiesChecksum(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("hello source"))
	}))
	defer server.Close()

	c := New(t.TempDir(), 1)
	src := recipe.URLSource{
		URLs:   []recipe.Url{recipe.Url(server.URL)},
		Sha256: "73835e6be53ae9601ad01f242a47aa04ce4ace65f04b71e719aadb6a79ddc51a",
	}

	path, sum, pkgURL, err := c.fetchURL(context.Background(), "key1", src)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "sha256:"+src.Sha256, sum)
	assert.NotEmpty(t, pkgURL)
}

func TestFetchURLFallsThroughMirrorsOnFailure(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer good.Close()

	c := New(t.TempDir(), 1)
	src := recipe.URLSource{URLs: []recipe.Url{recipe.Url(bad.URL), recipe.Url(good.URL)}}

	path, _, _, err := c.fetchURL(context.Background(), "key2", src)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestFetchURLAppliesRateLimiterTransport(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.Write([]byte("data"))
	}))
	defer server.Close()

	c := New(t.TempDir(), 1)
	c.RateLimiter = rate.NewLimiter(rate.Limit(1000), 1)
	src := recipe.URLSource{URLs: []recipe.Url{recipe.Url(server.URL)}}

	_, _, _, err := c.fetchURL(context.Background(), "key3", src)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}
