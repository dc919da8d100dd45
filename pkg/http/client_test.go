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

package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewClientWithLimiter(t *testing.T) {
	t.Run("creates client with rate limiter", func(t *testing.T) {
		rl := rate.NewLimiter(rate.Limit(10), 1)
		client := NewClient(rl)

		require.NotNil(t, client)
		assert.NotNil(t, client.Client)
		assert.Equal(t, rl, client.Ratelimiter)
	})

	t.Run("creates client with nil rate limiter", func(t *testing.T) {
		client := NewClient(nil)

		require.NotNil(t, client)
		assert.Nil(t, client.Ratelimiter)
	})
}

func TestRLHTTPClientDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(nil)
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRLHTTPClientDoRespectsContextCancellation(t *testing.T) {
	rl := rate.NewLimiter(rate.Limit(0.001), 1)
	rl.Allow() // consume the burst
	client := NewClient(rl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	assert.Error(t, err)
}

func TestGetArtifactSHA256(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("test content"))
	}))
	defer server.Close()

	client := NewClient(nil)
	hash, err := client.GetArtifactSHA256(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "6ae8a75555209fd6c44157c0aed8016e763ff435a19cf186f76863140143ff72", hash)
}

func TestGetArtifactSHA256NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(nil)
	_, err := client.GetArtifactSHA256(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestRateLimitedTransportDefaultsToDefaultTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rt := &RateLimitedTransport{}
	c := &http.Client{Transport: rt}

	resp, err := c.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
