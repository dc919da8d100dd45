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

// Package contextreader wraps an io.Reader so that a cancelled context
// interrupts an in-flight Read the same way an EOF would, letting callers
// use io.Copy/io.ReadAll without hand-rolled cancellation plumbing.
package contextreader

import (
	"context"
	"io"
)

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// New wraps r so that Read returns early once ctx is done. If the context is
// already cancelled when the first Read is attempted, the error from
// ctx.Err() is returned; a cancellation that lands while a Read is already
// blocked inside r surfaces as io.EOF instead, so callers draining with
// io.Copy terminate cleanly rather than treating it as an error.
func New(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	type result struct {
		n   int
		err error
	}

	done := make(chan result, 1)
	go func() {
		n, err := c.r.Read(p)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-c.ctx.Done():
		// The underlying Read is still running in the background and may
		// write into p after we return; callers must not reuse p until
		// they stop reading from this reader.
		return 0, io.EOF
	}
}
