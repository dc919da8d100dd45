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

package script

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/chainguard-dev/clog"
)

// lineLogger streams a script's output through clog one line at a time
// (spec §4.6's "line-wrapped streamed logging"), following the
// clog.FromContext(ctx) idiom used throughout pkg/build.
// It also keeps the last N bytes written for ScriptFailed's stderr_tail.
type lineLogger struct {
	ctx    context.Context
	level  string // "info" or "error"
	pw     *io.PipeWriter
	done   chan struct{}
	tail   *tailBuffer
}

func newLineLogger(ctx context.Context, level string) *lineLogger {
	pr, pw := io.Pipe()
	l := &lineLogger{ctx: ctx, level: level, pw: pw, done: make(chan struct{}), tail: newTailBuffer(4096)}

	go func() {
		defer close(l.done)
		log := clog.FromContext(ctx)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			l.tail.Write([]byte(line + "\n"))
			if level == "error" {
				log.Errorf("%s", line)
			} else {
				log.Infof("%s", line)
			}
		}
	}()

	return l
}

func (l *lineLogger) Write(p []byte) (int, error) { return l.pw.Write(p) }

func (l *lineLogger) Close() error {
	err := l.pw.Close()
	<-l.done
	return err
}

func (l *lineLogger) Tail() string { return l.tail.String() }

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	max int
	buf bytes.Buffer
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if t.buf.Len() > t.max {
		trimmed := t.buf.Bytes()[t.buf.Len()-t.max:]
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
