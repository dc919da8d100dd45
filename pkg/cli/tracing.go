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

package cli

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

type shutdownKey struct{}

func withShutdown(ctx context.Context, fn func(context.Context) error) context.Context {
	return context.WithValue(ctx, shutdownKey{}, fn)
}

// shutdownTracing flushes and closes any tracer provider New installed
// for this command invocation; a no-op when --trace was not set.
func shutdownTracing(ctx context.Context) error {
	fn, ok := ctx.Value(shutdownKey{}).(func(context.Context) error)
	if !ok {
		return nil
	}
	return fn(ctx)
}

// setupTracing points the global tracer provider at a file-backed
// stdouttrace exporter, the lightest OTEL sink that needs no collector.
func setupTracing(path string) (func(context.Context) error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace file %s: %w", path, err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("building trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(trace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}
