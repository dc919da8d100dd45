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

// Package cli assembles the command surface spec §6 describes: build,
// test, rebuild and the generator/uploader/publish/debug/auth commands
// that sit outside THE CORE and are specified only as external
// interfaces. It never implements package building itself; every
// command here is a thin cobra wrapper around pkg/build.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

// New builds the rbld root command.
func New() *cobra.Command {
	var traceFile string

	root := &cobra.Command{
		Use:           "rbld",
		Short:         "Build conda-style packages from declarative recipes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
			ctx := clog.WithLogger(cmd.Context(), logger)

			if traceFile != "" {
				shutdown, err := setupTracing(traceFile)
				if err != nil {
					return fmt.Errorf("setting up tracing: %w", err)
				}
				cmd.SetContext(withShutdown(ctx, shutdown))
			} else {
				cmd.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return shutdownTracing(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&traceFile, "trace", "", "write an OpenTelemetry trace to this file")

	root.AddCommand(
		buildCmd(),
		testCmd(),
		rebuildCmd(),
		generateRecipeCmd(),
		uploadCmd(),
		publishCmd(),
		debugCmd(),
		authCmd(),
	)
	return root
}
