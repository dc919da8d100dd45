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

package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BuildFunc runs one output through its build pipeline (render already
// done, source fetch through packaging) and returns the terminal state
// it reached.
type BuildFunc func(ctx context.Context, o *Output) (State, error)

// Scheduler drives a Graph's outputs through BuildFunc in dependency
// order, running unblocked outputs concurrently up to Concurrency.
type Scheduler struct {
	Graph             *Graph
	Concurrency       int
	ContinueOnFailure bool
	Build             BuildFunc
}

// Run walks the graph to completion: every output ends Built, Tested,
// Skipped, or Failed. It first validates the graph is acyclic (spec §7,
// CyclicOutputs) and applies static build.skip evaluation before
// scheduling any work.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.Graph.TopoSort(); err != nil {
		return err
	}
	s.Graph.ApplySkips()

	concurrency := s.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	for {
		ready := s.Graph.Ready()
		if len(ready) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, name := range ready {
			name := name
			o := s.Graph.Output(name)
			o.setState(Rendering)
			g.Go(func() error {
				final, err := s.Build(gctx, o)
				if err != nil {
					o.SetFailed(err)
					if !s.ContinueOnFailure {
						return fmt.Errorf("output %q: %w", name, err)
					}
					s.Graph.MarkDependentsSkipped(name, fmt.Sprintf("dependency %q failed", name))
					return nil
				}
				o.setState(final)
				if final == Built || final == Tested {
					s.Graph.PropagateRunExports(name)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	for _, o := range s.Graph.Outputs() {
		if !o.State().Terminal() {
			return fmt.Errorf("output %q never became ready: unresolved dependency or scheduler defect", o.Name)
		}
	}
	return nil
}
