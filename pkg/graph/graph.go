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
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/template"
	"github.com/dlorenc/rbld/pkg/variant"
)

// Output is one scheduler node: a rendered variant plus its lifecycle
// state and the names of sibling outputs it depends on at build or host
// scope (spec §4.4).
type Output struct {
	Name         string
	Rendered     *variant.Rendered
	Dependencies []string // sibling output names this output's build/host deps reference

	mu    sync.Mutex
	state State
	err   error
}

func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Output) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// SetFailed marks the output Failed and records the causing error.
func (o *Output) SetFailed(err error) {
	o.mu.Lock()
	o.state = Failed
	o.err = err
	o.mu.Unlock()
}

func (o *Output) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Graph is the Output Graph Scheduler's DAG over a recipe's outputs.
type Graph struct {
	outputs map[string]*Output
}

// New builds a Graph from the Variant Resolver's per-output renders,
// deriving edges from pin_subpackage references found among each
// output's build/host requirements (spec §4.4, "Build a DAG where an
// edge A→B exists if B depends on A").
func New(renders map[string]*variant.Rendered) (*Graph, error) {
	g := &Graph{outputs: map[string]*Output{}}
	for name, r := range renders {
		g.outputs[name] = &Output{Name: name, Rendered: r, state: Pending}
	}
	for name, o := range g.outputs {
		deps, err := pinnedSiblingNames(o.Rendered.Stage1, g.outputs)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		o.Dependencies = deps
	}
	return g, nil
}

// pinnedSiblingNames scans an output's build+host requirement specs for
// pin_subpackage/pin_compatible placeholders (template.PinPrefix) and
// returns the sibling output names they reference, restricted to names
// that actually exist in this graph.
func pinnedSiblingNames(s1 *recipe.Stage1, outputs map[string]*Output) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	scan := func(specs []recipe.MatchSpec) {
		for _, spec := range specs {
			name, ok := pinnedName(string(spec))
			if !ok {
				continue
			}
			if _, exists := outputs[name]; !exists {
				continue
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	scan(s1.Requirements.Build)
	scan(s1.Requirements.Host)
	sort.Strings(names)
	return names, nil
}

func pinnedName(spec string) (string, bool) {
	if !strings.HasPrefix(spec, template.PinPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(spec, template.PinPrefix)
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

// Output returns the named node, or nil.
func (g *Graph) Output(name string) *Output {
	return g.outputs[name]
}

// Outputs returns every node, unordered.
func (g *Graph) Outputs() []*Output {
	out := make([]*Output, 0, len(g.outputs))
	for _, o := range g.outputs {
		out = append(out, o)
	}
	return out
}

// TopoSort returns outputs in dependency order (predecessors before
// dependents), or a CyclicOutputsError if the graph has a cycle (spec
// §7, CyclicOutputs(path)). Adapted from the Kahn's-algorithm scheduler
// used for the distributed build queue, generalized to conda outputs.
func (g *Graph) TopoSort() ([]*Output, error) {
	inDegree := make(map[string]int, len(g.outputs))
	for name := range g.outputs {
		inDegree[name] = 0
	}
	for _, o := range g.outputs {
		for _, dep := range o.Dependencies {
			if _, ok := g.outputs[dep]; ok {
				inDegree[o.Name]++
			}
		}
	}

	var queue []string
	for name, d := range inDegree {
		if d == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []*Output
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, g.outputs[name])

		for _, o := range g.outputs {
			for _, dep := range o.Dependencies {
				if dep == name {
					inDegree[o.Name]--
					if inDegree[o.Name] == 0 {
						queue = append(queue, o.Name)
						sort.Strings(queue)
					}
					break
				}
			}
		}
	}

	if len(result) != len(g.outputs) {
		path, _ := g.DetectCycle()
		return nil, &CyclicOutputsError{Path: path}
	}
	return result, nil
}

// DetectCycle runs a DFS over dependency edges and returns the first
// cycle found, if any.
func (g *Graph) DetectCycle() ([]string, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.outputs))
	parent := map[string]string{}
	var cycle []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		state[name] = visiting
		o := g.outputs[name]
		for _, dep := range o.Dependencies {
			if _, ok := g.outputs[dep]; !ok {
				continue
			}
			if state[dep] == visiting {
				cycle = []string{dep, name}
				for cur := name; cur != dep; {
					p, ok := parent[cur]
					if !ok {
						break
					}
					cycle = append([]string{p}, cycle...)
					cur = p
				}
				return true
			}
			if state[dep] == unvisited {
				parent[dep] = name
				if dfs(dep) {
					return true
				}
			}
		}
		state[name] = done
		return false
	}

	names := make([]string, 0, len(g.outputs))
	for name := range g.outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if state[name] == unvisited {
			if dfs(name) {
				return cycle, fmt.Errorf("cycle detected: %v", cycle)
			}
		}
	}
	return nil, nil
}

// Ready returns the names of outputs whose dependencies are all Built or
// later (Tested), and which are themselves still Pending.
func (g *Graph) Ready() []string {
	var ready []string
	for name, o := range g.outputs {
		if o.State() != Pending {
			continue
		}
		blocked := false
		for _, dep := range o.Dependencies {
			d, ok := g.outputs[dep]
			if !ok {
				continue
			}
			s := d.State()
			if s != Built && s != Tested {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)
	return ready
}

// MarkDependentsSkipped marks every direct and transitive dependent of
// name as Skipped, recording reason, per spec §4.4's
// --continue-on-failure behavior.
func (g *Graph) MarkDependentsSkipped(name, reason string) {
	dependents := map[string][]string{}
	for _, o := range g.outputs {
		for _, dep := range o.Dependencies {
			dependents[dep] = append(dependents[dep], o.Name)
		}
	}

	var walk func(string)
	visited := map[string]bool{}
	walk = func(n string) {
		for _, dep := range dependents[n] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			o := g.outputs[dep]
			if o.State() == Pending {
				o.SetFailed(fmt.Errorf("skipped: %s", reason))
				o.setState(Skipped)
			}
			walk(dep)
		}
	}
	walk(name)
}

// Advance transitions an output to the given state. Callers invoke this
// as each phase of the per-output pipeline completes.
func (g *Graph) Advance(name string, s State) {
	if o, ok := g.outputs[name]; ok {
		o.setState(s)
	}
}
