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

// Package micromamba adapts the external micromamba binary to
// pkg/solver's Solver/Installer interfaces. spec.md treats dependency
// solving as an opaque `solve(specs, channels) -> sorted install list`
// collaborator (§1 Non-goals: "running the solver itself"); this
// package never resolves a dependency graph itself, it only shells out
// to micromamba and parses its `--json` output, the same way
// pkg/script.Executor shells out to bash/cmd.exe rather than
// interpreting scripts itself.
package micromamba

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

// Adapter drives one micromamba binary for both solving (dry-run create)
// and installing (real create).
type Adapter struct {
	// BinPath is the micromamba executable; defaults to "micromamba" on
	// PATH when empty.
	BinPath string
}

func (a *Adapter) bin() string {
	if a.BinPath != "" {
		return a.BinPath
	}
	return "micromamba"
}

// dryRunResult is the subset of `micromamba create --dry-run --json`'s
// output this adapter needs.
type dryRunResult struct {
	Actions struct {
		Link []linkAction `json:"LINK"`
	} `json:"actions"`
}

type linkAction struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Build      string   `json:"build_string"`
	BuildNum   uint64   `json:"build_number"`
	Subdir     string   `json:"subdir"`
	Depends    []string `json:"depends"`
	Constrains []string `json:"constrains"`
	Channel    string   `json:"channel"`
	Fn         string   `json:"fn"`
	URL        string   `json:"url"`
	Sha256     string   `json:"sha256"`
}

// Solve shells out to `micromamba create --dry-run --json` against a
// scratch prefix and parses the planned LINK actions into
// solver.PackageRecord, spec §1's "sorted install list" (sorting is the
// caller's concern; this only reports what micromamba planned to link).
func (a *Adapter) Solve(ctx context.Context, specs []recipe.MatchSpec, channels []solver.Channel, subdir solver.Platform, virtualPkgs []recipe.MatchSpec, _ solver.Strategy, priority solver.ChannelPriority) ([]solver.PackageRecord, error) {
	args := []string{"create", "--dry-run", "--json", "--prefix", "/tmp/rbld-solve-scratch", "--override-channels"}
	for _, c := range channels {
		args = append(args, "--channel", string(c))
	}
	if priority == solver.ChannelPriorityDisabled {
		args = append(args, "--channel-priority", "disabled")
	} else {
		args = append(args, "--channel-priority", "strict")
	}
	args = append(args, "--platform", string(subdir))
	for _, v := range virtualPkgs {
		args = append(args, "--channel-alias", string(v)) // virtual packages: best-effort passthrough, micromamba reads __glibc/__osx from its own host detection
	}
	for _, s := range specs {
		args = append(args, string(s))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.bin(), args...) // #nosec G204 - args built from recipe-declared match-specs and channel config, not external input
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &solver.UnsatisfiableError{Specs: specs, Conflict: stderr.String()}
	}

	var result dryRunResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("parsing micromamba dry-run output: %w", err)
	}

	records := make([]solver.PackageRecord, 0, len(result.Actions.Link))
	for _, a := range result.Actions.Link {
		depends := make([]recipe.MatchSpec, len(a.Depends))
		for i, d := range a.Depends {
			depends[i] = recipe.MatchSpec(d)
		}
		constrains := make([]recipe.MatchSpec, len(a.Constrains))
		for i, c := range a.Constrains {
			constrains[i] = recipe.MatchSpec(c)
		}
		records = append(records, solver.PackageRecord{
			Name:       recipe.PackageName(a.Name),
			Version:    recipe.Version(a.Version),
			Build:      a.Build,
			BuildNum:   a.BuildNum,
			Subdir:     solver.Platform(a.Subdir),
			Depends:    depends,
			Constrains: constrains,
			Channel:    solver.Channel(a.Channel),
			Filename:   a.Fn,
			URL:        a.URL,
			Sha256:     a.Sha256,
		})
	}
	return records, nil
}

// Install shells out to `micromamba create` against targetPrefix with
// every record pinned to its exact build string, so micromamba performs
// no further solving of its own (spec's installer step is "materialize
// this already-resolved record list").
func (a *Adapter) Install(ctx context.Context, records []solver.PackageRecord, targetPrefix string) (*solver.Report, error) {
	args := []string{"create", "-y", "--prefix", targetPrefix, "--override-channels"}
	seen := map[solver.Channel]bool{}
	for _, r := range records {
		if r.Channel != "" && !seen[r.Channel] {
			args = append(args, "--channel", string(r.Channel))
			seen[r.Channel] = true
		}
	}
	for _, r := range records {
		args = append(args, fmt.Sprintf("%s=%s=%s", r.Name, r.Version, r.Build))
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.bin(), args...) // #nosec G204 - args built from already-solved package records, not external input
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var rec solver.PackageRecord
		if len(records) > 0 {
			rec = records[0]
		}
		return nil, &solver.InstallError{Record: rec, Detail: stderr.String()}
	}

	return &solver.Report{Installed: records, Prefix: targetPrefix}, nil
}
