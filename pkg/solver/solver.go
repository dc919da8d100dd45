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

// Package solver declares the external solver/installer collaborators
// (spec §6): this module never implements dependency solving or package
// installation itself, only the interfaces the Environment Builder
// drives and the domain types they exchange.
package solver

import (
	"context"
	"fmt"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// Channel is a conda channel name or URL ("conda-forge", a local path,
// or an http(s) channel root).
type Channel string

// Platform is a conda subdir ("linux-64", "osx-arm64", "win-64", "noarch").
type Platform string

// Strategy selects the solver's conflict-resolution strategy.
type Strategy string

const (
	StrategyHighest Strategy = "highest"
	StrategyLowest  Strategy = "lowest"
)

// ChannelPriority controls whether earlier channels strictly shadow
// later ones or all channels are searched for the best match.
type ChannelPriority string

const (
	ChannelPriorityStrict   ChannelPriority = "strict"
	ChannelPriorityDisabled ChannelPriority = "disabled"
)

// PackageRecord is one resolved dependency (spec §6's index.json shape,
// restricted to the fields the installer and activation generator need).
type PackageRecord struct {
	Name       recipe.PackageName
	Version    recipe.Version
	Build      string
	BuildNum   uint64
	Subdir     Platform
	Depends    []recipe.MatchSpec
	Constrains []recipe.MatchSpec
	Channel    Channel
	Filename   string
	URL        string
	Sha256     string
}

// UnsatisfiableError is spec §7's SolveFailed{conflict}.
type UnsatisfiableError struct {
	Specs    []recipe.MatchSpec
	Conflict string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("unsatisfiable: %s (specs: %v)", e.Conflict, e.Specs)
}

// InstallError is spec §7's InstallFailed{record}.
type InstallError struct {
	Record PackageRecord
	Detail string
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("installing %s=%s: %s", e.Record.Name, e.Record.Version, e.Detail)
}

// Solver resolves a match-spec list to a concrete set of package
// records (spec §6, "solve(specs, channels, subdir, virtual_pkgs,
// strategy, priority) -> [PackageRecord]").
type Solver interface {
	Solve(ctx context.Context, specs []recipe.MatchSpec, channels []Channel, subdir Platform, virtualPkgs []recipe.MatchSpec, strategy Strategy, priority ChannelPriority) ([]PackageRecord, error)
}

// Report summarizes an install run.
type Report struct {
	Installed []PackageRecord
	Prefix    string
}

// Installer materializes resolved records into a target prefix (spec
// §6, "install(records, target_prefix) -> Report").
type Installer interface {
	Install(ctx context.Context, records []PackageRecord, targetPrefix string) (*Report, error)
}
