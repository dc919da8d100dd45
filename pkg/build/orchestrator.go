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

// Package build orchestrates one recipe document end to end (spec §2's
// control flow: Recipe Model -> Evaluator -> Variant Resolver -> Output
// Graph -> (per output) Source Cache -> Env Builder -> Script Executor ->
// Post-Build Pass -> Packager -> (optional) Tester). It owns none of
// those algorithms itself; it sequences the already-independent
// pkg/recipe, pkg/template, pkg/variant, pkg/graph, pkg/sourcecache,
// pkg/environment, pkg/script, pkg/postbuild, pkg/packager and
// pkg/tester packages.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"github.com/dlorenc/rbld/pkg/environment"
	"github.com/dlorenc/rbld/pkg/graph"
	"github.com/dlorenc/rbld/pkg/packager"
	"github.com/dlorenc/rbld/pkg/postbuild"
	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/script"
	"github.com/dlorenc/rbld/pkg/sourcecache"
	"github.com/dlorenc/rbld/pkg/tester"
	"github.com/dlorenc/rbld/pkg/variant"
)

// Orchestrator drives one recipe document's outputs from parse through
// package. Build it with NewFromConfig.
type Orchestrator struct {
	cfg Config

	originalRecipe   []byte
	names            []string // output names, sorted
	perOutputRenders map[string][]variant.Rendered
	timestamp        recipe.BuildTimestamp

	sourceCache *sourcecache.Cache
	executor    script.Executor
	tester      tester.Tester

	workRoot string
}

// NewFromConfig parses cfg's recipe and resolves its variant matrix. It
// does not build anything yet; call Run for that.
func NewFromConfig(ctx context.Context, cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	data := cfg.RecipeData
	if data == nil {
		var err error
		data, err = os.ReadFile(cfg.RecipePath)
		if err != nil {
			return nil, fmt.Errorf("reading recipe %s: %w", cfg.RecipePath, err)
		}
	}

	doc, err := recipe.Parse(cfg.RecipePath, data)
	if err != nil {
		return nil, fmt.Errorf("parsing recipe: %w", err)
	}

	varCfg, err := loadVariantConfig(cfg.VariantConfigPaths, cfg.VariantOverrides)
	if err != nil {
		return nil, err
	}

	base := baseContext(cfg.TargetPlatform)
	if err := evaluateContext(doc, base); err != nil {
		return nil, fmt.Errorf("evaluating context: %w", err)
	}

	docs, err := doc.OutputDocuments()
	if err != nil {
		return nil, fmt.Errorf("splitting outputs: %w", err)
	}

	perOutput := map[string][]variant.Rendered{}
	for _, d := range docs {
		rs, err := variant.Resolve(d, varCfg, base)
		if err != nil {
			return nil, fmt.Errorf("resolving variants: %w", err)
		}
		if len(rs) == 0 {
			continue
		}
		name := string(rs[0].Stage1.Package.Name)
		perOutput[name] = append(perOutput[name], rs...)
	}

	names := make([]string, 0, len(perOutput))
	for name := range perOutput {
		names = append(names, name)
	}
	sort.Strings(names)

	timestamp := recipe.BuildTimestamp{Time: cfg.SourceDateEpoch}
	if timestamp.Time.IsZero() {
		timestamp.Time = time.Now().UTC()
	}

	workRoot := cfg.WorkDir
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	workRoot = filepath.Join(workRoot, "rbld-work")
	if !cfg.NoBuildID {
		workRoot = filepath.Join(workRoot, uuid.NewString())
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(workRoot, "cache")
	}

	return &Orchestrator{
		cfg:              cfg,
		originalRecipe:   data,
		names:            names,
		perOutputRenders: perOutput,
		timestamp:        timestamp,
		sourceCache:      sourcecache.New(cacheDir, maxInt(cfg.Concurrency, 4)),
		executor:         script.Executor{},
		tester:           tester.Tester{Executor: script.Executor{}},
		workRoot:         workRoot,
	}, nil
}

// Run schedules and builds every resolved variant of every output,
// honoring cfg.Concurrency and cfg.ContinueOnFailure, and returns the
// paths of every package archive written. A recipe whose outputs use
// variant axes yields more than one combination (spec §4.2); each
// combination is built as an independent Output Graph so that
// pin_subpackage/run_exports edges are only ever resolved within one
// self-consistent set of candidates.
func (o *Orchestrator) Run(ctx context.Context) ([]string, error) {
	combos := cartesianRenders(o.perOutputRenders, o.names)

	var written []string
	for i, renders := range combos {
		g, err := graph.New(renders)
		if err != nil {
			return written, fmt.Errorf("building output graph: %w", err)
		}

		comboRoot := o.workRoot
		if len(combos) > 1 {
			comboRoot = filepath.Join(o.workRoot, fmt.Sprintf("variant-%d", i))
		}
		envBuilder := &environment.Builder{
			Solver:          o.cfg.Solver,
			Installer:       o.cfg.Installer,
			Subdir:          o.cfg.TargetPlatform,
			VirtualPackages: o.cfg.VirtualPackages,
			Strategy:        o.cfg.Strategy,
			Priority:        o.cfg.ChannelPriority,
			Channels:        o.cfg.Channels,
			WorkRoot:        comboRoot,
			ExtraEnv:        o.cfg.ExtraEnv,
		}

		var mu sync.Mutex
		sched := &graph.Scheduler{
			Graph:             g,
			Concurrency:       o.cfg.Concurrency,
			ContinueOnFailure: o.cfg.ContinueOnFailure,
			Build: func(ctx context.Context, out *graph.Output) (graph.State, error) {
				path, state, err := o.buildOutput(ctx, out, envBuilder, comboRoot)
				if err != nil {
					return state, err
				}
				if path != "" {
					mu.Lock()
					written = append(written, path)
					mu.Unlock()
				}
				return state, nil
			},
		}

		if err := sched.Run(ctx); err != nil {
			return written, err
		}
	}

	return written, nil
}

// cartesianRenders expands independently-resolved per-output variant
// candidates into one map[name]*Rendered per combination, in output-name
// order, so callers get a deterministic sequence of self-consistent
// Output Graphs to build.
func cartesianRenders(perOutput map[string][]variant.Rendered, names []string) []map[string]*variant.Rendered {
	combos := []map[string]*variant.Rendered{{}}
	for _, name := range names {
		candidates := perOutput[name]
		next := make([]map[string]*variant.Rendered, 0, len(combos)*len(candidates))
		for _, combo := range combos {
			for i := range candidates {
				r := candidates[i]
				nc := make(map[string]*variant.Rendered, len(combo)+1)
				for k, v := range combo {
					nc[k] = v
				}
				nc[name] = &r
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}

// buildOutput is the graph.Scheduler's BuildFunc: it runs one output
// through source fetch, environment build, script execution, post-build
// pass, packaging and (optionally) testing.
func (o *Orchestrator) buildOutput(ctx context.Context, out *graph.Output, envBuilder *environment.Builder, comboRoot string) (string, graph.State, error) {
	ctx, span := otel.Tracer("rbld").Start(ctx, "buildOutput")
	defer span.End()

	log := clog.FromContext(ctx).With("output", out.Name)
	ctx = clog.WithLogger(ctx, log)
	s1 := out.Rendered.Stage1

	finalName := fmt.Sprintf("%s-%s-%s.conda", s1.Package.Name, s1.Package.Version, out.Rendered.BuildString)
	finalPath := filepath.Join(o.cfg.OutputDir, finalName)
	if o.cfg.SkipExisting {
		if _, err := os.Stat(finalPath); err == nil {
			log.Infof("skipping %s: %s already exists", out.Name, finalPath)
			return "", graph.Skipped, nil
		}
	}

	log.Infof("fetching sources")
	srcDir := filepath.Join(comboRoot, out.Name, "work")
	if err := o.fetchSources(ctx, s1, srcDir); err != nil {
		return "", graph.Failed, &OutputError{Output: out.Name, Stage: StageSource, Err: err}
	}

	log.Infof("building environment")
	prefixes, err := envBuilder.Build(ctx, out)
	if err != nil {
		return "", graph.Failed, &OutputError{Output: out.Name, Stage: StageEnvironment, Err: err}
	}
	host := prefixes[environment.KindHost]

	before, err := postbuild.TakeSnapshot(host.Path)
	if err != nil {
		return "", graph.Failed, &OutputError{Output: out.Name, Stage: StagePostBuild, Err: err}
	}

	if len(s1.Build.Script) > 0 || s1.Build.ScriptFile != "" {
		log.Infof("running build script")
		req := script.Request{
			Statements:  s1.Build.Script,
			ScriptFile:  s1.Build.ScriptFile,
			Interpreter: s1.Build.Interpreter,
			Dir:         srcDir,
			Env:         host.Activation.Env(),
		}
		if err := o.executor.Run(ctx, req); err != nil {
			return "", graph.Failed, &OutputError{Output: out.Name, Stage: StageScript, Err: err}
		}
	}

	log.Infof("running post-build pass")
	ownerOf, err := buildOwnerLookup(host.Path)
	if err != nil {
		return "", graph.Failed, &OutputError{Output: out.Name, Stage: StagePostBuild, Err: err}
	}
	pass := postbuild.Pass{PythonBin: o.cfg.PythonBin, OwnerOf: ownerOf}
	report, err := pass.Run(ctx, host.Path, before, s1)
	if err != nil {
		return "", graph.Failed, &OutputError{Output: out.Name, Stage: StagePostBuild, Err: err}
	}
	for _, w := range report.Warnings {
		log.Warnf("%s", w)
	}

	log.Infof("packaging")
	renderedYAML, err := yaml.Marshal(s1)
	if err != nil {
		return "", graph.Failed, &OutputError{Output: out.Name, Stage: StagePackage, Err: err}
	}
	path, err := packager.Write(packager.Request{
		Stage1:             s1,
		BuildString:        out.Rendered.BuildString,
		BuildNumber:        s1.Build.Number,
		Subdir:             o.cfg.TargetPlatform,
		RunDepends:         s1.Requirements.Run,
		Constrains:         s1.Requirements.RunConstrained,
		Timestamp:          o.timestamp,
		PrefixRoot:         host.Path,
		NewFiles:           report.NewFiles,
		Placeholders:       report.Placeholders,
		RenderedRecipeYAML: renderedYAML,
		OriginalRecipeYAML: o.originalRecipe,
		OutputDir:          o.cfg.OutputDir,
	})
	if err != nil {
		return "", graph.Failed, &OutputError{Output: out.Name, Stage: StagePackage, Err: err}
	}

	if o.cfg.TestMode == TestSkip || len(s1.Tests) == 0 {
		return path, graph.Built, nil
	}

	testPrefix := prefixes[environment.KindTest]
	if testPrefix == nil {
		return path, graph.Built, nil
	}

	log.Infof("running tests")
	if err := o.tester.Run(ctx, s1, testPrefix, o.cfg.Downstream); err != nil {
		return path, graph.Failed, &OutputError{Output: out.Name, Stage: StageTest, Err: err}
	}

	return path, graph.Tested, nil
}

func (o *Orchestrator) fetchSources(ctx context.Context, s1 *recipe.Stage1, srcDir string) error {
	cachedPaths := make([]string, len(s1.Source))
	targetDirs := make([]string, len(s1.Source))
	for i, entry := range s1.Source {
		p, err := o.sourceCache.Get(ctx, entry)
		if err != nil {
			return fmt.Errorf("source[%d]: %w", i, err)
		}
		cachedPaths[i] = p
		targetDirs[i] = sourceTargetDir(entry)
	}
	return populateSrcDir(srcDir, cachedPaths, targetDirs)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
