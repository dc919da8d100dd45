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

package recipe

import "time"

// Stage1 is the fully-evaluated recipe for exactly one output: every
// template hole substituted, every conditional flattened, every typed
// field parsed to its domain type (spec §3, Recipe (Stage 1)). No field
// here may contain a template string or a Conditional; that invariant is
// enforced by construction in pkg/template, never re-checked here.
type Stage1 struct {
	Package      Package
	Source       []SourceEntry
	Build        BuildSection
	Requirements Requirements
	Tests        []Test
	About        About
	Context      map[string]string
}

// Package mirrors spec §3 package identity fields.
type Package struct {
	Name    PackageName
	Version Version
}

// BuildSection mirrors spec §3/§4 build-level settings that affect every
// output in a multi-output recipe.
type BuildSection struct {
	Number      uint64
	String      string // explicit override of the computed build_string, if set
	Noarch      NoarchKind
	Script      []string // script statements, or a single multi-line block split by '\n'
	ScriptFile  string    // path to a script file instead of inline Script statements, "" for inline
	Interpreter string    // explicit interpreter name (spec §4.6); "" to infer from ScriptFile's extension or fall back to bash/cmd.exe
	Skip        bool     // evaluated boolean; output is Skipped if true (spec §4.4)
	RunExports  RunExports
	Files       FilesFilter
	DynamicLinking DynamicLinkingPolicy
	PrefixDetection PrefixDetectionPolicy
	PythonSection   PythonSection
	PostProcess     []PostProcessStep
	Merge       []string // names of sibling outputs whose files this output absorbs (multi-output packaging convenience)
}

// FilesFilter is spec §4.7a files.{include,exclude}.
type FilesFilter struct {
	Include GlobVec
	Exclude GlobVec
}

// DynamicLinkingPolicy is spec §9's rpath/overlinking policy struct.
type DynamicLinkingPolicy struct {
	Rpaths              []string
	RpathAllowlist      GlobVec
	BinaryRelocation    BinaryRelocation
	MissingDSOAllowlist GlobVec
	OverlinkingBehavior LinkingBehavior
	OverdependingBehavior LinkingBehavior
}

// LinkingBehavior is spec §4.7d's warn/error toggle.
type LinkingBehavior string

const (
	LinkingWarn  LinkingBehavior = "warn"
	LinkingError LinkingBehavior = "error"
)

// BinaryRelocation models the open question in spec §9: a bare boolean
// means "relocate everything" (true) or "relocate nothing" (false); a
// non-nil Globs means "relocate only files matching these patterns".
type BinaryRelocation struct {
	All   bool
	Globs GlobVec
	IsGlobForm bool
}

func (b BinaryRelocation) Allows(relPath string) bool {
	if b.IsGlobForm {
		return b.Globs.Match(relPath)
	}
	return b.All
}

// PrefixDetectionPolicy lets a recipe force text/binary/ignore status for
// prefix-placeholder scanning per glob (spec §4.7c).
type PrefixDetectionPolicy struct {
	ForceText   GlobVec
	ForceBinary GlobVec
	Ignore      GlobVec
}

// PythonSection is spec §4.7e's python.* knobs.
type PythonSection struct {
	SkipPycCompilation GlobVec
	EntryPoints        map[string]string // name -> module:function
}

// PostProcessStep is one spec §4.7f entry.
type PostProcessStep struct {
	Files GlobVec
	Regex RegexReplace
}

// RegexReplace is a single find/replace pair applied to matching files.
type RegexReplace struct {
	Pattern     string
	Replacement string
}

// RunExports is spec GLOSSARY's "constraints a package imposes on
// downstream consumers when listed as a host dep".
type RunExports struct {
	NoArch      []MatchSpec
	Strong      []MatchSpec
	Weak        []MatchSpec
	StrongConstrains []MatchSpec
	WeakConstrains   []MatchSpec
}

// Requirements is spec §3's requirements{build,host,run,run_constrained}.
type Requirements struct {
	Build          []MatchSpec
	Host           []MatchSpec
	Run            []MatchSpec
	RunConstrained []MatchSpec
}

// Test is one spec §3 tests[] entry: either a script-style test or an
// import/content-assertion test (spec scenario 1, tests.python.imports).
type Test struct {
	Script         []string
	Requirements   Requirements
	PythonImports  []string
	Files          GlobVec // files staged alongside the test prefix
	CommandsExist  []string
	DownstreamOf   []PackageName // builds a consumer package against this one (build-time "downstream" test)
}

// About is spec §3's about block.
type About struct {
	Homepage    string
	Repository  string
	Summary     string
	Description string
	License     License
	LicenseFile []string
}

// SourceEntry is spec §3's tagged Source Entry union.
type SourceEntry struct {
	Kind SourceKind
	URL  *URLSource
	Git  *GitSource
	Path *PathSource
}

type SourceKind int

const (
	SourceURL SourceKind = iota
	SourceGit
	SourcePath
)

type URLSource struct {
	URLs       []Url
	Sha256     string
	MD5        string
	FileName   string
	Patches    []string
	TargetDir  string
}

// HasChecksum reports whether at least one identifying hash is present
// (spec §3 invariant: "at least one identifying hash OR an explicit
// commit for reproducibility (warn otherwise)").
func (u URLSource) HasChecksum() bool {
	return u.Sha256 != "" || u.MD5 != ""
}

type GitRefKind string

const (
	GitRefBranch    GitRefKind = "branch"
	GitRefTag       GitRefKind = "tag"
	GitRefCommit    GitRefKind = "commit"
	GitRefLatestTag GitRefKind = "latest_tag"
)

type GitSource struct {
	URL       string
	RefKind   GitRefKind
	Ref       string
	Depth     int
	LFS       bool
	TargetDir string
}

type PathSource struct {
	Path         string
	TargetDir    string
	Filter       GlobVec
	UseGitignore bool // see DESIGN.md Open Question: default true for directory sources
}

// BuildTimestamp is the single timestamp recorded for a whole run (spec
// §4.8/§9 reproducibility: "All timestamps in archives are set from a
// single build_timestamp computed once per run").
type BuildTimestamp struct {
	time.Time
}
