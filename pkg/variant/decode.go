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

package variant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/template"
)

// DecodeStage1 converts the generic Value tree produced by
// template.EvaluateTree into a typed recipe.Stage1 (spec §3, Recipe
// (Stage 1)). This lives in pkg/variant rather than pkg/recipe because
// pkg/template already imports pkg/recipe for the Stage-0 AST; decoding
// the evaluated Value tree back into Stage-1 types here avoids a cycle
// between the two.
func DecodeStage1(v template.Value) (*recipe.Stage1, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("decoding stage1: root node is not a mapping")
	}

	s1 := &recipe.Stage1{}

	if pkg, ok := m["package"]; ok {
		p, err := decodePackage(pkg)
		if err != nil {
			return nil, fmt.Errorf("package: %w", err)
		}
		s1.Package = p
	}

	if src, ok := m["source"]; ok {
		entries, err := decodeSources(src)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		s1.Source = entries
	}

	if b, ok := m["build"]; ok {
		build, err := decodeBuild(b)
		if err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
		s1.Build = build
	}

	if r, ok := m["requirements"]; ok {
		reqs, err := decodeRequirements(r)
		if err != nil {
			return nil, fmt.Errorf("requirements: %w", err)
		}
		s1.Requirements = reqs
	}

	if t, ok := m["tests"]; ok {
		tests, err := decodeTests(t)
		if err != nil {
			return nil, fmt.Errorf("tests: %w", err)
		}
		s1.Tests = tests
	}

	if a, ok := m["about"]; ok {
		about, err := decodeAbout(a)
		if err != nil {
			return nil, fmt.Errorf("about: %w", err)
		}
		s1.About = about
	}

	if c, ok := m["context"]; ok {
		ctx, err := decodeStringMap(c)
		if err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		s1.Context = ctx
	}

	return s1, nil
}

func asMap(v template.Value) (map[string]template.Value, bool) {
	m, ok := v.(map[string]template.Value)
	return m, ok
}

func asSlice(v template.Value) ([]template.Value, bool) {
	switch t := v.(type) {
	case []template.Value:
		return t, true
	case nil:
		return nil, true
	default:
		return nil, false
	}
}

func asString(v template.Value) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asBool(v template.Value) bool {
	b, _ := v.(bool)
	return b
}

func asUint(v template.Value) uint64 {
	switch t := v.(type) {
	case int64:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case int:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err == nil {
			return n
		}
	}
	return 0
}

func stringList(v template.Value) []string {
	items, _ := asSlice(v)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, asString(it))
	}
	return out
}

func globVec(v template.Value) recipe.GlobVec {
	return recipe.GlobVec(stringList(v))
}

func matchSpecList(v template.Value) []recipe.MatchSpec {
	items, _ := asSlice(v)
	out := make([]recipe.MatchSpec, 0, len(items))
	for _, it := range items {
		out = append(out, recipe.MatchSpec(asString(it)))
	}
	return out
}

func packageNameList(v template.Value) []recipe.PackageName {
	items, _ := asSlice(v)
	out := make([]recipe.PackageName, 0, len(items))
	for _, it := range items {
		out = append(out, recipe.PackageName(asString(it)))
	}
	return out
}

func decodeStringMap(v template.Value) (map[string]string, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, nil
	}
	out := map[string]string{}
	for k, vv := range m {
		if k == "__order__" {
			continue
		}
		out[k] = asString(vv)
	}
	return out, nil
}

func decodePackage(v template.Value) (recipe.Package, error) {
	m, ok := asMap(v)
	if !ok {
		return recipe.Package{}, fmt.Errorf("package section is not a mapping")
	}
	name, err := recipe.ParsePackageName(asString(m["name"]))
	if err != nil {
		return recipe.Package{}, err
	}
	return recipe.Package{Name: name, Version: recipe.Version(asString(m["version"]))}, nil
}

func decodeSources(v template.Value) ([]recipe.SourceEntry, error) {
	items, ok := asSlice(v)
	if !ok {
		// A single source entry given as a bare mapping rather than a list.
		items = []template.Value{v}
	}
	out := make([]recipe.SourceEntry, 0, len(items))
	for _, it := range items {
		m, ok := asMap(it)
		if !ok {
			continue
		}
		entry, err := decodeSourceEntry(m)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodeSourceEntry(m map[string]template.Value) (recipe.SourceEntry, error) {
	if _, ok := m["url"]; ok {
		urls, _ := asSlice(m["url"])
		var us []recipe.Url
		if len(urls) > 0 {
			for _, u := range urls {
				us = append(us, recipe.Url(asString(u)))
			}
		} else {
			us = []recipe.Url{recipe.Url(asString(m["url"]))}
		}
		return recipe.SourceEntry{
			Kind: recipe.SourceURL,
			URL: &recipe.URLSource{
				URLs:      us,
				Sha256:    asString(m["sha256"]),
				MD5:       asString(m["md5"]),
				FileName:  asString(m["file_name"]),
				Patches:   stringList(m["patches"]),
				TargetDir: asString(m["target_directory"]),
			},
		}, nil
	}
	if _, ok := m["git"]; ok {
		kind, ref := gitRefFromMap(m)
		return recipe.SourceEntry{
			Kind: recipe.SourceGit,
			Git: &recipe.GitSource{
				URL:       asString(m["git"]),
				RefKind:   kind,
				Ref:       ref,
				Depth:     int(asUint(m["depth"])),
				LFS:       asBool(m["lfs"]),
				TargetDir: asString(m["target_directory"]),
			},
		}, nil
	}
	if _, ok := m["path"]; ok {
		return recipe.SourceEntry{
			Kind: recipe.SourcePath,
			Path: &recipe.PathSource{
				Path:         asString(m["path"]),
				TargetDir:    asString(m["target_directory"]),
				Filter:       globVec(m["filter"]),
				UseGitignore: asBool(m["use_gitignore"]),
			},
		}, nil
	}
	return recipe.SourceEntry{}, fmt.Errorf("source entry has none of url/git/path keys")
}

func gitRefFromMap(m map[string]template.Value) (recipe.GitRefKind, string) {
	if v := asString(m["branch"]); v != "" {
		return recipe.GitRefBranch, v
	}
	if v := asString(m["tag"]); v != "" {
		return recipe.GitRefTag, v
	}
	if v := asString(m["rev"]); v != "" {
		return recipe.GitRefCommit, v
	}
	if v := asString(m["commit"]); v != "" {
		return recipe.GitRefCommit, v
	}
	return recipe.GitRefLatestTag, ""
}

func decodeBuild(v template.Value) (recipe.BuildSection, error) {
	m, ok := asMap(v)
	if !ok {
		return recipe.BuildSection{}, nil
	}
	b := recipe.BuildSection{
		Number: asUint(m["number"]),
		String: asString(m["string"]),
		Noarch: recipe.NoarchKind(asString(m["noarch"])),
		Script: scriptLines(m["script"]),
		Skip:   asBool(m["skip"]),
		Merge:  stringList(m["merge"]),
	}
	if re, ok := m["run_exports"]; ok {
		b.RunExports = decodeRunExports(re)
	}
	if f, ok := m["files"]; ok {
		b.Files = decodeFilesFilter(f)
	}
	if dl, ok := m["dynamic_linking"]; ok {
		b.DynamicLinking = decodeDynamicLinking(dl)
	}
	if pd, ok := m["prefix_detection"]; ok {
		b.PrefixDetection = decodePrefixDetection(pd)
	}
	if py, ok := m["python"]; ok {
		b.PythonSection = decodePythonSection(py)
	}
	if pp, ok := m["post_process"]; ok {
		b.PostProcess = decodePostProcess(pp)
	}
	return b, nil
}

func scriptLines(v template.Value) []string {
	switch t := v.(type) {
	case string:
		return strings.Split(t, "\n")
	default:
		return stringList(v)
	}
}

func decodeRunExports(v template.Value) recipe.RunExports {
	m, ok := asMap(v)
	if !ok {
		return recipe.RunExports{}
	}
	return recipe.RunExports{
		NoArch:           matchSpecList(m["noarch"]),
		Strong:           matchSpecList(m["strong"]),
		Weak:             matchSpecList(m["weak"]),
		StrongConstrains: matchSpecList(m["strong_constrains"]),
		WeakConstrains:   matchSpecList(m["weak_constrains"]),
	}
}

func decodeFilesFilter(v template.Value) recipe.FilesFilter {
	m, ok := asMap(v)
	if !ok {
		return recipe.FilesFilter{Include: globVec(v)}
	}
	return recipe.FilesFilter{
		Include: globVec(m["include"]),
		Exclude: globVec(m["exclude"]),
	}
}

func decodeDynamicLinking(v template.Value) recipe.DynamicLinkingPolicy {
	m, ok := asMap(v)
	if !ok {
		return recipe.DynamicLinkingPolicy{}
	}
	return recipe.DynamicLinkingPolicy{
		Rpaths:                stringList(m["rpaths"]),
		RpathAllowlist:        globVec(m["rpath_allowlist"]),
		BinaryRelocation:      decodeBinaryRelocation(m["binary_relocation"]),
		MissingDSOAllowlist:   globVec(m["missing_dso_allowlist"]),
		OverlinkingBehavior:   linkingBehavior(m["overlinking"]),
		OverdependingBehavior: linkingBehavior(m["overdepending"]),
	}
}

func linkingBehavior(v template.Value) recipe.LinkingBehavior {
	if asString(v) == string(recipe.LinkingError) {
		return recipe.LinkingError
	}
	return recipe.LinkingWarn
}

// decodeBinaryRelocation resolves the §9 Open Question: a bool value
// means global on/off; a list means an allowlist of glob patterns.
func decodeBinaryRelocation(v template.Value) recipe.BinaryRelocation {
	switch t := v.(type) {
	case bool:
		return recipe.BinaryRelocation{All: t, IsGlobForm: false}
	case nil:
		return recipe.BinaryRelocation{All: true, IsGlobForm: false}
	default:
		return recipe.BinaryRelocation{Globs: globVec(v), IsGlobForm: true}
	}
}

func decodePrefixDetection(v template.Value) recipe.PrefixDetectionPolicy {
	m, ok := asMap(v)
	if !ok {
		return recipe.PrefixDetectionPolicy{}
	}
	return recipe.PrefixDetectionPolicy{
		ForceText:   globVec(m["force_text"]),
		ForceBinary: globVec(m["force_binary"]),
		Ignore:      globVec(m["ignore"]),
	}
}

func decodePythonSection(v template.Value) recipe.PythonSection {
	m, ok := asMap(v)
	if !ok {
		return recipe.PythonSection{}
	}
	eps := map[string]string{}
	if em, ok := asMap(m["entry_points"]); ok {
		for k, vv := range em {
			if k == "__order__" {
				continue
			}
			eps[k] = asString(vv)
		}
	} else {
		for _, raw := range stringList(m["entry_points"]) {
			if name, target, found := strings.Cut(raw, "="); found {
				eps[strings.TrimSpace(name)] = strings.TrimSpace(target)
			}
		}
	}
	return recipe.PythonSection{
		SkipPycCompilation: globVec(m["skip_pyc_compilation"]),
		EntryPoints:        eps,
	}
}

func decodePostProcess(v template.Value) []recipe.PostProcessStep {
	items, _ := asSlice(v)
	out := make([]recipe.PostProcessStep, 0, len(items))
	for _, it := range items {
		m, ok := asMap(it)
		if !ok {
			continue
		}
		out = append(out, recipe.PostProcessStep{
			Files: globVec(m["files"]),
			Regex: recipe.RegexReplace{
				Pattern:     asString(m["regex"]),
				Replacement: asString(m["replacement"]),
			},
		})
	}
	return out
}

func decodeRequirements(v template.Value) (recipe.Requirements, error) {
	m, ok := asMap(v)
	if !ok {
		return recipe.Requirements{}, nil
	}
	return recipe.Requirements{
		Build:          matchSpecList(m["build"]),
		Host:           matchSpecList(m["host"]),
		Run:            matchSpecList(m["run"]),
		RunConstrained: matchSpecList(m["run_constrained"]),
	}, nil
}

func decodeTests(v template.Value) ([]recipe.Test, error) {
	items, _ := asSlice(v)
	out := make([]recipe.Test, 0, len(items))
	for _, it := range items {
		m, ok := asMap(it)
		if !ok {
			continue
		}
		t := recipe.Test{
			Script:        scriptLines(m["script"]),
			PythonImports: stringList(pythonImports(m)),
			Files:         globVec(m["files"]),
			CommandsExist: stringList(m["commands_exist"]),
			DownstreamOf:  packageNameList(m["downstream"]),
		}
		if r, ok := m["requirements"]; ok {
			reqs, err := decodeRequirements(r)
			if err != nil {
				return nil, err
			}
			t.Requirements = reqs
		}
		out = append(out, t)
	}
	return out, nil
}

func pythonImports(m map[string]template.Value) template.Value {
	py, ok := asMap(m["python"])
	if !ok {
		return nil
	}
	return py["imports"]
}

func decodeAbout(v template.Value) (recipe.About, error) {
	m, ok := asMap(v)
	if !ok {
		return recipe.About{}, nil
	}
	return recipe.About{
		Homepage:    asString(m["homepage"]),
		Repository:  asString(m["repository"]),
		Summary:     asString(m["summary"]),
		Description: asString(m["description"]),
		License:     recipe.License(asString(m["license"])),
		LicenseFile: stringList(m["license_file"]),
	}, nil
}
