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

package postbuild

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/dlorenc/rbld/pkg/postbuild/elf"
	"github.com/dlorenc/rbld/pkg/postbuild/macho"
	"github.com/dlorenc/rbld/pkg/postbuild/pe"
	"github.com/dlorenc/rbld/pkg/recipe"
)

// OwnerLookup maps a shared-library soname to the host match-spec that
// provides it (spec §4.7d's "by file->owner lookup"); supplied by the
// Environment Builder's installed-file index, which this package does
// not own.
type OwnerLookup func(soname string) (recipe.MatchSpec, bool)

// Report is the aggregate result of a full Post-Build Pass run.
type Report struct {
	NewFiles      []string
	Placeholders  []*PlaceholderRecord
	LinkedLibs    []string
	Linking       LinkingReport
	Warnings      []string
}

// Pass runs spec §4.7's steps (a)-(f), in order, over prefixRoot.
type Pass struct {
	PythonBin string // defaults to "python3"
	OwnerOf   OwnerLookup
}

// Run executes the full pass for one output's host prefix.
func (p Pass) Run(ctx context.Context, prefixRoot string, before Snapshot, s1 *recipe.Stage1) (*Report, error) {
	log := clog.FromContext(ctx)

	after, err := TakeSnapshot(prefixRoot)
	if err != nil {
		return nil, err
	}

	newFiles := NewFiles(before, after)
	newFiles = ApplyFilesFilter(newFiles, s1.Build.Files)
	if err := RejectEscapingSymlinks(prefixRoot, newFiles); err != nil {
		return nil, err
	}

	report := &Report{NewFiles: newFiles}

	allowlist := func(p string) bool { return s1.Build.DynamicLinking.RpathAllowlist.Match(p) }

	for _, rel := range newFiles {
		full := filepath.Join(prefixRoot, rel)
		switch SniffFormat(full) {
		case FormatELF:
			needed, err := elf.Rewrite(full, prefixRoot, allowlist)
			if err != nil {
				log.Warnf("rewriting ELF %s: %v", rel, err)
				continue
			}
			report.LinkedLibs = append(report.LinkedLibs, needed...)
		case FormatMachO:
			loaded, err := macho.Rewrite(full, prefixRoot)
			if err != nil {
				log.Warnf("rewriting Mach-O %s: %v", rel, err)
				continue
			}
			report.LinkedLibs = append(report.LinkedLibs, loaded...)
		case FormatPE:
			imports, err := pe.ImportedDLLs(full)
			if err != nil {
				log.Warnf("reading PE imports for %s: %v", rel, err)
				continue
			}
			for _, dll := range imports {
				if !pe.IsSystem(dll) {
					report.LinkedLibs = append(report.LinkedLibs, dll)
				}
			}
		}
	}

	for _, rel := range newFiles {
		full := filepath.Join(prefixRoot, rel)
		rec, err := ScanPrefixPlaceholder(rel, full, prefixRoot, s1.Build.PrefixDetection)
		if err != nil {
			log.Warnf("scanning %s for prefix placeholders: %v", rel, err)
			continue
		}
		if rec.Kind != PlaceholderNone {
			report.Placeholders = append(report.Placeholders, rec)
		}
	}

	if p.OwnerOf != nil {
		report.Linking = AnalyzeLinking(report.LinkedLibs, s1.Requirements.Host, p.OwnerOf)
		if err := report.Linking.Enforce(s1.Build.DynamicLinking); err != nil {
			return report, err
		}
		report.Warnings = append(report.Warnings, report.Linking.Warnings()...)
	}

	if s1.Build.PythonSection.EntryPoints != nil || len(s1.Build.PythonSection.SkipPycCompilation) > 0 {
		pythonBin := p.PythonBin
		if pythonBin == "" {
			pythonBin = "python3"
		}
		var pyFiles []string
		for _, rel := range newFiles {
			if strings.HasSuffix(rel, ".py") {
				pyFiles = append(pyFiles, rel)
			}
		}
		if err := CompilePyc(ctx, pythonBin, prefixRoot, pyFiles, s1.Build.PythonSection.SkipPycCompilation); err != nil {
			log.Warnf("compiling pyc files: %v", err)
		}
		if err := GenerateEntryPoints(prefixRoot, s1.Build.PythonSection.EntryPoints); err != nil {
			return report, err
		}
		if s1.Build.Noarch == recipe.NoarchPython {
			if err := RelocateNoarchSitePackages(prefixRoot, "lib/site-packages"); err != nil {
				return report, err
			}
		}
	}

	if err := ApplyPostProcess(prefixRoot, newFiles, s1.Build.PostProcess); err != nil {
		return report, err
	}

	return report, nil
}
