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

// Package packager implements the Packager (spec §4.8): it assembles
// info/index.json, about.json, paths.json, run_exports.json and the
// recipe/tests records, then writes the .conda archive — an outer ZIP
// holding metadata.json plus one zstd-compressed tar per half (info,
// pkg) — to a temp path and renames it into place atomically.
package packager

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlorenc/rbld/pkg/postbuild"
	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

// Request bundles everything Write needs to assemble one .conda
// archive for one built output.
type Request struct {
	Stage1       *recipe.Stage1
	BuildString  string
	BuildNumber  uint64
	Subdir       solver.Platform
	RunDepends   []recipe.MatchSpec
	Constrains   []recipe.MatchSpec
	Timestamp    recipe.BuildTimestamp
	PrefixRoot   string
	NewFiles     []string
	Placeholders []*postbuild.PlaceholderRecord

	RenderedRecipeYAML []byte
	OriginalRecipeYAML []byte
	TestFiles          []Entry // info/tests/... entries, caller-supplied

	OutputDir string
}

// Write assembles and writes the .conda archive, returning its final
// path.
func Write(req Request) (string, error) {
	idx := BuildIndex(req.Stage1, req.BuildString, req.BuildNumber, req.Subdir, req.RunDepends, req.Constrains, req.Timestamp)
	about := BuildAbout(req.Stage1.About)
	runExports := BuildRunExports(req.Stage1.Build.RunExports)
	paths, err := BuildPaths(req.PrefixRoot, req.NewFiles, req.Placeholders)
	if err != nil {
		return "", fmt.Errorf("building paths.json: %w", err)
	}

	infoEntries, err := jsonEntries(idx, about, runExports, paths)
	if err != nil {
		return "", err
	}
	if len(req.RenderedRecipeYAML) > 0 {
		infoEntries = append(infoEntries, Entry{ArchivePath: "recipe/rendered_recipe.yaml", Data: req.RenderedRecipeYAML})
	}
	if len(req.OriginalRecipeYAML) > 0 {
		infoEntries = append(infoEntries, Entry{ArchivePath: "recipe/recipe.yaml", Data: req.OriginalRecipeYAML})
	}
	infoEntries = append(infoEntries, req.TestFiles...)

	pkgEntries := make([]Entry, 0, len(req.NewFiles))
	for _, rel := range req.NewFiles {
		pkgEntries = append(pkgEntries, Entry{
			ArchivePath: rel,
			SourcePath:  filepath.Join(req.PrefixRoot, rel),
		})
	}

	base := fmt.Sprintf("%s-%s-%s", idx.Name, idx.Version, idx.Build)

	var infoTar, pkgTar bytes.Buffer
	if err := WriteTarZst(&infoTar, infoEntries, req.Timestamp.Time); err != nil {
		return "", fmt.Errorf("writing info tarball: %w", err)
	}
	if err := WriteTarZst(&pkgTar, pkgEntries, req.Timestamp.Time); err != nil {
		return "", fmt.Errorf("writing pkg tarball: %w", err)
	}

	metadata, err := json.Marshal(Metadata{CondaPkgFormatVersion: condaPkgFormatVersion})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	finalPath := filepath.Join(req.OutputDir, base+".conda")
	tmp, err := os.CreateTemp(req.OutputDir, ".rbld-"+base+"-*.conda.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	zw := zip.NewWriter(tmp)
	if err := writeZipEntry(zw, "metadata.json", metadata); err != nil {
		_ = zw.Close()
		_ = tmp.Close()
		return "", err
	}
	if err := writeZipEntry(zw, "info-"+base+".tar.zst", infoTar.Bytes()); err != nil {
		_ = zw.Close()
		_ = tmp.Close()
		return "", err
	}
	if err := writeZipEntry(zw, "pkg-"+base+".tar.zst", pkgTar.Bytes()); err != nil {
		_ = zw.Close()
		_ = tmp.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("closing zip writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp archive: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming archive into place: %w", err)
	}
	return finalPath, nil
}

func writeZipEntry(zw *zip.Writer, name string, content []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating zip entry %s: %w", name, err)
	}
	_, err = w.Write(content)
	return err
}

func jsonEntries(idx Index, about About, runExports RunExports, paths Paths) ([]Entry, error) {
	var entries []Entry
	for path, v := range map[string]any{
		"index.json":       idx,
		"about.json":        about,
		"run_exports.json": runExports,
		"paths.json":        paths,
	} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling %s: %w", path, err)
		}
		entries = append(entries, Entry{ArchivePath: path, Data: data})
	}
	return entries, nil
}
