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

package packager

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry is one file or synthetic in-memory file to place in a tar
// stream, keyed by its archive-relative path.
type Entry struct {
	ArchivePath string
	SourcePath  string // on-disk source; empty when Data is used
	Data        []byte // in-memory content (e.g. generated JSON); used when SourcePath == ""
	Mode        fs.FileMode
}

// WriteTarZst writes entries as a zstd-compressed tar stream (spec
// §4.8, "tar entries use sorted file order, fixed user/group (0,0), and
// a single timestamp"). Entries are sorted by ArchivePath regardless of
// caller order, matching the reproducibility invariant in spec §9.
func WriteTarZst(w io.Writer, entries []Entry, timestamp time.Time) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	defer zw.Close()

	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ArchivePath < sorted[j].ArchivePath })

	tw := tar.NewWriter(zw)
	for _, e := range sorted {
		if err := writeTarEntry(tw, e, timestamp); err != nil {
			return fmt.Errorf("writing tar entry %s: %w", e.ArchivePath, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	return zw.Close()
}

func writeTarEntry(tw *tar.Writer, e Entry, timestamp time.Time) error {
	var content []byte
	mode := e.Mode
	if mode == 0 {
		mode = 0o644
	}

	if e.SourcePath != "" {
		info, err := os.Lstat(e.SourcePath)
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(e.SourcePath)
			if err != nil {
				return err
			}
			hdr := &tar.Header{
				Typeflag: tar.TypeSymlink,
				Name:     e.ArchivePath,
				Linkname: target,
				Mode:     int64(mode.Perm()),
				ModTime:  timestamp,
				Uid:      0,
				Gid:      0,
				Uname:    "",
				Gname:    "",
			}
			return tw.WriteHeader(hdr)
		}

		data, err := os.ReadFile(e.SourcePath) // #nosec G304 - source is this process's own build output
		if err != nil {
			return err
		}
		content = data
		mode = info.Mode()
	} else {
		content = e.Data
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.ArchivePath,
		Size:     int64(len(content)),
		Mode:     int64(mode.Perm()),
		ModTime:  timestamp,
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

// CollectDirEntries walks root and returns one Entry per regular file
// or symlink, with ArchivePath relative to root.
func CollectDirEntries(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			ArchivePath: filepath.ToSlash(rel),
			SourcePath:  path,
			Mode:        info.Mode(),
		})
		return nil
	})
	return entries, err
}
