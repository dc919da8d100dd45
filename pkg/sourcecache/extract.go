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

package sourcecache

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// magic byte sequences for content-sniffed format detection, tried
// before falling back to the filename extension (spec §4.3 step 6,
// "detecting compression by content sniff then extension").
var magic = []struct {
	bytes  []byte
	format string
}{
	{[]byte{0x1f, 0x8b}, "gz"},
	{[]byte{0x42, 0x5a, 0x68}, "bz2"},
	{[]byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, "xz"},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, "zst"},
	{[]byte{0x50, 0x4b, 0x03, 0x04}, "zip"},
}

func isArchive(path string) bool {
	return detectFormat(path) != ""
}

func detectFormat(path string) string {
	if f, err := os.Open(path); err == nil { // #nosec G304 - path built from our own cache root
		defer f.Close()
		head := make([]byte, 8)
		n, _ := f.Read(head)
		head = head[:n]
		for _, m := range magic {
			if len(head) >= len(m.bytes) && string(head[:len(m.bytes)]) == string(m.bytes) {
				return m.format
			}
		}
	}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "gz"
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return "bz2"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "xz"
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return "zst"
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	case strings.HasSuffix(lower, ".7z"):
		return "7z"
	default:
		return ""
	}
}

// extractArchive extracts path into dest, stripping a single top-level
// directory when every entry shares one (spec §4.3 step 6).
func extractArchive(path, dest string) error {
	format := detectFormat(path)
	if format == "" {
		return fmt.Errorf("%s: not a recognized archive format", path)
	}
	if format == "7z" {
		return fmt.Errorf("%s: .7z extraction is not supported (see DESIGN.md)", path)
	}

	names, err := listEntries(path, format)
	if err != nil {
		return err
	}
	strip := commonTopLevelDir(names)

	if format == "zip" {
		return extractZip(path, dest, strip)
	}
	return extractTar(path, dest, format, strip)
}

func commonTopLevelDir(names []string) string {
	if len(names) == 0 {
		return ""
	}
	top := ""
	for _, n := range names {
		n = strings.TrimPrefix(n, "./")
		parts := strings.SplitN(n, "/", 2)
		if len(parts) < 2 {
			return ""
		}
		if top == "" {
			top = parts[0]
		} else if top != parts[0] {
			return ""
		}
	}
	return top
}

func listEntries(path, format string) ([]string, error) {
	if format == "zip" {
		r, err := zip.OpenReader(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		names := make([]string, 0, len(r.File))
		for _, f := range r.File {
			names = append(names, f.Name)
		}
		return names, nil
	}

	tr, closer, err := openTarReader(path, format)
	if err != nil {
		return nil, err
	}
	defer closer()

	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, h.Name)
	}
	return names, nil
}

// ioCloserFunc adapts a no-return Close method (as klauspost/compress's
// zstd.Decoder has) to io.Closer.
type ioCloserFunc func()

func (f ioCloserFunc) Close() error {
	f()
	return nil
}

func openTarReader(path, format string) (*tar.Reader, func(), error) {
	f, err := os.Open(path) // #nosec G304 - path built from our own cache root
	if err != nil {
		return nil, nil, err
	}

	var r io.Reader = f
	closers := []io.Closer{f}

	switch format {
	case "gz":
		gzr, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		r = gzr
		closers = append(closers, gzr)
	case "bz2":
		r = bzip2.NewReader(f)
	case "xz":
		xzr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		r = xzr
	case "zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		r = zr
		closers = append(closers, ioCloserFunc(zr.Close))
	case "tar":
		// plain tar, r is already f
	default:
		f.Close()
		return nil, nil, fmt.Errorf("unsupported tar compression %q", format)
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}
	return tar.NewReader(r), closeAll, nil
}

func extractTar(path, dest, format, strip string) error {
	tr, closer, err := openTarReader(path, format)
	if err != nil {
		return err
	}
	defer closer()

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		rel := stripTopLevel(h.Name, strip)
		if rel == "" {
			continue
		}
		target, err := safeJoin(dest, rel)
		if err != nil {
			return err
		}

		switch h.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(h.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil { //nolint:gosec // source archives are checksum-verified before extraction
				out.Close()
				return err
			}
			out.Close()
		case tar.TypeSymlink:
			if filepath.IsAbs(h.Linkname) {
				return fmt.Errorf("archive entry %s: absolute symlink targets are not allowed", h.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			resolved := filepath.Join(filepath.Dir(target), h.Linkname)
			if !isWithin(dest, resolved) {
				return fmt.Errorf("archive entry %s: symlink escapes destination", h.Name)
			}
			_ = os.Remove(target)
			if err := os.Symlink(h.Linkname, target); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractZip(path, dest, strip string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		rel := stripTopLevel(f.Name, strip)
		if rel == "" {
			continue
		}
		target, err := safeJoin(dest, rel)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc) //nolint:gosec // source archives are checksum-verified before extraction
		out.Close()
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func stripTopLevel(name, strip string) string {
	name = strings.TrimPrefix(name, "./")
	if strip == "" {
		return name
	}
	rest := strings.TrimPrefix(name, strip+"/")
	if rest == name {
		return ""
	}
	return rest
}

// safeJoin joins rel onto dest and rejects any result that escapes dest,
// guarding against path-traversal entries in untrusted archives.
func safeJoin(dest, rel string) (string, error) {
	target := filepath.Join(dest, rel)
	if !isWithin(dest, target) {
		return "", fmt.Errorf("archive entry %q escapes destination directory", rel)
	}
	return target, nil
}

func isWithin(base, target string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(filepath.Separator))
}
