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

// Package macho rewrites LC_ID_DYLIB/LC_LOAD_DYLIB/LC_RPATH load
// commands in Mach-O binaries to @rpath/@loader_path-relative forms
// (spec §4.7b).
package macho

import (
	"bytes"
	"debug/macho"
	"fmt"
	"os"
	"strings"
)

// loadCmdIDDylib is LC_ID_DYLIB, which debug/macho does not export.
const loadCmdIDDylib macho.LoadCmd = 0xd

// Rewrite implements spec §4.7b's Mach-O step and returns the
// LC_LOAD_DYLIB targets for the overlinking scan in step (d). Duplicate
// LC_RPATH entries are coalesced so that one copy remains and the others
// are blanked; since patchLoadString rewrites the first matching bytes
// in the file, the surviving copy is not necessarily the first.
func Rewrite(path, prefix string) (loadDylibs []string, err error) {
	f, err := macho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s as Mach-O: %w", path, err)
	}
	defer f.Close()

	seenRpaths := map[string]bool{}

	for _, l := range f.Loads {
		raw := l.Raw()
		if len(raw) < 12 {
			continue
		}
		cmd := macho.LoadCmd(f.ByteOrder.Uint32(raw[0:4]))

		switch cmd {
		case macho.LoadCmdDylib, loadCmdIDDylib:
			if len(raw) < 24 {
				continue
			}
			nameOff := f.ByteOrder.Uint32(raw[8:12])
			if int(nameOff) >= len(raw) {
				continue
			}
			name := cString(raw[nameOff:])
			loadDylibs = append(loadDylibs, name)

			if !strings.HasPrefix(name, prefix) {
				continue
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(name, prefix), "/")
			if err := patchLoadString(path, name, "@rpath/"+rel); err != nil {
				return loadDylibs, err
			}

		case macho.LoadCmdRpath:
			name := cString(raw[12:])
			if seenRpaths[name] {
				if err := patchLoadString(path, name, ""); err != nil {
					return loadDylibs, err
				}
				continue
			}
			seenRpaths[name] = true

			if !strings.HasPrefix(name, prefix) {
				continue
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(name, prefix), "/")
			if err := patchLoadString(path, name, "@loader_path/"+rel); err != nil {
				return loadDylibs, err
			}
		}
	}

	return loadDylibs, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// patchLoadString overwrites the first in-file occurrence of old with
// new, NUL-padding the remainder. Mach-O load-command strings are
// NUL-terminated within a fixed-size command, so a same-length-or-
// shorter in-place rewrite never needs to move other commands.
func patchLoadString(path, old, new string) error {
	if len(new) > len(old) {
		return fmt.Errorf("new load string %q is longer than old %q, in-place patch unsupported", new, old)
	}

	full, err := os.ReadFile(path) // #nosec G304 - path is a file this process just extracted/built
	if err != nil {
		return err
	}

	offset := bytes.Index(full, []byte(old+"\x00"))
	if offset < 0 {
		offset = bytes.Index(full, []byte(old))
	}
	if offset < 0 {
		return fmt.Errorf("old load string %q not found in file", old)
	}

	buf := make([]byte, len(old))
	copy(buf, new)
	for i := len(new); i < len(buf); i++ {
		buf[i] = 0
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0) // #nosec G304 - same as above
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteAt(buf, int64(offset))
	return err
}
