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

// Package elf rewrites DT_RPATH/DT_RUNPATH entries in ELF binaries to
// prefix-relative $ORIGIN forms (spec §4.7b).
package elf

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"
	"strings"
)

// Rewrite implements spec §4.7b's ELF step: it rewrites the binary's
// DT_RPATH/DT_RUNPATH to "$ORIGIN/"-relative forms pointing into
// <prefix>/lib, drops any entry that resolves outside prefix and is not
// in allowlist, and returns the NEEDED entries for the overlinking scan
// in step (d).
func Rewrite(path, prefix string, allowlist func(string) bool) (needed []string, err error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s as ELF: %w", path, err)
	}
	defer f.Close()

	needed, _ = f.DynString(elf.DT_NEEDED)

	var dynTag elf.DynTag
	var old []string
	if rpath, err := f.DynString(elf.DT_RUNPATH); err == nil && len(rpath) > 0 {
		dynTag, old = elf.DT_RUNPATH, rpath
	} else if rpath, err := f.DynString(elf.DT_RPATH); err == nil && len(rpath) > 0 {
		dynTag, old = elf.DT_RPATH, rpath
	} else {
		return needed, nil
	}

	oldValue := strings.Join(old, ":")
	newValue := rewriteRpathValue(oldValue, prefix, allowlist)
	if newValue == oldValue {
		return needed, nil
	}

	if err := patchDynString(path, f, oldValue, newValue); err != nil {
		return needed, fmt.Errorf("rewriting %v for %s: %w", dynTag, path, err)
	}
	return needed, nil
}

// rewriteRpathValue rewrites each ':'-separated rpath entry to an
// "$ORIGIN/"-relative form when it points inside prefix, and drops
// entries that resolve outside prefix unless allowlisted.
func rewriteRpathValue(value, prefix string, allowlist func(string) bool) string {
	entries := strings.Split(value, ":")
	kept := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e, prefix) {
			rel := strings.TrimPrefix(strings.TrimPrefix(e, prefix), "/")
			kept = append(kept, "$ORIGIN/"+relativize(rel))
			continue
		}
		if allowlist != nil && allowlist(e) {
			kept = append(kept, e)
			continue
		}
		// dropped: resolves outside prefix and not allowlisted
	}
	return strings.Join(kept, ":")
}

func relativize(rel string) string {
	if rel == "" {
		return "lib"
	}
	return rel
}

// patchDynString overwrites the in-file bytes of oldValue inside the
// .dynstr section with newValue, NUL-padding the remainder. The ELF
// dynamic string table is NUL-terminated and unreferenced trailing
// bytes are never read, so a same-length-or-shorter in-place rewrite is
// safe without relinking.
func patchDynString(path string, f *elf.File, oldValue, newValue string) error {
	if len(newValue) > len(oldValue) {
		return fmt.Errorf("new rpath %q is longer than old %q, in-place patch unsupported", newValue, oldValue)
	}

	sec := f.Section(".dynstr")
	if sec == nil {
		return fmt.Errorf(".dynstr section not found")
	}
	data, err := sec.Data()
	if err != nil {
		return err
	}

	idx := bytes.Index(data, []byte(oldValue+"\x00"))
	if idx < 0 {
		idx = bytes.Index(data, []byte(oldValue))
	}
	if idx < 0 {
		return fmt.Errorf("old rpath value not found in .dynstr")
	}

	raw := make([]byte, len(oldValue))
	copy(raw, newValue)
	// NUL-pad the rest of the old value's span so the string terminates early.
	for i := len(newValue); i < len(raw); i++ {
		raw[i] = 0
	}

	out, err := os.OpenFile(path, os.O_WRONLY, 0) // #nosec G304 - path is a file this process just extracted/built
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.WriteAt(raw, int64(sec.Offset)+int64(idx)); err != nil {
		return err
	}
	return nil
}
