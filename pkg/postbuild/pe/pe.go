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

// Package pe collects PE IMPORT table DLL names for the overlinking
// scan (spec §4.7b): "collect the IMPORT table DLL names, map each to
// an installed package, flag any remaining name not in the
// system-allowlist as under-linked." This package performs no
// rewriting; PE import tables are bound at link time and relocating
// them in place is out of scope.
package pe

import (
	"debug/pe"
	"fmt"
)

// ImportedDLLs returns the list of DLL names a PE binary's IMPORT table
// references.
func ImportedDLLs(path string) ([]string, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s as PE: %w", path, err)
	}
	defer f.Close()

	imports, err := f.ImportedLibraries()
	if err != nil {
		return nil, fmt.Errorf("reading import table of %s: %w", path, err)
	}
	return imports, nil
}

// systemAllowlist names DLLs the Windows loader resolves from the
// system directory regardless of the package's declared host deps
// (spec §4.7b/d, "system-allowlist").
var systemAllowlist = map[string]bool{
	"kernel32.dll": true, "ntdll.dll": true, "user32.dll": true,
	"advapi32.dll": true, "msvcrt.dll": true, "ws2_32.dll": true,
	"shell32.dll": true, "ole32.dll": true, "oleaut32.dll": true,
}

// IsSystem reports whether dll is a well-known Windows system library
// that is never expected to come from a declared host dependency.
func IsSystem(dll string) bool {
	return systemAllowlist[normalizeDLLName(dll)]
}

func normalizeDLLName(dll string) string {
	out := make([]byte, len(dll))
	for i := 0; i < len(dll); i++ {
		c := dll[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
