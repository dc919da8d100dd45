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
	"bytes"
	"os"
)

// BinaryFormat is which platform binary rewriter, if any, applies to a
// file (spec §4.7b).
type BinaryFormat int

const (
	FormatNone BinaryFormat = iota
	FormatELF
	FormatMachO
	FormatPE
)

// SniffFormat content-sniffs path's magic bytes, the same approach
// melange's convention package uses for text/binary detection
// generalized to platform executable formats.
func SniffFormat(path string) BinaryFormat {
	f, err := os.Open(path) // #nosec G304 - path comes from our own prefix walk
	if err != nil {
		return FormatNone
	}
	defer f.Close()

	head := make([]byte, 4)
	n, _ := f.Read(head)
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, []byte{0x7f, 'E', 'L', 'F'}):
		return FormatELF
	case bytes.Equal(head, []byte{0xfe, 0xed, 0xfa, 0xce}),
		bytes.Equal(head, []byte{0xce, 0xfa, 0xed, 0xfe}),
		bytes.Equal(head, []byte{0xfe, 0xed, 0xfa, 0xcf}),
		bytes.Equal(head, []byte{0xcf, 0xfa, 0xed, 0xfe}),
		bytes.Equal(head, []byte{0xca, 0xfe, 0xba, 0xbe}):
		return FormatMachO
	case len(head) >= 2 && head[0] == 'M' && head[1] == 'Z':
		return FormatPE
	default:
		return FormatNone
	}
}

// IsBinaryContent reports whether content looks binary by checking for
// NUL bytes in the first 512 bytes, following
// melange's convention.isBinaryContent heuristic.
func IsBinaryContent(content []byte) bool {
	checkLen := 512
	if len(content) < checkLen {
		checkLen = len(content)
	}
	return bytes.IndexByte(content[:checkLen], 0) >= 0
}
