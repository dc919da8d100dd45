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

package macho

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCStringStopsAtNUL(t *testing.T) {
	if got := cString([]byte("/opt/host/lib\x00\x00\x00")); got != "/opt/host/lib" {
		t.Errorf("cString = %q, want /opt/host/lib", got)
	}
}

func TestCStringNoTrailingNUL(t *testing.T) {
	if got := cString([]byte("/opt/host/lib")); got != "/opt/host/lib" {
		t.Errorf("cString = %q, want /opt/host/lib", got)
	}
}

func TestPatchLoadStringRejectsLongerReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	if err := os.WriteFile(path, []byte("@rpath/libfoo.dylib\x00\x00\x00"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := patchLoadString(path, "@rpath/libfoo.dylib", "@rpath/libfoo-longer-name.dylib")
	if err == nil {
		t.Fatal("expected error for longer replacement, got nil")
	}
}

func TestPatchLoadStringRewritesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	if err := os.WriteFile(path, []byte("@rpath/libfoo.dylib\x00\x00\x00"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := patchLoadString(path, "@rpath/libfoo.dylib", "@rpath/libfoo.dyli"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "@rpath/libfoo.dyli\x00\x00\x00\x00"
	if string(data) != want {
		t.Errorf("patched content = %q, want %q", data, want)
	}
}
