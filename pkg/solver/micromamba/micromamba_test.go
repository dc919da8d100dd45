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

package micromamba

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/solver"
)

// fakeBin writes an executable shell script standing in for micromamba,
// printing the given stdout and exiting with the given code.
func fakeBin(t *testing.T, stdout string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell script binary requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "micromamba")
	script := "#!/bin/sh\ncat <<'EOF'\n" + stdout + "\nEOF\nexit " + itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestSolveParsesLinkActionsFromDryRunOutput(t *testing.T) {
	out := `{"actions": {"LINK": [
		{"name": "zlib", "version": "1.3", "build_string": "h5eee18b_0", "build_number": 0, "subdir": "linux-64", "depends": ["libgcc-ng >=9"], "channel": "conda-forge", "fn": "zlib-1.3-h5eee18b_0.conda", "url": "https://example/zlib.conda", "sha256": "abc"}
	]}}`
	a := &Adapter{BinPath: fakeBin(t, out, 0)}

	records, err := a.Solve(context.Background(), []recipe.MatchSpec{"zlib >=1.3"}, []solver.Channel{"conda-forge"}, solver.Platform("linux-64"), nil, solver.StrategyHighest, solver.ChannelPriorityStrict)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, recipe.PackageName("zlib"), records[0].Name)
	assert.Equal(t, recipe.Version("1.3"), records[0].Version)
	assert.Equal(t, "h5eee18b_0", records[0].Build)
	assert.Equal(t, solver.Channel("conda-forge"), records[0].Channel)
	require.Len(t, records[0].Depends, 1)
	assert.Equal(t, recipe.MatchSpec("libgcc-ng >=9"), records[0].Depends[0])
}

func TestSolveReturnsUnsatisfiableErrorOnNonZeroExit(t *testing.T) {
	a := &Adapter{BinPath: fakeBin(t, "", 1)}

	_, err := a.Solve(context.Background(), []recipe.MatchSpec{"doesnotexist"}, nil, solver.Platform("linux-64"), nil, solver.StrategyHighest, solver.ChannelPriorityStrict)
	require.Error(t, err)
	var unsat *solver.UnsatisfiableError
	require.ErrorAs(t, err, &unsat)
}

func TestInstallMaterializesRecordsAndReturnsReport(t *testing.T) {
	a := &Adapter{BinPath: fakeBin(t, "", 0)}
	records := []solver.PackageRecord{{Name: "zlib", Version: "1.3", Build: "h5eee18b_0", Channel: "conda-forge"}}

	report, err := a.Install(context.Background(), records, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, records, report.Installed)
}

func TestInstallReturnsInstallErrorOnNonZeroExit(t *testing.T) {
	a := &Adapter{BinPath: fakeBin(t, "", 1)}
	records := []solver.PackageRecord{{Name: "zlib", Version: "1.3"}}

	_, err := a.Install(context.Background(), records, t.TempDir())
	require.Error(t, err)
	var installErr *solver.InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, recipe.PackageName("zlib"), installErr.Record.Name)
}

func TestBinDefaultsToMicromambaOnPath(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, "micromamba", a.bin())
}
