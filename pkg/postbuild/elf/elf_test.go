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

package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteRpathValueRelativizesInsidePrefix(t *testing.T) {
	got := rewriteRpathValue("/opt/host/lib:/opt/host/lib64", "/opt/host", nil)
	assert.Equal(t, "$ORIGIN/lib:$ORIGIN/lib64", got)
}

func TestRewriteRpathValueDropsOutsidePrefixUnlessAllowlisted(t *testing.T) {
	got := rewriteRpathValue("/opt/host/lib:/usr/lib", "/opt/host", nil)
	assert.Equal(t, "$ORIGIN/lib", got)

	got = rewriteRpathValue("/opt/host/lib:/usr/lib", "/opt/host", func(p string) bool { return p == "/usr/lib" })
	assert.Equal(t, "$ORIGIN/lib:/usr/lib", got)
}
