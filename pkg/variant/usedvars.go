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

package variant

import (
	"fmt"
	"strings"

	"github.com/dlorenc/rbld/pkg/recipe"
	"github.com/dlorenc/rbld/pkg/template"
)

// UsedVars computes the set of variable names the recipe's Stage-0 tree
// dereferences (spec §4.2 step 1): a single static walk over every
// template hole and every conditional's `if` expression, run once before
// variant expansion and before any axis value is bound. pin_subpackage /
// pin_compatible calls contribute the pinned output name under the
// "pin_subpackage.<name>" / "pin_compatible.<name>" pseudo-keys so the
// Output Graph Scheduler can resolve the transitive dependency (spec
// §4.2 step 1, "include variables referenced transitively via
// pin_subpackage pins").
func UsedVars(n recipe.Node) (map[string]bool, error) {
	used := map[string]bool{}
	if err := walkNode(n, used); err != nil {
		return nil, err
	}
	return used, nil
}

func walkNode(n recipe.Node, used map[string]bool) error {
	switch n.Kind {
	case recipe.KindScalar:
		return walkScalar(n.Scalar, used)
	case recipe.KindSequence:
		for _, item := range n.Sequence {
			if err := walkNode(item, used); err != nil {
				return err
			}
		}
		return nil
	case recipe.KindMapping:
		for _, entry := range n.Mapping {
			if err := walkNode(entry.Value, used); err != nil {
				return err
			}
		}
		return nil
	case recipe.KindConditional:
		return walkConditional(n.Conditional, used)
	default:
		return fmt.Errorf("unhandled node kind %d", n.Kind)
	}
}

func walkConditional(c *recipe.Conditional, used map[string]bool) error {
	if c == nil {
		return nil
	}
	if err := walkExprSource(c.If, used); err != nil {
		return err
	}
	if err := walkNode(c.Then, used); err != nil {
		return err
	}
	if c.Else != nil {
		if err := walkNode(*c.Else, used); err != nil {
			return err
		}
	}
	return nil
}

func walkScalar(s string, used map[string]bool) error {
	holes, err := template.FindHoleExpressions(s)
	if err != nil {
		return err
	}
	for _, h := range holes {
		if err := walkExprSource(h, used); err != nil {
			return err
		}
	}
	return nil
}

func walkExprSource(src string, used map[string]bool) error {
	expr, err := template.Parse(src)
	if err != nil {
		return fmt.Errorf("parsing expression %q: %w", src, err)
	}
	walkExpr(expr, used)
	return nil
}

func walkExpr(e template.Expr, used map[string]bool) {
	switch e.Kind {
	case template.ExprVar:
		used[rootName(e.Name)] = true
	case template.ExprMember:
		if e.Base != nil {
			walkExpr(*e.Base, used)
		}
	case template.ExprCall:
		switch e.Name {
		case "pin_subpackage", "pin_compatible":
			if len(e.Args) > 0 && e.Args[0].Kind == template.ExprString {
				used[e.Name+"."+e.Args[0].Str] = true
			}
		}
		for _, a := range e.Args {
			walkExpr(a, used)
		}
	case template.ExprPipe:
		if e.Base != nil {
			walkExpr(*e.Base, used)
		}
		for _, a := range e.FilterArgs {
			walkExpr(a, used)
		}
	}
}

// rootName reduces a dotted variable reference to its top-level variant
// axis name, e.g. "git.latest_tag.foo" -> "git".
func rootName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
