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

package template

import (
	"fmt"

	"github.com/dlorenc/rbld/pkg/recipe"
)

// EvaluateTree walks a Stage-0 recipe.Node bottom-up, substituting holes
// in scalars and resolving {if,then,else} conditional nodes against c,
// producing a Stage-1 generic Value tree (spec §3, §4.1).
//
// Conditional nodes are evaluated before their surrounding mapping's
// sibling keys are visited in order, but a mapping's key order is
// otherwise preserved in the output: when a conditional's chosen branch
// is itself a mapping, its keys are spliced into the parent mapping at
// the conditional's position rather than nested under a synthetic key
// (spec §4.1, "a conditional contributes its branch's shape flattened
// into its use site").
func EvaluateTree(c *Context, n recipe.Node) (Value, error) {
	switch n.Kind {
	case recipe.KindScalar:
		return EvaluateScalar(c, n.Scalar)

	case recipe.KindSequence:
		out := make([]Value, 0, len(n.Sequence))
		for _, item := range n.Sequence {
			if item.Kind == recipe.KindConditional {
				v, err := evalConditional(c, item.Conditional)
				if err != nil {
					return nil, err
				}
				if isAbsent(v) {
					continue
				}
				if items, ok := v.([]Value); ok {
					out = append(out, items...)
					continue
				}
				out = append(out, v)
				continue
			}
			v, err := EvaluateTree(c, item)
			if err != nil {
				return nil, err
			}
			if isAbsent(v) {
				continue
			}
			out = append(out, v)
		}
		return out, nil

	case recipe.KindMapping:
		out := map[string]Value{}
		order := make([]string, 0, len(n.Mapping))
		for _, entry := range n.Mapping {
			if entry.Value.Kind == recipe.KindConditional {
				v, err := evalConditional(c, entry.Value.Conditional)
				if err != nil {
					return nil, err
				}
				if isAbsent(v) {
					continue
				}
				if m, ok := v.(map[string]Value); ok {
					for k, vv := range m {
						if _, exists := out[k]; !exists {
							order = append(order, k)
						}
						out[k] = vv
					}
					continue
				}
				if _, exists := out[entry.Key]; !exists {
					order = append(order, entry.Key)
				}
				out[entry.Key] = v
				continue
			}
			v, err := EvaluateTree(c, entry.Value)
			if err != nil {
				return nil, err
			}
			if isAbsent(v) {
				continue
			}
			if _, exists := out[entry.Key]; !exists {
				order = append(order, entry.Key)
			}
			out[entry.Key] = v
		}
		out["__order__"] = order
		return out, nil

	case recipe.KindConditional:
		return evalConditional(c, n.Conditional)

	default:
		return nil, fmt.Errorf("unhandled node kind %d", n.Kind)
	}
}

// evalConditional evaluates {if,then,else}: the condition is parsed as an
// expression and coerced to bool; its then/else branch (recursively
// evaluated) is returned. A false condition with no else branch yields
// Absent, which callers drop from the enclosing collection.
func evalConditional(c *Context, cond *recipe.Conditional) (Value, error) {
	if cond == nil {
		return Absent, nil
	}
	expr, err := Parse(cond.If)
	if err != nil {
		return nil, fmt.Errorf("parsing condition %q: %w", cond.If, err)
	}
	v, err := evalExpr(c, expr)
	if err != nil {
		return nil, err
	}
	b, err := coerceBool(v)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", cond.If, err)
	}
	if b {
		return EvaluateTree(c, cond.Then)
	}
	if cond.Else != nil {
		return EvaluateTree(c, *cond.Else)
	}
	return Absent, nil
}

func coerceBool(v Value) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return t != "", nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("condition value of type %T is not boolean", v)
	}
}
