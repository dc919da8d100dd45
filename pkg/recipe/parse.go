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

package recipe

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseError is returned when the recipe YAML has the wrong shape or a
// field the wrong type (spec §7, ParseError). It carries the Span of the
// offending node so the CLI can print a "file:line:col" style message.
type ParseError struct {
	Span    Span
	Problem string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Problem)
}

// Document is a parsed Stage-0 recipe: the root mapping plus the file it
// came from, used to stamp every Span.
type Document struct {
	File string
	Root Node
}

// Parse decodes raw recipe YAML into a Stage-0 Document. Every node in the
// resulting tree, however deeply nested, carries a Span pointing back into
// file.
func Parse(file string, data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Span: Span{File: file}, Problem: err.Error()}
	}

	if len(root.Content) == 0 {
		return &Document{File: file, Root: Node{Kind: KindMapping, Span: Span{File: file, Line: 1, Column: 1}}}, nil
	}

	doc := root.Content[0]
	n, err := convert(file, doc)
	if err != nil {
		return nil, err
	}
	return &Document{File: file, Root: n}, nil
}

func span(file string, yn *yaml.Node) Span {
	return Span{File: file, Line: yn.Line, Column: yn.Column}
}

// convert turns one yaml.Node into a recipe.Node, detecting the
// conditional-wrapper shape ({if, then[, else]}) on mappings wherever it
// appears — as a top-level value, a sequence item, or nested inside
// another mapping value.
func convert(file string, yn *yaml.Node) (Node, error) {
	switch yn.Kind {
	case yaml.DocumentNode:
		if len(yn.Content) == 0 {
			return Node{Kind: KindMapping, Span: span(file, yn)}, nil
		}
		return convert(file, yn.Content[0])

	case yaml.ScalarNode:
		return Node{Kind: KindScalar, Span: span(file, yn), Scalar: yn.Value}, nil

	case yaml.SequenceNode:
		items := make([]Node, 0, len(yn.Content))
		for _, c := range yn.Content {
			cn, err := convert(file, c)
			if err != nil {
				return Node{}, err
			}
			items = append(items, cn)
		}
		return Node{Kind: KindSequence, Span: span(file, yn), Sequence: items}, nil

	case yaml.MappingNode:
		if cond, ok, err := tryConditional(file, yn); err != nil {
			return Node{}, err
		} else if ok {
			return cond, nil
		}

		entries := make([]MappingEntry, 0, len(yn.Content)/2)
		for i := 0; i+1 < len(yn.Content); i += 2 {
			keyNode := yn.Content[i]
			valNode := yn.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return Node{}, &ParseError{Span: span(file, keyNode), Problem: "mapping keys must be scalar strings"}
			}
			vn, err := convert(file, valNode)
			if err != nil {
				return Node{}, err
			}
			entries = append(entries, MappingEntry{Key: keyNode.Value, Value: vn})
		}
		return Node{Kind: KindMapping, Span: span(file, yn), Mapping: entries}, nil

	case yaml.AliasNode:
		return convert(file, yn.Alias)

	default:
		return Node{}, &ParseError{Span: span(file, yn), Problem: "unsupported YAML node kind"}
	}
}

// tryConditional recognizes the {if: expr, then: X, else: Y} shape. Per
// spec §4.1, this shape is reserved: a mapping is treated as a conditional
// node iff its key set is exactly {if, then} or {if, then, else}.
func tryConditional(file string, yn *yaml.Node) (Node, bool, error) {
	keys := map[string]*yaml.Node{}
	order := []string{}
	for i := 0; i+1 < len(yn.Content); i += 2 {
		k := yn.Content[i]
		if k.Kind != yaml.ScalarNode {
			return Node{}, false, nil
		}
		keys[k.Value] = yn.Content[i+1]
		order = append(order, k.Value)
	}

	if _, hasIf := keys["if"]; !hasIf {
		return Node{}, false, nil
	}
	thenNode, hasThen := keys["then"]
	if !hasThen {
		return Node{}, false, nil
	}
	elseNode, hasElse := keys["else"]

	allowed := map[string]bool{"if": true, "then": true, "else": true}
	for _, k := range order {
		if !allowed[k] {
			return Node{}, false, nil
		}
	}

	ifScalar := keys["if"]
	if ifScalar.Kind != yaml.ScalarNode {
		return Node{}, false, &ParseError{Span: span(file, ifScalar), Problem: "conditional 'if' must be a scalar expression"}
	}

	thenConv, err := convert(file, thenNode)
	if err != nil {
		return Node{}, false, err
	}

	cond := &Conditional{If: ifScalar.Value, Then: thenConv}
	if hasElse {
		elseConv, err := convert(file, elseNode)
		if err != nil {
			return Node{}, false, err
		}
		cond.Else = &elseConv
	}

	return Node{Kind: KindConditional, Span: span(file, yn), Conditional: cond}, true, nil
}

// ScalarAsString extracts a plain scalar's text, or errors with a Span if
// n is not a scalar (e.g. a recipe field declared as a string contains a
// mapping by mistake).
func ScalarAsString(n Node) (string, error) {
	if n.Kind != KindScalar {
		return "", &ParseError{Span: n.Span, Problem: "expected a scalar string"}
	}
	return n.Scalar, nil
}

// ScalarAsUint parses a scalar node as a non-negative integer (used for
// package.epoch and build.number).
func ScalarAsUint(n Node) (uint64, error) {
	s, err := ScalarAsString(n)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &ParseError{Span: n.Span, Problem: fmt.Sprintf("invalid integer %q: %v", s, err)}
	}
	return v, nil
}

// ScalarAsBool parses a scalar node as a boolean.
func ScalarAsBool(n Node) (bool, error) {
	s, err := ScalarAsString(n)
	if err != nil {
		return false, err
	}
	switch s {
	case "true", "True", "TRUE", "yes":
		return true, nil
	case "false", "False", "FALSE", "no", "":
		return false, nil
	default:
		return false, &ParseError{Span: n.Span, Problem: fmt.Sprintf("invalid boolean %q", s)}
	}
}

// StringsOf converts a KindSequence of scalars to a []string. Any
// conditional or non-scalar item is an error at this stage; conditionals
// must be resolved by the evaluator (pkg/template) before this is called
// against Stage-1 data, which is the only time StringsOf is used.
func StringsOf(n Node) ([]string, error) {
	if n.Kind != KindSequence {
		if n.Kind == KindScalar && n.Scalar == "" {
			return nil, nil
		}
		return nil, &ParseError{Span: n.Span, Problem: "expected a sequence of strings"}
	}
	out := make([]string, 0, len(n.Sequence))
	for _, item := range n.Sequence {
		s, err := ScalarAsString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
