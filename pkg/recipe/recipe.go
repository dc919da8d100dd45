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

import "fmt"

// Field accessors over the Stage-0 root mapping. These return the zero
// Node and false when the field is absent, so callers can distinguish
// "not specified" from "specified as empty".

func (d *Document) field(name string) (Node, bool) {
	return d.Root.Get(name)
}

func (d *Document) PackageNode() (Node, bool)      { return d.field("package") }
func (d *Document) SourceNode() (Node, bool)       { return d.field("source") }
func (d *Document) BuildNode() (Node, bool)        { return d.field("build") }
func (d *Document) RequirementsNode() (Node, bool) { return d.field("requirements") }
func (d *Document) TestsNode() (Node, bool)        { return d.field("tests") }
func (d *Document) AboutNode() (Node, bool)        { return d.field("about") }
func (d *Document) OutputsNode() (Node, bool)      { return d.field("outputs") }
func (d *Document) ContextNode() (Node, bool)      { return d.field("context") }

// IsMultiOutput reports whether the recipe uses the outputs[] form (spec
// §6, "Recipe YAML"). It validates the mutual-exclusion invariant between
// a top-level package.name and outputs[] along the way.
func (d *Document) IsMultiOutput() (bool, error) {
	_, hasOutputs := d.OutputsNode()
	pkgNode, hasPackage := d.PackageNode()

	hasPackageName := false
	if hasPackage {
		if nameNode, ok := pkgNode.Get("name"); ok {
			if s, err := ScalarAsString(nameNode); err == nil && s != "" {
				hasPackageName = true
			}
		}
	}

	switch {
	case hasOutputs && hasPackageName:
		return false, &ParseError{Span: d.Root.Span, Problem: "recipe specifies both top-level package.name and outputs[]; exactly one is allowed"}
	case hasOutputs:
		return true, nil
	case hasPackageName:
		return false, nil
	default:
		return false, &ParseError{Span: d.Root.Span, Problem: "recipe specifies neither package.name nor outputs[]"}
	}
}

// OutputDocuments splits a multi-output recipe into one synthetic
// per-output Document, merging each outputs[] entry's package/build/
// requirements/tests over the recipe-level ones it's nested under, so
// every output can be evaluated and variant-expanded independently
// (spec §4.4, Output Graph Scheduler).
func (d *Document) OutputDocuments() ([]*Document, error) {
	multi, err := d.IsMultiOutput()
	if err != nil {
		return nil, err
	}
	if !multi {
		return []*Document{d}, nil
	}

	outputsNode, _ := d.OutputsNode()
	if outputsNode.Kind != KindSequence {
		return nil, &ParseError{Span: outputsNode.Span, Problem: "outputs must be a sequence"}
	}

	docs := make([]*Document, 0, len(outputsNode.Sequence))
	for i, out := range outputsNode.Sequence {
		merged := mergeMapping(d.Root, out, []string{"package", "build", "requirements", "tests", "about"})
		// drop the outputs field itself so the merged doc looks single-output
		merged = removeKey(merged, "outputs")
		if _, ok := merged.Get("package"); !ok {
			return nil, &ParseError{Span: out.Span, Problem: fmt.Sprintf("outputs[%d] is missing package", i)}
		}
		docs = append(docs, &Document{File: d.File, Root: merged})
	}
	return docs, nil
}

// mergeMapping overlays override's top-level keys onto base for the given
// mergeable field names: override wins outright (no deep merge) for any
// field name it defines, matching rattler-build's output-inherits-recipe
// semantics for these sections.
func mergeMapping(base, override Node, mergeableFields []string) Node {
	fieldSet := map[string]bool{}
	for _, f := range mergeableFields {
		fieldSet[f] = true
	}

	entries := make([]MappingEntry, 0, len(base.Mapping)+len(override.Mapping))
	seen := map[string]bool{}

	for _, e := range base.Mapping {
		entries = append(entries, e)
		seen[e.Key] = true
	}

	for _, e := range override.Mapping {
		if seen[e.Key] {
			// replace in place
			for i := range entries {
				if entries[i].Key == e.Key {
					entries[i].Value = e.Value
					break
				}
			}
			continue
		}
		entries = append(entries, e)
	}

	return Node{Kind: KindMapping, Span: base.Span, Mapping: entries}
}

func removeKey(n Node, key string) Node {
	out := make([]MappingEntry, 0, len(n.Mapping))
	for _, e := range n.Mapping {
		if e.Key == key {
			continue
		}
		out = append(out, e)
	}
	n.Mapping = out
	return n
}
