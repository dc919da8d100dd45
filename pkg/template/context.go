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

// Context is the evaluation environment for one render pass: a mapping of
// defined variables (platform facts plus user context: values, plus a
// variant's bound values) and a function registry (spec §4.1).
//
// Context also doubles as the variable-use recorder for the Variant
// Resolver's used_vars visitor (spec §4.2 step 1): every successful
// Lookup of a name records it, so a single walk over the Stage-0 tree
// against a trial Context yields both the evaluated value and the set of
// variables the recipe actually dereferenced.
type Context struct {
	Vars      map[string]Value
	Functions map[string]Func

	// Track, when non-nil, receives every variable name successfully
	// resolved via Lookup.
	Track map[string]bool
}

// Value is a template value: string, int64, bool, []Value, or
// map[string]Value. There is no dedicated Value type (unlike Expr/Node)
// because Go's `any` plus type switches is the idiomatic representation
// the rest of the pipeline (variant hashing, Stage-1 construction)
// consumes directly.
type Value = any

// Func is a registered allowlisted function (spec §4.1: "Function calls
// resolve against a pluggable registry; unknown names fail").
type Func func(c *Context, args []Value) (Value, error)

// NewContext creates an empty Context with the builtin function registry
// installed.
func NewContext() *Context {
	return &Context{
		Vars:      map[string]Value{},
		Functions: BuiltinFunctions(),
	}
}

// WithTracking returns a shallow copy of c that records every variable
// lookup into a fresh used-vars set, returned alongside.
func (c *Context) WithTracking() (*Context, *map[string]bool) {
	track := map[string]bool{}
	nc := &Context{Vars: c.Vars, Functions: c.Functions, Track: track}
	return nc, &track
}

// Lookup resolves a (possibly dotted) variable name, recording usage for
// the used_vars visitor.
func (c *Context) Lookup(name string) (Value, bool) {
	v, ok := c.Vars[name]
	if ok && c.Track != nil {
		c.Track[name] = true
	}
	return v, ok
}

// Set binds name to v, overwriting any prior binding. Used to layer
// variant values and range.key/range.value substitutions over the base
// platform-fact context.
func (c *Context) Set(name string, v Value) {
	c.Vars[name] = v
}

// Clone returns a Context with an independent Vars map (so callers can
// layer per-output bindings without mutating the shared base) but a
// shared Functions registry.
func (c *Context) Clone() *Context {
	nv := make(map[string]Value, len(c.Vars))
	for k, v := range c.Vars {
		nv[k] = v
	}
	return &Context{Vars: nv, Functions: c.Functions, Track: c.Track}
}
