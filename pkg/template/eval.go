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
	"strconv"
	"strings"
)

// absentType is the sentinel Value produced by a conditional node whose
// active branch is absent (an "else"-less {if,then} whose condition was
// false). Absent values are dropped from the enclosing mapping/sequence
// entirely rather than bound to nil, per spec §4.1 "an omitted else drops
// the key".
type absentType struct{}

// Absent is the sentinel value for a conditional with no matching branch.
var Absent = absentType{}

func isAbsent(v Value) bool {
	_, ok := v.(absentType)
	return ok
}

// EvaluateScalar scans s for ${{ ... }} holes and substitutes each with
// its evaluated value rendered as text. A scalar consisting of exactly
// one hole and no surrounding text returns the hole's native Value
// (string/int64/bool/...) instead of a stringified form, so
// `${{ python_min }}` bound to an int stays an int rather than becoming
// the string "39".
func EvaluateScalar(c *Context, s string) (Value, error) {
	holes, err := scanHoles(s)
	if err != nil {
		return nil, err
	}
	if len(holes) == 0 {
		return s, nil
	}
	if len(holes) == 1 && holes[0].start == 0 && holes[0].end == len(s) {
		expr, err := Parse(holes[0].inner)
		if err != nil {
			return nil, fmt.Errorf("parsing expression %q: %w", holes[0].inner, err)
		}
		return evalExpr(c, expr)
	}

	var sb strings.Builder
	pos := 0
	for _, h := range holes {
		sb.WriteString(s[pos:h.start])
		expr, err := Parse(h.inner)
		if err != nil {
			return nil, fmt.Errorf("parsing expression %q: %w", h.inner, err)
		}
		v, err := evalExpr(c, expr)
		if err != nil {
			return nil, err
		}
		sb.WriteString(stringify(v))
		pos = h.end
	}
	sb.WriteString(s[pos:])
	return sb.String(), nil
}

type hole struct {
	start, end int
	inner      string
}

// FindHoleExpressions returns the raw expression text of every ${{ ... }}
// hole in s, unparsed. Used by the Variant Resolver's used_vars visitor
// (spec §4.2 step 1) to find variable references without needing a bound
// Context.
func FindHoleExpressions(s string) ([]string, error) {
	holes, err := scanHoles(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(holes))
	for i, h := range holes {
		out[i] = h.inner
	}
	return out, nil
}

// scanHoles finds every "${{ ... }}" span in s with a plain string scan
// rather than a regex: each hole ends at the first "}}" after its "${{",
// so a hole body may contain arbitrary text except "}}".
func scanHoles(s string) ([]hole, error) {
	var holes []hole
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${{")
		if start == -1 {
			break
		}
		start += i
		end := strings.Index(s[start+3:], "}}")
		if end == -1 {
			return nil, fmt.Errorf("unterminated ${{ at position %d", start)
		}
		end += start + 3
		holes = append(holes, hole{
			start: start,
			end:   end + 2,
			inner: strings.TrimSpace(s[start+3 : end]),
		})
		i = end + 2
	}
	return holes, nil
}

func stringify(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func evalExpr(c *Context, e Expr) (Value, error) {
	switch e.Kind {
	case ExprString:
		return e.Str, nil
	case ExprInt:
		return e.Int, nil
	case ExprBool:
		return e.Bool, nil
	case ExprVar:
		v, ok := c.Lookup(e.Name)
		if !ok {
			return nil, &UndefinedVariableError{Name: e.Name}
		}
		return v, nil
	case ExprMember:
		base, err := evalExpr(c, *e.Base)
		if err != nil {
			return nil, err
		}
		m, ok := base.(map[string]Value)
		if !ok {
			return nil, fmt.Errorf("cannot access field %q on non-mapping value", e.Field)
		}
		v, ok := m[e.Field]
		if !ok {
			return nil, &UndefinedVariableError{Name: e.Field}
		}
		return v, nil
	case ExprCall:
		fn, ok := c.Functions[e.Name]
		if !ok {
			return nil, &UnknownFunctionError{Name: e.Name}
		}
		args := make([]Value, len(e.Args))
		for i, a := range e.Args {
			v, err := evalExpr(c, a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return fn(c, args)
	case ExprPipe:
		base, err := evalExpr(c, *e.Base)
		if err != nil {
			return nil, err
		}
		filter, ok := filterRegistry[e.FilterName]
		if !ok {
			return nil, &UnknownFunctionError{Name: e.FilterName}
		}
		args := make([]Value, len(e.FilterArgs))
		for i, a := range e.FilterArgs {
			v, err := evalExpr(c, a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return filter(base, args)
	default:
		return nil, fmt.Errorf("unhandled expression kind %d", e.Kind)
	}
}

// filterFunc is a pipe filter: base | name(args...).
type filterFunc func(base Value, args []Value) (Value, error)

var filterRegistry = map[string]filterFunc{
	"upper": func(base Value, args []Value) (Value, error) {
		return strings.ToUpper(stringify(base)), nil
	},
	"lower": func(base Value, args []Value) (Value, error) {
		return strings.ToLower(stringify(base)), nil
	},
	"trim": func(base Value, args []Value) (Value, error) {
		return strings.TrimSpace(stringify(base)), nil
	},
	"replace": func(base Value, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("replace() takes exactly 2 arguments")
		}
		old, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("replace(): first argument must be a string")
		}
		rep, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("replace(): second argument must be a string")
		}
		return strings.ReplaceAll(stringify(base), old, rep), nil
	},
	"default": func(base Value, args []Value) (Value, error) {
		if base != nil && !isAbsent(base) {
			return base, nil
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("default() takes exactly 1 argument")
		}
		return args[0], nil
	},
	"split": func(base Value, args []Value) (Value, error) {
		sep := " "
		if len(args) == 1 {
			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("split(): argument must be a string")
			}
			sep = s
		}
		parts := strings.Split(stringify(base), sep)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	},
	"int": func(base Value, args []Value) (Value, error) {
		n, err := strconv.ParseInt(stringify(base), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("int(): %w", err)
		}
		return n, nil
	},
}

// matchVersionSpec supports the common "==","!=",">=","<=",">","<" prefix
// forms of a match spec against a dotted version string, comparing
// component-wise as integers where possible and falling back to string
// comparison otherwise. Full match-spec grammar (build string globs,
// compound "or" specs) is the external solver's job (spec §6).
func matchVersionSpec(version, spec string) bool {
	spec = strings.TrimSpace(spec)
	ops := []string{">=", "<=", "==", "!=", ">", "<"}
	op := "=="
	rhs := spec
	for _, o := range ops {
		if strings.HasPrefix(spec, o) {
			op = o
			rhs = strings.TrimSpace(spec[len(o):])
			break
		}
	}
	cmp := compareVersions(version, rhs)
	switch op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	default:
		return false
	}
}

// compareVersions compares two dotted version strings component-wise,
// treating each dot-separated part as an integer when possible.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv string
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		an, aerr := strconv.Atoi(av)
		bn, berr := strconv.Atoi(bv)
		if aerr == nil && berr == nil {
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
			continue
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
