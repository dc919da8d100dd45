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

import "fmt"

// parser is a small recursive-descent parser for the hole sublanguage:
//
//	expr       := pipeline
//	pipeline   := postfix ( '|' IDENT ('(' args ')')? )*
//	postfix    := atom ( '.' IDENT ('(' args ')')? )*
//	atom       := STRING | NUMBER | 'true' | 'false' | IDENT ('(' args ')')? | '(' expr ')'
//	args       := [ expr (',' expr)* ]
type parser struct {
	lex *lexer
	cur token
}

// Parse parses one hole's contents (the text between ${{ and }}) into an
// Expr.
func Parse(src string) (Expr, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return Expr{}, err
	}
	e, err := p.parsePipeline()
	if err != nil {
		return Expr{}, err
	}
	if p.cur.kind != tokEOF {
		return Expr{}, fmt.Errorf("unexpected trailing input near %q", p.cur.text)
	}
	return e, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) parsePipeline() (Expr, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return Expr{}, err
	}
	for p.cur.kind == tokPipe {
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		if p.cur.kind != tokIdent {
			return Expr{}, fmt.Errorf("expected filter name after '|'")
		}
		name := p.cur.text
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		var args []Expr
		if p.cur.kind == tokLParen {
			args, err = p.parseArgs()
			if err != nil {
				return Expr{}, err
			}
		}
		b := base
		base = Expr{Kind: ExprPipe, Base: &b, FilterName: name, FilterArgs: args}
	}
	return base, nil
}

func (p *parser) parseArgs() ([]Expr, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []Expr
	for p.cur.kind != tokRParen {
		e, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.kind != tokRParen {
		return nil, fmt.Errorf("expected ')' to close argument list")
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return Expr{}, err
	}

	for p.cur.kind == tokDot {
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		if p.cur.kind != tokIdent {
			return Expr{}, fmt.Errorf("expected identifier after '.'")
		}
		field := p.cur.text
		if err := p.advance(); err != nil {
			return Expr{}, err
		}

		if p.cur.kind == tokLParen {
			args, err := p.parseArgs()
			if err != nil {
				return Expr{}, err
			}
			// qualified function call, e.g. env.get(...)
			qualified, ok := qualifiedName(e)
			if !ok {
				return Expr{}, fmt.Errorf("cannot call method on non-variable expression")
			}
			e = Expr{Kind: ExprCall, Name: qualified + "." + field, Args: args}
			continue
		}

		if e.Kind == ExprVar {
			e = Expr{Kind: ExprVar, Name: e.Name + "." + field}
			continue
		}
		b := e
		e = Expr{Kind: ExprMember, Base: &b, Field: field}
	}

	return e, nil
}

func qualifiedName(e Expr) (string, bool) {
	if e.Kind == ExprVar {
		return e.Name, true
	}
	return "", false
}

func (p *parser) parseAtom() (Expr, error) {
	switch p.cur.kind {
	case tokString:
		s := p.cur.text
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprString, Str: s}, nil

	case tokNumber:
		n, err := parseInt(p.cur.text)
		if err != nil {
			return Expr{}, err
		}
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprInt, Int: n}, nil

	case tokIdent:
		name := p.cur.text
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		if name == "true" {
			return Expr{Kind: ExprBool, Bool: true}, nil
		}
		if name == "false" {
			return Expr{Kind: ExprBool, Bool: false}, nil
		}
		if p.cur.kind == tokLParen {
			args, err := p.parseArgs()
			if err != nil {
				return Expr{}, err
			}
			return Expr{Kind: ExprCall, Name: name, Args: args}, nil
		}
		return Expr{Kind: ExprVar, Name: name}, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		e, err := p.parsePipeline()
		if err != nil {
			return Expr{}, err
		}
		if p.cur.kind != tokRParen {
			return Expr{}, fmt.Errorf("expected ')'")
		}
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		return e, nil

	default:
		return Expr{}, fmt.Errorf("unexpected token while parsing expression")
	}
}
