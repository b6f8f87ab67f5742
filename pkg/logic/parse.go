package logic

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrSyntax is returned (wrapped in a *SyntaxError) for malformed input.
var ErrSyntax = errors.New("formula syntax error")

// SyntaxError describes where parsing failed.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d in %q: %s", ErrSyntax, e.Pos, e.Input, e.Msg)
}

// Unwrap allows errors.Is(err, ErrSyntax).
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNot
	tokAnd
	tokOr
	tokLParen
	tokRParen
	tokTrue
	tokFalse
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse reads a formula in canonical syntax. It accepts identifiers,
// "!"/"not", "&&"/"and", "||"/"or", parentheses and the constants
// true/false/1/0. Operator precedence is ! > && > ||.
func Parse(input string) (Formula, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	f, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t.pos, "unexpected %q", t.text)
	}
	return f, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// static tables.
func MustParse(input string) Formula {
	f, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return f
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// IsIdentifier reports whether name is a valid variable name.
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	switch strings.ToLower(name) {
	case "not", "and", "or", "true", "false":
		return false
	}
	return true
}

func tokenize(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == '!':
			toks = append(toks, token{tokNot, "!", i})
			i++
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, &SyntaxError{Input: input, Pos: i, Msg: fmt.Sprintf("expected %c%c", r, r)}
			}
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			toks = append(toks, token{kind, string([]rune{r, r}), i})
			i += 2
		case r == '0' || r == '1':
			if i+1 < len(runes) && isIdentPart(runes[i+1]) {
				return nil, &SyntaxError{Input: input, Pos: i, Msg: "malformed constant"}
			}
			kind := tokFalse
			if r == '1' {
				kind = tokTrue
			}
			toks = append(toks, token{kind, string(r), i})
			i++
		case isIdentStart(r):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			switch strings.ToLower(word) {
			case "not":
				toks = append(toks, token{tokNot, word, start})
			case "and":
				toks = append(toks, token{tokAnd, word, start})
			case "or":
				toks = append(toks, token{tokOr, word, start})
			case "true":
				toks = append(toks, token{tokTrue, word, start})
			case "false":
				toks = append(toks, token{tokFalse, word, start})
			default:
				toks = append(toks, token{tokIdent, word, start})
			}
		default:
			return nil, &SyntaxError{Input: input, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	toks = append(toks, token{tokEOF, "end of input", len(runes)})
	return toks, nil
}

type parser struct {
	input string
	toks  []token
	pos   int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(pos int, format string, args ...interface{}) error {
	return &SyntaxError{Input: p.input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (Formula, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Formula, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Formula, error) {
	t := p.next()
	switch t.kind {
	case tokNot:
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing.pos, "expected ')' but found %q", closing.text)
		}
		return inner, nil
	case tokIdent:
		return Var{Name: t.text}, nil
	case tokTrue:
		return True, nil
	case tokFalse:
		return False, nil
	default:
		return nil, p.errorf(t.pos, "expected operand but found %q", t.text)
	}
}
