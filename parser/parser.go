// Package parser parses the marker syntax used in doc comments.
//
// A marker starts with '@' followed by a possibly qualified type name. It may
// carry a single value in parentheses or a list of elements in braces:
//
//    @NoValue
//    @pkg.Single("text")
//    @pkg.Attrs{Value: "text", Level: 2}
//    @pkg.List{1, 2, 3}
//
// Every marker ends at the end of its line unless the line ends with a token
// that cannot end a marker (such as a comma or an opening brace).
package parser

import (
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"io"
	"text/scanner"
)

// token kinds produced by the lexer, in addition to single runes
const (
	tokEOF = -(iota + 1)
	tokEOL
	tokIdent
	tokString
	tokRune
	tokInt
	tokFloat
	tokTrue
	tokFalse
	tokNil
)

var tokenNames = map[int]string{
	tokEOF:    "end of input",
	tokEOL:    "end-of-line",
	tokIdent:  "identifier",
	tokString: "string literal",
	tokRune:   "rune literal",
	tokInt:    "int literal",
	tokFloat:  "float literal",
	tokTrue:   `"true"`,
	tokFalse:  `"false"`,
	tokNil:    `"nil"`,
}

func tokenName(t int) string {
	if n, ok := tokenNames[t]; ok {
		return n
	}
	return fmt.Sprintf("%q", rune(t))
}

var keywords = map[string]int{
	"true":  tokTrue,
	"false": tokFalse,
	"nil":   tokNil,
}

// runes after which a newline does not terminate the current marker
var trailingRunes = map[rune]struct{}{
	',': {},
	'.': {},
	'{': {},
	'(': {},
	':': {},
	'-': {},
}

type lexeme struct {
	tok  int
	text string
	pos  scanner.Position
}

type markerLex struct {
	err      error
	lastRune rune
	s        scanner.Scanner
}

func newLexer(filename string, r io.Reader) *markerLex {
	var l markerLex
	l.s.Init(r)
	l.s.Filename = filename
	l.s.Mode = l.s.Mode &^ (scanner.ScanComments | scanner.SkipComments)
	l.s.Whitespace = 0
	l.s.Error = func(s *scanner.Scanner, msg string) {
		l.err = errors.New(msg)
	}
	return &l
}

func (l *markerLex) next() lexeme {
	for {
		// we handle whitespace ourselves so that we can easily know the
		// *start* position for a token
		pos := l.s.Pos()
		r := l.s.Scan()
		tok := l.s.TokenText()
		if l.err != nil {
			return lexeme{tok: tokEOF, pos: pos}
		}

		switch r {
		case scanner.EOF:
			return lexeme{tok: tokEOF, pos: pos}
		case ' ', '\t', '\r':
			continue
		case '\n':
			if _, ok := trailingRunes[l.lastRune]; ok {
				continue
			}
			l.lastRune = r
			return lexeme{tok: tokEOL, pos: pos}
		}

		l.lastRune = r
		switch r {
		case scanner.Ident:
			if k, ok := keywords[tok]; ok {
				return lexeme{tok: k, text: tok, pos: pos}
			}
			return lexeme{tok: tokIdent, text: tok, pos: pos}
		case scanner.Int:
			return lexeme{tok: tokInt, text: tok, pos: pos}
		case scanner.Float:
			return lexeme{tok: tokFloat, text: tok, pos: pos}
		case scanner.Char:
			return lexeme{tok: tokRune, text: tok, pos: pos}
		case scanner.String, scanner.RawString:
			return lexeme{tok: tokString, text: tok, pos: pos}
		}
		return lexeme{tok: int(r), text: tok, pos: pos}
	}
}

// ParseError describes a syntax error in marker text.
type ParseError struct {
	err error
	pos scanner.Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.pos.Line, e.pos.Column, e.err)
}

func (e *ParseError) Underlying() error {
	return e.err
}

func (e *ParseError) Pos() scanner.Position {
	return e.pos
}

type markerParser struct {
	lex *markerLex
	cur lexeme
}

// ParseAnnotations parses all markers in the given input. The input must
// start with a marker; blank lines between markers are allowed.
func ParseAnnotations(filename string, r io.Reader) ([]Annotation, *ParseError) {
	p := &markerParser{lex: newLexer(filename, r)}
	p.advance()
	var res []Annotation
	for {
		for p.cur.tok == tokEOL {
			p.advance()
		}
		if p.cur.tok == tokEOF {
			break
		}
		a, err := p.parseAnnotation()
		if err != nil {
			return nil, err
		}
		res = append(res, a)
		if p.cur.tok != tokEOL && p.cur.tok != tokEOF {
			return nil, p.unexpected("end-of-line")
		}
	}
	if p.lex.err != nil {
		return nil, &ParseError{err: p.lex.err, pos: p.cur.pos}
	}
	return res, nil
}

func (p *markerParser) advance() {
	p.cur = p.lex.next()
}

func (p *markerParser) unexpected(want string) *ParseError {
	if p.lex.err != nil {
		return &ParseError{err: p.lex.err, pos: p.cur.pos}
	}
	return &ParseError{
		err: fmt.Errorf("syntax error: unexpected %s, expecting %s", tokenName(p.cur.tok), want),
		pos: p.cur.pos,
	}
}

func (p *markerParser) expect(tok int) (lexeme, *ParseError) {
	if p.cur.tok != tok {
		return lexeme{}, p.unexpected(tokenName(tok))
	}
	l := p.cur
	p.advance()
	return l, nil
}

func (p *markerParser) parseAnnotation() (Annotation, *ParseError) {
	var a Annotation
	at, err := p.expect('@')
	if err != nil {
		return a, err
	}
	a.Pos = at.pos
	if a.Type, err = p.parseIdentifier(); err != nil {
		return a, err
	}
	switch p.cur.tok {
	case '(':
		p.advance()
		if a.Value, err = p.parseExpression(); err != nil {
			return a, err
		}
		if _, err := p.expect(')'); err != nil {
			return a, err
		}
	case '{':
		if a.Value, err = p.parseAggregate(); err != nil {
			return a, err
		}
	}
	return a, nil
}

func (p *markerParser) parseIdentifier() (Identifier, *ParseError) {
	first, err := p.expect(tokIdent)
	if err != nil {
		return Identifier{}, err
	}
	id := Identifier{Name: first.text, Pos: first.pos}
	if p.cur.tok == '.' {
		p.advance()
		second, err := p.expect(tokIdent)
		if err != nil {
			return Identifier{}, err
		}
		id.PackageAlias = id.Name
		id.Name = second.text
	}
	return id, nil
}

func (p *markerParser) parseExpression() (ExpressionNode, *ParseError) {
	switch p.cur.tok {
	case '{':
		return p.parseAggregate()
	case tokIdent:
		id, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return RefNode{Ident: id}, nil
	case tokTrue, tokFalse:
		l := LiteralNode{Val: constant.MakeBool(p.cur.tok == tokTrue), pos: p.cur.pos}
		p.advance()
		return l, nil
	case tokNil:
		l := LiteralNode{pos: p.cur.pos}
		p.advance()
		return l, nil
	case tokString, tokRune, tokInt, tokFloat:
		return p.parseLiteral(false, p.cur.pos)
	case '-':
		pos := p.cur.pos
		p.advance()
		if p.cur.tok != tokInt && p.cur.tok != tokFloat {
			return nil, p.unexpected("numeric literal")
		}
		return p.parseLiteral(true, pos)
	}
	return nil, p.unexpected("value")
}

var literalTokens = map[int]token.Token{
	tokString: token.STRING,
	tokRune:   token.CHAR,
	tokInt:    token.INT,
	tokFloat:  token.FLOAT,
}

func (p *markerParser) parseLiteral(negate bool, pos scanner.Position) (ExpressionNode, *ParseError) {
	v := constant.MakeFromLiteral(p.cur.text, literalTokens[p.cur.tok], 0)
	if v.Kind() == constant.Unknown {
		return nil, &ParseError{err: fmt.Errorf("malformed literal %s", p.cur.text), pos: p.cur.pos}
	}
	if negate {
		v = constant.UnaryOp(token.SUB, v, 0)
	}
	p.advance()
	return LiteralNode{Val: v, pos: pos}, nil
}

func (p *markerParser) parseAggregate() (ExpressionNode, *ParseError) {
	open, err := p.expect('{')
	if err != nil {
		return nil, err
	}
	agg := AggregateNode{pos: open.pos}
	for {
		// a closing brace may sit on its own line
		for p.cur.tok == tokEOL {
			p.advance()
		}
		if p.cur.tok == '}' {
			p.advance()
			return agg, nil
		}
		el, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		agg.Contents = append(agg.Contents, el)
		for p.cur.tok == tokEOL {
			p.advance()
		}
		switch p.cur.tok {
		case ',':
			p.advance()
		case '}':
		default:
			return nil, p.unexpected(`"," or "}"`)
		}
	}
}

func (p *markerParser) parseElement() (Element, *ParseError) {
	v, err := p.parseExpression()
	if err != nil {
		return Element{}, err
	}
	if p.cur.tok != ':' {
		return Element{Value: v}, nil
	}
	p.advance()
	val, err := p.parseExpression()
	if err != nil {
		return Element{}, err
	}
	return Element{Key: v, HasKey: true, Value: val}, nil
}
