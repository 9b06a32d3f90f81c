package lower

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// lexer splits DSL source into the small token set the parser consumes:
// identifiers (including the leading $/% of variable references), numbers,
// quoted strings, and single/double-character punctuation.
type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			l.pos++
			continue
		}
		break
	}
}

var twoCharPuncts = []string{"==", "!=", "<=", ">=", "&&", "||"}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}
	r := l.src[l.pos]

	if isIdentStart(r) || r == '$' || r == '%' {
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos])}, nil
	}

	if isDigit(r) || (r == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])) {
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.' || l.src[l.pos] == 'f') {
			l.pos++
		}
		return token{kind: tokNumber, text: string(l.src[start:l.pos])}, nil
	}

	if r == '"' {
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] != '"' {
			if l.src[l.pos] == '\\' {
				l.pos++
			}
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, fmt.Errorf("lower: unterminated string starting at %d", start)
		}
		l.pos++
		return token{kind: tokString, text: string(l.src[start:l.pos])}, nil
	}

	for _, two := range twoCharPuncts {
		if l.pos+1 < len(l.src) && string(l.src[l.pos:l.pos+2]) == two {
			l.pos += 2
			return token{kind: tokPunct, text: two}, nil
		}
	}

	l.pos++
	return token{kind: tokPunct, text: string(r)}, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// tokenize returns every token in src, EOF-terminated.
func tokenize(src string) ([]token, error) {
	l := newLexer(src)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func unquoteString(lit string) string {
	s := strings.TrimPrefix(lit, `"`)
	s = strings.TrimSuffix(s, `"`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}
