package compiler

import (
	"fmt"

	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

// Lexer holds all mutable state for a single scanning pass over src.
// Problems are recorded in sink; scanning never stops before end of input.
type Lexer struct {
	src  []rune
	pos  diagnostics.Position // position of the next rune to consume
	sink *diagnostics.Sink
}

func newLexer(src, filename string, sink *diagnostics.Sink) *Lexer {
	return &Lexer{src: []rune(src), pos: diagnostics.Start(src, filename), sink: sink}
}

func (l *Lexer) atEnd() bool {
	return l.pos.Index >= len(l.src)
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos.Index]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos.Index+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos.Index+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.atEnd() {
		return 0
	}
	r := l.src[l.pos.Index]
	l.pos.Advance(r)
	return r
}

func (l *Lexer) errorf(start diagnostics.Position, format string, args ...any) {
	l.sink.Add(start, l.pos, diagnostics.Lexical, fmt.Sprintf(format, args...))
}

// token builds a token spanning start up to the current position.
func (l *Lexer) token(tt TokenType, start diagnostics.Position) Token {
	return Token{Type: tt, Lexeme: string(l.src[start.Index:l.pos.Index]), Start: start, End: l.pos}
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// skipWhitespace discards blanks and '#' comments. A comment runs up to and
// including the next newline.
func (l *Lexer) skipWhitespace() {
	for !l.atEnd() {
		switch l.peek() {
		case ' ', '\t', '\r', '\n':
			l.advance()
		case '#':
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
			l.advance()
		default:
			return
		}
	}
}

// scanIdent collects an identifier, keyword or type name.
func (l *Lexer) scanIdent() Token {
	start := l.pos
	for !l.atEnd() && (isLetter(l.peek()) || isDigit(l.peek())) {
		l.advance()
	}
	tok := l.token(IDENT, start)
	if kw, ok := keywords[tok.Lexeme]; ok {
		tok.Type = kw
	} else if typeKeywords[tok.Lexeme] {
		tok.Type = TYPE
	}
	return tok
}

// scanNumber collects the longest run of digits and dots. A second dot ends
// the literal and is reported; it is left for the next token.
func (l *Lexer) scanNumber() Token {
	start := l.pos
	dots := 0
	for !l.atEnd() && (isDigit(l.peek()) || l.peek() == '.') {
		if l.peek() == '.' {
			if dots == 1 {
				l.errorf(start, "multiple decimal points in number")
				break
			}
			dots++
		}
		l.advance()
	}
	if dots == 0 {
		return l.token(INT, start)
	}
	return l.token(FLOAT, start)
}

// scanString collects a string literal. The lexeme is the raw text between
// the quotes; escape sequences are left for the code generator.
func (l *Lexer) scanString() Token {
	start := l.pos
	l.advance() // opening "
	for !l.atEnd() && l.peek() != '"' && l.peek() != '\n' {
		if l.peek() == '\\' && l.peek2() != 0 && l.peek2() != '\n' {
			l.advance()
		}
		l.advance()
	}
	if l.atEnd() || l.peek() != '"' {
		l.errorf(start, "unterminated string literal")
		return l.token(ILLEGAL, start)
	}
	l.advance() // closing "
	tok := l.token(STRING, start)
	tok.Lexeme = tok.Lexeme[1 : len(tok.Lexeme)-1]
	return tok
}

// nextToken scans one token at the current (non-blank) position. It returns
// false when the input was consumed without producing a token.
func (l *Lexer) nextToken() (Token, bool) {
	ch := l.peek()
	start := l.pos

	switch {
	case isLetter(ch):
		return l.scanIdent(), true
	case isDigit(ch):
		return l.scanNumber(), true
	case ch == '.':
		if isDigit(l.peek2()) {
			return l.scanNumber(), true
		}
		l.advance()
		l.errorf(start, "invalid decimal point")
		return Token{}, false
	case ch == '"':
		return l.scanString(), true
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '(':
		return l.token(LPAREN, start), true
	case ')':
		return l.token(RPAREN, start), true
	case ':':
		return l.token(COLON, start), true
	case ',':
		return l.token(COMMA, start), true
	case ';':
		return l.token(SEMICOLON, start), true
	case '+':
		return l.token(PLUS, start), true
	case '/':
		return l.token(SLASH, start), true
	case '%':
		return l.token(PERCENT, start), true
	case '^':
		return l.token(POW, start), true
	case '*':
		if l.peek() == '*' {
			l.advance()
			return l.token(POW, start), true
		}
		return l.token(ASTERISK, start), true
	case '-':
		if l.peek() == '>' {
			l.advance()
			return l.token(ARROW, start), true
		}
		return l.token(MINUS, start), true
	case '=':
		if l.peek() == '=' { // lookahead: distinguish = vs ==
			l.advance()
			return l.token(EQ_EQ, start), true
		}
		return l.token(EQ, start), true
	case '<':
		if l.peek() == '=' {
			l.advance()
			return l.token(LT_EQ, start), true
		}
		return l.token(LT, start), true
	case '>':
		if l.peek() == '=' {
			l.advance()
			return l.token(GT_EQ, start), true
		}
		return l.token(GT, start), true
	case '!':
		if l.peek() == '=' {
			l.advance()
			return l.token(NOT_EQ, start), true
		}
		l.errorf(start, "expected '=' after '!'")
		return l.token(ILLEGAL, start), true
	default:
		l.errorf(start, "illegal character %q", ch)
		return l.token(ILLEGAL, start), true
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// Lexical problems are recorded in sink and scanning carries on past them.
func Lex(src, filename string, sink *diagnostics.Sink) []Token {
	l := newLexer(src, filename, sink)
	var tokens []Token
	for {
		l.skipWhitespace()
		if l.atEnd() {
			return append(tokens, Token{Type: EOF, Start: l.pos, End: l.pos})
		}
		if tok, ok := l.nextToken(); ok {
			tokens = append(tokens, tok)
		}
	}
}
