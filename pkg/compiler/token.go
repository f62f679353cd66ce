package compiler

import (
	"fmt"

	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF     TokenType = iota // sentinel: end of input
	ILLEGAL                  // unrecognised input, already reported

	// Literals
	IDENT  // variable / function name
	INT    // 42
	FLOAT  // 3.14, .5
	STRING // "..." (raw text, escapes expanded at intern time)
	TYPE   // int float bool str void

	// Keywords
	VAR      // "var"
	DEF      // "def"
	RETURN   // "return"
	IF       // "if"
	ELIF     // "elif"
	ELSE     // "else"
	END      // "end"
	WHILE    // "while"
	BREAK    // "break"
	CONTINUE // "continue"
	TRUE     // "true"
	FALSE    // "false"

	// Punctuation
	LPAREN    // (
	RPAREN    // )
	COLON     // :
	COMMA     // ,
	SEMICOLON // ;
	ARROW     // ->

	// Arithmetic operators
	PLUS     // +
	MINUS    // -
	ASTERISK // *
	SLASH    // /
	PERCENT  // %
	POW      // ^ or **

	// Assignment / comparison
	EQ     // =
	EQ_EQ  // ==
	NOT_EQ // !=
	LT     // <
	GT     // >
	LT_EQ  // <=
	GT_EQ  // >=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:       "EOF",
	ILLEGAL:   "ILLEGAL",
	IDENT:     "IDENT",
	INT:       "INT",
	FLOAT:     "FLOAT",
	STRING:    "STRING",
	TYPE:      "TYPE",
	VAR:       "VAR",
	DEF:       "DEF",
	RETURN:    "RETURN",
	IF:        "IF",
	ELIF:      "ELIF",
	ELSE:      "ELSE",
	END:       "END",
	WHILE:     "WHILE",
	BREAK:     "BREAK",
	CONTINUE:  "CONTINUE",
	TRUE:      "TRUE",
	FALSE:     "FALSE",
	LPAREN:    "LPAREN",
	RPAREN:    "RPAREN",
	COLON:     "COLON",
	COMMA:     "COMMA",
	SEMICOLON: "SEMICOLON",
	ARROW:     "ARROW",
	PLUS:      "PLUS",
	MINUS:     "MINUS",
	ASTERISK:  "ASTERISK",
	SLASH:     "SLASH",
	PERCENT:   "PERCENT",
	POW:       "POW",
	EQ:        "EQ",
	EQ_EQ:     "EQ_EQ",
	NOT_EQ:    "NOT_EQ",
	LT:        "LT",
	GT:        "GT",
	LT_EQ:     "LT_EQ",
	GT_EQ:     "GT_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"var":      VAR,
	"def":      DEF,
	"return":   RETURN,
	"if":       IF,
	"elif":     ELIF,
	"else":     ELSE,
	"end":      END,
	"while":    WHILE,
	"break":    BREAK,
	"continue": CONTINUE,
	"true":     TRUE,
	"false":    FALSE,
}

// typeKeywords are the built-in type names; they lex as TYPE tokens.
var typeKeywords = map[string]bool{
	"int":   true,
	"float": true,
	"bool":  true,
	"str":   true,
	"void":  true,
}

// Token is a single lexical unit produced by the Lexer. End is exclusive.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Start  diagnostics.Position
	End    diagnostics.Position
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  %d:%d", t.Type, t.Lexeme, t.Start.Line, t.Start.Col)
}
