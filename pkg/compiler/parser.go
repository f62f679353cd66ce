package compiler

import (
	"fmt"
	"strconv"

	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program    = statement* EOF
//	statement  = varStmt | funcStmt | returnStmt | ifStmt | whileStmt
//	           | "break" ";" | "continue" ";" | assignment | exprStmt
//	varStmt    = "var" IDENT ":" TYPE "=" expression ";"
//	funcStmt   = "def" IDENT "(" (param ("," param)*)? ")" "->" TYPE ":" statement* "end" ";"?
//	param      = IDENT ":" TYPE
//	returnStmt = "return" expression? ";"
//	ifStmt     = "if" expression ":" statement* ("elif" expression ":" statement*)*
//	             ("else" ":" statement*)? "end" ";"?
//	whileStmt  = "while" expression ":" statement* "end" ";"?
//	assignment = IDENT "=" expression ";"
//	exprStmt   = expression ";"
//
// Expressions are parsed by precedence climbing; see precedences.
type Parser struct {
	tokens []Token
	pos    int
	sink   *diagnostics.Sink

	prefixFns map[TokenType]prefixParseFn
	infixFns  map[TokenType]infixParseFn
}

type (
	prefixParseFn func() (Expr, error)
	infixParseFn  func(left Expr) (Expr, error)
)

type precedence int

// Binding powers, lowest first.
const (
	LOWEST precedence = iota
	EQUALS
	LESSGREATER
	SUM
	PRODUCT
	EXPONENT
	CALL
)

var precedences = map[TokenType]precedence{
	EQ_EQ:    EQUALS,
	NOT_EQ:   EQUALS,
	LT:       LESSGREATER,
	GT:       LESSGREATER,
	LT_EQ:    LESSGREATER,
	GT_EQ:    LESSGREATER,
	PLUS:     SUM,
	MINUS:    SUM,
	ASTERISK: PRODUCT,
	SLASH:    PRODUCT,
	PERCENT:  PRODUCT,
	POW:      EXPONENT,
	LPAREN:   CALL,
}

// SyntaxError is the failure outcome of a parse attempt. Sync lists the
// tokens the parser skips to before resuming.
type SyntaxError struct {
	Diag diagnostics.Diagnostic
	Sync []TokenType
}

func (e *SyntaxError) Error() string { return e.Diag.Error() }

// NewParser prepares a parser over tokens, which must end with EOF.
// Diagnostics are recorded in sink.
func NewParser(tokens []Token, sink *diagnostics.Sink) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		var end diagnostics.Position
		if len(tokens) > 0 {
			end = tokens[len(tokens)-1].End
		}
		tokens = append(tokens[:len(tokens):len(tokens)], Token{Type: EOF, Start: end, End: end})
	}
	p := &Parser{tokens: tokens, sink: sink}
	p.prefixFns = map[TokenType]prefixParseFn{
		INT:    p.parseIntegerLiteral,
		FLOAT:  p.parseFloatLiteral,
		STRING: p.parseStringLiteral,
		IDENT:  p.parseIdentifier,
		TRUE:   p.parseBooleanLiteral,
		FALSE:  p.parseBooleanLiteral,
		LPAREN: p.parseGroupedExpression,
	}
	p.infixFns = map[TokenType]infixParseFn{LPAREN: p.parseCallExpression}
	for _, tt := range []TokenType{EQ_EQ, NOT_EQ, LT, GT, LT_EQ, GT_EQ, PLUS, MINUS, ASTERISK, SLASH, PERCENT, POW} {
		p.infixFns[tt] = p.parseInfixExpression
	}
	return p
}

// Parse builds a Program from tokens. Malformed statements are reported to
// sink and skipped; the rest of the input is still parsed.
func Parse(tokens []Token, sink *diagnostics.Sink) *Program {
	return NewParser(tokens, sink).ParseProgram()
}

// cur returns the current token without consuming it.
func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

// peek returns the token after the current one.
func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

// advance consumes and returns the current token. EOF is never consumed.
func (p *Parser) advance() Token {
	tok := p.cur()
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) curIs(types ...TokenType) bool {
	t := p.cur().Type
	for _, tt := range types {
		if t == tt {
			return true
		}
	}
	return false
}

func describe(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of input"
	case STRING:
		return "string literal"
	}
	return fmt.Sprintf("'%s'", tok.Lexeme)
}

// errorf builds a SyntaxError at tok that synchronizes on ';'.
func (p *Parser) errorf(tok Token, format string, args ...any) *SyntaxError {
	return p.errorSync(tok, []TokenType{SEMICOLON}, format, args...)
}

func (p *Parser) errorSync(tok Token, sync []TokenType, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Diag: diagnostics.MakeDiag(tok.Start, tok.End, diagnostics.Syntax, fmt.Sprintf(format, args...)),
		Sync: sync,
	}
}

// lastEnd is the end of the most recently consumed token.
func (p *Parser) lastEnd() diagnostics.Position {
	if p.pos == 0 {
		return p.cur().Start
	}
	return p.tokens[p.pos-1].End
}

// expect consumes the current token if it has type tt, otherwise it fails
// without consuming anything. what names the token in the message.
func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	tok := p.cur()
	if tok.Type != tt {
		return tok, p.errorf(tok, "expected %s, got %s", what, describe(tok))
	}
	return p.advance(), nil
}

// synchronize records a failed parse attempt and skips to its sync point: the
// first sync token (or EOF) is found and the token after it becomes current.
func (p *Parser) synchronize(err error) {
	sync := []TokenType{SEMICOLON}
	var se *SyntaxError
	if e, ok := err.(*SyntaxError); ok {
		se = e
		sync = e.Sync
	} else {
		tok := p.cur()
		se = p.errorf(tok, "%v", err)
	}
	p.sink.Append(se.Diag)

	for !p.curIs(EOF) && !p.curIs(sync...) {
		p.advance()
	}
	p.advance()
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	for !p.curIs(EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			p.synchronize(err)
			continue
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog
}

// parseBlock parses statements until one of the terminators (or EOF) is
// current. The terminator is not consumed. Failed statements are reported
// and skipped like top-level ones.
func (p *Parser) parseBlock(terminators ...TokenType) []Stmt {
	var body []Stmt
	for !p.curIs(EOF) && !p.curIs(terminators...) {
		stmt, err := p.parseStatement()
		if err != nil {
			p.synchronize(err)
			continue
		}
		body = append(body, stmt)
	}
	return body
}

func (p *Parser) parseStatement() (Stmt, error) {
	switch p.cur().Type {
	case VAR:
		return p.parseVarStatement()
	case DEF:
		return p.parseFunctionStatement()
	case RETURN:
		return p.parseReturnStatement()
	case IF:
		return p.parseIfStatement()
	case WHILE:
		return p.parseWhileStatement()
	case BREAK:
		tok := p.advance()
		if _, err := p.expect(SEMICOLON, "';' after 'break'"); err != nil {
			return nil, err
		}
		return &BreakStatement{Pos: tok.Start, EndPos: p.lastEnd()}, nil
	case CONTINUE:
		tok := p.advance()
		if _, err := p.expect(SEMICOLON, "';' after 'continue'"); err != nil {
			return nil, err
		}
		return &ContinueStatement{Pos: tok.Start, EndPos: p.lastEnd()}, nil
	case IDENT:
		if p.peek().Type == EQ {
			return p.parseAssignStatement()
		}
	case END, ELIF, ELSE:
		tok := p.cur()
		return nil, p.errorSync(tok, []TokenType{tok.Type}, "unexpected %s outside of a block", describe(tok))
	}
	return p.parseExpressionStatement()
}

// parseVarStatement handles: var IDENT ':' TYPE '=' expression ';'
func (p *Parser) parseVarStatement() (Stmt, error) {
	start := p.advance()
	name, err := p.expect(IDENT, "variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON, "':' after variable name"); err != nil {
		return nil, err
	}
	typ, err := p.expect(TYPE, "type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(EQ, "'=' in variable declaration"); err != nil {
		return nil, err
	}
	value, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, "';' after variable declaration"); err != nil {
		return nil, err
	}
	return &VarStatement{
		Pos:       start.Start,
		EndPos:    p.lastEnd(),
		Name:      &IdentifierLiteral{Pos: name.Start, EndPos: name.End, Value: name.Lexeme},
		ValueType: typ.Lexeme,
		Value:     value,
	}, nil
}

// parseAssignStatement handles: IDENT '=' expression ';'
func (p *Parser) parseAssignStatement() (Stmt, error) {
	name := p.advance()
	p.advance() // =
	value, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, "';' after assignment"); err != nil {
		return nil, err
	}
	return &AssignStatement{
		Pos:    name.Start,
		EndPos: p.lastEnd(),
		Name:   &IdentifierLiteral{Pos: name.Start, EndPos: name.End, Value: name.Lexeme},
		Value:  value,
	}, nil
}

func (p *Parser) parseFunctionStatement() (Stmt, error) {
	start := p.advance()
	name, err := p.expect(IDENT, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN, "'(' after function name"); err != nil {
		return nil, err
	}

	var params []Param
	for !p.curIs(RPAREN) {
		if len(params) > 0 {
			if _, err := p.expect(COMMA, "',' between parameters"); err != nil {
				return nil, err
			}
		}
		pname, err := p.expect(IDENT, "parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON, "':' after parameter name"); err != nil {
			return nil, err
		}
		ptype, err := p.expect(TYPE, "parameter type")
		if err != nil {
			return nil, err
		}
		params = append(params, Param{
			Name: &IdentifierLiteral{Pos: pname.Start, EndPos: pname.End, Value: pname.Lexeme},
			Type: ptype.Lexeme,
		})
	}
	p.advance() // )

	if _, err := p.expect(ARROW, "'->' before return type"); err != nil {
		return nil, err
	}
	ret, err := p.expect(TYPE, "return type")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON, "':' before function body"); err != nil {
		return nil, err
	}

	body := p.parseBlock(END)
	if err := p.closeBlock(start); err != nil {
		return nil, err
	}
	return &FunctionStatement{
		Pos:        start.Start,
		EndPos:     p.lastEnd(),
		Name:       &IdentifierLiteral{Pos: name.Start, EndPos: name.End, Value: name.Lexeme},
		Params:     params,
		ReturnType: ret.Lexeme,
		Body:       body,
	}, nil
}

// closeBlock consumes the 'end' of a block opened by opener and an optional
// trailing ';'.
func (p *Parser) closeBlock(opener Token) error {
	if _, err := p.expect(END, fmt.Sprintf("'end' to close '%s'", opener.Lexeme)); err != nil {
		return err
	}
	if p.curIs(SEMICOLON) {
		p.advance()
	}
	return nil
}

// parseReturnStatement handles: return expression? ';'
func (p *Parser) parseReturnStatement() (Stmt, error) {
	start := p.advance()
	stmt := &ReturnStatement{Pos: start.Start}
	if !p.curIs(SEMICOLON) {
		value, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		stmt.Value = value
	}
	if _, err := p.expect(SEMICOLON, "';' after return"); err != nil {
		return nil, err
	}
	stmt.EndPos = p.lastEnd()
	return stmt, nil
}

func (p *Parser) parseIfStatement() (Stmt, error) {
	opener := p.cur()
	stmt, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if err := p.closeBlock(opener); err != nil {
		return nil, err
	}
	stmt.EndPos = p.lastEnd()
	return stmt, nil
}

// parseConditional parses an if or elif arm and everything chained after it,
// stopping in front of the closing 'end'.
func (p *Parser) parseConditional() (*IfStatement, error) {
	start := p.advance() // if / elif
	cond, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON, fmt.Sprintf("':' after '%s' condition", start.Lexeme)); err != nil {
		return nil, err
	}
	stmt := &IfStatement{Pos: start.Start, Condition: cond}
	stmt.Body = p.parseBlock(ELIF, ELSE, END)

	switch p.cur().Type {
	case ELIF:
		elif, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		stmt.ElseBody = []Stmt{elif}
	case ELSE:
		p.advance()
		if _, err := p.expect(COLON, "':' after 'else'"); err != nil {
			return nil, err
		}
		stmt.ElseBody = p.parseBlock(END)
	}
	stmt.EndPos = p.lastEnd()
	return stmt, nil
}

func (p *Parser) parseWhileStatement() (Stmt, error) {
	start := p.advance()
	cond, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON, "':' after 'while' condition"); err != nil {
		return nil, err
	}
	body := p.parseBlock(END)
	if err := p.closeBlock(start); err != nil {
		return nil, err
	}
	return &WhileStatement{Pos: start.Start, EndPos: p.lastEnd(), Condition: cond, Body: body}, nil
}

func (p *Parser) parseExpressionStatement() (Stmt, error) {
	start := p.cur()
	expr, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, "';' after expression"); err != nil {
		return nil, err
	}
	return &ExpressionStatement{Pos: start.Start, EndPos: p.lastEnd(), Expr: expr}, nil
}

//  Expressions

// parseExpression folds infix operators into left as long as they bind
// tighter than prec.
func (p *Parser) parseExpression(prec precedence) (Expr, error) {
	prefix := p.prefixFns[p.cur().Type]
	if prefix == nil {
		return nil, p.errorf(p.cur(), "expected expression, got %s", describe(p.cur()))
	}
	left, err := prefix()
	if err != nil {
		return nil, err
	}

	for !p.curIs(SEMICOLON) && prec < p.curPrecedence() {
		infix := p.infixFns[p.cur().Type]
		if infix == nil {
			return left, nil
		}
		if left, err = infix(left); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) curPrecedence() precedence {
	if prec, ok := precedences[p.cur().Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) parseInfixExpression(left Expr) (Expr, error) {
	op := p.advance()
	prec := precedences[op.Type]
	// Exponent is right-associative: let another ^ bind on the right.
	if op.Type == POW {
		prec--
	}
	right, err := p.parseExpression(prec)
	if err != nil {
		return nil, err
	}
	return &InfixExpression{Pos: left.Position(), EndPos: right.End(), Left: left, Operator: op.Lexeme, Right: right}, nil
}

func (p *Parser) parseCallExpression(callee Expr) (Expr, error) {
	lparen := p.advance()
	fn, ok := callee.(*IdentifierLiteral)
	if !ok {
		return nil, p.errorf(lparen, "cannot call %s: only named functions can be called", callee)
	}
	call := &CallExpression{Pos: fn.Pos, Function: fn}
	for !p.curIs(RPAREN) {
		if len(call.Args) > 0 {
			if _, err := p.expect(COMMA, "',' or ')' in argument list"); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	call.EndPos = p.advance().End // )
	return call, nil
}

func (p *Parser) parseGroupedExpression() (Expr, error) {
	p.advance() // (
	expr, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN, "')' after expression"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseIntegerLiteral() (Expr, error) {
	tok := p.cur()
	v, err := strconv.ParseInt(tok.Lexeme, 10, 32)
	if err != nil {
		return nil, p.errorf(tok, "integer literal %s out of range", tok.Lexeme)
	}
	p.advance()
	return &IntegerLiteral{Pos: tok.Start, EndPos: tok.End, Value: int32(v)}, nil
}

func (p *Parser) parseFloatLiteral() (Expr, error) {
	tok := p.cur()
	v, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		return nil, p.errorf(tok, "invalid float literal %s", tok.Lexeme)
	}
	p.advance()
	return &FloatLiteral{Pos: tok.Start, EndPos: tok.End, Value: v}, nil
}

func (p *Parser) parseBooleanLiteral() (Expr, error) {
	tok := p.advance()
	return &BooleanLiteral{Pos: tok.Start, EndPos: tok.End, Value: tok.Type == TRUE}, nil
}

func (p *Parser) parseStringLiteral() (Expr, error) {
	tok := p.advance()
	return &StringLiteral{Pos: tok.Start, EndPos: tok.End, Value: tok.Lexeme}, nil
}

func (p *Parser) parseIdentifier() (Expr, error) {
	tok := p.advance()
	return &IdentifierLiteral{Pos: tok.Start, EndPos: tok.End, Value: tok.Lexeme}, nil
}
