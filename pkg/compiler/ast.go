package compiler

import (
	"fmt"
	"strings"

	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

// NodeKind is the discriminant of an AST node.
type NodeKind string

const (
	KindProgram             NodeKind = "Program"
	KindExpressionStatement NodeKind = "ExpressionStatement"
	KindVarStatement        NodeKind = "VarStatement"
	KindAssignStatement     NodeKind = "AssignStatement"
	KindFunctionStatement   NodeKind = "FunctionStatement"
	KindReturnStatement     NodeKind = "ReturnStatement"
	KindIfStatement         NodeKind = "IfStatement"
	KindWhileStatement      NodeKind = "WhileStatement"
	KindBreakStatement      NodeKind = "BreakStatement"
	KindContinueStatement   NodeKind = "ContinueStatement"
	KindInfixExpression     NodeKind = "InfixExpression"
	KindCallExpression      NodeKind = "CallExpression"
	KindIntegerLiteral      NodeKind = "IntegerLiteral"
	KindFloatLiteral        NodeKind = "FloatLiteral"
	KindBooleanLiteral      NodeKind = "BooleanLiteral"
	KindStringLiteral       NodeKind = "StringLiteral"
	KindIdentifierLiteral   NodeKind = "IdentifierLiteral"
)

// Node is implemented by every AST node.
type Node interface {
	Kind() NodeKind
	// Dump returns a nested key/value view of the node for debugging.
	Dump() map[string]any
	// Position is where the node starts in the source.
	Position() diagnostics.Position
	// End is just past the node's last token.
	End() diagnostics.Position
	String() string
}

// Expr is implemented by every node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

//  Expression nodes

// IntegerLiteral is an int constant.
type IntegerLiteral struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
	Value  int32
}

// FloatLiteral is a float constant.
type FloatLiteral struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
	Value  float64
}

// BooleanLiteral is true or false.
type BooleanLiteral struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
	Value  bool
}

// StringLiteral holds the raw text between the quotes; escapes are expanded
// when the literal is interned.
type StringLiteral struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
	Value  string
}

// IdentifierLiteral is a read of a named variable.
type IdentifierLiteral struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
	Value  string
}

// InfixExpression represents Left Operator Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Operator
//	Left
type InfixExpression struct {
	Pos      diagnostics.Position
	EndPos   diagnostics.Position
	Left     Expr
	Operator string
	Right    Expr
}

// CallExpression represents Function(Args...). The callee is always a name.
type CallExpression struct {
	Pos      diagnostics.Position
	EndPos   diagnostics.Position
	Function *IdentifierLiteral
	Args     []Expr
}

func (*IntegerLiteral) exprNode()    {}
func (*FloatLiteral) exprNode()      {}
func (*BooleanLiteral) exprNode()    {}
func (*StringLiteral) exprNode()     {}
func (*IdentifierLiteral) exprNode() {}
func (*InfixExpression) exprNode()   {}
func (*CallExpression) exprNode()    {}

func (*IntegerLiteral) Kind() NodeKind    { return KindIntegerLiteral }
func (*FloatLiteral) Kind() NodeKind      { return KindFloatLiteral }
func (*BooleanLiteral) Kind() NodeKind    { return KindBooleanLiteral }
func (*StringLiteral) Kind() NodeKind     { return KindStringLiteral }
func (*IdentifierLiteral) Kind() NodeKind { return KindIdentifierLiteral }
func (*InfixExpression) Kind() NodeKind   { return KindInfixExpression }
func (*CallExpression) Kind() NodeKind    { return KindCallExpression }

func (n *IntegerLiteral) Position() diagnostics.Position    { return n.Pos }
func (n *FloatLiteral) Position() diagnostics.Position      { return n.Pos }
func (n *BooleanLiteral) Position() diagnostics.Position    { return n.Pos }
func (n *StringLiteral) Position() diagnostics.Position     { return n.Pos }
func (n *IdentifierLiteral) Position() diagnostics.Position { return n.Pos }
func (n *InfixExpression) Position() diagnostics.Position   { return n.Pos }
func (n *CallExpression) Position() diagnostics.Position    { return n.Pos }

func (n *IntegerLiteral) End() diagnostics.Position    { return n.EndPos }
func (n *FloatLiteral) End() diagnostics.Position      { return n.EndPos }
func (n *BooleanLiteral) End() diagnostics.Position    { return n.EndPos }
func (n *StringLiteral) End() diagnostics.Position     { return n.EndPos }
func (n *IdentifierLiteral) End() diagnostics.Position { return n.EndPos }
func (n *InfixExpression) End() diagnostics.Position   { return n.EndPos }
func (n *CallExpression) End() diagnostics.Position    { return n.EndPos }

func (n *IntegerLiteral) String() string    { return fmt.Sprintf("%d", n.Value) }
func (n *FloatLiteral) String() string      { return fmt.Sprintf("%g", n.Value) }
func (n *BooleanLiteral) String() string    { return fmt.Sprintf("%t", n.Value) }
func (n *StringLiteral) String() string     { return `"` + n.Value + `"` }
func (n *IdentifierLiteral) String() string { return n.Value }
func (n *InfixExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Operator, n.Right)
}
func (n *CallExpression) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", n.Function, strings.Join(args, ", "))
}

func (n *IntegerLiteral) Dump() map[string]any {
	return map[string]any{"type": n.Kind(), "value": n.Value}
}

func (n *FloatLiteral) Dump() map[string]any {
	return map[string]any{"type": n.Kind(), "value": n.Value}
}

func (n *BooleanLiteral) Dump() map[string]any {
	return map[string]any{"type": n.Kind(), "value": n.Value}
}

func (n *StringLiteral) Dump() map[string]any {
	return map[string]any{"type": n.Kind(), "value": n.Value}
}

func (n *IdentifierLiteral) Dump() map[string]any {
	return map[string]any{"type": n.Kind(), "value": n.Value}
}

func (n *InfixExpression) Dump() map[string]any {
	return map[string]any{
		"type":     n.Kind(),
		"left":     n.Left.Dump(),
		"operator": n.Operator,
		"right":    n.Right.Dump(),
	}
}

func (n *CallExpression) Dump() map[string]any {
	return map[string]any{
		"type":     n.Kind(),
		"function": n.Function.Dump(),
		"args":     dumpList(n.Args),
	}
}

//  Statement nodes

// ExpressionStatement evaluates Expr and discards the result.
type ExpressionStatement struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
	Expr   Expr
}

// VarStatement declares Name with storage of ValueType.
//
//	var x: int = 10;
//	    ^  ^^^   ^^  VarStatement{Name: "x", ValueType: "int", Value: 10}
type VarStatement struct {
	Pos       diagnostics.Position
	EndPos    diagnostics.Position
	Name      *IdentifierLiteral
	ValueType string
	Value     Expr
}

// AssignStatement stores Value into an already declared variable.
type AssignStatement struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
	Name   *IdentifierLiteral
	Value  Expr
}

// Param is one function parameter.
type Param struct {
	Name *IdentifierLiteral
	Type string
}

// FunctionStatement declares a function.
//
//	def add(a: int, b: int) -> int: ... end
type FunctionStatement struct {
	Pos        diagnostics.Position
	EndPos     diagnostics.Position
	Name       *IdentifierLiteral
	Params     []Param
	ReturnType string
	Body       []Stmt
}

// ReturnStatement returns Value; Value is nil for a bare return.
type ReturnStatement struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
	Value  Expr
}

// IfStatement is a two-way branch. An empty ElseBody means no else clause;
// elif is an IfStatement as the only element of ElseBody.
type IfStatement struct {
	Pos       diagnostics.Position
	EndPos    diagnostics.Position
	Condition Expr
	Body      []Stmt
	ElseBody  []Stmt
}

type WhileStatement struct {
	Pos       diagnostics.Position
	EndPos    diagnostics.Position
	Condition Expr
	Body      []Stmt
}

type BreakStatement struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
}

type ContinueStatement struct {
	Pos    diagnostics.Position
	EndPos diagnostics.Position
}

func (*ExpressionStatement) stmtNode() {}
func (*VarStatement) stmtNode()        {}
func (*AssignStatement) stmtNode()     {}
func (*FunctionStatement) stmtNode()   {}
func (*ReturnStatement) stmtNode()     {}
func (*IfStatement) stmtNode()         {}
func (*WhileStatement) stmtNode()      {}
func (*BreakStatement) stmtNode()      {}
func (*ContinueStatement) stmtNode()   {}

func (*ExpressionStatement) Kind() NodeKind { return KindExpressionStatement }
func (*VarStatement) Kind() NodeKind        { return KindVarStatement }
func (*AssignStatement) Kind() NodeKind     { return KindAssignStatement }
func (*FunctionStatement) Kind() NodeKind   { return KindFunctionStatement }
func (*ReturnStatement) Kind() NodeKind     { return KindReturnStatement }
func (*IfStatement) Kind() NodeKind         { return KindIfStatement }
func (*WhileStatement) Kind() NodeKind      { return KindWhileStatement }
func (*BreakStatement) Kind() NodeKind      { return KindBreakStatement }
func (*ContinueStatement) Kind() NodeKind   { return KindContinueStatement }

func (n *ExpressionStatement) Position() diagnostics.Position { return n.Pos }
func (n *VarStatement) Position() diagnostics.Position        { return n.Pos }
func (n *AssignStatement) Position() diagnostics.Position     { return n.Pos }
func (n *FunctionStatement) Position() diagnostics.Position   { return n.Pos }
func (n *ReturnStatement) Position() diagnostics.Position     { return n.Pos }
func (n *IfStatement) Position() diagnostics.Position         { return n.Pos }
func (n *WhileStatement) Position() diagnostics.Position      { return n.Pos }
func (n *BreakStatement) Position() diagnostics.Position      { return n.Pos }
func (n *ContinueStatement) Position() diagnostics.Position   { return n.Pos }

func (n *ExpressionStatement) End() diagnostics.Position { return n.EndPos }
func (n *VarStatement) End() diagnostics.Position        { return n.EndPos }
func (n *AssignStatement) End() diagnostics.Position     { return n.EndPos }
func (n *FunctionStatement) End() diagnostics.Position   { return n.EndPos }
func (n *ReturnStatement) End() diagnostics.Position     { return n.EndPos }
func (n *IfStatement) End() diagnostics.Position         { return n.EndPos }
func (n *WhileStatement) End() diagnostics.Position      { return n.EndPos }
func (n *BreakStatement) End() diagnostics.Position      { return n.EndPos }
func (n *ContinueStatement) End() diagnostics.Position   { return n.EndPos }

func (n *ExpressionStatement) String() string { return n.Expr.String() + ";" }
func (n *VarStatement) String() string {
	return fmt.Sprintf("var %s: %s = %s;", n.Name, n.ValueType, n.Value)
}
func (n *AssignStatement) String() string { return fmt.Sprintf("%s = %s;", n.Name, n.Value) }
func (n *FunctionStatement) String() string {
	params := make([]string, len(n.Params))
	for i, p := range n.Params {
		params[i] = p.Name.Value + ": " + p.Type
	}
	return fmt.Sprintf("def %s(%s) -> %s: %s end", n.Name, strings.Join(params, ", "), n.ReturnType, blockString(n.Body))
}
func (n *ReturnStatement) String() string {
	if n.Value == nil {
		return "return;"
	}
	return fmt.Sprintf("return %s;", n.Value)
}
func (n *IfStatement) String() string {
	if len(n.ElseBody) == 0 {
		return fmt.Sprintf("if %s: %s end", n.Condition, blockString(n.Body))
	}
	return fmt.Sprintf("if %s: %s else: %s end", n.Condition, blockString(n.Body), blockString(n.ElseBody))
}
func (n *WhileStatement) String() string {
	return fmt.Sprintf("while %s: %s end", n.Condition, blockString(n.Body))
}
func (*BreakStatement) String() string    { return "break;" }
func (*ContinueStatement) String() string { return "continue;" }

func (n *ExpressionStatement) Dump() map[string]any {
	return map[string]any{"type": n.Kind(), "expr": n.Expr.Dump()}
}

func (n *VarStatement) Dump() map[string]any {
	return map[string]any{
		"type":       n.Kind(),
		"name":       n.Name.Dump(),
		"value_type": n.ValueType,
		"value":      n.Value.Dump(),
	}
}

func (n *AssignStatement) Dump() map[string]any {
	return map[string]any{"type": n.Kind(), "name": n.Name.Dump(), "value": n.Value.Dump()}
}

func (n *FunctionStatement) Dump() map[string]any {
	params := make([]any, len(n.Params))
	for i, p := range n.Params {
		params[i] = map[string]any{"name": p.Name.Value, "value_type": p.Type}
	}
	return map[string]any{
		"type":        n.Kind(),
		"name":        n.Name.Dump(),
		"params":      params,
		"return_type": n.ReturnType,
		"body":        dumpList(n.Body),
	}
}

func (n *ReturnStatement) Dump() map[string]any {
	out := map[string]any{"type": n.Kind(), "value": nil}
	if n.Value != nil {
		out["value"] = n.Value.Dump()
	}
	return out
}

func (n *IfStatement) Dump() map[string]any {
	return map[string]any{
		"type":      n.Kind(),
		"condition": n.Condition.Dump(),
		"body":      dumpList(n.Body),
		"else_body": dumpList(n.ElseBody),
	}
}

func (n *WhileStatement) Dump() map[string]any {
	return map[string]any{
		"type":      n.Kind(),
		"condition": n.Condition.Dump(),
		"body":      dumpList(n.Body),
	}
}

func (n *BreakStatement) Dump() map[string]any    { return map[string]any{"type": n.Kind()} }
func (n *ContinueStatement) Dump() map[string]any { return map[string]any{"type": n.Kind()} }

// Program is the root of the tree.
type Program struct {
	Statements []Stmt
}

func (*Program) Kind() NodeKind                 { return KindProgram }
func (*Program) Position() diagnostics.Position { return diagnostics.Position{} }
func (*Program) End() diagnostics.Position      { return diagnostics.Position{} }
func (p *Program) String() string               { return blockString(p.Statements) }
func (p *Program) Dump() map[string]any {
	return map[string]any{"type": p.Kind(), "statements": dumpList(p.Statements)}
}

func dumpList[T Node](nodes []T) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = n.Dump()
	}
	return out
}

func blockString(stmts []Stmt) string {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}
