package compiler

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

// GenError is a fatal code generation failure. Generation stops at the
// first one. Pos and End span the offending node.
type GenError struct {
	Pos diagnostics.Position
	End diagnostics.Position
	Msg string
}

func (e *GenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Diagnostic converts e for reporting next to lexical and syntax errors.
func (e *GenError) Diagnostic() diagnostics.Diagnostic {
	return diagnostics.MakeDiag(e.Pos, e.End, diagnostics.Compile, e.Msg)
}

// operand is a generated value with its source type.
type operand struct {
	v value.Value
	t Type
}

type loopTargets struct {
	exit   *ir.Block // break
	retest *ir.Block // continue
}

// genContext is the insertion state for one function body. Each function
// gets its own; nothing in it outlives the body.
type genContext struct {
	fn      *ir.Func
	entry   *ir.Block
	block   *ir.Block // current insertion point
	scope   ScopeID
	loops   []loopTargets
	retType Type
	allocas int // hoisted allocas at the top of entry
}

// Generator lowers a Program into an LLVM IR module.
type Generator struct {
	module    *ir.Module
	syms      *SymbolTable
	builtins  *builtins
	strings   *stringPool
	funcs     map[string]bool // names of user functions already in the module
	nextBlock int
}

// NewGenerator creates a module for filename with the built-ins declared.
func NewGenerator(filename string) *Generator {
	m := ir.NewModule()
	m.SourceFilename = filename
	syms := NewSymbolTable()
	return &Generator{
		module:   m,
		syms:     syms,
		builtins: declareBuiltins(m, syms),
		strings:  newStringPool(m),
		funcs:    make(map[string]bool),
	}
}

// Generate lowers prog into a fresh module. Top-level statements become the
// body of main, which returns 0 unless the program returns first.
func Generate(prog *Program, filename string) (*ir.Module, error) {
	return NewGenerator(filename).Generate(prog)
}

func (g *Generator) Generate(prog *Program) (*ir.Module, error) {
	mainFn := g.module.NewFunc(entryFunc, types.I32)
	scope := g.syms.EnterFunction(g.syms.Root(), entryFunc)
	ctx := g.newContext(mainFn, scope, TypeInt)

	if err := g.genBlock(ctx, prog.Statements); err != nil {
		return nil, err
	}
	if ctx.block.Term == nil {
		ctx.block.NewRet(constant.NewInt(types.I32, 0))
	}
	g.syms.ExitFunction(scope)
	return g.module, nil
}

// Symbols exposes the scope arena, mainly for debugging output.
func (g *Generator) Symbols() *SymbolTable {
	return g.syms
}

func (g *Generator) newContext(fn *ir.Func, scope ScopeID, ret Type) *genContext {
	entry := fn.NewBlock(fn.Name() + ".entry")
	return &genContext{fn: fn, entry: entry, block: entry, scope: scope, retType: ret}
}

func (g *Generator) errorf(n Node, format string, args ...any) *GenError {
	return &GenError{Pos: n.Position(), End: n.End(), Msg: fmt.Sprintf(format, args...)}
}

// newBlock creates a detached block; place appends it to the function once
// code is about to be emitted into it, so blocks print in source order.
func (g *Generator) newBlock(prefix string, id int) *ir.Block {
	return ir.NewBlock(fmt.Sprintf("%s.%d", prefix, id))
}

func (g *Generator) place(ctx *genContext, b *ir.Block) {
	b.Parent = ctx.fn
	ctx.fn.Blocks = append(ctx.fn.Blocks, b)
	ctx.block = b
}

func (g *Generator) nextID() int {
	id := g.nextBlock
	g.nextBlock++
	return id
}

// alloca reserves named storage at the top of the entry block.
func (g *Generator) alloca(ctx *genContext, t Type, name string) *ir.InstAlloca {
	a := ir.NewAlloca(t.IR())
	a.SetName(name)
	insts := append(ctx.entry.Insts, nil)
	copy(insts[ctx.allocas+1:], insts[ctx.allocas:])
	insts[ctx.allocas] = a
	ctx.entry.Insts = insts
	ctx.allocas++
	return a
}

//  Statements

func (g *Generator) genBlock(ctx *genContext, stmts []Stmt) error {
	for _, stmt := range stmts {
		if err := g.genStmt(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genStmt(ctx *genContext, stmt Stmt) error {
	// Code after return/break/continue still has to live in some block.
	if ctx.block.Term != nil {
		g.place(ctx, g.newBlock("dead", g.nextID()))
	}

	switch s := stmt.(type) {
	case *ExpressionStatement:
		_, err := g.genExpr(ctx, s.Expr)
		return err
	case *VarStatement:
		return g.genVar(ctx, s)
	case *AssignStatement:
		return g.genAssign(ctx, s)
	case *FunctionStatement:
		return g.genFunction(ctx, s)
	case *ReturnStatement:
		return g.genReturn(ctx, s)
	case *IfStatement:
		return g.genIf(ctx, s)
	case *WhileStatement:
		return g.genWhile(ctx, s)
	case *BreakStatement:
		if len(ctx.loops) == 0 {
			return g.errorf(s, "'break' outside of a loop")
		}
		ctx.block.NewBr(ctx.loops[len(ctx.loops)-1].exit)
		return nil
	case *ContinueStatement:
		if len(ctx.loops) == 0 {
			return g.errorf(s, "'continue' outside of a loop")
		}
		ctx.block.NewBr(ctx.loops[len(ctx.loops)-1].retest)
		return nil
	default:
		return g.errorf(stmt, "unsupported statement %s", stmt.Kind())
	}
}

// genVar allocates storage of the declared type. A name already declared
// in the same function scope is reassigned instead.
func (g *Generator) genVar(ctx *genContext, s *VarStatement) error {
	name := s.Name.Value
	declared, ok := typeFromName(s.ValueType)
	if !ok || declared == TypeVoid {
		return g.errorf(s, "variable '%s' cannot have type %s", name, s.ValueType)
	}
	val, err := g.genExpr(ctx, s.Value)
	if err != nil {
		return err
	}
	val, err = g.coerce(ctx, val, declared, s.Value)
	if err != nil {
		return err
	}

	if sym, ok := g.syms.LookupLocal(ctx.scope, name); ok {
		if sym.Kind != SymLocal {
			return g.errorf(s.Name, "'%s' is already declared as a %s", name, sym.Kind)
		}
		if sym.Type != declared {
			return g.errorf(s.Name, "'%s' redeclared as %s, previously declared as %s", name, declared, sym.Type)
		}
		ctx.block.NewStore(val.v, sym.Value)
		return nil
	}

	slot := g.alloca(ctx, declared, name)
	ctx.block.NewStore(val.v, slot)
	g.syms.Define(ctx.scope, Symbol{Name: name, Kind: SymLocal, Value: slot, Type: declared})
	return nil
}

func (g *Generator) genAssign(ctx *genContext, s *AssignStatement) error {
	name := s.Name.Value
	sym, ok := g.syms.Lookup(ctx.scope, name)
	if !ok {
		return g.errorf(s.Name, "identifier '%s' has not been declared", name)
	}
	if sym.Kind != SymLocal {
		return g.errorf(s.Name, "cannot assign to %s '%s'", sym.Kind, name)
	}
	val, err := g.genExpr(ctx, s.Value)
	if err != nil {
		return err
	}
	val, err = g.coerce(ctx, val, sym.Type, s.Value)
	if err != nil {
		return err
	}
	ctx.block.NewStore(val.v, sym.Value)
	return nil
}

func (g *Generator) genFunction(ctx *genContext, s *FunctionStatement) error {
	name := s.Name.Value
	if reservedNames[name] {
		return g.errorf(s.Name, "'%s' is a reserved name", name)
	}
	if g.funcs[name] {
		return g.errorf(s.Name, "function '%s' is already defined", name)
	}
	if sym, ok := g.syms.LookupLocal(ctx.scope, name); ok {
		return g.errorf(s.Name, "'%s' is already declared as a %s", name, sym.Kind)
	}
	ret, ok := typeFromName(s.ReturnType)
	if !ok {
		return g.errorf(s, "unknown return type %s", s.ReturnType)
	}

	paramTypes := make([]Type, len(s.Params))
	irParams := make([]*ir.Param, len(s.Params))
	seen := make(map[string]bool)
	for i, p := range s.Params {
		t, ok := typeFromName(p.Type)
		if !ok || t == TypeVoid {
			return g.errorf(p.Name, "parameter '%s' cannot have type %s", p.Name.Value, p.Type)
		}
		if seen[p.Name.Value] {
			return g.errorf(p.Name, "duplicate parameter '%s'", p.Name.Value)
		}
		seen[p.Name.Value] = true
		paramTypes[i] = t
		irParams[i] = ir.NewParam(p.Name.Value+".arg", t.IR())
	}

	fn := g.module.NewFunc(name, ret.IR(), irParams...)
	g.funcs[name] = true
	sym := Symbol{Name: name, Kind: SymFunc, Value: fn, Type: ret, Params: paramTypes}

	scope := g.syms.EnterFunction(ctx.scope, name)
	g.syms.Define(scope, sym) // visible in its own body for recursion
	child := g.newContext(fn, scope, ret)
	for i, p := range s.Params {
		slot := g.alloca(child, paramTypes[i], p.Name.Value)
		child.block.NewStore(irParams[i], slot)
		g.syms.Define(scope, Symbol{Name: p.Name.Value, Kind: SymLocal, Value: slot, Type: paramTypes[i]})
	}

	if err := g.genBlock(child, s.Body); err != nil {
		return err
	}
	if child.block.Term == nil {
		child.block.NewRet(zeroValue(ret))
	}
	g.syms.ExitFunction(scope)

	g.syms.Define(ctx.scope, sym)
	return nil
}

func (g *Generator) genReturn(ctx *genContext, s *ReturnStatement) error {
	if s.Value == nil {
		if ctx.retType != TypeVoid {
			return g.errorf(s, "missing return value in function returning %s", ctx.retType)
		}
		ctx.block.NewRet(nil)
		return nil
	}
	if ctx.retType == TypeVoid {
		return g.errorf(s, "void function '%s' cannot return a value", ctx.fn.Name())
	}
	val, err := g.genExpr(ctx, s.Value)
	if err != nil {
		return err
	}
	val, err = g.coerce(ctx, val, ctx.retType, s.Value)
	if err != nil {
		return err
	}
	ctx.block.NewRet(val.v)
	return nil
}

func (g *Generator) genIf(ctx *genContext, s *IfStatement) error {
	cond, err := g.genCondition(ctx, s.Condition)
	if err != nil {
		return err
	}
	id := g.nextID()
	thenBlock := g.newBlock("if.then", id)
	mergeBlock := g.newBlock("if.end", id)
	elseBlock := mergeBlock
	if len(s.ElseBody) > 0 {
		elseBlock = g.newBlock("if.else", id)
	}
	ctx.block.NewCondBr(cond, thenBlock, elseBlock)

	g.place(ctx, thenBlock)
	if err := g.genBlock(ctx, s.Body); err != nil {
		return err
	}
	if ctx.block.Term == nil {
		ctx.block.NewBr(mergeBlock)
	}

	if len(s.ElseBody) > 0 {
		g.place(ctx, elseBlock)
		if err := g.genBlock(ctx, s.ElseBody); err != nil {
			return err
		}
		if ctx.block.Term == nil {
			ctx.block.NewBr(mergeBlock)
		}
	}

	g.place(ctx, mergeBlock)
	return nil
}

// genWhile tests the condition once on entry and again in the retest block
// after every iteration.
func (g *Generator) genWhile(ctx *genContext, s *WhileStatement) error {
	cond, err := g.genCondition(ctx, s.Condition)
	if err != nil {
		return err
	}
	id := g.nextID()
	bodyBlock := g.newBlock("while.body", id)
	retestBlock := g.newBlock("while.cond", id)
	exitBlock := g.newBlock("while.end", id)
	ctx.block.NewCondBr(cond, bodyBlock, exitBlock)

	g.place(ctx, bodyBlock)
	ctx.loops = append(ctx.loops, loopTargets{exit: exitBlock, retest: retestBlock})
	err = g.genBlock(ctx, s.Body)
	ctx.loops = ctx.loops[:len(ctx.loops)-1]
	if err != nil {
		return err
	}
	if ctx.block.Term == nil {
		ctx.block.NewBr(retestBlock)
	}

	g.place(ctx, retestBlock)
	again, err := g.genCondition(ctx, s.Condition)
	if err != nil {
		return err
	}
	ctx.block.NewCondBr(again, bodyBlock, exitBlock)

	g.place(ctx, exitBlock)
	return nil
}

// genCondition produces an i1. Numbers are true when non-zero.
func (g *Generator) genCondition(ctx *genContext, expr Expr) (value.Value, error) {
	op, err := g.genExpr(ctx, expr)
	if err != nil {
		return nil, err
	}
	switch op.t {
	case TypeBool:
		return op.v, nil
	case TypeInt:
		return ctx.block.NewICmp(enum.IPredNE, op.v, constant.NewInt(types.I32, 0)), nil
	case TypeFloat:
		return ctx.block.NewFCmp(enum.FPredONE, op.v, constant.NewFloat(types.Double, 0)), nil
	}
	return nil, g.errorf(expr, "condition must be bool, int or float, got %s", op.t)
}

// coerce converts op, the value of node n, to type to. Only numeric
// conversions are implicit.
func (g *Generator) coerce(ctx *genContext, op operand, to Type, n Node) (operand, error) {
	switch {
	case op.t == to:
		return op, nil
	case op.t == TypeInt && to == TypeFloat:
		return operand{ctx.block.NewSIToFP(op.v, types.Double), TypeFloat}, nil
	case op.t == TypeFloat && to == TypeInt:
		return operand{ctx.block.NewFPToSI(op.v, types.I32), TypeInt}, nil
	}
	return operand{}, g.errorf(n, "cannot use %s value as %s", op.t, to)
}

//  Expressions

func (g *Generator) genExpr(ctx *genContext, expr Expr) (operand, error) {
	switch e := expr.(type) {
	case *IntegerLiteral:
		return operand{constant.NewInt(types.I32, int64(e.Value)), TypeInt}, nil
	case *FloatLiteral:
		return operand{constant.NewFloat(types.Double, e.Value), TypeFloat}, nil
	case *BooleanLiteral:
		return operand{constant.NewBool(e.Value), TypeBool}, nil
	case *StringLiteral:
		return operand{g.strings.ref(e.Value), TypeStr}, nil
	case *IdentifierLiteral:
		sym, ok := g.syms.Lookup(ctx.scope, e.Value)
		if !ok {
			return operand{}, g.errorf(e, "identifier '%s' has not been declared", e.Value)
		}
		if sym.Kind == SymFunc {
			return operand{}, g.errorf(e, "function '%s' used as a value", e.Value)
		}
		return operand{ctx.block.NewLoad(sym.Type.IR(), sym.Value), sym.Type}, nil
	case *InfixExpression:
		return g.genInfix(ctx, e)
	case *CallExpression:
		return g.genCall(ctx, e)
	default:
		return operand{}, g.errorf(expr, "unsupported expression %s", expr.Kind())
	}
}

var intPreds = map[string]enum.IPred{
	"==": enum.IPredEQ,
	"!=": enum.IPredNE,
	"<":  enum.IPredSLT,
	">":  enum.IPredSGT,
	"<=": enum.IPredSLE,
	">=": enum.IPredSGE,
}

var floatPreds = map[string]enum.FPred{
	"==": enum.FPredOEQ,
	"!=": enum.FPredONE,
	"<":  enum.FPredOLT,
	">":  enum.FPredOGT,
	"<=": enum.FPredOLE,
	">=": enum.FPredOGE,
}

func (g *Generator) genInfix(ctx *genContext, e *InfixExpression) (operand, error) {
	left, err := g.genExpr(ctx, e.Left)
	if err != nil {
		return operand{}, err
	}
	right, err := g.genExpr(ctx, e.Right)
	if err != nil {
		return operand{}, err
	}
	op := e.Operator
	b := ctx.block

	switch {
	case (op == "^" || op == "**") && left.t.isNumeric() && right.t.isNumeric():
		x, _ := g.coerce(ctx, left, TypeFloat, e)
		y, _ := g.coerce(ctx, right, TypeFloat, e)
		return operand{b.NewCall(g.builtins.pow, x.v, y.v), TypeFloat}, nil

	case left.t == TypeInt && right.t == TypeInt:
		if pred, ok := intPreds[op]; ok {
			return operand{b.NewICmp(pred, left.v, right.v), TypeBool}, nil
		}
		switch op {
		case "+":
			return operand{b.NewAdd(left.v, right.v), TypeInt}, nil
		case "-":
			return operand{b.NewSub(left.v, right.v), TypeInt}, nil
		case "*":
			return operand{b.NewMul(left.v, right.v), TypeInt}, nil
		case "/":
			return operand{b.NewSDiv(left.v, right.v), TypeInt}, nil
		case "%":
			return operand{b.NewSRem(left.v, right.v), TypeInt}, nil
		}

	case left.t.isNumeric() && right.t.isNumeric():
		x, _ := g.coerce(ctx, left, TypeFloat, e)
		y, _ := g.coerce(ctx, right, TypeFloat, e)
		if pred, ok := floatPreds[op]; ok {
			return operand{b.NewFCmp(pred, x.v, y.v), TypeBool}, nil
		}
		switch op {
		case "+":
			return operand{b.NewFAdd(x.v, y.v), TypeFloat}, nil
		case "-":
			return operand{b.NewFSub(x.v, y.v), TypeFloat}, nil
		case "*":
			return operand{b.NewFMul(x.v, y.v), TypeFloat}, nil
		case "/":
			return operand{b.NewFDiv(x.v, y.v), TypeFloat}, nil
		case "%":
			return operand{b.NewFRem(x.v, y.v), TypeFloat}, nil
		}

	case left.t == TypeBool && right.t == TypeBool && (op == "==" || op == "!="):
		return operand{b.NewICmp(intPreds[op], left.v, right.v), TypeBool}, nil

	case left.t == TypeStr && right.t == TypeStr && op == "+":
		return operand{b.NewCall(g.builtins.concat, left.v, right.v), TypeStr}, nil
	}

	return operand{}, g.errorf(e, "unsupported operand types for %s: %s and %s", op, left.t, right.t)
}

func (g *Generator) genCall(ctx *genContext, e *CallExpression) (operand, error) {
	name := e.Function.Value
	args := make([]operand, len(e.Args))
	for i, a := range e.Args {
		op, err := g.genExpr(ctx, a)
		if err != nil {
			return operand{}, err
		}
		if op.t == TypeVoid {
			return operand{}, g.errorf(a, "void value used as an argument")
		}
		args[i] = op
	}

	if name == builtinPrintf {
		return g.genPrintf(ctx, e, args)
	}

	sym, ok := g.syms.Lookup(ctx.scope, name)
	if !ok {
		return operand{}, g.errorf(e.Function, "function '%s' has not been declared", name)
	}
	if sym.Kind != SymFunc {
		return operand{}, g.errorf(e.Function, "'%s' is not a function", name)
	}
	if len(args) != len(sym.Params) {
		return operand{}, g.errorf(e, "function '%s' expects %d arguments, got %d", name, len(sym.Params), len(args))
	}

	vals := make([]value.Value, len(args))
	for i, a := range args {
		conv, err := g.coerce(ctx, a, sym.Params[i], e.Args[i])
		if err != nil {
			return operand{}, err
		}
		vals[i] = conv.v
	}
	return operand{ctx.block.NewCall(sym.Value, vals...), sym.Type}, nil
}

// genPrintf passes the format string and the remaining arguments through
// to the variadic printf. Booleans are widened to i32 as C would.
func (g *Generator) genPrintf(ctx *genContext, e *CallExpression, args []operand) (operand, error) {
	if len(args) == 0 || args[0].t != TypeStr {
		return operand{}, g.errorf(e, "printf expects a format string as its first argument")
	}
	vals := make([]value.Value, len(args))
	for i, a := range args {
		if a.t == TypeBool {
			vals[i] = ctx.block.NewZExt(a.v, types.I32)
			continue
		}
		vals[i] = a.v
	}
	return operand{ctx.block.NewCall(g.builtins.printf, vals...), TypeInt}, nil
}
