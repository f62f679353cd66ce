// Package vm executes LLVM IR modules produced by the compiler package.
//
// It is a reference interpreter for the subset of IR the code generator
// emits, used to run programs without a native toolchain and to check
// generated code in tests.
package vm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

const (
	DefaultMaxSteps     = 10_000_000
	DefaultMaxCallDepth = 1000
)

// ErrStepLimit is returned when a program executes more than MaxSteps
// instructions.
var ErrStepLimit = errors.New("step limit exceeded")

// Cell is the storage behind an alloca or a global.
type Cell struct {
	V any
}

// StrPtr is an i8* into a NUL-terminated byte buffer.
type StrPtr struct {
	Buf []byte
	Off int
}

// String returns the bytes from Off up to the first NUL.
func (p StrPtr) String() string {
	if p.Off < 0 || p.Off >= len(p.Buf) {
		return ""
	}
	b := p.Buf[p.Off:]
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// RuntimeError reports a failure while executing function Func.
type RuntimeError struct {
	Func string
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error in @%s: %s", e.Func, e.Msg)
}

// VM runs functions of one module. Registers hold int64 for integer and
// boolean values, float64 for doubles, *Cell for pointers to storage and
// StrPtr for i8* strings.
type VM struct {
	Module *ir.Module

	// Output is where printf writes. If nil, os.Stdout is used.
	Output io.Writer

	MaxSteps     int
	MaxCallDepth int

	Steps     int
	CallDepth int

	globals map[*ir.Global]*Cell
}

// Option configures a VM.
type Option func(*VM)

// WithOutput redirects printf output to w.
func WithOutput(w io.Writer) Option {
	return func(v *VM) { v.Output = w }
}

// WithStepLimit caps the number of executed instructions.
func WithStepLimit(n int) Option {
	return func(v *VM) { v.MaxSteps = n }
}

// WithCallDepth caps the depth of nested calls.
func WithCallDepth(n int) Option {
	return func(v *VM) { v.MaxCallDepth = n }
}

// New creates a VM for m.
func New(m *ir.Module, opts ...Option) *VM {
	v := &VM{
		Module:       m,
		MaxSteps:     DefaultMaxSteps,
		MaxCallDepth: DefaultMaxCallDepth,
		globals:      make(map[*ir.Global]*Cell),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *VM) outputSink() io.Writer {
	if v.Output != nil {
		return v.Output
	}
	return os.Stdout
}

// Result is the outcome of running the entry function.
type Result struct {
	// Exit is the value main returned.
	Exit int64
	// Locals maps each named alloca of main to its final value. Strings are
	// converted to Go strings and i1 storage to bool.
	Locals map[string]any
}

// Run executes @main.
func (v *VM) Run() (*Result, error) {
	fn := v.lookup("main")
	if fn == nil {
		return nil, &RuntimeError{Func: "main", Msg: "module has no entry function"}
	}
	ret, fr, err := v.call(fn, nil)
	if err != nil {
		return nil, err
	}
	res := &Result{Locals: make(map[string]any)}
	if n, ok := ret.(int64); ok {
		res.Exit = n
	}
	for _, inst := range fn.Blocks[0].Insts {
		a, ok := inst.(*ir.InstAlloca)
		if !ok || a.IsUnnamed() {
			continue
		}
		if cell, ok := fr.regs[a].(*Cell); ok {
			res.Locals[a.Name()] = exportValue(cell.V, a.ElemType)
		}
	}
	return res, nil
}

// Call runs the named function with args and returns its result (nil for
// void functions).
func (v *VM) Call(name string, args ...any) (any, error) {
	fn := v.lookup(name)
	if fn == nil {
		return nil, &RuntimeError{Func: name, Msg: "no such function"}
	}
	ret, _, err := v.call(fn, args)
	return ret, err
}

func (v *VM) lookup(name string) *ir.Func {
	for _, f := range v.Module.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func exportValue(x any, t types.Type) any {
	switch val := x.(type) {
	case StrPtr:
		return val.String()
	case int64:
		if it, ok := t.(*types.IntType); ok && it.BitSize == 1 {
			return val != 0
		}
	}
	return x
}

type frame struct {
	fn   *ir.Func
	regs map[value.Value]any
}

func (fr *frame) errorf(format string, args ...any) error {
	return &RuntimeError{Func: fr.fn.Name(), Msg: fmt.Sprintf(format, args...)}
}

func (v *VM) call(fn *ir.Func, args []any) (any, *frame, error) {
	fr := &frame{fn: fn, regs: make(map[value.Value]any)}
	if len(fn.Blocks) == 0 {
		ret, err := v.builtin(fr, args)
		return ret, fr, err
	}
	if len(args) != len(fn.Params) {
		return nil, fr, fr.errorf("expected %d arguments, got %d", len(fn.Params), len(args))
	}
	if v.CallDepth >= v.MaxCallDepth {
		return nil, fr, fr.errorf("call depth limit %d exceeded", v.MaxCallDepth)
	}
	v.CallDepth++
	defer func() { v.CallDepth-- }()

	for i, p := range fn.Params {
		fr.regs[p] = args[i]
	}

	block := fn.Blocks[0]
	for {
		for _, inst := range block.Insts {
			if err := v.step(fr); err != nil {
				return nil, fr, err
			}
			if err := v.exec(fr, inst); err != nil {
				return nil, fr, err
			}
		}
		if err := v.step(fr); err != nil {
			return nil, fr, err
		}

		switch term := block.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return nil, fr, nil
			}
			ret, err := v.eval(fr, term.X)
			return ret, fr, err
		case *ir.TermBr:
			block = term.Succs()[0]
		case *ir.TermCondBr:
			cond, err := v.evalInt(fr, term.Cond)
			if err != nil {
				return nil, fr, err
			}
			succs := term.Succs()
			if cond != 0 {
				block = succs[0]
			} else {
				block = succs[1]
			}
		case nil:
			return nil, fr, fr.errorf("block %s has no terminator", block.Name())
		default:
			return nil, fr, fr.errorf("unsupported terminator %s", term.LLString())
		}
	}
}

func (v *VM) step(fr *frame) error {
	v.Steps++
	if v.MaxSteps > 0 && v.Steps > v.MaxSteps {
		return fmt.Errorf("@%s: %w", fr.fn.Name(), ErrStepLimit)
	}
	return nil
}

// exec runs one non-terminator instruction.
func (v *VM) exec(fr *frame, inst ir.Instruction) error {
	switch in := inst.(type) {
	case *ir.InstAlloca:
		fr.regs[in] = &Cell{V: zeroOf(in.ElemType)}

	case *ir.InstStore:
		src, err := v.eval(fr, in.Src)
		if err != nil {
			return err
		}
		cell, err := v.evalCell(fr, in.Dst)
		if err != nil {
			return err
		}
		cell.V = src

	case *ir.InstLoad:
		cell, err := v.evalCell(fr, in.Src)
		if err != nil {
			return err
		}
		fr.regs[in] = cell.V

	case *ir.InstAdd, *ir.InstSub, *ir.InstMul, *ir.InstSDiv, *ir.InstSRem:
		return v.execIntOp(fr, inst)

	case *ir.InstFAdd, *ir.InstFSub, *ir.InstFMul, *ir.InstFDiv, *ir.InstFRem:
		return v.execFloatOp(fr, inst)

	case *ir.InstICmp:
		x, y, err := v.evalInts(fr, in.X, in.Y)
		if err != nil {
			return err
		}
		r, err := icmp(in.Pred, x, y)
		if err != nil {
			return fr.errorf("%v", err)
		}
		fr.regs[in] = boolInt(r)

	case *ir.InstFCmp:
		x, y, err := v.evalFloats(fr, in.X, in.Y)
		if err != nil {
			return err
		}
		r, err := fcmp(in.Pred, x, y)
		if err != nil {
			return fr.errorf("%v", err)
		}
		fr.regs[in] = boolInt(r)

	case *ir.InstSIToFP:
		x, err := v.evalInt(fr, in.From)
		if err != nil {
			return err
		}
		fr.regs[in] = float64(x)

	case *ir.InstFPToSI:
		x, err := v.evalFloat(fr, in.From)
		if err != nil {
			return err
		}
		fr.regs[in] = wrap(int64(x), in.To)

	case *ir.InstZExt:
		x, err := v.evalInt(fr, in.From)
		if err != nil {
			return err
		}
		if it, ok := in.From.Type().(*types.IntType); ok && it.BitSize < 64 {
			x &= 1<<it.BitSize - 1
		}
		fr.regs[in] = x

	case *ir.InstGetElementPtr:
		if len(in.Indices) != 1 {
			return fr.errorf("unsupported getelementptr %s", in.LLString())
		}
		base, err := v.eval(fr, in.Src)
		if err != nil {
			return err
		}
		p, ok := base.(StrPtr)
		if !ok {
			return fr.errorf("getelementptr on non-string %s", in.Src.Ident())
		}
		idx, err := v.evalInt(fr, in.Indices[0])
		if err != nil {
			return err
		}
		fr.regs[in] = StrPtr{Buf: p.Buf, Off: p.Off + int(idx)}

	case *ir.InstCall:
		callee, err := v.eval(fr, in.Callee)
		if err != nil {
			return err
		}
		fn, ok := callee.(*ir.Func)
		if !ok {
			return fr.errorf("call of non-function %s", in.Callee.Ident())
		}
		args := make([]any, len(in.Args))
		for i, a := range in.Args {
			if args[i], err = v.eval(fr, a); err != nil {
				return err
			}
		}
		ret, _, err := v.call(fn, args)
		if err != nil {
			return err
		}
		fr.regs[in] = ret

	default:
		return fr.errorf("unsupported instruction %s", inst.LLString())
	}
	return nil
}

func (v *VM) execIntOp(fr *frame, inst ir.Instruction) error {
	var (
		x, y   value.Value
		result value.Value = inst.(value.Value)
	)
	switch in := inst.(type) {
	case *ir.InstAdd:
		x, y = in.X, in.Y
	case *ir.InstSub:
		x, y = in.X, in.Y
	case *ir.InstMul:
		x, y = in.X, in.Y
	case *ir.InstSDiv:
		x, y = in.X, in.Y
	case *ir.InstSRem:
		x, y = in.X, in.Y
	}
	a, b, err := v.evalInts(fr, x, y)
	if err != nil {
		return err
	}

	var r int64
	switch inst.(type) {
	case *ir.InstAdd:
		r = a + b
	case *ir.InstSub:
		r = a - b
	case *ir.InstMul:
		r = a * b
	case *ir.InstSDiv:
		if b == 0 {
			return fr.errorf("integer division by zero")
		}
		r = a / b
	case *ir.InstSRem:
		if b == 0 {
			return fr.errorf("integer division by zero")
		}
		r = a % b
	}
	fr.regs[result] = wrap(r, result.Type())
	return nil
}

func (v *VM) execFloatOp(fr *frame, inst ir.Instruction) error {
	var (
		x, y   value.Value
		result value.Value = inst.(value.Value)
	)
	switch in := inst.(type) {
	case *ir.InstFAdd:
		x, y = in.X, in.Y
	case *ir.InstFSub:
		x, y = in.X, in.Y
	case *ir.InstFMul:
		x, y = in.X, in.Y
	case *ir.InstFDiv:
		x, y = in.X, in.Y
	case *ir.InstFRem:
		x, y = in.X, in.Y
	}
	a, b, err := v.evalFloats(fr, x, y)
	if err != nil {
		return err
	}

	var r float64
	switch inst.(type) {
	case *ir.InstFAdd:
		r = a + b
	case *ir.InstFSub:
		r = a - b
	case *ir.InstFMul:
		r = a * b
	case *ir.InstFDiv:
		r = a / b
	case *ir.InstFRem:
		r = math.Mod(a, b)
	}
	fr.regs[result] = r
	return nil
}

// eval resolves an operand to its runtime value.
func (v *VM) eval(fr *frame, val value.Value) (any, error) {
	switch c := val.(type) {
	case *constant.Int:
		return c.X.Int64(), nil
	case *constant.Float:
		f, _ := c.X.Float64()
		return f, nil
	case *constant.Null:
		return StrPtr{}, nil
	case *constant.ExprGetElementPtr:
		return v.evalGEP(fr, c)
	case *ir.Global:
		return v.globalCell(fr, c)
	case *ir.Func:
		return c, nil
	}
	x, ok := fr.regs[val]
	if !ok {
		return nil, fr.errorf("use of undefined value %s", val.Ident())
	}
	return x, nil
}

// evalGEP handles the constant (i64 0, i64 n) address of a byte array global.
func (v *VM) evalGEP(fr *frame, gep *constant.ExprGetElementPtr) (any, error) {
	g, ok := gep.Src.(*ir.Global)
	if !ok {
		return nil, fr.errorf("unsupported getelementptr base %s", gep.Src.Ident())
	}
	arr, ok := g.Init.(*constant.CharArray)
	if !ok {
		return nil, fr.errorf("getelementptr into non-string global %s", g.Ident())
	}
	off := 0
	if n := len(gep.Indices); n > 1 {
		idx, ok := gep.Indices[n-1].(*constant.Int)
		if !ok {
			return nil, fr.errorf("non-constant getelementptr index")
		}
		off = int(idx.X.Int64())
	}
	return StrPtr{Buf: arr.X, Off: off}, nil
}

func (v *VM) globalCell(fr *frame, g *ir.Global) (*Cell, error) {
	if cell, ok := v.globals[g]; ok {
		return cell, nil
	}
	cell := &Cell{}
	switch init := g.Init.(type) {
	case *constant.CharArray:
		cell.V = StrPtr{Buf: init.X}
	case nil:
		cell.V = zeroOf(g.ContentType)
	default:
		x, err := v.eval(fr, init)
		if err != nil {
			return nil, err
		}
		cell.V = x
	}
	v.globals[g] = cell
	return cell, nil
}

func (v *VM) evalCell(fr *frame, val value.Value) (*Cell, error) {
	x, err := v.eval(fr, val)
	if err != nil {
		return nil, err
	}
	cell, ok := x.(*Cell)
	if !ok {
		return nil, fr.errorf("%s is not a pointer to storage", val.Ident())
	}
	return cell, nil
}

func (v *VM) evalInt(fr *frame, val value.Value) (int64, error) {
	x, err := v.eval(fr, val)
	if err != nil {
		return 0, err
	}
	n, ok := x.(int64)
	if !ok {
		return 0, fr.errorf("%s is not an integer", val.Ident())
	}
	return n, nil
}

func (v *VM) evalInts(fr *frame, x, y value.Value) (int64, int64, error) {
	a, err := v.evalInt(fr, x)
	if err != nil {
		return 0, 0, err
	}
	b, err := v.evalInt(fr, y)
	return a, b, err
}

func (v *VM) evalFloat(fr *frame, val value.Value) (float64, error) {
	x, err := v.eval(fr, val)
	if err != nil {
		return 0, err
	}
	f, ok := x.(float64)
	if !ok {
		return 0, fr.errorf("%s is not a float", val.Ident())
	}
	return f, nil
}

func (v *VM) evalFloats(fr *frame, x, y value.Value) (float64, float64, error) {
	a, err := v.evalFloat(fr, x)
	if err != nil {
		return 0, 0, err
	}
	b, err := v.evalFloat(fr, y)
	return a, b, err
}

func zeroOf(t types.Type) any {
	switch t.(type) {
	case *types.IntType:
		return int64(0)
	case *types.FloatType:
		return float64(0)
	case *types.PointerType:
		return StrPtr{}
	}
	return nil
}

// wrap truncates n to the width of integer type t, sign-extending the result.
func wrap(n int64, t types.Type) int64 {
	it, ok := t.(*types.IntType)
	if !ok {
		return n
	}
	switch it.BitSize {
	case 1:
		return n & 1
	case 8:
		return int64(int8(n))
	case 16:
		return int64(int16(n))
	case 32:
		return int64(int32(n))
	}
	return n
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func icmp(pred enum.IPred, x, y int64) (bool, error) {
	switch pred {
	case enum.IPredEQ:
		return x == y, nil
	case enum.IPredNE:
		return x != y, nil
	case enum.IPredSLT:
		return x < y, nil
	case enum.IPredSLE:
		return x <= y, nil
	case enum.IPredSGT:
		return x > y, nil
	case enum.IPredSGE:
		return x >= y, nil
	}
	return false, fmt.Errorf("unsupported icmp predicate %s", pred)
}

// fcmp implements the ordered predicates: any comparison with NaN is false.
func fcmp(pred enum.FPred, x, y float64) (bool, error) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return false, nil
	}
	switch pred {
	case enum.FPredOEQ:
		return x == y, nil
	case enum.FPredONE:
		return x != y, nil
	case enum.FPredOLT:
		return x < y, nil
	case enum.FPredOLE:
		return x <= y, nil
	case enum.FPredOGT:
		return x > y, nil
	case enum.FPredOGE:
		return x >= y, nil
	}
	return false, fmt.Errorf("unsupported fcmp predicate %s", pred)
}
