package compiler

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// Names of the runtime routines every module declares. User code may call
// them but may not define functions with these names.
const (
	builtinPrintf = "printf"
	builtinConcat = "concat"
	builtinPow    = "pow"
	entryFunc     = "main"

	// libc routines concat is built from.
	libcStrlen = "strlen"
	libcMalloc = "malloc"
	libcMemcpy = "memcpy"
)

var reservedNames = map[string]bool{
	builtinPrintf: true,
	builtinConcat: true,
	builtinPow:    true,
	entryFunc:     true,
	libcStrlen:    true,
	libcMalloc:    true,
	libcMemcpy:    true,
}

// builtins holds the declarations made once per module.
type builtins struct {
	printf *ir.Func // i32 (i8*, ...)
	concat *ir.Func // i8* (i8*, i8*), defined in the module
	pow    *ir.Func // double (double, double)
}

// declareBuiltins adds the runtime functions and the boolean globals to m
// and binds them in the root scope of syms.
func declareBuiltins(m *ir.Module, syms *SymbolTable) *builtins {
	b := &builtins{}

	b.printf = m.NewFunc(builtinPrintf, types.I32, ir.NewParam("format", i8Ptr))
	b.printf.Sig.Variadic = true

	b.concat = defineConcat(m)
	b.pow = m.NewFunc(builtinPow, types.Double, ir.NewParam("x", types.Double), ir.NewParam("y", types.Double))

	root := syms.Root()
	syms.Define(root, Symbol{Name: builtinPrintf, Kind: SymFunc, Value: b.printf, Type: TypeInt, Params: []Type{TypeStr}})
	syms.Define(root, Symbol{Name: builtinConcat, Kind: SymFunc, Value: b.concat, Type: TypeStr, Params: []Type{TypeStr, TypeStr}})
	syms.Define(root, Symbol{Name: builtinPow, Kind: SymFunc, Value: b.pow, Type: TypeFloat, Params: []Type{TypeFloat, TypeFloat}})

	for _, v := range []bool{true, false} {
		name := fmt.Sprintf("%t", v)
		g := m.NewGlobalDef(name, constant.NewBool(v))
		g.Immutable = true
		syms.Define(root, Symbol{Name: name, Kind: SymGlobal, Value: g, Type: TypeBool})
	}
	return b
}

// defineConcat emits concat on top of strlen, malloc and memcpy so the
// module links against plain libc. The result is a fresh heap buffer.
func defineConcat(m *ir.Module) *ir.Func {
	strlen := m.NewFunc(libcStrlen, types.I64, ir.NewParam("s", i8Ptr))
	malloc := m.NewFunc(libcMalloc, i8Ptr, ir.NewParam("size", types.I64))
	memcpy := m.NewFunc(libcMemcpy, i8Ptr, ir.NewParam("dst", i8Ptr), ir.NewParam("src", i8Ptr), ir.NewParam("n", types.I64))

	a, b := ir.NewParam("a", i8Ptr), ir.NewParam("b", i8Ptr)
	fn := m.NewFunc(builtinConcat, i8Ptr, a, b)
	entry := fn.NewBlock("concat.entry")

	la := entry.NewCall(strlen, a)
	lb := entry.NewCall(strlen, b)
	one := constant.NewInt(types.I64, 1)
	buf := entry.NewCall(malloc, entry.NewAdd(entry.NewAdd(la, lb), one))
	entry.NewCall(memcpy, buf, a, la)
	// The second copy includes b's terminator.
	tail := entry.NewGetElementPtr(types.I8, buf, la)
	entry.NewCall(memcpy, tail, b, entry.NewAdd(lb, one))
	entry.NewRet(buf)
	return fn
}

// stringPool interns string literals as private constant byte arrays, one
// global per distinct content.
type stringPool struct {
	m       *ir.Module
	globals map[string]*ir.Global
}

func newStringPool(m *ir.Module) *stringPool {
	return &stringPool{m: m, globals: make(map[string]*ir.Global)}
}

// ref returns an i8* to the NUL-terminated bytes of raw after expanding its
// escape sequences.
func (p *stringPool) ref(raw string) constant.Constant {
	s := unescape(raw)
	g, ok := p.globals[s]
	if !ok {
		g = p.m.NewGlobalDef(fmt.Sprintf("str.%d", len(p.globals)), constant.NewCharArrayFromString(s+"\x00"))
		g.Immutable = true
		g.Linkage = enum.LinkagePrivate
		p.globals[s] = g
	}
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(g.ContentType, g, zero, zero)
}

var escapes = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'\\': '\\',
	'"':  '"',
	'\'': '\'',
	'0':  0,
	'b':  '\b',
	'f':  '\f',
	'v':  '\v',
}

// unescape expands backslash sequences. Unknown sequences are kept as written.
func unescape(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		if e, ok := escapes[raw[i+1]]; ok {
			sb.WriteByte(e)
			i++
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
