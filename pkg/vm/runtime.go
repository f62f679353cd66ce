package vm

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// builtinFunc implements a function the module declares but does not define.
type builtinFunc func(v *VM, fr *frame, args []any) (any, error)

var builtins = map[string]builtinFunc{
	"printf": builtinPrintf,
	"pow":    builtinPow,
	"strlen": builtinStrlen,
	"malloc": builtinMalloc,
	"memcpy": builtinMemcpy,
}

func (v *VM) builtin(fr *frame, args []any) (any, error) {
	fn, ok := builtins[fr.fn.Name()]
	if !ok {
		return nil, fr.errorf("call of undefined external function")
	}
	return fn(v, fr, args)
}

func builtinPrintf(v *VM, fr *frame, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fr.errorf("missing format string")
	}
	format, ok := args[0].(StrPtr)
	if !ok {
		return nil, fr.errorf("format is not a string")
	}
	s, err := Sprintf(format.String(), args[1:]...)
	if err != nil {
		return nil, fr.errorf("%v", err)
	}
	n, err := io.WriteString(v.outputSink(), s)
	if err != nil {
		return nil, fr.errorf("write: %v", err)
	}
	return int64(n), nil
}

func builtinStrlen(_ *VM, fr *frame, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fr.errorf("expected 1 argument, got %d", len(args))
	}
	p, ok := args[0].(StrPtr)
	if !ok {
		return nil, fr.errorf("argument must be a string")
	}
	return int64(len(p.String())), nil
}

func builtinMalloc(_ *VM, fr *frame, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fr.errorf("expected 1 argument, got %d", len(args))
	}
	n, ok := args[0].(int64)
	if !ok || n < 0 {
		return nil, fr.errorf("invalid allocation size %v", args[0])
	}
	return StrPtr{Buf: make([]byte, n)}, nil
}

// builtinMemcpy copies between byte buffers. Copies that run past either
// buffer are errors rather than silent truncation.
func builtinMemcpy(_ *VM, fr *frame, args []any) (any, error) {
	if len(args) != 3 {
		return nil, fr.errorf("expected 3 arguments, got %d", len(args))
	}
	dst, ok1 := args[0].(StrPtr)
	src, ok2 := args[1].(StrPtr)
	n, ok3 := args[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return nil, fr.errorf("arguments must be (i8*, i8*, i64)")
	}
	if n < 0 || dst.Off < 0 || src.Off < 0 || dst.Off+int(n) > len(dst.Buf) || src.Off+int(n) > len(src.Buf) {
		return nil, fr.errorf("copy of %d bytes out of bounds", n)
	}
	copy(dst.Buf[dst.Off:], src.Buf[src.Off:src.Off+int(n)])
	return dst, nil
}

func builtinPow(_ *VM, fr *frame, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fr.errorf("expected 2 arguments, got %d", len(args))
	}
	x, ok1 := args[0].(float64)
	y, ok2 := args[1].(float64)
	if !ok1 || !ok2 {
		return nil, fr.errorf("arguments must be doubles")
	}
	return math.Pow(x, y), nil
}

// Sprintf formats args with a C printf format string. Conversions d i u x X
// o c f F e E g G s and %% are supported; length modifiers are ignored.
func Sprintf(format string, args ...any) (string, error) {
	var sb strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}

		// %[flags][width][.precision][length]conv
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ #0", format[j]) >= 0 {
			j++
		}
		for j < len(format) && (format[j] >= '0' && format[j] <= '9' || format[j] == '.') {
			j++
		}
		spec := format[i:j]
		for j < len(format) && strings.IndexByte("hlLqjzt", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			return sb.String(), fmt.Errorf("incomplete format specifier %q", format[i:])
		}
		conv := format[j]
		i = j

		if conv == '%' {
			sb.WriteByte('%')
			continue
		}
		if next >= len(args) {
			return sb.String(), fmt.Errorf("missing argument for %%%c", conv)
		}
		arg := args[next]
		next++

		switch conv {
		case 'd', 'i':
			n, ok := arg.(int64)
			if !ok {
				return sb.String(), fmt.Errorf("%%%c expects an integer, got %T", conv, arg)
			}
			fmt.Fprintf(&sb, spec+"d", n)
		case 'u', 'x', 'X', 'o':
			n, ok := arg.(int64)
			if !ok {
				return sb.String(), fmt.Errorf("%%%c expects an integer, got %T", conv, arg)
			}
			verb := string(conv)
			if conv == 'u' {
				verb = "d"
			}
			fmt.Fprintf(&sb, spec+verb, uint32(n))
		case 'c':
			n, ok := arg.(int64)
			if !ok {
				return sb.String(), fmt.Errorf("%%c expects an integer, got %T", arg)
			}
			fmt.Fprintf(&sb, spec+"c", rune(n))
		case 'f', 'F', 'e', 'E', 'g', 'G':
			var f float64
			switch x := arg.(type) {
			case float64:
				f = x
			case int64:
				f = float64(x)
			default:
				return sb.String(), fmt.Errorf("%%%c expects a float, got %T", conv, arg)
			}
			// Go's %g defaults to the shortest representation; C uses 6.
			if (conv == 'g' || conv == 'G') && !strings.Contains(spec, ".") {
				spec += ".6"
			}
			fmt.Fprintf(&sb, spec+string(conv), f)
		case 's':
			s, ok := arg.(StrPtr)
			if !ok {
				return sb.String(), fmt.Errorf("%%s expects a string, got %T", arg)
			}
			fmt.Fprintf(&sb, spec+"s", s.String())
		default:
			return sb.String(), fmt.Errorf("unsupported conversion %%%c", conv)
		}
	}
	return sb.String(), nil
}
