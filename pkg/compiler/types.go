package compiler

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Type is a source-level type. Every generated value carries one so that
// operator lowering can pick integer, float, bool or string instructions.
type Type int

const (
	TypeInvalid Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeStr
	TypeVoid
)

var typeNames = [...]string{
	TypeInvalid: "<invalid>",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeStr:     "str",
	TypeVoid:    "void",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// i8Ptr is the IR type of str values.
var i8Ptr = types.NewPointer(types.I8)

// irTypes maps each source type to its IR type:
// int = i32, float = double, bool = i1, str = i8*, void = void.
var irTypes = map[Type]types.Type{
	TypeInt:   types.I32,
	TypeFloat: types.Double,
	TypeBool:  types.I1,
	TypeStr:   i8Ptr,
	TypeVoid:  types.Void,
}

// IR returns the IR type of t.
func (t Type) IR() types.Type {
	return irTypes[t]
}

func (t Type) isNumeric() bool {
	return t == TypeInt || t == TypeFloat
}

// typeFromName resolves a TYPE token lexeme.
func typeFromName(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name && Type(t) != TypeInvalid {
			return Type(t), true
		}
	}
	return TypeInvalid, false
}

// zeroValue is what a function returns when control falls off its end.
func zeroValue(t Type) value.Value {
	switch t {
	case TypeInt:
		return constant.NewInt(types.I32, 0)
	case TypeFloat:
		return constant.NewFloat(types.Double, 0)
	case TypeBool:
		return constant.False
	case TypeStr:
		return constant.NewNull(i8Ptr)
	}
	return nil
}
