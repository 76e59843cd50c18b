package wasm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// ValueType is the binary encoding of a WebAssembly value type.
type ValueType byte

const (
	TypeI32       ValueType = ValueType(api.ValueTypeI32)
	TypeI64       ValueType = ValueType(api.ValueTypeI64)
	TypeF32       ValueType = ValueType(api.ValueTypeF32)
	TypeF64       ValueType = ValueType(api.ValueTypeF64)
	TypeV128      ValueType = 0x7b
	TypeFuncRef   ValueType = 0x70
	TypeExternRef ValueType = ValueType(api.ValueTypeExternref)
	// TypeVoid marks the absence of a value, e.g. the result of a
	// function without results.
	TypeVoid ValueType = 0x40
)

// slotSize is the operand stack footprint of a scalar or reference.
const slotSize = 8

// Size returns the number of stack bytes a value of type t occupies.
func (t ValueType) Size() int {
	switch t {
	case TypeVoid:
		return 0
	case TypeV128:
		return 2 * slotSize
	}
	return slotSize
}

// IsRef reports whether t is a reference type.
func (t ValueType) IsRef() bool { return t == TypeFuncRef || t == TypeExternRef }

func (t ValueType) Valid() bool {
	switch t {
	case TypeI32, TypeI64, TypeF32, TypeF64, TypeV128, TypeFuncRef, TypeExternRef:
		return true
	}
	return false
}

func (t ValueType) String() string {
	switch t {
	case TypeV128:
		return "v128"
	case TypeFuncRef:
		return "funcref"
	case TypeVoid:
		return "void"
	case TypeI32, TypeI64, TypeF32, TypeF64, TypeExternRef:
		return api.ValueTypeName(api.ValueType(t))
	}
	return fmt.Sprintf("0x%02x", byte(t))
}

// ParseValueType maps the JS API descriptor names ("i32", "anyfunc", ...)
// to a value type.
func ParseValueType(name string) (ValueType, bool) {
	switch name {
	case "i32":
		return TypeI32, true
	case "i64":
		return TypeI64, true
	case "f32":
		return TypeF32, true
	case "f64":
		return TypeF64, true
	case "v128":
		return TypeV128, true
	case "anyfunc", "funcref":
		return TypeFuncRef, true
	case "externref", "anyref":
		return TypeExternRef, true
	}
	return 0, false
}

// Value is a typed WebAssembly value. References hold an opaque handle;
// handle 0 is the null reference.
type Value struct {
	typ    ValueType
	lo, hi uint64
}

// Void is the value of an absent result.
var Void = Value{typ: TypeVoid}

func I32(v int32) Value   { return Value{typ: TypeI32, lo: api.EncodeI32(v)} }
func I64(v int64) Value   { return Value{typ: TypeI64, lo: api.EncodeI64(v)} }
func F64(v float64) Value { return Value{typ: TypeF64, lo: api.EncodeF64(v)} }

// F32 stores v; NaNs become the canonical quiet NaN.
func F32(v float32) Value {
	if v != v {
		return Value{typ: TypeF32, lo: canonicalNaN32}
	}
	return Value{typ: TypeF32, lo: api.EncodeF32(v)}
}

// canonicalNaN32 is the positive quiet NaN with an empty payload.
const canonicalNaN32 = 0x7fc00000

func V128(lo, hi uint64) Value { return Value{typ: TypeV128, lo: lo, hi: hi} }

func FuncRef(handle uint64) Value { return Value{typ: TypeFuncRef, lo: handle} }

func ExternRef(handle uint64) Value {
	return Value{typ: TypeExternRef, lo: api.EncodeExternref(uintptr(handle))}
}

// NullRef returns the null reference of reference type t.
func NullRef(t ValueType) Value { return Value{typ: t} }

// Zero returns the zero value of t: zero bits for numbers, null for
// references.
func Zero(t ValueType) Value { return Value{typ: t} }

func (v Value) Type() ValueType { return v.typ }
func (v Value) I32() int32      { return api.DecodeI32(v.lo) }
func (v Value) I64() int64      { return int64(v.lo) }
func (v Value) F32() float32    { return api.DecodeF32(v.lo) }
func (v Value) F64() float64    { return api.DecodeF64(v.lo) }

// V128 returns the low and high halves of a vector.
func (v Value) V128() (lo, hi uint64) { return v.lo, v.hi }

// Ref returns the handle of a reference; 0 is null.
func (v Value) Ref() uint64 { return uint64(api.DecodeExternref(v.lo)) }

func (v Value) IsNull() bool { return v.typ.IsRef() && v.lo == 0 }

// Bits returns the raw low 64 bits.
func (v Value) Bits() uint64 { return v.lo }

func (v Value) String() string {
	switch v.typ {
	case TypeI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case TypeI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case TypeF32:
		return fmt.Sprintf("f32:%v", v.F32())
	case TypeF64:
		return fmt.Sprintf("f64:%v", v.F64())
	case TypeV128:
		return fmt.Sprintf("v128:%016x%016x", v.hi, v.lo)
	case TypeFuncRef, TypeExternRef:
		if v.IsNull() {
			return v.typ.String() + ":null"
		}
		return fmt.Sprintf("%s:#%d", v.typ, v.Ref())
	}
	return "void"
}

// Equal compares bit patterns, so NaN equals an identically encoded NaN.
func (v Value) Equal(o Value) bool { return v == o }

// IsCanonicalNaN reports whether an f32 value holds the canonical NaN.
func (v Value) IsCanonicalNaN() bool {
	return v.typ == TypeF32 && v.lo == canonicalNaN32
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func stackSize(types []ValueType) int {
	n := 0
	for _, t := range types {
		n += t.Size()
	}
	return n
}

// ParamSize is the number of stack bytes the parameters occupy.
func (ft *FuncType) ParamSize() int { return stackSize(ft.Params) }

// ResultSize is the number of stack bytes the results occupy.
func (ft *FuncType) ResultSize() int { return stackSize(ft.Results) }

func (ft *FuncType) Equal(other *FuncType) bool {
	if ft == other {
		return true
	}
	if ft == nil || other == nil {
		return false
	}
	return slices.Equal(ft.Params, other.Params) && slices.Equal(ft.Results, other.Results)
}

func (ft *FuncType) String() string {
	join := func(ts []ValueType) string {
		parts := make([]string, len(ts))
		for i, t := range ts {
			parts[i] = t.String()
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("(%s) -> (%s)", join(ft.Params), join(ft.Results))
}

// Limits bound the size of a memory or table.
type Limits struct {
	Min uint32
	Max *uint32
}

// GlobalType is the type and mutability of a global.
type GlobalType struct {
	ValueType ValueType
	Mutable   bool
}

// ExternKind is the kind of an import or export.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0x00
	ExternTable  ExternKind = 0x01
	ExternMemory ExternKind = 0x02
	ExternGlobal ExternKind = 0x03
)

// String returns the kind name used by the JS API descriptors.
func (k ExternKind) String() string {
	switch k {
	case ExternFunc:
		return "function"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	}
	return fmt.Sprintf("kind(0x%02x)", byte(k))
}

const (
	// PageSize is the size of a memory page in bytes.
	PageSize = 65536
	// MaxPages is the largest memory size in pages.
	MaxPages = 65536
)
