package vm

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unsafe"
)

type ValueType uint8

const (
	TypeUndefined ValueType = iota
	TypeNull

	TypeBoolean
	TypeFloatNumber
	TypeIntegerNumber
	TypeBigInt

	TypeString
	TypeSymbol

	// Every type from TypeObject up to TypeHostObject points at a struct whose
	// first field is a PlainObject.
	TypeObject
	TypeArray
	TypeArguments
	TypeFunction
	TypeError
	TypeMap
	TypeSet
	TypeWeakMap
	TypeWeakSet
	TypePromise
	TypeProxy
	TypeArrayBuffer
	TypeTypedArray
	TypeIterator
	TypeHostObject

	TypeHole // Internal marker for array holes (sparse arrays)
)

// String returns a human-readable string representation of the ValueType
func (vt ValueType) String() string {
	switch vt {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeFloatNumber, TypeIntegerNumber:
		return "number"
	case TypeBigInt:
		return "bigint"
	case TypeString:
		return "string"
	case TypeSymbol:
		return "symbol"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeArguments:
		return "arguments"
	case TypeFunction:
		return "function"
	case TypeError:
		return "error"
	case TypeMap:
		return "map"
	case TypeSet:
		return "set"
	case TypeWeakMap:
		return "weakmap"
	case TypeWeakSet:
		return "weakset"
	case TypePromise:
		return "promise"
	case TypeProxy:
		return "proxy"
	case TypeArrayBuffer:
		return "arraybuffer"
	case TypeTypedArray:
		return "typed array"
	case TypeIterator:
		return "iterator"
	case TypeHostObject:
		return "host object"
	case TypeHole:
		return "hole"
	default:
		return "unknown"
	}
}

// Value is the tagged union every JS value travels in. Object-typed values
// always carry a non-nil obj pointer.
type Value struct {
	typ     ValueType
	payload uint64
	obj     unsafe.Pointer
}

type stringBox struct {
	value string
}

type bigIntBox struct {
	value *big.Int
}

var (
	Undefined = Value{typ: TypeUndefined}
	Null      = Value{typ: TypeNull}
	Hole      = Value{typ: TypeHole}
	True      = Value{typ: TypeBoolean, payload: 1}
	False     = Value{typ: TypeBoolean, payload: 0}
	NaN       = Value{typ: TypeFloatNumber, payload: math.Float64bits(math.NaN())}
)

func NumberValue(value float64) Value {
	return Value{typ: TypeFloatNumber, payload: math.Float64bits(value)}
}

func IntegerValue(value int32) Value {
	return Value{typ: TypeIntegerNumber, payload: uint64(int64(value))}
}

// IndexValue returns the number for an array index or length, using the
// integer fast path when it fits.
func IndexValue(i int64) Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return IntegerValue(int32(i))
	}
	return NumberValue(float64(i))
}

func BooleanValue(value bool) Value {
	if value {
		return True
	}
	return False
}

func NewBigInt(value *big.Int) Value {
	return Value{typ: TypeBigInt, obj: unsafe.Pointer(&bigIntBox{value: value})}
}

func NewString(value string) Value {
	return Value{typ: TypeString, obj: unsafe.Pointer(&stringBox{value: value})}
}

func SymbolValue(sym *Symbol) Value {
	return Value{typ: TypeSymbol, obj: unsafe.Pointer(sym)}
}

func objectValue(typ ValueType, p unsafe.Pointer) Value {
	if p == nil {
		panic("vm: object value with nil pointer")
	}
	return Value{typ: typ, obj: p}
}

func (v Value) Type() ValueType { return v.typ }

func (v Value) IsUndefined() bool { return v.typ == TypeUndefined }
func (v Value) IsNull() bool      { return v.typ == TypeNull }
func (v Value) IsNullish() bool   { return v.typ == TypeUndefined || v.typ == TypeNull }
func (v Value) IsHole() bool      { return v.typ == TypeHole }
func (v Value) IsBoolean() bool   { return v.typ == TypeBoolean }
func (v Value) IsString() bool    { return v.typ == TypeString }
func (v Value) IsSymbol() bool    { return v.typ == TypeSymbol }
func (v Value) IsBigInt() bool    { return v.typ == TypeBigInt }

func (v Value) IsNumber() bool {
	return v.typ == TypeFloatNumber || v.typ == TypeIntegerNumber
}

func (v Value) IsObject() bool {
	return v.typ >= TypeObject && v.typ <= TypeHostObject
}

func (v Value) IsArray() bool    { return v.typ == TypeArray }
func (v Value) IsFunction() bool { return v.typ == TypeFunction }
func (v Value) IsProxy() bool    { return v.typ == TypeProxy }

// IsCallable reports whether v has a [[Call]] internal method.
func (v Value) IsCallable() bool {
	switch v.typ {
	case TypeFunction:
		return true
	case TypeProxy:
		return v.AsProxy().callable
	}
	return false
}

// IsConstructor reports whether v has a [[Construct]] internal method.
func (v Value) IsConstructor() bool {
	switch v.typ {
	case TypeFunction:
		return v.AsFunction().Constructor
	case TypeProxy:
		return v.AsProxy().constructor
	}
	return false
}

func (v Value) AsBoolean() bool {
	if v.typ != TypeBoolean {
		panic("value is not a boolean")
	}
	return v.payload != 0
}

func (v Value) AsFloat() float64 {
	if v.typ != TypeFloatNumber {
		panic("value is not a float")
	}
	return math.Float64frombits(v.payload)
}

func (v Value) AsInteger() int32 {
	if v.typ != TypeIntegerNumber {
		panic("value is not an integer")
	}
	return int32(v.payload)
}

// AsNumber returns the float64 of either number representation.
func (v Value) AsNumber() float64 {
	switch v.typ {
	case TypeIntegerNumber:
		return float64(int32(v.payload))
	case TypeFloatNumber:
		return math.Float64frombits(v.payload)
	}
	panic("value is not a number")
}

func (v Value) AsBigInt() *big.Int {
	if v.typ != TypeBigInt {
		panic("value is not a big int")
	}
	return (*bigIntBox)(v.obj).value
}

func (v Value) AsString() string {
	if v.typ != TypeString {
		panic("value is not a string")
	}
	return (*stringBox)(v.obj).value
}

func (v Value) AsSymbol() *Symbol {
	if v.typ != TypeSymbol {
		panic("value is not a symbol")
	}
	return (*Symbol)(v.obj)
}

// AsPlainObject returns the ordinary-object part shared by every object kind.
func (v Value) AsPlainObject() *PlainObject {
	if !v.IsObject() {
		panic("value is not an object")
	}
	return (*PlainObject)(v.obj)
}

func (v Value) AsArray() *ArrayObject {
	if v.typ != TypeArray {
		panic("value is not an array")
	}
	return (*ArrayObject)(v.obj)
}

func (v Value) AsArguments() *ArgumentsObject {
	if v.typ != TypeArguments {
		panic("value is not an arguments object")
	}
	return (*ArgumentsObject)(v.obj)
}

func (v Value) AsFunction() *FunctionObject {
	if v.typ != TypeFunction {
		panic("value is not a function")
	}
	return (*FunctionObject)(v.obj)
}

func (v Value) AsError() *ErrorObject {
	if v.typ != TypeError {
		panic("value is not an error")
	}
	return (*ErrorObject)(v.obj)
}

func (v Value) AsMap() *MapObject {
	if v.typ != TypeMap {
		panic("value is not a map")
	}
	return (*MapObject)(v.obj)
}

func (v Value) AsSet() *SetObject {
	if v.typ != TypeSet {
		panic("value is not a set")
	}
	return (*SetObject)(v.obj)
}

func (v Value) AsWeakMap() *WeakMapObject {
	if v.typ != TypeWeakMap {
		panic("value is not a weakmap")
	}
	return (*WeakMapObject)(v.obj)
}

func (v Value) AsWeakSet() *WeakSetObject {
	if v.typ != TypeWeakSet {
		panic("value is not a weakset")
	}
	return (*WeakSetObject)(v.obj)
}

func (v Value) AsPromise() *PromiseObject {
	if v.typ != TypePromise {
		panic("value is not a promise")
	}
	return (*PromiseObject)(v.obj)
}

func (v Value) AsProxy() *ProxyObject {
	if v.typ != TypeProxy {
		panic("value is not a proxy")
	}
	return (*ProxyObject)(v.obj)
}

func (v Value) AsArrayBuffer() *ArrayBufferObject {
	if v.typ != TypeArrayBuffer {
		panic("value is not an array buffer")
	}
	return (*ArrayBufferObject)(v.obj)
}

func (v Value) AsTypedArray() *TypedArrayObject {
	if v.typ != TypeTypedArray {
		panic("value is not a typed array")
	}
	return (*TypedArrayObject)(v.obj)
}

func (v Value) AsIterator() *IteratorObject {
	if v.typ != TypeIterator {
		panic("value is not an iterator")
	}
	return (*IteratorObject)(v.obj)
}

func (v Value) AsHostObject() *HostObject {
	if v.typ != TypeHostObject {
		panic("value is not a host object")
	}
	return (*HostObject)(v.obj)
}

// TypeOf implements the typeof operator.
func (v Value) TypeOf() string {
	switch v.typ {
	case TypeUndefined, TypeHole:
		return "undefined"
	case TypeNull:
		return "object"
	case TypeBoolean:
		return "boolean"
	case TypeFloatNumber, TypeIntegerNumber:
		return "number"
	case TypeBigInt:
		return "bigint"
	case TypeString:
		return "string"
	case TypeSymbol:
		return "symbol"
	}
	if v.IsCallable() {
		return "function"
	}
	return "object"
}

// Is reports identity: same type and, for heap values, the same pointer.
// Primitive strings, numbers and bigints compare by content.
func (v Value) Is(other Value) bool {
	return StrictEquals(v, other)
}

// StrictEquals implements IsStrictlyEqual (===).
func StrictEquals(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() == b.AsNumber()
	}
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeUndefined, TypeNull, TypeHole:
		return true
	case TypeBoolean:
		return a.payload == b.payload
	case TypeString:
		return a.AsString() == b.AsString()
	case TypeBigInt:
		return a.AsBigInt().Cmp(b.AsBigInt()) == 0
	default:
		return a.obj == b.obj
	}
}

// SameValueZero is StrictEquals except that NaN equals NaN.
func SameValueZero(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		x, y := a.AsNumber(), b.AsNumber()
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		return x == y
	}
	return StrictEquals(a, b)
}

// SameValue is SameValueZero except that +0 and -0 differ.
func SameValue(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		x, y := a.AsNumber(), b.AsNumber()
		if x == 0 && y == 0 {
			return math.Signbit(x) == math.Signbit(y)
		}
	}
	return SameValueZero(a, b)
}

// NumberToString implements Number::toString(x) for radix 10.
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case f == 0:
		return "0"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f < 0:
		return "-" + NumberToString(-f)
	}

	// Shortest round-tripping digits, then the JS layout rules.
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	digits := strings.Replace(mant, ".", "", 1)
	e, _ := strconv.Atoi(exp)
	k := len(digits)
	n := e + 1

	switch {
	case k <= n && n <= 21:
		return digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return "0." + strings.Repeat("0", -n) + digits
	}

	sign := "+"
	if n-1 < 0 {
		sign = "-"
	}
	exponent := strconv.Itoa(abs(n - 1))
	if k == 1 {
		return digits + "e" + sign + exponent
	}
	return digits[:1] + "." + digits[1:] + "e" + sign + exponent
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Inspect renders a value for diagnostics. It never calls into user code.
func (v Value) Inspect() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeHole:
		return "<hole>"
	case TypeBoolean:
		if v.AsBoolean() {
			return "true"
		}
		return "false"
	case TypeFloatNumber, TypeIntegerNumber:
		return NumberToString(v.AsNumber())
	case TypeBigInt:
		return v.AsBigInt().String() + "n"
	case TypeString:
		return strconv.Quote(v.AsString())
	case TypeSymbol:
		return v.AsSymbol().String()
	case TypeArray:
		arr := v.AsArray()
		var sb strings.Builder
		sb.WriteByte('[')
		n := arr.Length()
		if n > 32 {
			n = 32
		}
		for i := int64(0); i < n; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if desc, ok := arr.getOwnProperty(IndexKey(i)); ok && !desc.IsAccessor() {
				sb.WriteString(desc.Value.Inspect())
			} else if ok {
				sb.WriteString("<accessor>")
			} else {
				sb.WriteString("<hole>")
			}
		}
		if arr.Length() > n {
			sb.WriteString(", ...")
		}
		sb.WriteByte(']')
		return sb.String()
	case TypeFunction:
		return fmt.Sprintf("[Function: %s]", v.AsFunction().Name)
	case TypeError:
		e := v.AsError()
		return fmt.Sprintf("[%s]", e.Kind)
	default:
		return fmt.Sprintf("[object %s]", v.typ)
	}
}

// String implements fmt.Stringer for debugging output.
func (v Value) String() string {
	return v.Inspect()
}
