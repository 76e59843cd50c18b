package vm

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// StrDecimalLiteral and its prefix form, in the ECMAScript regex flavor.
var (
	strDecimalLiteral = regexp2.MustCompile(`^[+-]?(?:Infinity|(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?)$`, regexp2.ECMAScript)
	strDecimalPrefix  = regexp2.MustCompile(`^[+-]?(?:Infinity|(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?)`, regexp2.ECMAScript)
	strNonDecimal     = regexp2.MustCompile(`^0(?:[xX][0-9a-fA-F]+|[oO][0-7]+|[bB][01]+)$`, regexp2.ECMAScript)
)

// IsJSWhitespace reports whether r is a StrWhiteSpaceChar.
func IsJSWhitespace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0xa0, 0x1680, 0x2028, 0x2029, 0x202f, 0x205f, 0x3000, 0xfeff:
		return true
	}
	return r >= 0x2000 && r <= 0x200a
}

// TrimJSWhitespace strips StrWhiteSpaceChar from both ends.
func TrimJSWhitespace(s string) string {
	return strings.TrimFunc(s, IsJSWhitespace)
}

// StringToNumber implements StringToNumber(str).
func StringToNumber(s string) float64 {
	s = TrimJSWhitespace(s)
	if s == "" {
		return 0
	}
	if ok, _ := strNonDecimal.MatchString(s); ok {
		base := 16
		switch s[1] {
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		n, _ := new(big.Int).SetString(s[2:], base)
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	}
	if ok, _ := strDecimalLiteral.MatchString(s); !ok {
		return math.NaN()
	}
	return parseDecimal(s)
}

// ParseFloatPrefix returns the longest StrDecimalLiteral prefix of the
// whitespace-trimmed s as a number, or NaN.
func ParseFloatPrefix(s string) float64 {
	s = strings.TrimLeftFunc(s, IsJSWhitespace)
	m, err := strDecimalPrefix.FindStringMatch(s)
	if err != nil || m == nil {
		return math.NaN()
	}
	return parseDecimal(m.String())
}

func parseDecimal(s string) float64 {
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	// ParseFloat reports ErrRange with ±Inf or 0, which is the JS result too.
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// ToBoolean implements ToBoolean(argument).
func ToBoolean(v Value) bool {
	switch v.typ {
	case TypeUndefined, TypeNull, TypeHole:
		return false
	case TypeBoolean:
		return v.AsBoolean()
	case TypeFloatNumber, TypeIntegerNumber:
		f := v.AsNumber()
		return f != 0 && !math.IsNaN(f)
	case TypeString:
		return v.AsString() != ""
	case TypeBigInt:
		return v.AsBigInt().Sign() != 0
	}
	return true
}

// ToPrimitive implements ToPrimitive(input, preferredType). hint is
// "default", "number" or "string".
func (vm *VM) ToPrimitive(v Value, hint string) (Value, error) {
	if !v.IsObject() {
		return v, nil
	}
	exotic, err := vm.GetMethod(v, SymbolKey(SymbolToPrimitive))
	if err != nil {
		return Undefined, err
	}
	if !exotic.IsUndefined() {
		res, err := vm.Call(exotic, v, []Value{NewString(hint)})
		if err != nil {
			return Undefined, err
		}
		if res.IsObject() {
			return Undefined, vm.NewTypeError("Cannot convert object to primitive value")
		}
		return res, nil
	}
	order := []string{"valueOf", "toString"}
	if hint == "string" {
		order = []string{"toString", "valueOf"}
	}
	for _, name := range order {
		fn, err := vm.Get(v, StringKey(name))
		if err != nil {
			return Undefined, err
		}
		if fn.IsCallable() {
			res, err := vm.Call(fn, v, nil)
			if err != nil {
				return Undefined, err
			}
			if !res.IsObject() {
				return res, nil
			}
		}
	}
	return Undefined, vm.NewTypeError("Cannot convert object to primitive value")
}

// ToNumber implements ToNumber(argument).
func (vm *VM) ToNumber(v Value) (float64, error) {
	switch v.typ {
	case TypeUndefined, TypeHole:
		return math.NaN(), nil
	case TypeNull:
		return 0, nil
	case TypeBoolean:
		if v.AsBoolean() {
			return 1, nil
		}
		return 0, nil
	case TypeFloatNumber, TypeIntegerNumber:
		return v.AsNumber(), nil
	case TypeString:
		return StringToNumber(v.AsString()), nil
	case TypeSymbol:
		return 0, vm.NewTypeError("Cannot convert a Symbol value to a number")
	case TypeBigInt:
		return 0, vm.NewTypeError("Cannot convert a BigInt value to a number")
	}
	prim, err := vm.ToPrimitive(v, "number")
	if err != nil {
		return 0, err
	}
	return vm.ToNumber(prim)
}

// ToNumeric implements ToNumeric(value): a number Value or a BigInt.
func (vm *VM) ToNumeric(v Value) (Value, error) {
	prim, err := vm.ToPrimitive(v, "number")
	if err != nil {
		return Undefined, err
	}
	if prim.IsBigInt() {
		return prim, nil
	}
	f, err := vm.ToNumber(prim)
	if err != nil {
		return Undefined, err
	}
	return NumberValue(f), nil
}

// ToString implements ToString(argument).
func (vm *VM) ToString(v Value) (string, error) {
	switch v.typ {
	case TypeUndefined, TypeHole:
		return "undefined", nil
	case TypeNull:
		return "null", nil
	case TypeBoolean:
		if v.AsBoolean() {
			return "true", nil
		}
		return "false", nil
	case TypeFloatNumber, TypeIntegerNumber:
		return NumberToString(v.AsNumber()), nil
	case TypeString:
		return v.AsString(), nil
	case TypeBigInt:
		return v.AsBigInt().String(), nil
	case TypeSymbol:
		return "", vm.NewTypeError("Cannot convert a Symbol value to a string")
	}
	prim, err := vm.ToPrimitive(v, "string")
	if err != nil {
		return "", err
	}
	return vm.ToString(prim)
}

// ToPropertyKey implements ToPropertyKey(argument).
func (vm *VM) ToPropertyKey(v Value) (PropertyKey, error) {
	prim, err := vm.ToPrimitive(v, "string")
	if err != nil {
		return PropertyKey{}, err
	}
	if prim.IsSymbol() {
		return SymbolKey(prim.AsSymbol()), nil
	}
	s, err := vm.ToString(prim)
	if err != nil {
		return PropertyKey{}, err
	}
	return StringKey(s), nil
}

// ToObject implements ToObject(argument). Primitives are boxed in a host
// object carrying the primitive, with the matching prototype.
func (vm *VM) ToObject(v Value) (Value, error) {
	switch v.typ {
	case TypeUndefined, TypeNull, TypeHole:
		return Undefined, vm.NewTypeErrorf("Cannot convert %s to object", v.Inspect())
	case TypeBoolean:
		return NewHostObject(vm.realm.BooleanPrototype, "Boolean", v), nil
	case TypeFloatNumber, TypeIntegerNumber:
		return NewHostObject(vm.realm.NumberPrototype, "Number", v), nil
	case TypeBigInt:
		return NewHostObject(vm.realm.BigIntPrototype, "BigInt", v), nil
	case TypeSymbol:
		return NewHostObject(vm.realm.SymbolPrototype, "Symbol", v), nil
	case TypeString:
		return vm.newStringObject(v), nil
	}
	return v, nil
}

// newStringObject boxes a string. Its code units become read-only indexed
// properties next to a read-only length.
func (vm *VM) newStringObject(s Value) Value {
	obj := NewHostObject(vm.realm.StringPrototype, "String", s)
	po := obj.AsPlainObject()
	units := utf16.Encode([]rune(s.AsString()))
	for i, u := range units {
		po.putOwn(IndexKey(int64(i)), DataProperty(NewString(codeUnitString(u)), false, true, false))
	}
	po.putOwn(lengthKey, DataProperty(IndexValue(int64(len(units))), false, false, false))
	return obj
}

func codeUnitString(u uint16) string {
	if utf16.IsSurrogate(rune(u)) {
		return string(utf8.RuneError)
	}
	return string(rune(u))
}

// PrimitiveOf returns the primitive inside a boxed primitive of the given
// class, e.g. thisNumberValue's unwrapping.
func PrimitiveOf(v Value, class string) (Value, bool) {
	if v.typ != TypeHostObject {
		return Undefined, false
	}
	h := v.AsHostObject()
	if h.class != class {
		return Undefined, false
	}
	prim, ok := h.Data.(Value)
	return prim, ok
}

// ToIntegerOrInfinity implements ToIntegerOrInfinity(argument).
func (vm *VM) ToIntegerOrInfinity(v Value) (float64, error) {
	if v.typ == TypeIntegerNumber {
		return float64(v.AsInteger()), nil
	}
	f, err := vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	return integerOrInfinity(f), nil
}

func integerOrInfinity(f float64) float64 {
	if math.IsNaN(f) || f == 0 {
		return 0
	}
	if math.IsInf(f, 0) {
		return f
	}
	return math.Trunc(f)
}

// ToLength implements ToLength(argument): an integer in [0, 2^53-1].
func (vm *VM) ToLength(v Value) (int64, error) {
	f, err := vm.ToIntegerOrInfinity(v)
	if err != nil {
		return 0, err
	}
	return clampLength(f), nil
}

func clampLength(f float64) int64 {
	if f <= 0 {
		return 0
	}
	if f >= MaxSafeInteger {
		return MaxSafeInteger
	}
	return int64(f)
}

// ToIndex implements ToIndex(value).
func (vm *VM) ToIndex(v Value) (int64, error) {
	if v.IsUndefined() {
		return 0, nil
	}
	f, err := vm.ToIntegerOrInfinity(v)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > MaxSafeInteger {
		return 0, vm.NewRangeError("Invalid index")
	}
	return int64(f), nil
}

// RelativeIndex resolves a relative start/end argument against len, the
// shared clamp of slice, splice, fill, copyWithin and friends. Undefined
// yields dflt.
func (vm *VM) RelativeIndex(v Value, length int64, dflt int64) (int64, error) {
	if v.IsUndefined() {
		return dflt, nil
	}
	rel, err := vm.ToIntegerOrInfinity(v)
	if err != nil {
		return 0, err
	}
	return ClampRelative(rel, length), nil
}

// ClampRelative maps a relative index into [0, length].
func ClampRelative(rel float64, length int64) int64 {
	if rel < 0 {
		if r := float64(length) + rel; r > 0 {
			return int64(r)
		}
		return 0
	}
	if rel > float64(length) {
		return length
	}
	return int64(rel)
}

// ToInt32 implements ToInt32(argument).
func (vm *VM) ToInt32(v Value) (int32, error) {
	if v.typ == TypeIntegerNumber {
		return v.AsInteger(), nil
	}
	f, err := vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	return int32(float64ToUint32(f)), nil
}

// ToUint32 implements ToUint32(argument).
func (vm *VM) ToUint32(v Value) (uint32, error) {
	f, err := vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	return float64ToUint32(f), nil
}

// float64ToUint32 is the modulo-2^32 step shared by ToInt32 and ToUint32.
func float64ToUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	if f >= -(1<<63) && f < (1<<63) {
		return uint32(int64(f))
	}
	m := math.Mod(f, 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return uint32(m)
}

// ToBigInt implements ToBigInt(argument).
func (vm *VM) ToBigInt(v Value) (*big.Int, error) {
	prim, err := vm.ToPrimitive(v, "number")
	if err != nil {
		return nil, err
	}
	switch prim.typ {
	case TypeBigInt:
		return prim.AsBigInt(), nil
	case TypeBoolean:
		if prim.AsBoolean() {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case TypeString:
		n, ok := StringToBigInt(prim.AsString())
		if !ok {
			return nil, vm.NewSyntaxError("Cannot convert " + prim.AsString() + " to a BigInt")
		}
		return n, nil
	}
	return nil, vm.NewTypeErrorf("Cannot convert %s to a BigInt", prim.Inspect())
}

// StringToBigInt implements StringToBigInt(str).
func StringToBigInt(s string) (*big.Int, bool) {
	s = TrimJSWhitespace(s)
	if s == "" {
		return new(big.Int), true
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 10 {
			s = s[2:]
		}
	}
	if base == 10 && strings.ContainsAny(s, "_") {
		return nil, false
	}
	if base != 10 && (strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")) {
		return nil, false
	}
	return new(big.Int).SetString(s, base)
}

var (
	two64 = new(big.Int).Lsh(big.NewInt(1), 64)
	two63 = new(big.Int).Lsh(big.NewInt(1), 63)
)

// BigIntToInt64 implements BigInt.asIntN(64, n).
func BigIntToInt64(n *big.Int) int64 {
	return int64(BigIntToUint64(n))
}

// BigIntToUint64 implements BigInt.asUintN(64, n).
func BigIntToUint64(n *big.Int) uint64 {
	m := new(big.Int).Mod(n, two64)
	return m.Uint64()
}

// AsIntN implements BigInt.asIntN(bits, n) for bits == 64 without
// allocating when n already fits.
func AsIntN64(n *big.Int) *big.Int {
	if n.IsInt64() {
		return n
	}
	m := new(big.Int).Mod(n, two64)
	if m.Cmp(two63) >= 0 {
		m.Sub(m, two64)
	}
	return m
}

func (vm *VM) ToTypedArrayElement(kind TypedArrayKind, v Value) (Value, error) {
	if kind.IsBigInt() {
		n, err := vm.ToBigInt(v)
		if err != nil {
			return Undefined, err
		}
		return NewBigInt(n), nil
	}
	f, err := vm.ToNumber(v)
	if err != nil {
		return Undefined, err
	}
	return NumberValue(f), nil
}

// CodeUnits returns the UTF-16 code units of s, the unit JS string
// comparison works in.
func CodeUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// CompareCodeUnits orders two strings by UTF-16 code units.
func CompareCodeUnits(a, b []uint16) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
