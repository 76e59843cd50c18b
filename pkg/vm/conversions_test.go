package vm

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"  \n42\t", 42},
		{"-1.5e3", -1500},
		{".5", 0.5},
		{"5.", 5},
		{"0x1F", 31},
		{"0o17", 15},
		{"0b101", 5},
		{"Infinity", math.Inf(1)},
		{"-Infinity", math.Inf(-1)},
		{"1e400", math.Inf(1)},
		{" 12 ", 12},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StringToNumber(c.in), "StringToNumber(%q)", c.in)
	}

	for _, bad := range []string{"abc", "1_000", "0x", "-0x10", "1e", "infinity", "12px"} {
		assert.True(t, math.IsNaN(StringToNumber(bad)), "StringToNumber(%q) should be NaN", bad)
	}
}

func TestParseFloatPrefix(t *testing.T) {
	assert.Equal(t, 3.14, ParseFloatPrefix("  3.14abc"))
	assert.Equal(t, 1e3, ParseFloatPrefix("1e3e4"))
	assert.Equal(t, math.Inf(-1), ParseFloatPrefix("-Infinityx"))
	assert.True(t, math.IsNaN(ParseFloatPrefix("x1")))
}

func TestToInt32AndToUint32(t *testing.T) {
	vm := New(Options{})
	cases := []struct {
		in     float64
		i32    int32
		uint32 uint32
	}{
		{0, 0, 0},
		{-1, -1, math.MaxUint32},
		{4294967296, 0, 0},
		{2147483648, math.MinInt32, 2147483648},
		{-2.7, -2, 4294967294},
		{math.NaN(), 0, 0},
		{math.Inf(1), 0, 0},
		{1e20, 1661992960, 1661992960},
	}
	for _, c := range cases {
		got, err := vm.ToInt32(NumberValue(c.in))
		require.NoError(t, err)
		assert.Equal(t, c.i32, got, "ToInt32(%v)", c.in)
		gotU, err := vm.ToUint32(NumberValue(c.in))
		require.NoError(t, err)
		assert.Equal(t, c.uint32, gotU, "ToUint32(%v)", c.in)
	}
}

func TestToBigInt(t *testing.T) {
	vm := New(Options{})

	n, err := vm.ToBigInt(NewString(" 0x10 "))
	require.NoError(t, err)
	assert.Equal(t, int64(16), n.Int64())

	n, err = vm.ToBigInt(True)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Int64())

	_, err = vm.ToBigInt(NewString("1.5"))
	thrown, ok := AsException(err)
	require.True(t, ok)
	assert.Equal(t, KindSyntaxError, thrown.AsError().Kind)

	_, err = vm.ToBigInt(IntegerValue(1))
	thrown, ok = AsException(err)
	require.True(t, ok)
	assert.Equal(t, KindTypeError, thrown.AsError().Kind)
}

func TestBigIntWrapping(t *testing.T) {
	big2to64 := new(big.Int).Lsh(big.NewInt(1), 64)
	assert.Equal(t, int64(-1), BigIntToInt64(big.NewInt(-1)))
	assert.Equal(t, uint64(math.MaxUint64), BigIntToUint64(big.NewInt(-1)))
	assert.Equal(t, int64(5), BigIntToInt64(new(big.Int).Add(big2to64, big.NewInt(5))))
	assert.Equal(t, int64(math.MinInt64), AsIntN64(new(big.Int).Lsh(big.NewInt(1), 63)).Int64())
}

func TestToPrimitiveOrder(t *testing.T) {
	vm := New(Options{})
	obj := NewObject(Null)
	var calls []string
	method := func(name string, result Value) Value {
		return vm.NewNativeFunction(0, false, name, func(args []Value) (Value, error) {
			calls = append(calls, name)
			return result, nil
		})
	}
	obj.AsPlainObject().SetOwn("valueOf", method("valueOf", NewObject(Null)))
	obj.AsPlainObject().SetOwn("toString", method("toString", NewString("7")))

	n, err := vm.ToNumber(obj)
	require.NoError(t, err)
	assert.Equal(t, 7.0, n)
	assert.Equal(t, []string{"valueOf", "toString"}, calls)

	calls = nil
	s, err := vm.ToString(obj)
	require.NoError(t, err)
	assert.Equal(t, "7", s)
	assert.Equal(t, []string{"toString"}, calls)
}

func TestToPrimitivePrefersSymbolMethod(t *testing.T) {
	vm := New(Options{})
	obj := NewObject(Null)
	var hint string
	obj.AsPlainObject().SetOwnSymbolNonEnumerable(SymbolToPrimitive, vm.NewNativeFunction(1, false, "", func(args []Value) (Value, error) {
		hint = args[0].AsString()
		return IntegerValue(3), nil
	}))
	n, err := vm.ToNumber(obj)
	require.NoError(t, err)
	assert.Equal(t, 3.0, n)
	assert.Equal(t, "number", hint)
}

func TestToObjectString(t *testing.T) {
	vm := New(Options{})
	obj, err := vm.ToObject(NewString("hé"))
	require.NoError(t, err)

	n, err := vm.LengthOfArrayLike(obj)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	v, err := vm.Get(obj, IndexKey(1))
	require.NoError(t, err)
	assert.Equal(t, "é", v.AsString())

	prim, ok := PrimitiveOf(obj, "String")
	require.True(t, ok)
	assert.Equal(t, "hé", prim.AsString())

	_, err = vm.ToObject(Undefined)
	assert.Error(t, err)
}

func TestToLengthAndRelativeIndex(t *testing.T) {
	vm := New(Options{})
	n, err := vm.ToLength(NumberValue(-0.5))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.Equal(t, int64(3), ClampRelative(-2, 5))
	assert.Equal(t, int64(0), ClampRelative(math.Inf(-1), 5))
	assert.Equal(t, int64(5), ClampRelative(9, 5))

	i, err := vm.RelativeIndex(Undefined, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), i)
}

func TestNumberToString(t *testing.T) {
	cases := map[float64]string{
		0:        "0",
		-1.5:     "-1.5",
		1e21:     "1e+21",
		1e-7:     "1e-7",
		123e-20:  "1.23e-18",
		0.000001: "0.000001",
		100:      "100",
		1 << 60:  "1152921504606847000",
	}
	for in, want := range cases {
		assert.Equal(t, want, NumberToString(in))
	}
}
