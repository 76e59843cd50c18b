package wasmjs

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/corvidjs/corvid/pkg/builtins"
	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

func newTestBridge(t *testing.T) (*vm.VM, *Bridge) {
	t.Helper()
	vmInstance := vm.New(vm.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, builtins.Install(vmInstance, &Initializer{}))
	b := BridgeFor(vmInstance)
	t.Cleanup(func() { _ = b.Close() })
	return vmInstance, b
}

func TestReferenceIdentityRoundTrip(t *testing.T) {
	vmInstance, b := newTestBridge(t)
	obj := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	fn := vmInstance.NewNativeFunction(0, false, "f", func([]vm.Value) (vm.Value, error) { return vm.Undefined, nil })

	for _, v := range []vm.Value{obj, fn, vmInstance.NewArray(), vm.Undefined, vm.NewString("s"), vm.NumberValue(1.5)} {
		w, err := b.ToWebAssemblyValue(v, wasm.TypeExternRef)
		require.NoError(t, err)
		assert.False(t, w.IsNull())

		again, err := b.ToWebAssemblyValue(v, wasm.TypeExternRef)
		require.NoError(t, err)
		assert.Equal(t, w, again, "one handle per value")

		back, err := b.ToJSValue(w)
		require.NoError(t, err)
		assert.True(t, back.Is(v), "%s did not survive the round trip", v.Inspect())
	}

	w, err := b.ToWebAssemblyValue(vm.Null, wasm.TypeExternRef)
	require.NoError(t, err)
	assert.True(t, w.IsNull())
	back, err := b.ToJSValue(w)
	require.NoError(t, err)
	assert.True(t, back.IsNull())

	_, err = b.ToWebAssemblyValue(fn, wasm.TypeFuncRef)
	ex, ok := vm.AsException(err)
	require.True(t, ok)
	assert.Equal(t, vm.KindTypeError, ex.AsError().Kind)

	w, err = b.ToWebAssemblyValue(vm.Null, wasm.TypeFuncRef)
	require.NoError(t, err)
	assert.True(t, w.IsNull())
}

func TestExportedFunctionRoundTrip(t *testing.T) {
	_, b := newTestBridge(t)
	host := wasm.NewHostFunction("h", wasm.FuncType{}, func([]wasm.Value) ([]wasm.Value, error) { return nil, nil })
	fn := b.exportFunction(host)
	assert.True(t, fn.Is(b.exportFunction(host)))

	w, err := b.ToWebAssemblyValue(fn, wasm.TypeFuncRef)
	require.NoError(t, err)
	back, err := b.ToJSValue(w)
	require.NoError(t, err)
	assert.True(t, back.Is(fn))
}

func TestNumericRoundTrip(t *testing.T) {
	_, b := newTestBridge(t)

	roundTrip := func(v vm.Value, typ wasm.ValueType) vm.Value {
		t.Helper()
		w, err := b.ToWebAssemblyValue(v, typ)
		require.NoError(t, err)
		assert.Equal(t, typ, w.Type())
		back, err := b.ToJSValue(w)
		require.NoError(t, err)
		return back
	}

	assert.Equal(t, 5.0, roundTrip(vm.NumberValue(math.Pow(2, 32)+5), wasm.TypeI32).AsNumber())
	assert.Equal(t, -1.0, roundTrip(vm.NumberValue(-1.9), wasm.TypeI32).AsNumber())
	assert.Equal(t, 0.0, roundTrip(vm.NaN, wasm.TypeI32).AsNumber())

	big64 := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(3))
	assert.Equal(t, int64(3), roundTrip(vm.NewBigInt(big64), wasm.TypeI64).AsBigInt().Int64())
	assert.Equal(t, int64(-1), roundTrip(vm.NewBigInt(big.NewInt(-1)), wasm.TypeI64).AsBigInt().Int64())

	assert.Equal(t, float64(float32(0.1)), roundTrip(vm.NumberValue(0.1), wasm.TypeF32).AsNumber())
	assert.Equal(t, 0.1, roundTrip(vm.NumberValue(0.1), wasm.TypeF64).AsNumber())
	assert.True(t, math.IsInf(roundTrip(vm.NumberValue(math.Inf(-1)), wasm.TypeF32).AsNumber(), -1))

	nan, err := b.ToWebAssemblyValue(vm.NaN, wasm.TypeF32)
	require.NoError(t, err)
	assert.True(t, nan.IsCanonicalNaN())

	_, err = b.ToWebAssemblyValue(vm.NumberValue(1), wasm.TypeI64)
	ex, ok := vm.AsException(err)
	require.True(t, ok, "Numbers do not convert to i64")
	assert.Equal(t, vm.KindTypeError, ex.AsError().Kind)
}

func TestDefaultValue(t *testing.T) {
	_, b := newTestBridge(t)

	w, err := b.DefaultValue(wasm.TypeExternRef)
	require.NoError(t, err)
	assert.False(t, w.IsNull())
	v, err := b.ToJSValue(w)
	require.NoError(t, err)
	assert.True(t, v.IsUndefined())

	w, err = b.DefaultValue(wasm.TypeFuncRef)
	require.NoError(t, err)
	assert.True(t, w.IsNull())

	w, err = b.DefaultValue(wasm.TypeF64)
	require.NoError(t, err)
	assert.Equal(t, wasm.F64(0), w)
}
