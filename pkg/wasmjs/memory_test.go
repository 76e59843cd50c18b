package wasmjs

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidjs/corvid/internal/wasmtest"
	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

func TestMemoryBufferDetachesOnGrow(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	mem, err := newWasm(t, vmInstance, "Memory", object(vmInstance, "initial", vm.IntegerValue(1), "maximum", vm.IntegerValue(2)))
	require.NoError(t, err)

	buf := member(t, vmInstance, mem, "buffer")
	assert.Len(t, buf.AsArrayBuffer().GetData(), wasm.PageSize)
	assert.True(t, buf.Is(member(t, vmInstance, mem, "buffer")), "buffer is stable until grow")
	buf.AsArrayBuffer().GetData()[3] = 42

	prev, err := vmInstance.Invoke(mem, vm.StringKey("grow"), []vm.Value{vm.IntegerValue(1)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, prev.AsNumber())
	assert.True(t, buf.AsArrayBuffer().IsDetached())

	grown := member(t, vmInstance, mem, "buffer")
	assert.Len(t, grown.AsArrayBuffer().GetData(), 2*wasm.PageSize)
	assert.Equal(t, byte(42), grown.AsArrayBuffer().GetData()[3])

	_, err = vmInstance.Invoke(mem, vm.StringKey("grow"), []vm.Value{vm.IntegerValue(1)})
	assert.Equal(t, vm.KindRangeError, thrownKind(t, err))

	_, err = newWasm(t, vmInstance, "Memory", object(vmInstance, "initial", vm.IntegerValue(3), "maximum", vm.IntegerValue(2)))
	assert.Equal(t, vm.KindRangeError, thrownKind(t, err))
	_, err = newWasm(t, vmInstance, "Memory", object(vmInstance))
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))
	_, err = newWasm(t, vmInstance, "Memory", object(vmInstance, "initial", vm.IntegerValue(-1)))
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))
}

func TestMemoryImportSharesBytes(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	mem, err := newWasm(t, vmInstance, "Memory", object(vmInstance, "initial", vm.IntegerValue(1)))
	require.NoError(t, err)

	exports := instantiate(t, vmInstance, &wasmtest.Module{
		Imports: []wasmtest.Import{{Module: "js", Name: "mem", Kind: "memory", Memory: &wasmtest.Limits{Min: 1}}},
		Data:    []wasmtest.Data{{Offset: 16, Bytes: "corvid"}},
		Exports: []wasmtest.Export{{Name: "mem", Kind: "memory", Index: 0}},
	}, object(vmInstance, "js", object(vmInstance, "mem", mem)))

	assert.True(t, member(t, vmInstance, exports, "mem").Is(mem), "the imported memory is re-exported as the same object")
	data := member(t, vmInstance, mem, "buffer").AsArrayBuffer().GetData()
	assert.Equal(t, "corvid", string(data[16:22]))
}

func TestTable(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	tbl, err := newWasm(t, vmInstance, "Table", object(vmInstance, "element", vm.NewString("externref"), "initial", vm.IntegerValue(2)))
	require.NoError(t, err)
	assert.Equal(t, 2.0, member(t, vmInstance, tbl, "length").AsNumber())

	got, err := vmInstance.Invoke(tbl, vm.StringKey("get"), []vm.Value{vm.IntegerValue(0)})
	require.NoError(t, err)
	assert.True(t, got.IsUndefined(), "externref tables default to undefined")

	obj := object(vmInstance)
	_, err = vmInstance.Invoke(tbl, vm.StringKey("set"), []vm.Value{vm.IntegerValue(1), obj})
	require.NoError(t, err)
	got, err = vmInstance.Invoke(tbl, vm.StringKey("get"), []vm.Value{vm.IntegerValue(1)})
	require.NoError(t, err)
	assert.True(t, got.Is(obj))

	_, err = vmInstance.Invoke(tbl, vm.StringKey("set"), []vm.Value{vm.IntegerValue(1), vm.Null})
	require.NoError(t, err)
	got, err = vmInstance.Invoke(tbl, vm.StringKey("get"), []vm.Value{vm.IntegerValue(1)})
	require.NoError(t, err)
	assert.True(t, got.IsNull())

	prev, err := vmInstance.Invoke(tbl, vm.StringKey("grow"), []vm.Value{vm.IntegerValue(3), obj})
	require.NoError(t, err)
	assert.Equal(t, 2.0, prev.AsNumber())
	got, err = vmInstance.Invoke(tbl, vm.StringKey("get"), []vm.Value{vm.IntegerValue(4)})
	require.NoError(t, err)
	assert.True(t, got.Is(obj))

	_, err = vmInstance.Invoke(tbl, vm.StringKey("get"), []vm.Value{vm.IntegerValue(5)})
	assert.Equal(t, vm.KindRangeError, thrownKind(t, err))

	funcs, err := newWasm(t, vmInstance, "Table", object(vmInstance, "element", vm.NewString("anyfunc"), "initial", vm.IntegerValue(1)))
	require.NoError(t, err)
	got, err = vmInstance.Invoke(funcs, vm.StringKey("get"), []vm.Value{vm.IntegerValue(0)})
	require.NoError(t, err)
	assert.True(t, got.IsNull())
	_, err = vmInstance.Invoke(funcs, vm.StringKey("set"), []vm.Value{vm.IntegerValue(0), obj})
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))

	_, err = newWasm(t, vmInstance, "Table", object(vmInstance, "element", vm.NewString("i32"), "initial", vm.IntegerValue(1)))
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))
}

func TestGlobal(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	counter, err := newWasm(t, vmInstance, "Global",
		object(vmInstance, "value", vm.NewString("i64"), "mutable", vm.True), vm.NewBigInt(big.NewInt(41)))
	require.NoError(t, err)
	assert.Equal(t, int64(41), member(t, vmInstance, counter, "value").AsBigInt().Int64())

	exports := instantiate(t, vmInstance, &wasmtest.Module{
		Imports: []wasmtest.Import{{
			Module: "env", Name: "counter", Kind: "global",
			Global: &wasmtest.Global{Type: "i64", Mutable: true},
		}},
		Funcs: []wasmtest.Func{{
			Body: []string{"global.get 0", "i64.const 1", "i64.add", "global.set 0"},
		}},
		Exports: []wasmtest.Export{
			{Name: "bump", Kind: "func", Index: 0},
			{Name: "counter", Kind: "global", Index: 0},
		},
	}, object(vmInstance, "env", object(vmInstance, "counter", counter)))

	_, err = call(vmInstance, member(t, vmInstance, exports, "bump"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), member(t, vmInstance, counter, "value").AsBigInt().Int64())
	assert.True(t, member(t, vmInstance, exports, "counter").Is(counter))

	require.NoError(t, vmInstance.Set(counter, vm.StringKey("value"), vm.NewBigInt(big.NewInt(-5)), true))
	got, err := vmInstance.Invoke(counter, vm.StringKey("valueOf"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), got.AsBigInt().Int64())

	fixed, err := newWasm(t, vmInstance, "Global", object(vmInstance, "value", vm.NewString("f32")), vm.NumberValue(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.5, member(t, vmInstance, fixed, "value").AsNumber())
	err = vmInstance.Set(fixed, vm.StringKey("value"), vm.NumberValue(1), true)
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))

	zero, err := newWasm(t, vmInstance, "Global", object(vmInstance, "value", vm.NewString("i32")))
	require.NoError(t, err)
	assert.Equal(t, 0.0, member(t, vmInstance, zero, "value").AsNumber())

	// An immutable Number import becomes a fresh global; a mutable one must
	// be a Global object.
	m := &wasmtest.Module{
		Imports: []wasmtest.Import{{Module: "env", Name: "g", Kind: "global", Global: &wasmtest.Global{Type: "i32", Mutable: true}}},
	}
	module, err := newWasm(t, vmInstance, "Module", bytesOf(vmInstance, m))
	require.NoError(t, err)
	_, err = newWasm(t, vmInstance, "Instance", module, object(vmInstance, "env", object(vmInstance, "g", vm.IntegerValue(1))))
	assert.Equal(t, vm.KindLinkError, thrownKind(t, err))

	m.Imports[0].Global.Mutable = false
	m.Funcs = []wasmtest.Func{{Results: []string{"i32"}, Body: []string{"global.get 0"}}}
	m.Exports = []wasmtest.Export{{Name: "read", Kind: "func", Index: 0}}
	exports = instantiate(t, vmInstance, m, object(vmInstance, "env", object(vmInstance, "g", vm.IntegerValue(7))))
	got, err = call(vmInstance, member(t, vmInstance, exports, "read"))
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.AsNumber())
}
