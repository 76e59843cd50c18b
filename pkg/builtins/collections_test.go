package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidjs/corvid/pkg/vm"
)

func pairs(vmInstance *vm.VM, kv ...vm.Value) vm.Value {
	var entries []vm.Value
	for i := 0; i+1 < len(kv); i += 2 {
		entries = append(entries, vmInstance.NewArrayFromSlice([]vm.Value{kv[i], kv[i+1]}))
	}
	return vmInstance.NewArrayFromSlice(entries)
}

func TestMapForEachObservesDeletion(t *testing.T) {
	vmInstance := newTestVM(t)
	m := construct(t, vmInstance, "Map", pairs(vmInstance,
		vm.IntegerValue(1), str("a"),
		vm.IntegerValue(2), str("b"),
		vm.IntegerValue(3), str("c"),
	))

	var visited []float64
	invoke(t, vmInstance, m, "forEach", native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		visited = append(visited, args[1].AsNumber())
		if args[1].AsNumber() == 1 {
			if _, err := vmInstance.Invoke(m, vm.StringKey("delete"), []vm.Value{vm.IntegerValue(2)}); err != nil {
				return vm.Undefined, err
			}
		}
		return vm.Undefined, nil
	}))

	assert.Equal(t, []float64{1, 3}, visited)
	assert.Equal(t, float64(2), get(t, vmInstance, m, "size").AsNumber())
}

func TestMapForEachVisitsEntriesAddedDuringIteration(t *testing.T) {
	vmInstance := newTestVM(t)
	m := construct(t, vmInstance, "Map", pairs(vmInstance, str("a"), vm.IntegerValue(1)))

	count := 0
	invoke(t, vmInstance, m, "forEach", native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		if count++; count == 1 {
			invoke(t, vmInstance, m, "set", str("b"), vm.IntegerValue(2))
		}
		return vm.Undefined, nil
	}))
	assert.Equal(t, 2, count)
}

func TestMapIteratorIsLive(t *testing.T) {
	vmInstance := newTestVM(t)
	m := construct(t, vmInstance, "Map", pairs(vmInstance, str("a"), vm.IntegerValue(1), str("b"), vm.IntegerValue(2)))
	iter := invoke(t, vmInstance, m, "keys")

	first := invoke(t, vmInstance, iter, "next")
	assert.Equal(t, "a", get(t, vmInstance, first, "value").AsString())

	invoke(t, vmInstance, m, "delete", str("b"))
	invoke(t, vmInstance, m, "set", str("c"), vm.IntegerValue(3))

	second := invoke(t, vmInstance, iter, "next")
	assert.Equal(t, "c", get(t, vmInstance, second, "value").AsString())
	done := invoke(t, vmInstance, iter, "next")
	assert.True(t, get(t, vmInstance, done, "done").AsBoolean())
}

func TestMapConstructorClosesIteratorOnBadEntry(t *testing.T) {
	vmInstance := newTestVM(t)
	_, err := vmInstance.Construct(global(t, vmInstance, "Map"), []vm.Value{ints(vmInstance, 1)}, vm.Undefined)
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, err))
}

func TestMapRequiresNew(t *testing.T) {
	vmInstance := newTestVM(t)
	_, err := vmInstance.Call(global(t, vmInstance, "Map"), vm.Undefined, nil)
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, err))
}

func TestSetDeduplicatesWithSameValueZero(t *testing.T) {
	vmInstance := newTestVM(t)
	s := construct(t, vmInstance, "Set", vmInstance.NewArrayFromSlice([]vm.Value{
		vm.NaN, vm.NaN, vm.IntegerValue(0), vm.NumberValue(-0.0), str("x"),
	}))

	assert.Equal(t, float64(3), get(t, vmInstance, s, "size").AsNumber())
	assert.True(t, invoke(t, vmInstance, s, "has", vm.NaN).AsBoolean())

	keys := get(t, vmInstance, global(t, vmInstance, "Set"), "prototype")
	values := get(t, vmInstance, keys, "values")
	assert.Equal(t, values, get(t, vmInstance, keys, "keys"), "keys is values")
}

func TestWeakCollectionsRejectPrimitives(t *testing.T) {
	vmInstance := newTestVM(t)
	wm := construct(t, vmInstance, "WeakMap")
	ws := construct(t, vmInstance, "WeakSet")

	_, err := vmInstance.Invoke(wm, vm.StringKey("set"), []vm.Value{str("k"), vm.True})
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, err))
	_, err = vmInstance.Invoke(ws, vm.StringKey("add"), []vm.Value{vm.IntegerValue(1)})
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, err))

	key := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	invoke(t, vmInstance, wm, "set", key, str("v"))
	assert.Equal(t, "v", invoke(t, vmInstance, wm, "get", key).AsString())
	assert.False(t, invoke(t, vmInstance, wm, "has", str("k")).AsBoolean())

	invoke(t, vmInstance, ws, "add", key)
	assert.True(t, invoke(t, vmInstance, ws, "has", key).AsBoolean())
	assert.True(t, invoke(t, vmInstance, ws, "delete", key).AsBoolean())
	assert.False(t, invoke(t, vmInstance, ws, "has", key).AsBoolean())
}

func TestWeakMapAcceptsUnregisteredSymbols(t *testing.T) {
	vmInstance := newTestVM(t)
	wm := construct(t, vmInstance, "WeakMap")
	symbolCtor := global(t, vmInstance, "Symbol")

	local, err := vmInstance.Call(symbolCtor, vm.Undefined, []vm.Value{str("local")})
	require.NoError(t, err)
	invoke(t, vmInstance, wm, "set", local, vm.True)

	registered := invoke(t, vmInstance, symbolCtor, "for", str("shared"))
	_, err = vmInstance.Invoke(wm, vm.StringKey("set"), []vm.Value{registered, vm.True})
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, err))
}
