package builtins

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidjs/corvid/pkg/vm"
)

func newTestVM(t *testing.T) *vm.VM {
	t.Helper()
	vmInstance := vm.New(vm.Options{})
	require.NoError(t, Install(vmInstance))
	return vmInstance
}

func global(t *testing.T, vmInstance *vm.VM, name string) vm.Value {
	t.Helper()
	v, ok := vmInstance.GetGlobal(name)
	require.True(t, ok, "global %s", name)
	return v
}

// invoke calls obj[name](...args) and fails the test on a throw.
func invoke(t *testing.T, vmInstance *vm.VM, obj vm.Value, name string, args ...vm.Value) vm.Value {
	t.Helper()
	result, err := vmInstance.Invoke(obj, vm.StringKey(name), args)
	require.NoError(t, err)
	return result
}

func construct(t *testing.T, vmInstance *vm.VM, name string, args ...vm.Value) vm.Value {
	t.Helper()
	result, err := vmInstance.Construct(global(t, vmInstance, name), args, vm.Undefined)
	require.NoError(t, err)
	return result
}

func get(t *testing.T, vmInstance *vm.VM, obj vm.Value, name string) vm.Value {
	t.Helper()
	v, err := vmInstance.Get(obj, vm.StringKey(name))
	require.NoError(t, err)
	return v
}

func native(vmInstance *vm.VM, fn func(args []vm.Value) (vm.Value, error)) vm.Value {
	return vmInstance.NewNativeFunction(0, true, "", fn)
}

func ints(vmInstance *vm.VM, values ...int32) vm.Value {
	out := make([]vm.Value, len(values))
	for i, v := range values {
		out[i] = vm.IntegerValue(v)
	}
	return vmInstance.NewArrayFromSlice(out)
}

// sparse builds an array of the given length holding only the listed
// indices.
func sparse(t *testing.T, vmInstance *vm.VM, length int64, present map[int64]vm.Value) vm.Value {
	t.Helper()
	arr := vmInstance.NewArrayWithLength(length)
	for i, v := range present {
		require.NoError(t, vmInstance.CreateDataPropertyOrThrow(arr, vm.IndexKey(i), v))
	}
	return arr
}

// thrownName returns the name of the error object err carries.
func thrownName(t *testing.T, vmInstance *vm.VM, err error) string {
	t.Helper()
	require.Error(t, err)
	thrown, ok := vm.AsException(err)
	require.True(t, ok, "not a thrown value: %v", err)
	name, err := vmInstance.Get(thrown, vm.StringKey("name"))
	require.NoError(t, err)
	return name.AsString()
}

func str(s string) vm.Value { return vm.NewString(s) }
