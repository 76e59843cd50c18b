package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidjs/corvid/pkg/vm"
)

func TestPromiseAllSettlesInOrder(t *testing.T) {
	vmInstance := newTestVM(t)
	promise := global(t, vmInstance, "Promise")
	pending, resolve, _ := vmInstance.NewPendingPromise(vm.Undefined)

	all := invoke(t, vmInstance, promise, "all", vmInstance.NewArrayFromSlice([]vm.Value{
		pending, vm.IntegerValue(2),
	}))

	var result vm.Value
	invoke(t, vmInstance, all, "then", native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		result = args[0]
		return vm.Undefined, nil
	}))
	vmInstance.DrainMicrotasks()
	assert.True(t, result.IsUndefined(), "still waiting on the first promise")

	resolve(vm.IntegerValue(1))
	vmInstance.DrainMicrotasks()
	assert.Equal(t, "[1, 2]", result.Inspect())
}

func TestPromiseExecutorThrowRejects(t *testing.T) {
	vmInstance := newTestVM(t)
	p := construct(t, vmInstance, "Promise", native(vmInstance, func([]vm.Value) (vm.Value, error) {
		return vm.Undefined, vmInstance.NewRangeError("boom")
	}))

	var reason vm.Value
	invoke(t, vmInstance, p, "catch", native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		reason = args[0]
		return vm.Undefined, nil
	}))
	vmInstance.DrainMicrotasks()
	require.Equal(t, vm.TypeError, reason.Type())
	assert.Equal(t, "boom", get(t, vmInstance, reason, "message").AsString())
}

func TestPromiseFinallyPassesValueThrough(t *testing.T) {
	vmInstance := newTestVM(t)
	p := invoke(t, vmInstance, global(t, vmInstance, "Promise"), "resolve", str("kept"))

	ranFinally := false
	chained := invoke(t, vmInstance, p, "finally", native(vmInstance, func([]vm.Value) (vm.Value, error) {
		ranFinally = true
		return str("ignored"), nil
	}))
	var seen vm.Value
	invoke(t, vmInstance, chained, "then", native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		seen = args[0]
		return vm.Undefined, nil
	}))
	vmInstance.DrainMicrotasks()

	assert.True(t, ranFinally)
	assert.Equal(t, "kept", seen.AsString())
}
