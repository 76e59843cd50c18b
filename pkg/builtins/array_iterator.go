package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type iterationKind uint8

const (
	iterateKeys iterationKind = iota
	iterateValues
	iterateEntries
)

// newArrayIterator implements CreateArrayIterator. The length is re-read on
// every step so elements pushed during iteration are visited.
func newArrayIterator(vmInstance *vm.VM, obj vm.Value, kind iterationKind) vm.Value {
	acc := vmInstance.Indexed(obj)
	index := int64(0)
	return vmInstance.NewNativeIterator(vmInstance.Realm().ArrayIteratorPrototype, "Array Iterator", func() (vm.Value, bool, error) {
		length, err := acc.Length()
		if err != nil {
			return vm.Undefined, true, err
		}
		if index >= length {
			return vm.Undefined, true, nil
		}
		k := index
		index++
		if kind == iterateKeys {
			return vm.IndexValue(k), false, nil
		}
		v, err := acc.Get(k, obj)
		if err != nil {
			return vm.Undefined, true, err
		}
		if kind == iterateValues {
			return v, false, nil
		}
		return vmInstance.NewArrayFromSlice([]vm.Value{vm.IndexValue(k), v}), false, nil
	})
}

func arrayIteratorMethod(kind iterationKind) arrayFunc {
	return func(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
		obj, err := vmInstance.ToObject(vmInstance.GetThis())
		if err != nil {
			return vm.Undefined, err
		}
		return newArrayIterator(vmInstance, obj, kind), nil
	}
}
