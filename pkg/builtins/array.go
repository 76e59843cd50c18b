package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

// arrayFunc is the shape of every Array.prototype algorithm: it reads the
// receiver from the VM like any native function body.
type arrayFunc func(vmInstance *vm.VM, args []vm.Value) (vm.Value, error)

func bindVM(vmInstance *vm.VM, fn arrayFunc) vm.NativeFunc {
	return func(args []vm.Value) (vm.Value, error) {
		return fn(vmInstance, args)
	}
}

// arrayLike is the receiver of an Array.prototype method after ToObject and
// LengthOfArrayLike.
type arrayLike struct {
	obj    vm.Value
	acc    vm.IndexedAccessor
	length int64
}

func thisArrayLike(vmInstance *vm.VM) (*arrayLike, error) {
	obj, err := vmInstance.ToObject(vmInstance.GetThis())
	if err != nil {
		return nil, err
	}
	return toArrayLike(vmInstance, obj)
}

func toArrayLike(vmInstance *vm.VM, obj vm.Value) (*arrayLike, error) {
	acc := vmInstance.Indexed(obj)
	n, err := acc.Length()
	if err != nil {
		return nil, err
	}
	return &arrayLike{obj: obj, acc: acc, length: n}, nil
}

func (a *arrayLike) get(k int64) (vm.Value, error) {
	return a.acc.Get(k, a.obj)
}

func (a *arrayLike) set(k int64, v vm.Value) error {
	return a.acc.Set(k, v)
}

func (a *arrayLike) setLength(vmInstance *vm.VM, n int64) error {
	return vmInstance.Set(a.obj, vm.StringKey("length"), vm.IndexValue(n), true)
}

// forEachPresent visits the indices in [from, to) that HasProperty reports,
// in ascending order, reading each with Get. Absent runs are skipped with
// NextIndexForward, so no [[Get]] happens on a hole. visit returns stop=true
// to end the walk early.
func (a *arrayLike) forEachPresent(vmInstance *vm.VM, from, to int64, visit func(k int64, v vm.Value) (bool, error)) error {
	for k := from; k < to; k++ {
		next, err := a.acc.NextForward(k, to)
		if err != nil {
			return err
		}
		if next >= to {
			return nil
		}
		k = next
		r, err := a.acc.Has(k)
		if err != nil {
			return err
		}
		if !r.IsPresent() {
			continue
		}
		v, err := vmInstance.GetIndexedValue(r, k, a.obj)
		if err != nil {
			return err
		}
		stop, err := visit(k, v)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

// forEachPresentBackward is the descending mirror of forEachPresent over
// (downTo, from].
func (a *arrayLike) forEachPresentBackward(vmInstance *vm.VM, from, downTo int64, visit func(k int64, v vm.Value) (bool, error)) error {
	for k := from; k > downTo; k-- {
		prev, err := a.acc.NextBackward(k, downTo)
		if err != nil {
			return err
		}
		if prev <= downTo {
			return nil
		}
		k = prev
		r, err := a.acc.Has(k)
		if err != nil {
			return err
		}
		if !r.IsPresent() {
			continue
		}
		v, err := vmInstance.GetIndexedValue(r, k, a.obj)
		if err != nil {
			return err
		}
		stop, err := visit(k, v)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

// moveElements copies count elements from index from to index to, deleting
// targets whose source is absent. It walks backwards when the ranges
// overlap with to > from. Runs where both source and target are absent are
// skipped; proxies never report such runs.
func (a *arrayLike) moveElements(vmInstance *vm.VM, from, to, count int64) error {
	step := func(k int64) error {
		r, err := a.acc.Has(from + k)
		if err != nil {
			return err
		}
		if !r.IsPresent() {
			return a.acc.Delete(to + k)
		}
		v, err := vmInstance.GetIndexedValue(r, from+k, a.obj)
		if err != nil {
			return err
		}
		return a.set(to+k, v)
	}

	if to <= from {
		for k := int64(0); k < count; k++ {
			nextSrc, err := a.acc.NextForward(from+k, from+count)
			if err != nil {
				return err
			}
			nextDst, err := a.acc.NextForward(to+k, to+count)
			if err != nil {
				return err
			}
			if k = min(nextSrc-from, nextDst-to); k >= count {
				return nil
			}
			if err := step(k); err != nil {
				return err
			}
		}
		return nil
	}

	for k := count - 1; k >= 0; k-- {
		prevSrc, err := a.acc.NextBackward(from+k, from-1)
		if err != nil {
			return err
		}
		prevDst, err := a.acc.NextBackward(to+k, to-1)
		if err != nil {
			return err
		}
		if k = max(prevSrc-from, prevDst-to); k < 0 {
			return nil
		}
		if err := step(k); err != nil {
			return err
		}
	}
	return nil
}

// deleteRange deletes every present index in [from, to), highest first.
func (a *arrayLike) deleteRange(from, to int64) error {
	for k := to - 1; k >= from; k-- {
		prev, err := a.acc.NextBackward(k, from-1)
		if err != nil {
			return err
		}
		if prev < from {
			return nil
		}
		k = prev
		if err := a.acc.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// deleteRangeUpward deletes every present index in [from, to), lowest
// first. Sort clears its tail in this order.
func (a *arrayLike) deleteRangeUpward(from, to int64) error {
	for k := from; k < to; k++ {
		next, err := a.acc.NextForward(k, to)
		if err != nil {
			return err
		}
		if next >= to {
			return nil
		}
		k = next
		if err := a.acc.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func requireCallable(vmInstance *vm.VM, fn vm.Value, method string) error {
	if !fn.IsCallable() {
		return vmInstance.NewTypeErrorf("%s: %s is not a function", method, fn.Inspect())
	}
	return nil
}

// checkLengthOverflow throws the TypeError for results longer than 2^53-1.
func checkLengthOverflow(vmInstance *vm.VM, n float64) error {
	if n > vm.MaxSafeInteger {
		return vmInstance.NewTypeErrorf("Invalid array length %s", vm.NumberToString(n))
	}
	return nil
}

// newDenseArray builds the result of the copying methods (toSorted, with,
// ...): always a fresh Array from the realm, never a species instance.
func newDenseArray(vmInstance *vm.VM, length int64, fill func(k int64) (vm.Value, error)) (vm.Value, error) {
	if length > vm.MaxArrayLength {
		return vm.Undefined, vmInstance.NewRangeError("Invalid array length")
	}
	values := make([]vm.Value, 0, min(length, 1<<16))
	for k := int64(0); k < length; k++ {
		v, err := fill(k)
		if err != nil {
			return vm.Undefined, err
		}
		values = append(values, v)
	}
	return vmInstance.NewArrayFromSlice(values), nil
}
