package builtins

import (
	"math"

	"github.com/corvidjs/corvid/pkg/vm"
)

// sortCompare is SortCompare(x, y) for values that are neither holes nor
// undefined.
func sortCompare(vmInstance *vm.VM, comparefn vm.Value) func(x, y vm.Value) (int, error) {
	if !comparefn.IsUndefined() {
		return func(x, y vm.Value) (int, error) {
			r, err := vmInstance.Call(comparefn, vm.Undefined, []vm.Value{x, y})
			if err != nil {
				return 0, err
			}
			f, err := vmInstance.ToNumber(r)
			if err != nil {
				return 0, err
			}
			switch {
			case math.IsNaN(f) || f == 0:
				return 0, nil
			case f < 0:
				return -1, nil
			}
			return 1, nil
		}
	}
	return func(x, y vm.Value) (int, error) {
		xs, err := vmInstance.ToString(x)
		if err != nil {
			return 0, err
		}
		ys, err := vmInstance.ToString(y)
		if err != nil {
			return 0, err
		}
		return vm.CompareCodeUnits(vm.CodeUnits(xs), vm.CodeUnits(ys)), nil
	}
}

// mergeSort is a stable top-down merge sort that stops at the first
// comparator error.
func mergeSort(values []vm.Value, cmp func(x, y vm.Value) (int, error)) error {
	if len(values) < 2 {
		return nil
	}
	buf := make([]vm.Value, len(values))
	var sortRange func(lo, hi int) error
	sortRange = func(lo, hi int) error {
		if hi-lo < 2 {
			return nil
		}
		mid := lo + (hi-lo)/2
		if err := sortRange(lo, mid); err != nil {
			return err
		}
		if err := sortRange(mid, hi); err != nil {
			return err
		}
		i, j, k := lo, mid, lo
		for i < mid && j < hi {
			c, err := cmp(values[j], values[i])
			if err != nil {
				return err
			}
			if c < 0 {
				buf[k] = values[j]
				j++
			} else {
				buf[k] = values[i]
				i++
			}
			k++
		}
		k += copy(buf[k:], values[i:mid])
		copy(buf[k:], values[j:hi])
		copy(values[lo:hi], buf[lo:hi])
		return nil
	}
	return sortRange(0, len(values))
}

// sortValues orders defined values with cmp and appends undefined ones, the
// first two tiers of the sort order. Holes are the caller's concern.
func sortValues(vmInstance *vm.VM, values []vm.Value, comparefn vm.Value) ([]vm.Value, error) {
	defined := values[:0:0]
	undefinedCount := 0
	for _, v := range values {
		if v.IsUndefined() {
			undefinedCount++
			continue
		}
		defined = append(defined, v)
	}
	if err := mergeSort(defined, sortCompare(vmInstance, comparefn)); err != nil {
		return nil, err
	}
	for range undefinedCount {
		defined = append(defined, vm.Undefined)
	}
	return defined, nil
}

func requireComparator(vmInstance *vm.VM, comparefn vm.Value, method string) error {
	if !comparefn.IsUndefined() && !comparefn.IsCallable() {
		return vmInstance.NewTypeErrorf("%s: The comparison function must be either a function or undefined", method)
	}
	return nil
}

// arraySort collects the present elements, sorts them, writes them back
// from index 0 and deletes whatever present indices remain, so holes end
// up after undefined.
func arraySort(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	// 1. If comparefn is not undefined and IsCallable(comparefn) is false,
	// throw a TypeError exception.
	comparefn := arg(args, 0)
	if err := requireComparator(vmInstance, comparefn, "Array.prototype.sort"); err != nil {
		return vm.Undefined, err
	}
	// 2. Let obj be ? ToObject(this value).
	// 3. Let len be ? LengthOfArrayLike(obj).
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	// 5. Let sortedList be ? SortIndexedProperties(obj, len, SortCompare, skip-holes).
	var items []vm.Value
	err = a.forEachPresent(vmInstance, 0, a.length, func(_ int64, v vm.Value) (bool, error) {
		items = append(items, v)
		return false, nil
	})
	if err != nil {
		return vm.Undefined, err
	}
	sorted, err := sortValues(vmInstance, items, comparefn)
	if err != nil {
		return vm.Undefined, err
	}
	// 6. Let itemCount be the number of elements in sortedList.
	// 7-9. Write sortedList back from index 0.
	for k, v := range sorted {
		if err := a.set(int64(k), v); err != nil {
			return vm.Undefined, err
		}
	}
	// 10. Repeat, while j < len, perform ? DeletePropertyOrThrow(obj, j).
	return a.obj, a.deleteRangeUpward(int64(len(sorted)), a.length)
}

// arrayToSorted reads every index; a hole reads as undefined and so sorts
// with the undefined tier.
func arrayToSorted(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	comparefn := arg(args, 0)
	if err := requireComparator(vmInstance, comparefn, "Array.prototype.toSorted"); err != nil {
		return vm.Undefined, err
	}
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	if a.length > vm.MaxArrayLength {
		return vm.Undefined, vmInstance.NewRangeError("Invalid array length")
	}
	items := make([]vm.Value, 0, min(a.length, 1<<16))
	for k := int64(0); k < a.length; k++ {
		v, err := a.get(k)
		if err != nil {
			return vm.Undefined, err
		}
		items = append(items, v)
	}
	sorted, err := sortValues(vmInstance, items, comparefn)
	if err != nil {
		return vm.Undefined, err
	}
	return vmInstance.NewArrayFromSlice(sorted), nil
}
