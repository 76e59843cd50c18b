package builtins

import (
	"math"

	"github.com/corvidjs/corvid/pkg/vm"
)

func arraySlice(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	start, err := vmInstance.RelativeIndex(arg(args, 0), a.length, 0)
	if err != nil {
		return vm.Undefined, err
	}
	end, err := vmInstance.RelativeIndex(arg(args, 1), a.length, a.length)
	if err != nil {
		return vm.Undefined, err
	}
	count := max(end-start, 0)
	out, err := vmInstance.ArraySpeciesCreate(a.obj, count)
	if err != nil {
		return vm.Undefined, err
	}
	err = a.forEachPresent(vmInstance, start, end, func(k int64, v vm.Value) (bool, error) {
		return false, vmInstance.CreateDataPropertyOrThrow(out, vm.IndexKey(k-start), v)
	})
	if err != nil {
		return vm.Undefined, err
	}
	return out, vmInstance.Set(out, vm.StringKey("length"), vm.IndexValue(count), true)
}

func isConcatSpreadable(vmInstance *vm.VM, o vm.Value) (bool, error) {
	if !o.IsObject() {
		return false, nil
	}
	spreadable, err := vmInstance.Get(o, vm.SymbolKey(vm.SymbolIsConcatSpreadable))
	if err != nil {
		return false, err
	}
	if !spreadable.IsUndefined() {
		return vm.ToBoolean(spreadable), nil
	}
	return vmInstance.IsArray(o)
}

func arrayConcat(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	// 1. Let O be ? ToObject(this value).
	obj, err := vmInstance.ToObject(vmInstance.GetThis())
	if err != nil {
		return vm.Undefined, err
	}
	// 2. Let A be ? ArraySpeciesCreate(O, 0).
	out, err := vmInstance.ArraySpeciesCreate(obj, 0)
	if err != nil {
		return vm.Undefined, err
	}
	// 3. Let n be 0.
	n := int64(0)
	// 5. For each element E of « O » followed by the arguments,
	for _, item := range append([]vm.Value{obj}, args...) {
		// a. Let spreadable be ? IsConcatSpreadable(E).
		spreadable, err := isConcatSpreadable(vmInstance, item)
		if err != nil {
			return vm.Undefined, err
		}
		// c. Else, append E itself.
		if !spreadable {
			if err := checkLengthOverflow(vmInstance, float64(n)+1); err != nil {
				return vm.Undefined, err
			}
			if err := vmInstance.CreateDataPropertyOrThrow(out, vm.IndexKey(n), item); err != nil {
				return vm.Undefined, err
			}
			n++
			continue
		}
		e, err := toArrayLike(vmInstance, item)
		if err != nil {
			return vm.Undefined, err
		}
		// b.ii. If n + len > 2^53 - 1, throw a TypeError exception.
		if err := checkLengthOverflow(vmInstance, float64(n)+float64(e.length)); err != nil {
			return vm.Undefined, err
		}
		// b.iii. Copy each present index k of E to A[n + k].
		base := n
		err = e.forEachPresent(vmInstance, 0, e.length, func(k int64, v vm.Value) (bool, error) {
			return false, vmInstance.CreateDataPropertyOrThrow(out, vm.IndexKey(base+k), v)
		})
		if err != nil {
			return vm.Undefined, err
		}
		n += e.length
	}
	// 6. Perform ? Set(A, "length", n, true).
	return out, vmInstance.Set(out, vm.StringKey("length"), vm.IndexValue(n), true)
}

// flattenInto implements FlattenIntoArray. depth is a float so that
// Infinity recurses without bound.
func flattenInto(vmInstance *vm.VM, target vm.Value, source *arrayLike, start int64, depth float64, mapper, thisArg vm.Value) (int64, error) {
	targetIndex := start
	err := source.forEachPresent(vmInstance, 0, source.length, func(k int64, v vm.Value) (bool, error) {
		if !mapper.IsUndefined() {
			mapped, err := vmInstance.Call(mapper, thisArg, []vm.Value{v, vm.IndexValue(k), source.obj})
			if err != nil {
				return false, err
			}
			v = mapped
		}
		if depth > 0 {
			isArray, err := vmInstance.IsArray(v)
			if err != nil {
				return false, err
			}
			if isArray {
				inner, err := toArrayLike(vmInstance, v)
				if err != nil {
					return false, err
				}
				targetIndex, err = flattenInto(vmInstance, target, inner, targetIndex, depth-1, vm.Undefined, vm.Undefined)
				return false, err
			}
		}
		if err := checkLengthOverflow(vmInstance, float64(targetIndex)+1); err != nil {
			return false, err
		}
		err := vmInstance.CreateDataPropertyOrThrow(target, vm.IndexKey(targetIndex), v)
		targetIndex++
		return false, err
	})
	return targetIndex, err
}

func arrayFlat(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	depth := 1.0
	if d := arg(args, 0); !d.IsUndefined() {
		if depth, err = vmInstance.ToIntegerOrInfinity(d); err != nil {
			return vm.Undefined, err
		}
		depth = math.Max(depth, 0)
	}
	out, err := vmInstance.ArraySpeciesCreate(a.obj, 0)
	if err != nil {
		return vm.Undefined, err
	}
	_, err = flattenInto(vmInstance, out, a, 0, depth, vm.Undefined, vm.Undefined)
	return out, err
}

func arrayFlatMap(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	mapper := arg(args, 0)
	if err := requireCallable(vmInstance, mapper, "Array.prototype.flatMap"); err != nil {
		return vm.Undefined, err
	}
	out, err := vmInstance.ArraySpeciesCreate(a.obj, 0)
	if err != nil {
		return vm.Undefined, err
	}
	_, err = flattenInto(vmInstance, out, a, 0, 1, mapper, arg(args, 1))
	return out, err
}

func arrayWith(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	rel, err := vmInstance.ToIntegerOrInfinity(arg(args, 0))
	if err != nil {
		return vm.Undefined, err
	}
	actual := rel
	if rel < 0 {
		actual = float64(a.length) + rel
	}
	if actual < 0 || actual >= float64(a.length) {
		return vm.Undefined, vmInstance.NewRangeError("Invalid index : " + vm.NumberToString(rel))
	}
	index, value := int64(actual), arg(args, 1)
	return newDenseArray(vmInstance, a.length, func(k int64) (vm.Value, error) {
		if k == index {
			return value, nil
		}
		return a.get(k)
	})
}

func arrayToReversed(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	return newDenseArray(vmInstance, a.length, func(k int64) (vm.Value, error) {
		return a.get(a.length - 1 - k)
	})
}

func arrayToSpliced(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	start, skip, err := spliceBounds(vmInstance, args, a.length)
	if err != nil {
		return vm.Undefined, err
	}
	var items []vm.Value
	if len(args) > 2 {
		items = args[2:]
	}
	itemCount := int64(len(items))
	newLength := a.length + itemCount - skip
	if err := checkLengthOverflow(vmInstance, float64(newLength)); err != nil {
		return vm.Undefined, err
	}
	return newDenseArray(vmInstance, newLength, func(k int64) (vm.Value, error) {
		switch {
		case k < start:
			return a.get(k)
		case k < start+itemCount:
			return items[k-start], nil
		}
		return a.get(k - itemCount + skip)
	})
}
