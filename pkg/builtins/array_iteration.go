package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

// callbackWalk drives every/some/forEach/map/filter: the callback sees only
// present elements, in ascending order, and is called with (v, k, O).
func callbackWalk(vmInstance *vm.VM, method string, args []vm.Value, visit func(a *arrayLike, k int64, v, result vm.Value) (bool, error)) (*arrayLike, error) {
	// 1. Let O be ? ToObject(this value).
	// 2. Let len be ? LengthOfArrayLike(O).
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return nil, err
	}
	// 3. If IsCallable(callbackfn) is false, throw a TypeError exception.
	fn, thisArg := arg(args, 0), arg(args, 1)
	if err := requireCallable(vmInstance, fn, "Array.prototype."+method); err != nil {
		return nil, err
	}
	// 5. Repeat, while k < len: if ? HasProperty(O, Pk), let kValue be
	// ? Get(O, Pk) and call callbackfn with (kValue, k, O).
	err = a.forEachPresent(vmInstance, 0, a.length, func(k int64, v vm.Value) (bool, error) {
		result, err := vmInstance.Call(fn, thisArg, []vm.Value{v, vm.IndexValue(k), a.obj})
		if err != nil {
			return false, err
		}
		return visit(a, k, v, result)
	})
	return a, err
}

func arrayEvery(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	ok := true
	_, err := callbackWalk(vmInstance, "every", args, func(_ *arrayLike, _ int64, _, result vm.Value) (bool, error) {
		if !vm.ToBoolean(result) {
			ok = false
			return true, nil
		}
		return false, nil
	})
	return vm.BooleanValue(ok), err
}

func arraySome(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	found := false
	_, err := callbackWalk(vmInstance, "some", args, func(_ *arrayLike, _ int64, _, result vm.Value) (bool, error) {
		if vm.ToBoolean(result) {
			found = true
			return true, nil
		}
		return false, nil
	})
	return vm.BooleanValue(found), err
}

func arrayForEach(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	_, err := callbackWalk(vmInstance, "forEach", args, func(*arrayLike, int64, vm.Value, vm.Value) (bool, error) {
		return false, nil
	})
	return vm.Undefined, err
}

func arrayMap(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	fn, thisArg := arg(args, 0), arg(args, 1)
	if err := requireCallable(vmInstance, fn, "Array.prototype.map"); err != nil {
		return vm.Undefined, err
	}
	// 4. Let A be ? ArraySpeciesCreate(O, len).
	out, err := vmInstance.ArraySpeciesCreate(a.obj, a.length)
	if err != nil {
		return vm.Undefined, err
	}
	// 6. For each present k, perform ? CreateDataPropertyOrThrow(A, Pk,
	// ? Call(callbackfn, thisArg, « kValue, k, O »)).
	err = a.forEachPresent(vmInstance, 0, a.length, func(k int64, v vm.Value) (bool, error) {
		mapped, err := vmInstance.Call(fn, thisArg, []vm.Value{v, vm.IndexValue(k), a.obj})
		if err != nil {
			return false, err
		}
		return false, vmInstance.CreateDataPropertyOrThrow(out, vm.IndexKey(k), mapped)
	})
	return out, err
}

func arrayFilter(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	fn, thisArg := arg(args, 0), arg(args, 1)
	if err := requireCallable(vmInstance, fn, "Array.prototype.filter"); err != nil {
		return vm.Undefined, err
	}
	// 4. Let A be ? ArraySpeciesCreate(O, 0).
	out, err := vmInstance.ArraySpeciesCreate(a.obj, 0)
	if err != nil {
		return vm.Undefined, err
	}
	// 6. Let to be 0; each selected kValue goes to A[to].
	to := int64(0)
	err = a.forEachPresent(vmInstance, 0, a.length, func(k int64, v vm.Value) (bool, error) {
		selected, err := vmInstance.Call(fn, thisArg, []vm.Value{v, vm.IndexValue(k), a.obj})
		if err != nil || !vm.ToBoolean(selected) {
			return false, err
		}
		err = vmInstance.CreateDataPropertyOrThrow(out, vm.IndexKey(to), v)
		to++
		return false, err
	})
	return out, err
}

// reduceSeed finds the first present element in walk order, used as the
// accumulator when no initial value is given.
func reduceSeed(vmInstance *vm.VM, a *arrayLike, backward bool) (vm.Value, int64, error) {
	var (
		seed  vm.Value
		at    int64 = -1
		found bool
	)
	visit := func(k int64, v vm.Value) (bool, error) {
		seed, at, found = v, k, true
		return true, nil
	}
	var err error
	if backward {
		err = a.forEachPresentBackward(vmInstance, a.length-1, -1, visit)
	} else {
		err = a.forEachPresent(vmInstance, 0, a.length, visit)
	}
	if err != nil {
		return vm.Undefined, 0, err
	}
	if !found {
		return vm.Undefined, 0, vmInstance.NewTypeError("Reduce of empty array with no initial value")
	}
	return seed, at, nil
}

func reduceImpl(vmInstance *vm.VM, args []vm.Value, backward bool) (vm.Value, error) {
	method := "Array.prototype.reduce"
	if backward {
		method += "Right"
	}
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	fn := arg(args, 0)
	if err := requireCallable(vmInstance, fn, method); err != nil {
		return vm.Undefined, err
	}

	var acc vm.Value
	start := int64(0)
	if backward {
		start = a.length - 1
	}
	if len(args) >= 2 {
		acc = args[1]
	} else {
		seed, at, err := reduceSeed(vmInstance, a, backward)
		if err != nil {
			return vm.Undefined, err
		}
		acc = seed
		if backward {
			start = at - 1
		} else {
			start = at + 1
		}
	}

	step := func(k int64, v vm.Value) (bool, error) {
		next, err := vmInstance.Call(fn, vm.Undefined, []vm.Value{acc, v, vm.IndexValue(k), a.obj})
		if err != nil {
			return false, err
		}
		acc = next
		return false, nil
	}
	if backward {
		err = a.forEachPresentBackward(vmInstance, start, -1, step)
	} else {
		err = a.forEachPresent(vmInstance, start, a.length, step)
	}
	return acc, err
}

func arrayReduce(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	return reduceImpl(vmInstance, args, false)
}

func arrayReduceRight(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	return reduceImpl(vmInstance, args, true)
}

// findImpl visits every index, holes included, since find treats a hole as
// undefined.
func findImpl(vmInstance *vm.VM, method string, args []vm.Value, backward bool) (vm.Value, int64, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, -1, err
	}
	pred, thisArg := arg(args, 0), arg(args, 1)
	if err := requireCallable(vmInstance, pred, "Array.prototype."+method); err != nil {
		return vm.Undefined, -1, err
	}
	for i := int64(0); i < a.length; i++ {
		k := i
		if backward {
			k = a.length - 1 - i
		}
		v, err := a.get(k)
		if err != nil {
			return vm.Undefined, -1, err
		}
		hit, err := vmInstance.Call(pred, thisArg, []vm.Value{v, vm.IndexValue(k), a.obj})
		if err != nil {
			return vm.Undefined, -1, err
		}
		if vm.ToBoolean(hit) {
			return v, k, nil
		}
	}
	return vm.Undefined, -1, nil
}

func arrayFind(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	v, _, err := findImpl(vmInstance, "find", args, false)
	return v, err
}

func arrayFindIndex(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	_, k, err := findImpl(vmInstance, "findIndex", args, false)
	return vm.IndexValue(k), err
}

func arrayFindLast(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	v, _, err := findImpl(vmInstance, "findLast", args, true)
	return v, err
}

func arrayFindLastIndex(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	_, k, err := findImpl(vmInstance, "findLastIndex", args, true)
	return vm.IndexValue(k), err
}
