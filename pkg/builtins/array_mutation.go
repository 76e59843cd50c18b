package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

func arrayPush(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	// 1. Let O be ? ToObject(this value).
	// 2. Let len be ? LengthOfArrayLike(O).
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	// 4. If len + argCount > 2^53 - 1, throw a TypeError exception.
	if err := checkLengthOverflow(vmInstance, float64(a.length)+float64(len(args))); err != nil {
		return vm.Undefined, err
	}
	// 5. For each element E of items, perform ? Set(O, len, E, true).
	n := a.length
	for _, v := range args {
		if err := a.set(n, v); err != nil {
			return vm.Undefined, err
		}
		n++
	}
	// 6. Perform ? Set(O, "length", len, true).
	return vm.IndexValue(n), a.setLength(vmInstance, n)
}

func arrayPop(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	// 3. If len = 0, set length to 0 and return undefined.
	if a.length == 0 {
		return vm.Undefined, a.setLength(vmInstance, 0)
	}
	// 4. Else, read element len - 1, delete it, shrink length.
	last := a.length - 1
	v, err := a.get(last)
	if err != nil {
		return vm.Undefined, err
	}
	if err := a.acc.Delete(last); err != nil {
		return vm.Undefined, err
	}
	return v, a.setLength(vmInstance, last)
}

func arrayShift(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	if a.length == 0 {
		return vm.Undefined, a.setLength(vmInstance, 0)
	}
	// 4. Let first be ? Get(O, "0").
	first, err := a.get(0)
	if err != nil {
		return vm.Undefined, err
	}
	// 5-6. Move every present element down by one; holes delete.
	if err := a.moveElements(vmInstance, 1, 0, a.length-1); err != nil {
		return vm.Undefined, err
	}
	// 7. Perform ? DeletePropertyOrThrow(O, len - 1).
	if err := a.acc.Delete(a.length - 1); err != nil {
		return vm.Undefined, err
	}
	// 8. Perform ? Set(O, "length", len - 1, true).
	return first, a.setLength(vmInstance, a.length-1)
}

func arrayUnshift(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	// 3. Let argCount be the number of elements in items.
	argc := int64(len(args))
	// 4. If argCount > 0,
	if argc > 0 {
		// a. If len + argCount > 2^53 - 1, throw a TypeError exception.
		if err := checkLengthOverflow(vmInstance, float64(a.length+argc)); err != nil {
			return vm.Undefined, err
		}
		// b-c. Move elements up by argCount, from the end.
		if err := a.moveElements(vmInstance, 0, argc, a.length); err != nil {
			return vm.Undefined, err
		}
		// d-f. Store items at the front.
		for j, v := range args {
			if err := a.set(int64(j), v); err != nil {
				return vm.Undefined, err
			}
		}
	}
	// 5. Perform ? Set(O, "length", len + argCount, true).
	return vm.IndexValue(a.length + argc), a.setLength(vmInstance, a.length+argc)
}

// spliceBounds resolves (start, deleteCount) the way splice and toSpliced
// share: one argument deletes to the end, none deletes nothing.
func spliceBounds(vmInstance *vm.VM, args []vm.Value, length int64) (start, deleteCount int64, err error) {
	start, err = vmInstance.RelativeIndex(arg(args, 0), length, 0)
	if err != nil {
		return 0, 0, err
	}
	switch len(args) {
	case 0:
		return start, 0, nil
	case 1:
		return start, length - start, nil
	}
	dc, err := vmInstance.ToIntegerOrInfinity(args[1])
	if err != nil {
		return 0, 0, err
	}
	dc = min(max(dc, 0), float64(length-start))
	return start, int64(dc), nil
}

func arraySplice(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	// 3-8. Resolve actualStart and actualDeleteCount.
	start, deleteCount, err := spliceBounds(vmInstance, args, a.length)
	if err != nil {
		return vm.Undefined, err
	}
	var items []vm.Value
	if len(args) > 2 {
		items = args[2:]
	}
	itemCount := int64(len(items))
	// 9. If len + itemCount - actualDeleteCount > 2^53 - 1, throw a TypeError exception.
	if err := checkLengthOverflow(vmInstance, float64(a.length+itemCount-deleteCount)); err != nil {
		return vm.Undefined, err
	}

	// 10. Let A be ? ArraySpeciesCreate(O, actualDeleteCount).
	// 11-12. Copy the deleted present elements into A.
	removed, err := vmInstance.ArraySpeciesCreate(a.obj, deleteCount)
	if err != nil {
		return vm.Undefined, err
	}
	err = a.forEachPresent(vmInstance, start, start+deleteCount, func(k int64, v vm.Value) (bool, error) {
		return false, vmInstance.CreateDataPropertyOrThrow(removed, vm.IndexKey(k-start), v)
	})
	if err != nil {
		return vm.Undefined, err
	}
	// 13. Perform ? Set(A, "length", actualDeleteCount, true).
	if err := vmInstance.Set(removed, vm.StringKey("length"), vm.IndexValue(deleteCount), true); err != nil {
		return vm.Undefined, err
	}

	tail := a.length - start - deleteCount
	newLength := a.length - deleteCount + itemCount
	switch {
	// 15. Shrinking: move the tail down, then delete from len - 1 downward.
	case itemCount < deleteCount:
		if err := a.moveElements(vmInstance, start+deleteCount, start+itemCount, tail); err != nil {
			return vm.Undefined, err
		}
		if err := a.deleteRange(newLength, a.length); err != nil {
			return vm.Undefined, err
		}
	// 16. Growing: move the tail up, starting from the end.
	case itemCount > deleteCount:
		if err := a.moveElements(vmInstance, start+deleteCount, start+itemCount, tail); err != nil {
			return vm.Undefined, err
		}
	}
	// 17-18. Store the items at actualStart.
	for j, v := range items {
		if err := a.set(start+int64(j), v); err != nil {
			return vm.Undefined, err
		}
	}
	// 19. Perform ? Set(O, "length", len - actualDeleteCount + itemCount, true).
	return removed, a.setLength(vmInstance, newLength)
}

// arrayReverse swaps from both ends toward the middle. When both ends are
// absent it jumps to the nearest present index on either side, mirrored
// into lower-half coordinates, so a huge sparse array costs O(present).
func arrayReverse(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	// 1. Let O be ? ToObject(this value).
	// 2. Let len be ? LengthOfArrayLike(O).
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	length := a.length
	// 3. Let middle be floor(len / 2).
	middle := length / 2
	// 4. Let lower be 0.
	// 5. Repeat, while lower ≠ middle,
	for lower := int64(0); lower < middle; {
		// a. Let upper be len - lower - 1.
		upper := length - 1 - lower
		var lowerV, upperV vm.Value
		// d. Let lowerExists be ? HasProperty(O, lowerP).
		// e. If lowerExists is true, let lowerValue be ? Get(O, lowerP).
		lowerR, err := a.acc.Has(lower)
		if err != nil {
			return vm.Undefined, err
		}
		if lowerR.IsPresent() {
			if lowerV, err = vmInstance.GetIndexedValue(lowerR, lower, a.obj); err != nil {
				return vm.Undefined, err
			}
		}
		// f. Let upperExists be ? HasProperty(O, upperP).
		// g. If upperExists is true, let upperValue be ? Get(O, upperP).
		upperR, err := a.acc.Has(upper)
		if err != nil {
			return vm.Undefined, err
		}
		if upperR.IsPresent() {
			if upperV, err = vmInstance.GetIndexedValue(upperR, upper, a.obj); err != nil {
				return vm.Undefined, err
			}
		}

		if !lowerR.IsPresent() && !upperR.IsPresent() {
			nextLower, err := a.acc.NextForward(lower, middle)
			if err != nil {
				return vm.Undefined, err
			}
			nextUpper, err := a.acc.NextBackward(upper, length-1-middle)
			if err != nil {
				return vm.Undefined, err
			}
			candidate := min(nextLower, length-1-nextUpper)
			if candidate <= lower {
				lower++
			} else {
				lower = candidate
			}
			continue
		}

		switch {
		// h. Both exist: swap.
		case lowerR.IsPresent() && upperR.IsPresent():
			if err := a.set(lower, upperV); err != nil {
				return vm.Undefined, err
			}
			err = a.set(upper, lowerV)
		// i. Only upper exists: move it down.
		case upperR.IsPresent():
			if err := a.set(lower, upperV); err != nil {
				return vm.Undefined, err
			}
			err = a.acc.Delete(upper)
		// j. Only lower exists: move it up.
		default:
			if err := a.acc.Delete(lower); err != nil {
				return vm.Undefined, err
			}
			err = a.set(upper, lowerV)
		}
		if err != nil {
			return vm.Undefined, err
		}
		// l. Set lower to lower + 1.
		lower++
	}
	// 6. Return O.
	return a.obj, nil
}

func arrayFill(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	// 3-6. Let k be the clamped relative start.
	start, err := vmInstance.RelativeIndex(arg(args, 1), a.length, 0)
	if err != nil {
		return vm.Undefined, err
	}
	// 7-10. Let final be the clamped relative end, len when absent.
	end, err := vmInstance.RelativeIndex(arg(args, 2), a.length, a.length)
	if err != nil {
		return vm.Undefined, err
	}
	// 11. Repeat, while k < final, perform ? Set(O, Pk, value, true).
	value := arg(args, 0)
	for k := start; k < end; k++ {
		if err := a.set(k, value); err != nil {
			return vm.Undefined, err
		}
	}
	return a.obj, nil
}

func arrayCopyWithin(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	to, err := vmInstance.RelativeIndex(arg(args, 0), a.length, 0)
	if err != nil {
		return vm.Undefined, err
	}
	from, err := vmInstance.RelativeIndex(arg(args, 1), a.length, 0)
	if err != nil {
		return vm.Undefined, err
	}
	final, err := vmInstance.RelativeIndex(arg(args, 2), a.length, a.length)
	if err != nil {
		return vm.Undefined, err
	}
	// 12. Let count be min(final - from, len - to).
	count := min(final-from, a.length-to)
	if count <= 0 {
		return a.obj, nil
	}
	// 13-15. Copy in the direction that does not clobber the source.
	return a.obj, a.moveElements(vmInstance, from, to, count)
}
