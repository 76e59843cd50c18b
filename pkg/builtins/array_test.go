package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidjs/corvid/pkg/vm"
)

func TestJoinRendersHolesAsEmpty(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := sparse(t, vmInstance, 3, map[int64]vm.Value{0: vm.IntegerValue(1), 2: vm.IntegerValue(3)})

	assert.Equal(t, "1,,3", invoke(t, vmInstance, arr, "join", str(",")).AsString())
	assert.Equal(t, "1,,3", invoke(t, vmInstance, arr, "toString").AsString())
}

func TestJoinSeesInheritedIndex(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := sparse(t, vmInstance, 3, map[int64]vm.Value{0: str("a"), 2: str("c")})
	require.NoError(t, vmInstance.CreateDataPropertyOrThrow(vmInstance.Realm().ArrayPrototype, vm.IndexKey(1), str("p")))

	assert.Equal(t, "a-p-c", invoke(t, vmInstance, arr, "join", str("-")).AsString())
}

func TestJoinOfSelfReferenceIsEmpty(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := ints(vmInstance, 1, 2)
	require.NoError(t, vmInstance.CreateDataPropertyOrThrow(arr, vm.IndexKey(2), arr))

	assert.Equal(t, "1,2,", invoke(t, vmInstance, arr, "join").AsString())
}

func TestFillThenMap(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := construct(t, vmInstance, "Array", vm.IntegerValue(5))
	arr = invoke(t, vmInstance, arr, "fill", vm.IntegerValue(0))
	mapped := invoke(t, vmInstance, arr, "map", native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		return args[1], nil
	}))

	assert.Equal(t, "[0, 1, 2, 3, 4]", mapped.Inspect())
}

func TestArrayConstructorRejectsBadLength(t *testing.T) {
	vmInstance := newTestVM(t)
	_, err := vmInstance.Construct(global(t, vmInstance, "Array"), []vm.Value{vm.NumberValue(1.5)}, vm.Undefined)
	assert.Equal(t, "RangeError", thrownName(t, vmInstance, err))

	arr := construct(t, vmInstance, "Array", str("5"))
	assert.Equal(t, `["5"]`, arr.Inspect())
}

func TestSortOrdersValuesThenUndefinedThenHoles(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := sparse(t, vmInstance, 5, map[int64]vm.Value{
		0: vm.IntegerValue(3),
		2: vm.IntegerValue(1),
		3: vm.Undefined,
		4: vm.IntegerValue(2),
	})

	sorted := invoke(t, vmInstance, arr, "sort")
	assert.Equal(t, "[1, 2, 3, undefined, <hole>]", sorted.Inspect())
	assert.Equal(t, float64(5), get(t, vmInstance, arr, "length").AsNumber())
}

func TestSortIsStableWithComparator(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := vmInstance.NewArrayFromSlice([]vm.Value{str("b1"), str("a1"), str("b2"), str("a2")})
	byLetter := native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		x, y := args[0].AsString()[0], args[1].AsString()[0]
		return vm.IntegerValue(int32(x) - int32(y)), nil
	})

	invoke(t, vmInstance, arr, "sort", byLetter)
	assert.Equal(t, `["a1", "a2", "b1", "b2"]`, arr.Inspect())
}

func TestSortRejectsNonCallableComparator(t *testing.T) {
	vmInstance := newTestVM(t)
	_, err := vmInstance.Invoke(ints(vmInstance, 2, 1), vm.StringKey("sort"), []vm.Value{str("nope")})
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, err))
}

func TestSpliceKeepsLengthInvariant(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := ints(vmInstance, 1, 2, 3, 4, 5)

	removed := invoke(t, vmInstance, arr, "splice", vm.IntegerValue(1), vm.IntegerValue(2), str("x"))
	assert.Equal(t, "[2, 3]", removed.Inspect())
	assert.Equal(t, `[1, "x", 4, 5]`, arr.Inspect())

	removed = invoke(t, vmInstance, arr, "splice", vm.IntegerValue(-1))
	assert.Equal(t, "[5]", removed.Inspect())
	assert.Equal(t, `[1, "x", 4]`, arr.Inspect())

	removed = invoke(t, vmInstance, arr, "splice")
	assert.Equal(t, "[]", removed.Inspect())
	assert.Equal(t, `[1, "x", 4]`, arr.Inspect())
}

func TestSplicePreservesHoles(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := sparse(t, vmInstance, 4, map[int64]vm.Value{0: str("a"), 3: str("d")})

	removed := invoke(t, vmInstance, arr, "splice", vm.IntegerValue(0), vm.IntegerValue(2))
	assert.Equal(t, `["a", <hole>]`, removed.Inspect())
	assert.Equal(t, `[<hole>, "d"]`, arr.Inspect())
}

func TestNonMutatingVariantsLeaveReceiverAlone(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := ints(vmInstance, 1, 2, 3)

	spliced := invoke(t, vmInstance, arr, "toSpliced", vm.IntegerValue(1), vm.IntegerValue(1), str("a"), str("b"))
	assert.Equal(t, `[1, "a", "b", 3]`, spliced.Inspect())

	reversed := invoke(t, vmInstance, arr, "toReversed")
	assert.Equal(t, "[3, 2, 1]", reversed.Inspect())

	replaced := invoke(t, vmInstance, arr, "with", vm.IntegerValue(-1), vm.IntegerValue(9))
	assert.Equal(t, "[1, 2, 9]", replaced.Inspect())

	assert.Equal(t, "[1, 2, 3]", arr.Inspect())
}

func TestWithRejectsOutOfRangeIndex(t *testing.T) {
	vmInstance := newTestVM(t)
	_, err := vmInstance.Invoke(ints(vmInstance, 1, 2, 3), vm.StringKey("with"), []vm.Value{vm.IntegerValue(3), vm.IntegerValue(0)})
	assert.Equal(t, "RangeError", thrownName(t, vmInstance, err))
}

func TestToSortedFillsHolesWithUndefined(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := sparse(t, vmInstance, 3, map[int64]vm.Value{0: vm.IntegerValue(2), 2: vm.IntegerValue(1)})

	sorted := invoke(t, vmInstance, arr, "toSorted")
	assert.Equal(t, "[1, 2, undefined]", sorted.Inspect())
}

func TestReverseSparseArray(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := sparse(t, vmInstance, 5, map[int64]vm.Value{0: str("a"), 3: str("d")})

	invoke(t, vmInstance, arr, "reverse")
	assert.Equal(t, `[<hole>, "d", <hole>, <hole>, "a"]`, arr.Inspect())
}

func TestReverseDenseArray(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := ints(vmInstance, 1, 2, 3, 4)

	invoke(t, vmInstance, arr, "reverse")
	assert.Equal(t, "[4, 3, 2, 1]", arr.Inspect())
}

func TestArrayFromArrayLikeWithMapper(t *testing.T) {
	vmInstance := newTestVM(t)
	source := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	source.AsPlainObject().SetOwn("length", vm.IntegerValue(3))
	double := native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		return vm.NumberValue(args[1].AsNumber() * 2), nil
	})

	result := invoke(t, vmInstance, global(t, vmInstance, "Array"), "from", source, double)
	assert.Equal(t, "[0, 2, 4]", result.Inspect())
}

func TestArrayFromIterable(t *testing.T) {
	vmInstance := newTestVM(t)
	set := construct(t, vmInstance, "Set", ints(vmInstance, 1, 1, 2))

	result := invoke(t, vmInstance, global(t, vmInstance, "Array"), "from", set)
	assert.Equal(t, "[1, 2]", result.Inspect())
}

func TestArrayOf(t *testing.T) {
	vmInstance := newTestVM(t)
	result := invoke(t, vmInstance, global(t, vmInstance, "Array"), "of", vm.IntegerValue(7))
	assert.Equal(t, "[7]", result.Inspect())
}

func TestFlatAndFlatMap(t *testing.T) {
	vmInstance := newTestVM(t)
	nested := vmInstance.NewArrayFromSlice([]vm.Value{
		vm.IntegerValue(1),
		vmInstance.NewArrayFromSlice([]vm.Value{vm.IntegerValue(2), ints(vmInstance, 3)}),
	})

	assert.Equal(t, "[1, 2, [3]]", invoke(t, vmInstance, nested, "flat").Inspect())
	assert.Equal(t, "[1, 2, 3]", invoke(t, vmInstance, nested, "flat", vm.NumberValue(2)).Inspect())

	pair := native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		return vmInstance.NewArrayFromSlice([]vm.Value{args[0], args[0]}), nil
	})
	assert.Equal(t, "[1, 1, 2, 2]", invoke(t, vmInstance, ints(vmInstance, 1, 2), "flatMap", pair).Inspect())
}

func TestConcatSpreadsArraysOnly(t *testing.T) {
	vmInstance := newTestVM(t)
	result := invoke(t, vmInstance, ints(vmInstance, 1), "concat", ints(vmInstance, 2, 3), str("x"))
	assert.Equal(t, `[1, 2, 3, "x"]`, result.Inspect())
}

func TestCopyWithin(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := ints(vmInstance, 1, 2, 3, 4, 5)
	invoke(t, vmInstance, arr, "copyWithin", vm.IntegerValue(0), vm.IntegerValue(3))
	assert.Equal(t, "[4, 5, 3, 4, 5]", arr.Inspect())
}

func TestReduceEmptyWithoutSeedThrows(t *testing.T) {
	vmInstance := newTestVM(t)
	sum := native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		return vm.NumberValue(args[0].AsNumber() + args[1].AsNumber()), nil
	})

	_, err := vmInstance.Invoke(vmInstance.NewArray(), vm.StringKey("reduce"), []vm.Value{sum})
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, err))

	total := invoke(t, vmInstance, ints(vmInstance, 1, 2, 3), "reduceRight", sum)
	assert.Equal(t, float64(6), total.AsNumber())
}

func TestSearchMethods(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := sparse(t, vmInstance, 4, map[int64]vm.Value{0: vm.NaN, 1: vm.IntegerValue(2), 3: vm.IntegerValue(2)})

	assert.True(t, invoke(t, vmInstance, arr, "includes", vm.NaN).AsBoolean())
	assert.True(t, invoke(t, vmInstance, arr, "includes", vm.Undefined).AsBoolean(), "a hole reads as undefined")
	assert.Equal(t, float64(-1), invoke(t, vmInstance, arr, "indexOf", vm.NaN).AsNumber())
	assert.Equal(t, float64(1), invoke(t, vmInstance, arr, "indexOf", vm.IntegerValue(2)).AsNumber())
	assert.Equal(t, float64(3), invoke(t, vmInstance, arr, "lastIndexOf", vm.IntegerValue(2)).AsNumber())
	assert.Equal(t, float64(-1), invoke(t, vmInstance, arr, "indexOf", vm.IntegerValue(2), vm.IntegerValue(4)).AsNumber())
	assert.Equal(t, float64(2), invoke(t, vmInstance, arr, "at", vm.IntegerValue(-1)).AsNumber())
}

func TestPushPopShiftUnshift(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := ints(vmInstance, 2)

	assert.Equal(t, float64(3), invoke(t, vmInstance, arr, "push", vm.IntegerValue(3), vm.IntegerValue(4)).AsNumber())
	assert.Equal(t, float64(4), invoke(t, vmInstance, arr, "unshift", vm.IntegerValue(1)).AsNumber())
	assert.Equal(t, "[1, 2, 3, 4]", arr.Inspect())
	assert.Equal(t, float64(1), invoke(t, vmInstance, arr, "shift").AsNumber())
	assert.Equal(t, float64(4), invoke(t, vmInstance, arr, "pop").AsNumber())
	assert.Equal(t, "[2, 3]", arr.Inspect())
}

func TestArrayIteratorEntries(t *testing.T) {
	vmInstance := newTestVM(t)
	iter := invoke(t, vmInstance, ints(vmInstance, 5, 6), "entries")

	entries, err := vmInstance.IterableToList(iter)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "[1, 6]", entries[1].Inspect())
}

func TestSpeciesConstructorIsHonored(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := ints(vmInstance, 1, 2, 3)
	calls := 0
	species := vmInstance.NewNativeConstructor(1, "Custom", func(args []vm.Value) (vm.Value, error) {
		calls++
		return vmInstance.NewArray(), nil
	})
	ctor := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	ctor.AsPlainObject().SetOwnSymbolNonEnumerable(vm.SymbolSpecies, species)
	arr.AsPlainObject().SetOwn("constructor", ctor)

	result := invoke(t, vmInstance, arr, "slice", vm.IntegerValue(1))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "[2, 3]", result.Inspect())
}

// recordingProxy wraps target in a Proxy whose has, get and deleteProperty
// traps forward to the target and append "trap:key" to log.
func recordingProxy(t *testing.T, vmInstance *vm.VM, target vm.Value, log *[]string) vm.Value {
	t.Helper()
	forward := func(trap string, op func(target vm.Value, key vm.PropertyKey) (vm.Value, error)) vm.Value {
		return native(vmInstance, func(args []vm.Value) (vm.Value, error) {
			key, err := vmInstance.ToPropertyKey(args[1])
			if err != nil {
				return vm.Undefined, err
			}
			*log = append(*log, trap+":"+key.String())
			return op(args[0], key)
		})
	}
	handler := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	handler.AsPlainObject().SetOwn("has", forward("has", func(target vm.Value, key vm.PropertyKey) (vm.Value, error) {
		ok, err := vmInstance.HasProperty(target, key)
		return vm.BooleanValue(ok), err
	}))
	handler.AsPlainObject().SetOwn("get", forward("get", func(target vm.Value, key vm.PropertyKey) (vm.Value, error) {
		return vmInstance.Get(target, key)
	}))
	handler.AsPlainObject().SetOwn("deleteProperty", forward("delete", func(target vm.Value, key vm.PropertyKey) (vm.Value, error) {
		ok, err := vmInstance.Delete(target, key)
		return vm.BooleanValue(ok), err
	}))
	proxy, err := vmInstance.NewProxy(target, handler)
	require.NoError(t, err)
	return proxy
}

func withPrefix(log []string, prefix string) []string {
	var out []string
	for _, entry := range log {
		if len(entry) >= len(prefix) && entry[:len(prefix)] == prefix {
			out = append(out, entry)
		}
	}
	return out
}

func TestReverseReadsEachEndBeforeCheckingTheOther(t *testing.T) {
	vmInstance := newTestVM(t)
	target := ints(vmInstance, 1, 2, 3, 4)
	var log []string
	proxy := recordingProxy(t, vmInstance, target, &log)

	invoke(t, vmInstance, proxy, "reverse")
	assert.Equal(t, []string{
		"get:length",
		"has:0", "get:0", "has:3", "get:3",
		"has:1", "get:1", "has:2", "get:2",
	}, log)
	assert.Equal(t, "[4, 3, 2, 1]", target.Inspect())
}

func TestReverseOneSidedThroughProxy(t *testing.T) {
	vmInstance := newTestVM(t)
	target := sparse(t, vmInstance, 4, map[int64]vm.Value{3: str("d")})
	var log []string
	proxy := recordingProxy(t, vmInstance, target, &log)

	invoke(t, vmInstance, proxy, "reverse")
	assert.Equal(t, []string{
		"get:length",
		"has:0", "has:3", "get:3", "delete:3",
		"has:1", "has:2",
	}, log)
	assert.Equal(t, `["d", <hole>, <hole>, <hole>]`, target.Inspect())
}

func TestSortDeletesTrailingIndicesInAscendingOrder(t *testing.T) {
	vmInstance := newTestVM(t)
	target := sparse(t, vmInstance, 5, map[int64]vm.Value{0: vm.IntegerValue(3), 2: vm.IntegerValue(1)})
	var log []string
	proxy := recordingProxy(t, vmInstance, target, &log)

	invoke(t, vmInstance, proxy, "sort")
	assert.Equal(t, []string{"delete:2", "delete:3", "delete:4"}, withPrefix(log, "delete:"))
	assert.Equal(t, "[1, 3, <hole>, <hole>, <hole>]", target.Inspect())
}

func TestSortClearsTailOfPlainArray(t *testing.T) {
	vmInstance := newTestVM(t)
	arr := sparse(t, vmInstance, 6, map[int64]vm.Value{1: vm.IntegerValue(9), 4: vm.IntegerValue(2), 5: vm.IntegerValue(5)})

	invoke(t, vmInstance, arr, "sort")
	assert.Equal(t, "[2, 5, 9, <hole>, <hole>, <hole>]", arr.Inspect())
}

func TestReverseHugeSparseArray(t *testing.T) {
	vmInstance := newTestVM(t)
	const length = int64(1)<<32 - 1
	arr := sparse(t, vmInstance, length, map[int64]vm.Value{0: str("first"), 5: str("sixth"), length - 1: str("last")})

	invoke(t, vmInstance, arr, "reverse")
	for i, want := range map[int64]string{0: "last", length - 6: "sixth", length - 1: "first"} {
		v, err := vmInstance.Get(arr, vm.IndexKey(i))
		require.NoError(t, err)
		assert.Equal(t, want, v.AsString(), "index %d", i)
	}
	has, err := vmInstance.HasProperty(arr, vm.IndexKey(5))
	require.NoError(t, err)
	assert.False(t, has)
	assert.Equal(t, float64(length), get(t, vmInstance, arr, "length").AsNumber())
}

// arrayLikeOfLength returns a plain object whose length is n.
func arrayLikeOfLength(vmInstance *vm.VM, n float64) vm.Value {
	obj := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	obj.AsPlainObject().SetOwn("length", vm.NumberValue(n))
	return obj
}

func TestLengthBeyondSafeIntegerThrows(t *testing.T) {
	vmInstance := newTestVM(t)
	proto := vmInstance.Realm().ArrayPrototype
	call := func(method string, this vm.Value, args ...vm.Value) error {
		_, err := vmInstance.Call(get(t, vmInstance, proto, method), this, args)
		return err
	}

	huge := arrayLikeOfLength(vmInstance, vm.MaxSafeInteger)
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, call("push", huge, vm.IntegerValue(1))))
	assert.Equal(t, float64(vm.MaxSafeInteger), get(t, vmInstance, huge, "length").AsNumber())

	assert.Equal(t, "TypeError", thrownName(t, vmInstance,
		call("splice", arrayLikeOfLength(vmInstance, vm.MaxSafeInteger), vm.IntegerValue(0), vm.IntegerValue(0), vm.IntegerValue(1))))

	spreadable := arrayLikeOfLength(vmInstance, vm.MaxSafeInteger)
	require.NoError(t, vmInstance.CreateDataPropertyOrThrow(spreadable, vm.SymbolKey(vm.SymbolIsConcatSpreadable), vm.True))
	assert.Equal(t, "TypeError", thrownName(t, vmInstance, call("concat", ints(vmInstance, 1), spreadable)))
}

func TestConcatSpreadsFlaggedArrayLike(t *testing.T) {
	vmInstance := newTestVM(t)
	like := arrayLikeOfLength(vmInstance, 3)
	like.AsPlainObject().SetOwn("0", str("a"))
	like.AsPlainObject().SetOwn("2", str("c"))
	require.NoError(t, vmInstance.CreateDataPropertyOrThrow(like, vm.SymbolKey(vm.SymbolIsConcatSpreadable), vm.True))

	result := invoke(t, vmInstance, ints(vmInstance, 1), "concat", like)
	assert.Equal(t, `[1, "a", <hole>, "c"]`, result.Inspect())

	flagged := ints(vmInstance, 2, 3)
	require.NoError(t, vmInstance.CreateDataPropertyOrThrow(flagged, vm.SymbolKey(vm.SymbolIsConcatSpreadable), vm.False))
	result = invoke(t, vmInstance, ints(vmInstance, 1), "concat", flagged)
	assert.Equal(t, "[1, [2, 3]]", result.Inspect())
}

func TestArrayFromClosesIteratorWhenMapperThrows(t *testing.T) {
	vmInstance := newTestVM(t)
	objectProto := vmInstance.Realm().ObjectPrototype
	closed := 0
	iterator := vm.NewObject(objectProto)
	iterator.AsPlainObject().SetOwn("next", native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		step := vm.NewObject(objectProto)
		step.AsPlainObject().SetOwn("value", vm.IntegerValue(1))
		step.AsPlainObject().SetOwn("done", vm.False)
		return step, nil
	}))
	iterator.AsPlainObject().SetOwn("return", native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		closed++
		return vm.NewObject(objectProto), nil
	}))
	iterable := vm.NewObject(objectProto)
	require.NoError(t, vmInstance.CreateDataPropertyOrThrow(iterable, vm.SymbolKey(vm.SymbolIterator),
		native(vmInstance, func(args []vm.Value) (vm.Value, error) { return iterator, nil })))
	mapper := native(vmInstance, func(args []vm.Value) (vm.Value, error) {
		return vm.Undefined, vmInstance.NewRangeError("mapper failed")
	})

	_, err := vmInstance.Invoke(global(t, vmInstance, "Array"), vm.StringKey("from"), []vm.Value{iterable, mapper})
	assert.Equal(t, "RangeError", thrownName(t, vmInstance, err), "the mapper's error propagates unchanged")
	assert.Equal(t, 1, closed)
}
