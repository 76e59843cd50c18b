package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type ArrayInitializer struct{}

func (a *ArrayInitializer) Name() string       { return "Array" }
func (a *ArrayInitializer) Requires() []string { return []string{"Iterator"} }

func (a *ArrayInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm
	arrayProto := realm.ArrayPrototype

	methods := []struct {
		name  string
		arity int
		fn    arrayFunc
	}{
		{"at", 1, arrayAt},
		{"concat", 1, arrayConcat},
		{"copyWithin", 2, arrayCopyWithin},
		{"entries", 0, arrayIteratorMethod(iterateEntries)},
		{"every", 1, arrayEvery},
		{"fill", 1, arrayFill},
		{"filter", 1, arrayFilter},
		{"find", 1, arrayFind},
		{"findIndex", 1, arrayFindIndex},
		{"findLast", 1, arrayFindLast},
		{"findLastIndex", 1, arrayFindLastIndex},
		{"flat", 0, arrayFlat},
		{"flatMap", 1, arrayFlatMap},
		{"forEach", 1, arrayForEach},
		{"includes", 1, arrayIncludes},
		{"indexOf", 1, arrayIndexOf},
		{"join", 1, arrayJoin},
		{"keys", 0, arrayIteratorMethod(iterateKeys)},
		{"lastIndexOf", 1, arrayLastIndexOf},
		{"map", 1, arrayMap},
		{"pop", 0, arrayPop},
		{"push", 1, arrayPush},
		{"reduce", 1, arrayReduce},
		{"reduceRight", 1, arrayReduceRight},
		{"reverse", 0, arrayReverse},
		{"shift", 0, arrayShift},
		{"slice", 2, arraySlice},
		{"some", 1, arraySome},
		{"sort", 1, arraySort},
		{"splice", 2, arraySplice},
		{"toLocaleString", 0, arrayToLocaleString},
		{"toReversed", 0, arrayToReversed},
		{"toSorted", 1, arrayToSorted},
		{"toSpliced", 2, arrayToSpliced},
		{"toString", 0, arrayToString},
		{"unshift", 1, arrayUnshift},
		{"values", 0, arrayIteratorMethod(iterateValues)},
		{"with", 2, arrayWith},
	}
	table := make([]methodSpec, len(methods))
	for i, m := range methods {
		table[i] = methodSpec{m.name, m.arity, bindVM(vmInstance, m.fn)}
	}
	defineMethods(vmInstance, arrayProto, table)

	// Array.prototype[@@iterator] is the same function object as values.
	values, _ := arrayProto.AsPlainObject().GetOwn("values")
	arrayProto.AsPlainObject().SetOwnSymbolNonEnumerable(vm.SymbolIterator, values)
	realm.Intrinsics["%Array.prototype.values%"] = values

	unscopables := vm.NewObject(vm.Null)
	for _, name := range []string{
		"at", "copyWithin", "entries", "fill", "find", "findIndex", "findLast", "findLastIndex",
		"flat", "flatMap", "includes", "keys", "toReversed", "toSorted", "toSpliced", "values",
	} {
		unscopables.AsPlainObject().SetOwn(name, vm.True)
	}
	arrayProto.AsPlainObject().DefineOwnPropertyFlags(vm.SymbolKey(vm.SymbolUnscopables), unscopables, false, false, true)

	arrayCtor := vmInstance.NewNativeConstructor(1, "Array", func(args []vm.Value) (vm.Value, error) {
		proto := arrayProto
		if !vmInstance.GetNewTarget().IsUndefined() {
			var err error
			if proto, err = prototypeForNew(vmInstance, arrayProto); err != nil {
				return vm.Undefined, err
			}
		}
		return constructArray(vmInstance, args, proto)
	})
	vm.LinkConstructor(arrayCtor, arrayProto)
	defineSpecies(vmInstance, arrayCtor)
	realm.ArrayConstructor = arrayCtor

	defineMethods(vmInstance, arrayCtor, []methodSpec{
		{"isArray", 1, func(args []vm.Value) (vm.Value, error) {
			ok, err := vmInstance.IsArray(arg(args, 0))
			return vm.BooleanValue(ok), err
		}},
		{"of", 0, func(args []vm.Value) (vm.Value, error) {
			return arrayOf(vmInstance, args)
		}},
		{"from", 1, func(args []vm.Value) (vm.Value, error) {
			return arrayFrom(vmInstance, args)
		}},
	})

	return ctx.DefineGlobal("Array", arrayCtor)
}

// constructArray covers the three forms of the Array constructor: no
// arguments, a single length, and a list of elements.
func constructArray(vmInstance *vm.VM, args []vm.Value, proto vm.Value) (vm.Value, error) {
	if len(args) != 1 {
		arr, err := vmInstance.ArrayCreate(0, proto)
		if err != nil {
			return vm.Undefined, err
		}
		for k, v := range args {
			if err := vmInstance.CreateDataPropertyOrThrow(arr, vm.IndexKey(int64(k)), v); err != nil {
				return vm.Undefined, err
			}
		}
		return arr, nil
	}
	length := args[0]
	if !length.IsNumber() {
		arr, err := vmInstance.ArrayCreate(0, proto)
		if err != nil {
			return vm.Undefined, err
		}
		return arr, vmInstance.CreateDataPropertyOrThrow(arr, vm.IndexKey(0), length)
	}
	n := length.AsNumber()
	if u, _ := vmInstance.ToUint32(length); float64(u) != n {
		return vm.Undefined, vmInstance.NewRangeError("Invalid array length")
	}
	return vmInstance.ArrayCreate(int64(n), proto)
}

// newFromConstructor creates the result of Array.of and Array.from: an
// instance of this when it is a constructor, a plain Array otherwise.
func newFromConstructor(vmInstance *vm.VM, withLength bool, length int64) (vm.Value, error) {
	c := vmInstance.GetThis()
	if c.IsConstructor() {
		var args []vm.Value
		if withLength {
			args = []vm.Value{vm.IndexValue(length)}
		}
		return vmInstance.Construct(c, args, c)
	}
	return vmInstance.ArrayCreate(length, vm.Undefined)
}

func arrayOf(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	n := int64(len(args))
	out, err := newFromConstructor(vmInstance, true, n)
	if err != nil {
		return vm.Undefined, err
	}
	for k, v := range args {
		if err := vmInstance.CreateDataPropertyOrThrow(out, vm.IndexKey(int64(k)), v); err != nil {
			return vm.Undefined, err
		}
	}
	return out, vmInstance.Set(out, vm.StringKey("length"), vm.IndexValue(n), true)
}

func arrayFrom(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	// 1-3. If mapfn is not undefined and not callable, throw a TypeError.
	items, mapper, thisArg := arg(args, 0), arg(args, 1), arg(args, 2)
	mapping := !mapper.IsUndefined()
	if mapping && !mapper.IsCallable() {
		return vm.Undefined, vmInstance.NewTypeErrorf("Array.from: %s is not a function", mapper.Inspect())
	}

	// 4. Let usingIterator be ? GetMethod(items, @@iterator).
	usingIterator, err := vmInstance.GetMethod(items, vm.SymbolKey(vm.SymbolIterator))
	if err != nil {
		return vm.Undefined, err
	}
	if !usingIterator.IsUndefined() {
		out, err := newFromConstructor(vmInstance, false, 0)
		if err != nil {
			return vm.Undefined, err
		}
		rec, err := vmInstance.GetIteratorFromMethod(items, usingIterator)
		if err != nil {
			return vm.Undefined, err
		}
		// 5.e. Repeat: step the iterator, map, and define A[k]. An abrupt
		// mapper or define closes the iterator.
		for k := int64(0); ; k++ {
			if k >= vm.MaxSafeInteger {
				return vm.Undefined, vmInstance.IteratorCloseOnError(rec, vmInstance.NewTypeError("Array.from: too many elements"))
			}
			v, done, err := vmInstance.IteratorStepValue(rec)
			if err != nil {
				return vm.Undefined, err
			}
			if done {
				return out, vmInstance.Set(out, vm.StringKey("length"), vm.IndexValue(k), true)
			}
			if mapping {
				if v, err = vmInstance.Call(mapper, thisArg, []vm.Value{v, vm.IndexValue(k)}); err != nil {
					return vm.Undefined, vmInstance.IteratorCloseOnError(rec, err)
				}
			}
			if err := vmInstance.CreateDataPropertyOrThrow(out, vm.IndexKey(k), v); err != nil {
				return vm.Undefined, vmInstance.IteratorCloseOnError(rec, err)
			}
		}
	}

	// 7. Let arrayLike be ! ToObject(items).
	obj, err := vmInstance.ToObject(items)
	if err != nil {
		return vm.Undefined, err
	}
	src, err := toArrayLike(vmInstance, obj)
	if err != nil {
		return vm.Undefined, err
	}
	// 9-10. Let A be ? Construct(C, « len ») when C is a constructor.
	out, err := newFromConstructor(vmInstance, true, src.length)
	if err != nil {
		return vm.Undefined, err
	}
	// 12. Repeat, while k < len, define A[k] from ? Get(arrayLike, Pk).
	for k := int64(0); k < src.length; k++ {
		v, err := src.get(k)
		if err != nil {
			return vm.Undefined, err
		}
		if mapping {
			if v, err = vmInstance.Call(mapper, thisArg, []vm.Value{v, vm.IndexValue(k)}); err != nil {
				return vm.Undefined, err
			}
		}
		if err := vmInstance.CreateDataPropertyOrThrow(out, vm.IndexKey(k), v); err != nil {
			return vm.Undefined, err
		}
	}
	return out, vmInstance.Set(out, vm.StringKey("length"), vm.IndexValue(src.length), true)
}
