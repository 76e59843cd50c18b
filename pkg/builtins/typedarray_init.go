package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

// TypedArrayInitializer installs %TypedArray% and the eleven concrete typed
// array constructors.
type TypedArrayInitializer struct{}

func (t *TypedArrayInitializer) Name() string { return "TypedArray" }
func (t *TypedArrayInitializer) Requires() []string {
	return []string{"Array", "ArrayBuffer"}
}

func (t *TypedArrayInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm
	baseProto := realm.TypedArrayPrototype

	thisView := func(method string) (*vm.TypedArrayObject, error) {
		this := vmInstance.GetThis()
		if this.Type() != vm.TypeTypedArray {
			return nil, vmInstance.NewTypeErrorf("%s: this is not a typed array", method)
		}
		return this.AsTypedArray(), nil
	}
	getters := []struct {
		name string
		fn   func(ta *vm.TypedArrayObject) vm.Value
	}{
		{"buffer", func(ta *vm.TypedArrayObject) vm.Value { return ta.Buffer() }},
		{"byteLength", func(ta *vm.TypedArrayObject) vm.Value {
			return vm.IndexValue(int64(ta.Length() * ta.Kind().BytesPerElement()))
		}},
		{"byteOffset", func(ta *vm.TypedArrayObject) vm.Value {
			if ta.Buffer().AsArrayBuffer().IsDetached() {
				return vm.IntegerValue(0)
			}
			return vm.IndexValue(int64(ta.ByteOffset()))
		}},
		{"length", func(ta *vm.TypedArrayObject) vm.Value { return vm.IndexValue(int64(ta.Length())) }},
	}
	for _, g := range getters {
		read := g.fn
		name := g.name
		defineGetter(vmInstance, baseProto, name, func([]vm.Value) (vm.Value, error) {
			ta, err := thisView("get %TypedArray%.prototype." + name)
			if err != nil {
				return vm.Undefined, err
			}
			return read(ta), nil
		})
	}
	toStringTag := vmInstance.NewGetter("[Symbol.toStringTag]", func([]vm.Value) (vm.Value, error) {
		if this := vmInstance.GetThis(); this.Type() == vm.TypeTypedArray {
			return vm.NewString(this.AsTypedArray().Kind().Name()), nil
		}
		return vm.Undefined, nil
	})
	baseProto.AsPlainObject().DefineAccessorProperty(vm.SymbolKey(vm.SymbolToStringTag), toStringTag, vm.Undefined, false, true)

	shared := []struct {
		name  string
		arity int
		fn    arrayFunc
	}{
		{"at", 1, arrayAt},
		{"copyWithin", 2, arrayCopyWithin},
		{"entries", 0, arrayIteratorMethod(iterateEntries)},
		{"every", 1, arrayEvery},
		{"fill", 1, arrayFill},
		{"find", 1, arrayFind},
		{"findIndex", 1, arrayFindIndex},
		{"findLast", 1, arrayFindLast},
		{"findLastIndex", 1, arrayFindLastIndex},
		{"forEach", 1, arrayForEach},
		{"includes", 1, arrayIncludes},
		{"indexOf", 1, arrayIndexOf},
		{"join", 1, arrayJoin},
		{"keys", 0, arrayIteratorMethod(iterateKeys)},
		{"lastIndexOf", 1, arrayLastIndexOf},
		{"reduce", 1, arrayReduce},
		{"reduceRight", 1, arrayReduceRight},
		{"reverse", 0, arrayReverse},
		{"some", 1, arraySome},
		{"toLocaleString", 0, arrayToLocaleString},
		{"values", 0, arrayIteratorMethod(iterateValues)},
	}
	table := make([]methodSpec, 0, len(shared)+4)
	for _, m := range shared {
		table = append(table, methodSpec{m.name, m.arity, bindVM(vmInstance, typedArrayMethod(m.name, m.fn))})
	}
	table = append(table,
		methodSpec{"sort", 1, bindVM(vmInstance, typedArraySort)},
		methodSpec{"set", 1, func(args []vm.Value) (vm.Value, error) {
			ta, err := validateTypedArray(vmInstance, vmInstance.GetThis(), "%TypedArray%.prototype.set")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.Undefined, typedArraySet(vmInstance, ta, arg(args, 0), arg(args, 1))
		}},
		methodSpec{"subarray", 2, func(args []vm.Value) (vm.Value, error) {
			ta, err := thisView("%TypedArray%.prototype.subarray")
			if err != nil {
				return vm.Undefined, err
			}
			n := int64(ta.Length())
			begin, err := vmInstance.RelativeIndex(arg(args, 0), n, 0)
			if err != nil {
				return vm.Undefined, err
			}
			end, err := vmInstance.RelativeIndex(arg(args, 1), n, n)
			if err != nil {
				return vm.Undefined, err
			}
			size := ta.Kind().BytesPerElement()
			return vmInstance.NewTypedArray(ta.Kind(), ta.Buffer(), ta.ByteOffset()+int(begin)*size, int(max(end-begin, 0))), nil
		}},
		methodSpec{"slice", 2, func(args []vm.Value) (vm.Value, error) {
			ta, err := validateTypedArray(vmInstance, vmInstance.GetThis(), "%TypedArray%.prototype.slice")
			if err != nil {
				return vm.Undefined, err
			}
			n := int64(ta.Length())
			begin, err := vmInstance.RelativeIndex(arg(args, 0), n, 0)
			if err != nil {
				return vm.Undefined, err
			}
			end, err := vmInstance.RelativeIndex(arg(args, 1), n, n)
			if err != nil {
				return vm.Undefined, err
			}
			count := max(end-begin, 0)
			result, err := allocateTypedArray(vmInstance, ta.Kind(), count, realm.TypedArrayPrototypes[ta.Kind()])
			if err != nil {
				return vm.Undefined, err
			}
			out := result.AsTypedArray()
			for k := int64(0); k < count; k++ {
				out.SetElement(k, ta.GetElement(begin+k))
			}
			return result, nil
		}},
	)
	defineMethods(vmInstance, baseProto, table)
	values, _ := baseProto.AsPlainObject().GetOwn("values")
	baseProto.AsPlainObject().SetOwnSymbolNonEnumerable(vm.SymbolIterator, values)
	// toString is shared with Array.prototype.
	arrayToStringFn, _ := realm.ArrayPrototype.AsPlainObject().GetOwn("toString")
	baseProto.AsPlainObject().SetOwnNonEnumerable("toString", arrayToStringFn)

	baseCtor := vmInstance.NewNativeConstructor(0, "TypedArray", func([]vm.Value) (vm.Value, error) {
		return vm.Undefined, vmInstance.NewTypeError("Abstract class TypedArray not directly constructable")
	})
	vm.LinkConstructor(baseCtor, baseProto)
	defineSpecies(vmInstance, baseCtor)
	realm.Intrinsics["%TypedArray%"] = baseCtor

	for _, kind := range vm.TypedArrayKinds {
		if err := installTypedArrayKind(ctx, kind, baseCtor); err != nil {
			return err
		}
	}
	return nil
}

func installTypedArrayKind(ctx *RuntimeContext, kind vm.TypedArrayKind, baseCtor vm.Value) error {
	vmInstance := ctx.VM
	proto := ctx.Realm.TypedArrayPrototypes[kind]
	bytes := vm.IntegerValue(int32(kind.BytesPerElement()))

	ctor := vmInstance.NewNativeConstructor(3, kind.Name(), func(args []vm.Value) (vm.Value, error) {
		if err := requireNew(vmInstance, kind.Name()); err != nil {
			return vm.Undefined, err
		}
		target, err := prototypeForNew(vmInstance, proto)
		if err != nil {
			return vm.Undefined, err
		}
		return constructTypedArray(vmInstance, kind, args, target)
	})
	vm.LinkConstructor(ctor, proto)
	ctor.AsPlainObject().SetPrototype(baseCtor)
	defineConstant(ctor, "BYTES_PER_ELEMENT", bytes)
	defineConstant(proto, "BYTES_PER_ELEMENT", bytes)
	defineMethods(vmInstance, ctor, []methodSpec{
		{"of", 0, func(args []vm.Value) (vm.Value, error) {
			return typedArrayFromList(vmInstance, kind, args, proto)
		}},
		{"from", 1, func(args []vm.Value) (vm.Value, error) {
			mapper := arg(args, 1)
			if !mapper.IsUndefined() {
				if err := requireCallable(vmInstance, mapper, kind.Name()+".from"); err != nil {
					return vm.Undefined, err
				}
			}
			items, err := typedArraySourceValues(vmInstance, arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			if !mapper.IsUndefined() {
				for k, v := range items {
					if items[k], err = vmInstance.Call(mapper, arg(args, 2), []vm.Value{v, vm.IndexValue(int64(k))}); err != nil {
						return vm.Undefined, err
					}
				}
			}
			return typedArrayFromList(vmInstance, kind, items, proto)
		}},
	})
	return ctx.DefineGlobal(kind.Name(), ctor)
}

// constructTypedArray dispatches on the first argument: a length, a buffer,
// another typed array, or an iterable or array-like source.
func constructTypedArray(vmInstance *vm.VM, kind vm.TypedArrayKind, args []vm.Value, proto vm.Value) (vm.Value, error) {
	first := arg(args, 0)
	if !first.IsObject() {
		n, err := vmInstance.ToIndex(first)
		if err != nil {
			return vm.Undefined, err
		}
		return allocateTypedArray(vmInstance, kind, n, proto)
	}
	switch first.Type() {
	case vm.TypeArrayBuffer:
		return typedArrayFromBuffer(vmInstance, kind, first, arg(args, 1), arg(args, 2), proto)
	case vm.TypeTypedArray:
		src, err := validateTypedArray(vmInstance, first, kind.Name())
		if err != nil {
			return vm.Undefined, err
		}
		if src.Kind().IsBigInt() != kind.IsBigInt() {
			return vm.Undefined, vmInstance.NewTypeErrorf("Cannot mix BigInt and other types, use explicit conversions")
		}
		result, err := allocateTypedArray(vmInstance, kind, int64(src.Length()), proto)
		if err != nil {
			return vm.Undefined, err
		}
		for k := range src.Length() {
			if err := vmInstance.Set(result, vm.IndexKey(int64(k)), src.GetElement(int64(k)), true); err != nil {
				return vm.Undefined, err
			}
		}
		return result, nil
	}
	items, err := typedArraySourceValues(vmInstance, first)
	if err != nil {
		return vm.Undefined, err
	}
	return typedArrayFromList(vmInstance, kind, items, proto)
}

// typedArraySourceValues reads an iterable through its iterator and anything
// else as an array-like.
func typedArraySourceValues(vmInstance *vm.VM, source vm.Value) ([]vm.Value, error) {
	method, err := vmInstance.GetMethod(source, vm.SymbolKey(vm.SymbolIterator))
	if err != nil {
		return nil, err
	}
	if !method.IsUndefined() {
		iter, err := vmInstance.GetIteratorFromMethod(source, method)
		if err != nil {
			return nil, err
		}
		var items []vm.Value
		for {
			v, done, err := vmInstance.IteratorStepValue(iter)
			if err != nil {
				return nil, err
			}
			if done {
				return items, nil
			}
			items = append(items, v)
		}
	}
	obj, err := vmInstance.ToObject(source)
	if err != nil {
		return nil, err
	}
	src, err := toArrayLike(vmInstance, obj)
	if err != nil {
		return nil, err
	}
	items := make([]vm.Value, 0, src.length)
	for k := range src.length {
		v, err := src.get(k)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func typedArrayFromList(vmInstance *vm.VM, kind vm.TypedArrayKind, items []vm.Value, proto vm.Value) (vm.Value, error) {
	result, err := allocateTypedArray(vmInstance, kind, int64(len(items)), proto)
	if err != nil {
		return vm.Undefined, err
	}
	for k, v := range items {
		if err := vmInstance.Set(result, vm.IndexKey(int64(k)), v, true); err != nil {
			return vm.Undefined, err
		}
	}
	return result, nil
}

// typedArraySet copies source into target starting at offset. Overlapping
// typed array sources are snapshotted first.
func typedArraySet(vmInstance *vm.VM, target *vm.TypedArrayObject, source, offsetArg vm.Value) error {
	offset, err := vmInstance.ToIntegerOrInfinity(offsetArg)
	if err != nil {
		return err
	}
	if offset < 0 {
		return vmInstance.NewRangeError("offset is out of bounds")
	}
	var items []vm.Value
	if source.Type() == vm.TypeTypedArray {
		src, err := validateTypedArray(vmInstance, source, "%TypedArray%.prototype.set")
		if err != nil {
			return err
		}
		if src.Kind().IsBigInt() != target.Kind().IsBigInt() {
			return vmInstance.NewTypeError("Cannot mix BigInt and other types, use explicit conversions")
		}
		items = make([]vm.Value, src.Length())
		for k := range items {
			items[k] = src.GetElement(int64(k))
		}
	} else {
		obj, err := vmInstance.ToObject(source)
		if err != nil {
			return err
		}
		src, err := toArrayLike(vmInstance, obj)
		if err != nil {
			return err
		}
		if float64(src.length)+offset > float64(target.Length()) {
			return vmInstance.NewRangeError("offset is out of bounds")
		}
		items = make([]vm.Value, src.length)
		for k := range items {
			if items[k], err = src.get(int64(k)); err != nil {
				return err
			}
		}
	}
	if float64(len(items))+offset > float64(target.Length()) {
		return vmInstance.NewRangeError("offset is out of bounds")
	}
	base := int64(offset)
	for k, v := range items {
		converted, err := vmInstance.ToTypedArrayElement(target.Kind(), v)
		if err != nil {
			return err
		}
		target.SetElement(base+int64(k), converted)
	}
	return nil
}
