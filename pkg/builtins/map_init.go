package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type MapInitializer struct{}

func (m *MapInitializer) Name() string       { return "Map" }
func (m *MapInitializer) Requires() []string { return []string{"Iterator", "Array"} }

func (m *MapInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm
	mapProto := realm.MapPrototype

	thisMap := func(method string) (*vm.MapObject, error) {
		this := vmInstance.GetThis()
		if this.Type() != vm.TypeMap {
			return nil, vmInstance.NewTypeErrorf("Method Map.prototype.%s called on incompatible receiver %s", method, this.Inspect())
		}
		return this.AsMap(), nil
	}

	defineMethods(vmInstance, mapProto, []methodSpec{
		{"get", 1, func(args []vm.Value) (vm.Value, error) {
			m, err := thisMap("get")
			if err != nil {
				return vm.Undefined, err
			}
			v, _ := m.Get(arg(args, 0))
			return v, nil
		}},
		{"set", 2, func(args []vm.Value) (vm.Value, error) {
			m, err := thisMap("set")
			if err != nil {
				return vm.Undefined, err
			}
			m.Set(arg(args, 0), arg(args, 1))
			return vmInstance.GetThis(), nil
		}},
		{"has", 1, func(args []vm.Value) (vm.Value, error) {
			m, err := thisMap("has")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.BooleanValue(m.Has(arg(args, 0))), nil
		}},
		{"delete", 1, func(args []vm.Value) (vm.Value, error) {
			m, err := thisMap("delete")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.BooleanValue(m.Delete(arg(args, 0))), nil
		}},
		{"clear", 0, func(args []vm.Value) (vm.Value, error) {
			m, err := thisMap("clear")
			if err != nil {
				return vm.Undefined, err
			}
			m.Clear()
			return vm.Undefined, nil
		}},
		{"forEach", 1, func(args []vm.Value) (vm.Value, error) {
			m, err := thisMap("forEach")
			if err != nil {
				return vm.Undefined, err
			}
			fn, thisArg := arg(args, 0), arg(args, 1)
			if err := requireCallable(vmInstance, fn, "Map.prototype.forEach"); err != nil {
				return vm.Undefined, err
			}
			this := vmInstance.GetThis()
			// Entries added during the walk are visited; deleted ones are not.
			for cursor := 0; ; {
				next, k, v, ok := m.Next(cursor)
				if !ok {
					return vm.Undefined, nil
				}
				cursor = next
				if _, err := vmInstance.Call(fn, thisArg, []vm.Value{v, k, this}); err != nil {
					return vm.Undefined, err
				}
			}
		}},
	})
	defineGetter(vmInstance, mapProto, "size", func(args []vm.Value) (vm.Value, error) {
		m, err := thisMap("size")
		if err != nil {
			return vm.Undefined, err
		}
		return vm.IndexValue(int64(m.Size())), nil
	})

	iterate := func(method string, kind iterationKind) vm.NativeFunc {
		return func(args []vm.Value) (vm.Value, error) {
			m, err := thisMap(method)
			if err != nil {
				return vm.Undefined, err
			}
			cursor := 0
			return vmInstance.NewNativeIterator(realm.MapIteratorPrototype, "Map Iterator", func() (vm.Value, bool, error) {
				next, k, v, ok := m.Next(cursor)
				if !ok {
					return vm.Undefined, true, nil
				}
				cursor = next
				switch kind {
				case iterateKeys:
					return k, false, nil
				case iterateValues:
					return v, false, nil
				}
				return vmInstance.NewArrayFromSlice([]vm.Value{k, v}), false, nil
			}), nil
		}
	}
	defineMethods(vmInstance, mapProto, []methodSpec{
		{"keys", 0, iterate("keys", iterateKeys)},
		{"values", 0, iterate("values", iterateValues)},
		{"entries", 0, iterate("entries", iterateEntries)},
	})
	entries, _ := mapProto.AsPlainObject().GetOwn("entries")
	mapProto.AsPlainObject().SetOwnSymbolNonEnumerable(vm.SymbolIterator, entries)
	defineToStringTag(mapProto, "Map")

	mapCtor := vmInstance.NewNativeConstructor(0, "Map", func(args []vm.Value) (vm.Value, error) {
		if err := requireNew(vmInstance, "Map"); err != nil {
			return vm.Undefined, err
		}
		proto, err := prototypeForNew(vmInstance, mapProto)
		if err != nil {
			return vm.Undefined, err
		}
		obj := vmInstance.NewMap(proto)
		return obj, addEntriesFromIterable(vmInstance, obj, arg(args, 0), "set")
	})
	vm.LinkConstructor(mapCtor, mapProto)
	defineSpecies(vmInstance, mapCtor)

	return ctx.DefineGlobal("Map", mapCtor)
}

// addEntriesFromIterable implements AddEntriesFromIterable: each item must
// be an object whose "0" and "1" become the arguments of target[adder]. Any
// failure closes the iterator before it propagates.
func addEntriesFromIterable(vmInstance *vm.VM, target, iterable vm.Value, adderName string) error {
	if iterable.IsNullish() {
		return nil
	}
	adder, err := vmInstance.Get(target, vm.StringKey(adderName))
	if err != nil {
		return err
	}
	if !adder.IsCallable() {
		return vmInstance.NewTypeErrorf("'%s' returned for property '%s' of object is not a function", adder.Inspect(), adderName)
	}
	rec, err := vmInstance.GetIterator(iterable)
	if err != nil {
		return err
	}
	for {
		item, done, err := vmInstance.IteratorStepValue(rec)
		if err != nil || done {
			return err
		}
		if !item.IsObject() {
			return vmInstance.IteratorCloseOnError(rec, vmInstance.NewTypeErrorf("Iterator value %s is not an entry object", item.Inspect()))
		}
		k, err := vmInstance.Get(item, vm.IndexKey(0))
		if err != nil {
			return vmInstance.IteratorCloseOnError(rec, err)
		}
		v, err := vmInstance.Get(item, vm.IndexKey(1))
		if err != nil {
			return vmInstance.IteratorCloseOnError(rec, err)
		}
		if _, err := vmInstance.Call(adder, target, []vm.Value{k, v}); err != nil {
			return vmInstance.IteratorCloseOnError(rec, err)
		}
	}
}

// addValuesFromIterable is the Set/WeakSet flavor: each item is passed to
// target[adder] on its own.
func addValuesFromIterable(vmInstance *vm.VM, target, iterable vm.Value, adderName string) error {
	if iterable.IsNullish() {
		return nil
	}
	adder, err := vmInstance.Get(target, vm.StringKey(adderName))
	if err != nil {
		return err
	}
	if !adder.IsCallable() {
		return vmInstance.NewTypeErrorf("'%s' returned for property '%s' of object is not a function", adder.Inspect(), adderName)
	}
	rec, err := vmInstance.GetIterator(iterable)
	if err != nil {
		return err
	}
	for {
		item, done, err := vmInstance.IteratorStepValue(rec)
		if err != nil || done {
			return err
		}
		if _, err := vmInstance.Call(adder, target, []vm.Value{item}); err != nil {
			return vmInstance.IteratorCloseOnError(rec, err)
		}
	}
}
