package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type SetInitializer struct{}

func (s *SetInitializer) Name() string       { return "Set" }
func (s *SetInitializer) Requires() []string { return []string{"Map"} }

func (s *SetInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm
	setProto := realm.SetPrototype

	thisSet := func(method string) (*vm.SetObject, error) {
		this := vmInstance.GetThis()
		if this.Type() != vm.TypeSet {
			return nil, vmInstance.NewTypeErrorf("Method Set.prototype.%s called on incompatible receiver %s", method, this.Inspect())
		}
		return this.AsSet(), nil
	}

	defineMethods(vmInstance, setProto, []methodSpec{
		{"add", 1, func(args []vm.Value) (vm.Value, error) {
			set, err := thisSet("add")
			if err != nil {
				return vm.Undefined, err
			}
			set.Add(arg(args, 0))
			return vmInstance.GetThis(), nil
		}},
		{"has", 1, func(args []vm.Value) (vm.Value, error) {
			set, err := thisSet("has")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.BooleanValue(set.Has(arg(args, 0))), nil
		}},
		{"delete", 1, func(args []vm.Value) (vm.Value, error) {
			set, err := thisSet("delete")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.BooleanValue(set.Delete(arg(args, 0))), nil
		}},
		{"clear", 0, func(args []vm.Value) (vm.Value, error) {
			set, err := thisSet("clear")
			if err != nil {
				return vm.Undefined, err
			}
			set.Clear()
			return vm.Undefined, nil
		}},
		{"forEach", 1, func(args []vm.Value) (vm.Value, error) {
			set, err := thisSet("forEach")
			if err != nil {
				return vm.Undefined, err
			}
			fn, thisArg := arg(args, 0), arg(args, 1)
			if err := requireCallable(vmInstance, fn, "Set.prototype.forEach"); err != nil {
				return vm.Undefined, err
			}
			this := vmInstance.GetThis()
			for cursor := 0; ; {
				next, v, ok := set.Next(cursor)
				if !ok {
					return vm.Undefined, nil
				}
				cursor = next
				if _, err := vmInstance.Call(fn, thisArg, []vm.Value{v, v, this}); err != nil {
					return vm.Undefined, err
				}
			}
		}},
	})
	defineGetter(vmInstance, setProto, "size", func(args []vm.Value) (vm.Value, error) {
		set, err := thisSet("size")
		if err != nil {
			return vm.Undefined, err
		}
		return vm.IndexValue(int64(set.Size())), nil
	})

	iterate := func(method string, entries bool) vm.NativeFunc {
		return func(args []vm.Value) (vm.Value, error) {
			set, err := thisSet(method)
			if err != nil {
				return vm.Undefined, err
			}
			cursor := 0
			return vmInstance.NewNativeIterator(realm.SetIteratorPrototype, "Set Iterator", func() (vm.Value, bool, error) {
				next, v, ok := set.Next(cursor)
				if !ok {
					return vm.Undefined, true, nil
				}
				cursor = next
				if entries {
					return vmInstance.NewArrayFromSlice([]vm.Value{v, v}), false, nil
				}
				return v, false, nil
			}), nil
		}
	}
	defineMethods(vmInstance, setProto, []methodSpec{
		{"values", 0, iterate("values", false)},
		{"entries", 0, iterate("entries", true)},
	})
	// keys and @@iterator are the values function itself.
	values, _ := setProto.AsPlainObject().GetOwn("values")
	setProto.AsPlainObject().SetOwnNonEnumerable("keys", values)
	setProto.AsPlainObject().SetOwnSymbolNonEnumerable(vm.SymbolIterator, values)
	defineToStringTag(setProto, "Set")

	setCtor := vmInstance.NewNativeConstructor(0, "Set", func(args []vm.Value) (vm.Value, error) {
		if err := requireNew(vmInstance, "Set"); err != nil {
			return vm.Undefined, err
		}
		proto, err := prototypeForNew(vmInstance, setProto)
		if err != nil {
			return vm.Undefined, err
		}
		obj := vmInstance.NewSet(proto)
		return obj, addValuesFromIterable(vmInstance, obj, arg(args, 0), "add")
	})
	vm.LinkConstructor(setCtor, setProto)
	defineSpecies(vmInstance, setCtor)

	return ctx.DefineGlobal("Set", setCtor)
}
