package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type WeakMapInitializer struct{}

func (w *WeakMapInitializer) Name() string       { return "WeakMap" }
func (w *WeakMapInitializer) Requires() []string { return []string{"Map"} }

func (w *WeakMapInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	weakMapProto := ctx.Realm.WeakMapPrototype

	thisWeakMap := func(method string) (*vm.WeakMapObject, error) {
		this := vmInstance.GetThis()
		if this.Type() != vm.TypeWeakMap {
			return nil, vmInstance.NewTypeErrorf("Method WeakMap.prototype.%s called on incompatible receiver %s", method, this.Inspect())
		}
		return this.AsWeakMap(), nil
	}

	defineMethods(vmInstance, weakMapProto, []methodSpec{
		{"get", 1, func(args []vm.Value) (vm.Value, error) {
			wm, err := thisWeakMap("get")
			if err != nil {
				return vm.Undefined, err
			}
			v, _ := wm.Get(arg(args, 0))
			return v, nil
		}},
		{"set", 2, func(args []vm.Value) (vm.Value, error) {
			wm, err := thisWeakMap("set")
			if err != nil {
				return vm.Undefined, err
			}
			key := arg(args, 0)
			if !vmInstance.CanBeHeldWeakly(key) {
				return vm.Undefined, vmInstance.NewTypeErrorf("Invalid value used as weak map key: %s", key.Inspect())
			}
			wm.Set(key, arg(args, 1))
			return vmInstance.GetThis(), nil
		}},
		{"has", 1, func(args []vm.Value) (vm.Value, error) {
			wm, err := thisWeakMap("has")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.BooleanValue(wm.Has(arg(args, 0))), nil
		}},
		{"delete", 1, func(args []vm.Value) (vm.Value, error) {
			wm, err := thisWeakMap("delete")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.BooleanValue(wm.Delete(arg(args, 0))), nil
		}},
	})
	defineToStringTag(weakMapProto, "WeakMap")

	weakMapCtor := vmInstance.NewNativeConstructor(0, "WeakMap", func(args []vm.Value) (vm.Value, error) {
		if err := requireNew(vmInstance, "WeakMap"); err != nil {
			return vm.Undefined, err
		}
		proto, err := prototypeForNew(vmInstance, weakMapProto)
		if err != nil {
			return vm.Undefined, err
		}
		obj := vmInstance.NewWeakMap(proto)
		return obj, addEntriesFromIterable(vmInstance, obj, arg(args, 0), "set")
	})
	vm.LinkConstructor(weakMapCtor, weakMapProto)

	return ctx.DefineGlobal("WeakMap", weakMapCtor)
}
