package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type WeakSetInitializer struct{}

func (w *WeakSetInitializer) Name() string       { return "WeakSet" }
func (w *WeakSetInitializer) Requires() []string { return []string{"Map"} }

func (w *WeakSetInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	weakSetProto := ctx.Realm.WeakSetPrototype

	thisWeakSet := func(method string) (*vm.WeakSetObject, error) {
		this := vmInstance.GetThis()
		if this.Type() != vm.TypeWeakSet {
			return nil, vmInstance.NewTypeErrorf("Method WeakSet.prototype.%s called on incompatible receiver %s", method, this.Inspect())
		}
		return this.AsWeakSet(), nil
	}

	defineMethods(vmInstance, weakSetProto, []methodSpec{
		{"add", 1, func(args []vm.Value) (vm.Value, error) {
			ws, err := thisWeakSet("add")
			if err != nil {
				return vm.Undefined, err
			}
			v := arg(args, 0)
			if !vmInstance.CanBeHeldWeakly(v) {
				return vm.Undefined, vmInstance.NewTypeErrorf("Invalid value used in weak set: %s", v.Inspect())
			}
			ws.Add(v)
			return vmInstance.GetThis(), nil
		}},
		{"has", 1, func(args []vm.Value) (vm.Value, error) {
			ws, err := thisWeakSet("has")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.BooleanValue(ws.Has(arg(args, 0))), nil
		}},
		{"delete", 1, func(args []vm.Value) (vm.Value, error) {
			ws, err := thisWeakSet("delete")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.BooleanValue(ws.Delete(arg(args, 0))), nil
		}},
	})
	defineToStringTag(weakSetProto, "WeakSet")

	weakSetCtor := vmInstance.NewNativeConstructor(0, "WeakSet", func(args []vm.Value) (vm.Value, error) {
		if err := requireNew(vmInstance, "WeakSet"); err != nil {
			return vm.Undefined, err
		}
		proto, err := prototypeForNew(vmInstance, weakSetProto)
		if err != nil {
			return vm.Undefined, err
		}
		obj := vmInstance.NewWeakSet(proto)
		return obj, addValuesFromIterable(vmInstance, obj, arg(args, 0), "add")
	})
	vm.LinkConstructor(weakSetCtor, weakSetProto)

	return ctx.DefineGlobal("WeakSet", weakSetCtor)
}
