package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type ObjectInitializer struct{}

func (o *ObjectInitializer) Name() string       { return "Object" }
func (o *ObjectInitializer) Requires() []string { return nil }

func (o *ObjectInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm
	objectProto := realm.ObjectPrototype

	defineMethods(vmInstance, objectProto, []methodSpec{
		{"toString", 0, func(args []vm.Value) (vm.Value, error) {
			s, err := objectToString(vmInstance, vmInstance.GetThis())
			return vm.NewString(s), err
		}},
		{"toLocaleString", 0, func(args []vm.Value) (vm.Value, error) {
			return vmInstance.Invoke(vmInstance.GetThis(), vm.StringKey("toString"), nil)
		}},
		{"valueOf", 0, func(args []vm.Value) (vm.Value, error) {
			return vmInstance.ToObject(vmInstance.GetThis())
		}},
		{"hasOwnProperty", 1, func(args []vm.Value) (vm.Value, error) {
			key, err := vmInstance.ToPropertyKey(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			obj, err := vmInstance.ToObject(vmInstance.GetThis())
			if err != nil {
				return vm.Undefined, err
			}
			has, err := vmInstance.HasOwnProperty(obj, key)
			return vm.BooleanValue(has), err
		}},
		{"isPrototypeOf", 1, func(args []vm.Value) (vm.Value, error) {
			v := arg(args, 0)
			if !v.IsObject() {
				return vm.False, nil
			}
			obj, err := vmInstance.ToObject(vmInstance.GetThis())
			if err != nil {
				return vm.Undefined, err
			}
			for {
				v, err = vmInstance.GetPrototypeOf(v)
				if err != nil || v.IsNull() {
					return vm.False, err
				}
				if v.Is(obj) {
					return vm.True, nil
				}
			}
		}},
		{"propertyIsEnumerable", 1, func(args []vm.Value) (vm.Value, error) {
			key, err := vmInstance.ToPropertyKey(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			obj, err := vmInstance.ToObject(vmInstance.GetThis())
			if err != nil {
				return vm.Undefined, err
			}
			desc, has, err := vmInstance.GetOwnProperty(obj, key)
			return vm.BooleanValue(has && desc.Enumerable), err
		}},
	})

	objectCtor := vmInstance.NewNativeConstructor(1, "Object", func(args []vm.Value) (vm.Value, error) {
		newTarget := vmInstance.GetNewTarget()
		if !newTarget.IsUndefined() && !newTarget.Is(vmInstance.GetCallee()) {
			proto, err := prototypeForNew(vmInstance, objectProto)
			if err != nil {
				return vm.Undefined, err
			}
			return vm.NewObject(proto), nil
		}
		v := arg(args, 0)
		if v.IsNullish() {
			return vm.NewObject(objectProto), nil
		}
		return vmInstance.ToObject(v)
	})
	vm.LinkConstructor(objectCtor, objectProto)
	realm.ObjectConstructor = objectCtor

	defineMethods(vmInstance, objectCtor, []methodSpec{
		{"getPrototypeOf", 1, func(args []vm.Value) (vm.Value, error) {
			obj, err := vmInstance.ToObject(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			return vmInstance.GetPrototypeOf(obj)
		}},
		{"setPrototypeOf", 2, func(args []vm.Value) (vm.Value, error) {
			o, proto := arg(args, 0), arg(args, 1)
			if o.IsNullish() {
				return vm.Undefined, vmInstance.NewTypeError("Object.setPrototypeOf called on null or undefined")
			}
			if !proto.IsObject() && !proto.IsNull() {
				return vm.Undefined, vmInstance.NewTypeErrorf("Object prototype may only be an Object or null: %s", proto.Inspect())
			}
			if !o.IsObject() {
				return o, nil
			}
			ok, err := vmInstance.SetPrototypeOf(o, proto)
			if err != nil {
				return vm.Undefined, err
			}
			if !ok {
				return vm.Undefined, vmInstance.NewTypeError("Cyclic __proto__ value or non-extensible object")
			}
			return o, nil
		}},
		{"create", 2, func(args []vm.Value) (vm.Value, error) {
			proto := arg(args, 0)
			if !proto.IsObject() && !proto.IsNull() {
				return vm.Undefined, vmInstance.NewTypeErrorf("Object prototype may only be an Object or null: %s", proto.Inspect())
			}
			obj := vm.NewObject(proto)
			if props := arg(args, 1); !props.IsUndefined() {
				if err := defineProperties(vmInstance, obj, props); err != nil {
					return vm.Undefined, err
				}
			}
			return obj, nil
		}},
		{"defineProperty", 3, func(args []vm.Value) (vm.Value, error) {
			o := arg(args, 0)
			if !o.IsObject() {
				return vm.Undefined, vmInstance.NewTypeError("Object.defineProperty called on non-object")
			}
			key, err := vmInstance.ToPropertyKey(arg(args, 1))
			if err != nil {
				return vm.Undefined, err
			}
			desc, err := vmInstance.ToPropertyDescriptor(arg(args, 2))
			if err != nil {
				return vm.Undefined, err
			}
			return o, vmInstance.DefinePropertyOrThrow(o, key, desc)
		}},
		{"defineProperties", 2, func(args []vm.Value) (vm.Value, error) {
			o := arg(args, 0)
			if !o.IsObject() {
				return vm.Undefined, vmInstance.NewTypeError("Object.defineProperties called on non-object")
			}
			return o, defineProperties(vmInstance, o, arg(args, 1))
		}},
		{"getOwnPropertyDescriptor", 2, func(args []vm.Value) (vm.Value, error) {
			obj, err := vmInstance.ToObject(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			key, err := vmInstance.ToPropertyKey(arg(args, 1))
			if err != nil {
				return vm.Undefined, err
			}
			desc, has, err := vmInstance.GetOwnProperty(obj, key)
			if err != nil || !has {
				return vm.Undefined, err
			}
			return vmInstance.FromPropertyDescriptor(desc), nil
		}},
		{"keys", 1, func(args []vm.Value) (vm.Value, error) {
			obj, err := vmInstance.ToObject(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			keys, err := vmInstance.OwnPropertyKeys(obj)
			if err != nil {
				return vm.Undefined, err
			}
			var names []vm.Value
			for _, k := range keys {
				if k.IsSymbol() {
					continue
				}
				desc, has, err := vmInstance.GetOwnProperty(obj, k)
				if err != nil {
					return vm.Undefined, err
				}
				if has && desc.Enumerable {
					names = append(names, vm.NewString(k.Name()))
				}
			}
			return vmInstance.NewArrayFromSlice(names), nil
		}},
		{"freeze", 1, func(args []vm.Value) (vm.Value, error) {
			o := arg(args, 0)
			if !o.IsObject() {
				return o, nil
			}
			ok, err := vmInstance.SetIntegrityLevel(o, true)
			if err != nil {
				return vm.Undefined, err
			}
			if !ok {
				return vm.Undefined, vmInstance.NewTypeError("Cannot freeze")
			}
			return o, nil
		}},
		{"isFrozen", 1, func(args []vm.Value) (vm.Value, error) {
			o := arg(args, 0)
			if !o.IsObject() {
				return vm.True, nil
			}
			frozen, err := isFrozen(vmInstance, o)
			return vm.BooleanValue(frozen), err
		}},
		{"is", 2, func(args []vm.Value) (vm.Value, error) {
			return vm.BooleanValue(vm.SameValue(arg(args, 0), arg(args, 1))), nil
		}},
	})

	return ctx.DefineGlobal("Object", objectCtor)
}

// objectToString implements Object.prototype.toString.
func objectToString(vmInstance *vm.VM, this vm.Value) (string, error) {
	switch {
	case this.IsUndefined():
		return "[object Undefined]", nil
	case this.IsNull():
		return "[object Null]", nil
	}
	obj, err := vmInstance.ToObject(this)
	if err != nil {
		return "", err
	}
	builtinTag := "Object"
	isArray, err := vmInstance.IsArray(obj)
	if err != nil {
		return "", err
	}
	switch {
	case isArray:
		builtinTag = "Array"
	case obj.IsCallable():
		builtinTag = "Function"
	default:
		switch class := obj.AsPlainObject().Class(); class {
		case "Arguments", "Error", "Boolean", "Number", "String", "Date", "RegExp":
			builtinTag = class
		}
	}
	tag, err := vmInstance.Get(obj, vm.SymbolKey(vm.SymbolToStringTag))
	if err != nil {
		return "", err
	}
	if tag.IsString() {
		builtinTag = tag.AsString()
	}
	return "[object " + builtinTag + "]", nil
}

func defineProperties(vmInstance *vm.VM, o, props vm.Value) error {
	propsObj, err := vmInstance.ToObject(props)
	if err != nil {
		return err
	}
	keys, err := vmInstance.OwnPropertyKeys(propsObj)
	if err != nil {
		return err
	}
	type pending struct {
		key  vm.PropertyKey
		desc vm.PropertyDescriptor
	}
	var descs []pending
	for _, k := range keys {
		d, has, err := vmInstance.GetOwnProperty(propsObj, k)
		if err != nil {
			return err
		}
		if !has || !d.Enumerable {
			continue
		}
		descObj, err := vmInstance.Get(propsObj, k)
		if err != nil {
			return err
		}
		desc, err := vmInstance.ToPropertyDescriptor(descObj)
		if err != nil {
			return err
		}
		descs = append(descs, pending{k, desc})
	}
	for _, p := range descs {
		if err := vmInstance.DefinePropertyOrThrow(o, p.key, p.desc); err != nil {
			return err
		}
	}
	return nil
}

func isFrozen(vmInstance *vm.VM, o vm.Value) (bool, error) {
	extensible, err := vmInstance.IsExtensible(o)
	if err != nil || extensible {
		return false, err
	}
	keys, err := vmInstance.OwnPropertyKeys(o)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		desc, has, err := vmInstance.GetOwnProperty(o, k)
		if err != nil {
			return false, err
		}
		if has && (desc.Configurable || (desc.IsData() && desc.Writable)) {
			return false, nil
		}
	}
	return true, nil
}
