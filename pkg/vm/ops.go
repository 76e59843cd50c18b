package vm

import (
	"fmt"
)

// This file holds the object internal methods ([[Get]], [[Set]], ...) and
// the abstract operations built directly on them. Proxies dispatch to their
// handler; every other object goes through its ownStorage.

func (vm *VM) storage(o Value) ownStorage {
	switch o.typ {
	case TypeArray:
		return o.AsArray()
	case TypeTypedArray:
		return o.AsTypedArray()
	}
	return o.AsPlainObject()
}

func (vm *VM) requireObject(o Value, op string) error {
	if !o.IsObject() {
		return vm.NewTypeErrorf("%s called on non-object %s", op, vm.describeForError(o))
	}
	return nil
}

// GetPrototypeOf implements [[GetPrototypeOf]].
func (vm *VM) GetPrototypeOf(o Value) (Value, error) {
	if err := vm.requireObject(o, "getPrototypeOf"); err != nil {
		return Undefined, err
	}
	if o.typ == TypeProxy {
		p := o.AsProxy()
		trap, err := vm.proxyTrap(p, "getPrototypeOf")
		if err != nil {
			return Undefined, err
		}
		if trap.IsUndefined() {
			return vm.GetPrototypeOf(p.target)
		}
		proto, err := vm.Call(trap, p.handler, []Value{p.target})
		if err != nil {
			return Undefined, err
		}
		if !proto.IsObject() && !proto.IsNull() {
			return Undefined, vm.NewTypeError("'getPrototypeOf' on proxy: trap returned neither object nor null")
		}
		return proto, nil
	}
	return o.AsPlainObject().prototype, nil
}

// SetPrototypeOf implements [[SetPrototypeOf]].
func (vm *VM) SetPrototypeOf(o, proto Value) (bool, error) {
	if o.typ == TypeProxy {
		p := o.AsProxy()
		trap, err := vm.proxyTrap(p, "setPrototypeOf")
		if err != nil {
			return false, err
		}
		if trap.IsUndefined() {
			return vm.SetPrototypeOf(p.target, proto)
		}
		res, err := vm.Call(trap, p.handler, []Value{p.target, proto})
		if err != nil {
			return false, err
		}
		return ToBoolean(res), nil
	}
	po := o.AsPlainObject()
	if SameValue(po.prototype, proto) {
		return true, nil
	}
	if !po.extensible {
		return false, nil
	}
	for p := proto; p.IsObject(); {
		if p.obj == o.obj {
			return false, nil
		}
		if p.typ == TypeProxy {
			break
		}
		p = p.AsPlainObject().prototype
	}
	po.prototype = proto
	return true, nil
}

// IsExtensible implements IsExtensible(O).
func (vm *VM) IsExtensible(o Value) (bool, error) {
	if o.typ == TypeProxy {
		p := o.AsProxy()
		if p.revoked {
			return false, vm.NewTypeError("Cannot perform 'isExtensible' on a proxy that has been revoked")
		}
		return vm.IsExtensible(p.target)
	}
	return o.AsPlainObject().extensible, nil
}

// PreventExtensions implements [[PreventExtensions]].
func (vm *VM) PreventExtensions(o Value) (bool, error) {
	if o.typ == TypeProxy {
		p := o.AsProxy()
		if p.revoked {
			return false, vm.NewTypeError("Cannot perform 'preventExtensions' on a proxy that has been revoked")
		}
		return vm.PreventExtensions(p.target)
	}
	o.AsPlainObject().extensible = false
	return true, nil
}

// GetOwnProperty implements [[GetOwnProperty]].
func (vm *VM) GetOwnProperty(o Value, key PropertyKey) (PropertyDescriptor, bool, error) {
	if o.typ == TypeProxy {
		p := o.AsProxy()
		trap, err := vm.proxyTrap(p, "getOwnPropertyDescriptor")
		if err != nil {
			return PropertyDescriptor{}, false, err
		}
		if trap.IsUndefined() {
			return vm.GetOwnProperty(p.target, key)
		}
		res, err := vm.Call(trap, p.handler, []Value{p.target, key.ToValue()})
		if err != nil {
			return PropertyDescriptor{}, false, err
		}
		if res.IsUndefined() {
			return PropertyDescriptor{}, false, nil
		}
		if !res.IsObject() {
			return PropertyDescriptor{}, false, vm.NewTypeErrorf("'getOwnPropertyDescriptor' on proxy: trap returned neither object nor undefined for property '%s'", key)
		}
		desc, err := vm.ToPropertyDescriptor(res)
		if err != nil {
			return PropertyDescriptor{}, false, err
		}
		completed, _ := validateAndApply(true, desc, PropertyDescriptor{}, false)
		return completed, true, nil
	}
	d, ok := vm.storage(o).getOwnProperty(key)
	return d, ok, nil
}

// DefineOwnProperty implements [[DefineOwnProperty]].
func (vm *VM) DefineOwnProperty(o Value, key PropertyKey, desc PropertyDescriptor) (bool, error) {
	switch o.typ {
	case TypeProxy:
		p := o.AsProxy()
		trap, err := vm.proxyTrap(p, "defineProperty")
		if err != nil {
			return false, err
		}
		if trap.IsUndefined() {
			return vm.DefineOwnProperty(p.target, key, desc)
		}
		res, err := vm.Call(trap, p.handler, []Value{p.target, key.ToValue(), vm.FromPropertyDescriptor(desc)})
		if err != nil {
			return false, err
		}
		return ToBoolean(res), nil
	case TypeArray:
		if key == lengthKey && desc.HasValue {
			newLen, err := vm.ToUint32(desc.Value)
			if err != nil {
				return false, err
			}
			numberLen, err := vm.ToNumber(desc.Value)
			if err != nil {
				return false, err
			}
			if float64(newLen) != numberLen {
				return false, vm.NewRangeError("Invalid array length")
			}
			desc.Value = IndexValue(int64(newLen))
		}
	case TypeTypedArray:
		if _, isIndex := key.Index(); isIndex && desc.HasValue {
			converted, err := vm.ToTypedArrayElement(o.AsTypedArray().kind, desc.Value)
			if err != nil {
				return false, err
			}
			desc.Value = converted
		}
	}
	return vm.storage(o).defineOwnProperty(key, desc), nil
}

// HasProperty implements [[HasProperty]], walking the prototype chain.
func (vm *VM) HasProperty(o Value, key PropertyKey) (bool, error) {
	for cur := o; cur.IsObject(); {
		switch cur.typ {
		case TypeProxy:
			p := cur.AsProxy()
			trap, err := vm.proxyTrap(p, "has")
			if err != nil {
				return false, err
			}
			if trap.IsUndefined() {
				cur = p.target
				continue
			}
			res, err := vm.Call(trap, p.handler, []Value{p.target, key.ToValue()})
			if err != nil {
				return false, err
			}
			return ToBoolean(res), nil
		case TypeTypedArray:
			if i, ok := key.Index(); ok {
				return cur.AsTypedArray().validIndex(i), nil
			}
		}
		if _, ok := vm.storage(cur).getOwnProperty(key); ok {
			return true, nil
		}
		cur = cur.AsPlainObject().prototype
	}
	return false, nil
}

// HasOwnProperty implements HasOwnProperty(O, P).
func (vm *VM) HasOwnProperty(o Value, key PropertyKey) (bool, error) {
	_, ok, err := vm.GetOwnProperty(o, key)
	return ok, err
}

// Get implements Get(O, P).
func (vm *VM) Get(o Value, key PropertyKey) (Value, error) {
	return vm.GetWithReceiver(o, key, o)
}

// GetWithReceiver implements [[Get]](P, Receiver).
func (vm *VM) GetWithReceiver(o Value, key PropertyKey, receiver Value) (Value, error) {
	for cur := o; cur.IsObject(); {
		switch cur.typ {
		case TypeProxy:
			p := cur.AsProxy()
			trap, err := vm.proxyTrap(p, "get")
			if err != nil {
				return Undefined, err
			}
			if trap.IsUndefined() {
				cur = p.target
				continue
			}
			return vm.Call(trap, p.handler, []Value{p.target, key.ToValue(), receiver})
		case TypeTypedArray:
			if i, ok := key.Index(); ok {
				return cur.AsTypedArray().GetElement(i), nil
			}
		}
		if desc, ok := vm.storage(cur).getOwnProperty(key); ok {
			if !desc.IsAccessor() {
				return desc.Value, nil
			}
			if desc.Get.IsUndefined() {
				return Undefined, nil
			}
			return vm.Call(desc.Get, receiver, nil)
		}
		cur = cur.AsPlainObject().prototype
	}
	return Undefined, nil
}

// GetV implements GetV(V, P): property lookup on any value, boxing
// primitives through their prototype.
func (vm *VM) GetV(v Value, key PropertyKey) (Value, error) {
	if v.IsObject() {
		return vm.Get(v, key)
	}
	obj, err := vm.ToObject(v)
	if err != nil {
		return Undefined, err
	}
	return vm.GetWithReceiver(obj, key, v)
}

// Set implements Set(O, P, V, Throw).
func (vm *VM) Set(o Value, key PropertyKey, v Value, throw bool) error {
	ok, err := vm.SetWithReceiver(o, key, v, o)
	if err != nil {
		return err
	}
	if !ok && throw {
		return vm.NewTypeErrorf("Cannot assign to read only property '%s' of %s", key, vm.describeForError(o))
	}
	return nil
}

// SetWithReceiver implements [[Set]](P, V, Receiver) with OrdinarySet for
// non-proxy objects.
func (vm *VM) SetWithReceiver(o Value, key PropertyKey, v Value, receiver Value) (bool, error) {
	var ownDesc PropertyDescriptor
	cur := o
	for {
		switch cur.typ {
		case TypeProxy:
			p := cur.AsProxy()
			trap, err := vm.proxyTrap(p, "set")
			if err != nil {
				return false, err
			}
			if trap.IsUndefined() {
				return vm.SetWithReceiver(p.target, key, v, receiver)
			}
			res, err := vm.Call(trap, p.handler, []Value{p.target, key.ToValue(), v, receiver})
			if err != nil {
				return false, err
			}
			return ToBoolean(res), nil
		case TypeTypedArray:
			if i, ok := key.Index(); ok {
				ta := cur.AsTypedArray()
				if receiver.IsObject() && receiver.obj == cur.obj {
					converted, err := vm.ToTypedArrayElement(ta.kind, v)
					if err != nil {
						return false, err
					}
					ta.SetElement(i, converted)
					return true, nil
				}
				if !ta.validIndex(i) {
					return true, nil
				}
			}
		}
		desc, has := vm.storage(cur).getOwnProperty(key)
		if has {
			ownDesc = desc
			break
		}
		parent := cur.AsPlainObject().prototype
		if !parent.IsObject() {
			ownDesc = DataProperty(Undefined, true, true, true)
			break
		}
		cur = parent
	}

	if ownDesc.IsAccessor() {
		if ownDesc.Set.IsUndefined() {
			return false, nil
		}
		if _, err := vm.Call(ownDesc.Set, receiver, []Value{v}); err != nil {
			return false, err
		}
		return true, nil
	}
	if !ownDesc.Writable {
		return false, nil
	}
	if !receiver.IsObject() {
		return false, nil
	}
	existing, has, err := vm.GetOwnProperty(receiver, key)
	if err != nil {
		return false, err
	}
	if has {
		if existing.IsAccessor() || !existing.Writable {
			return false, nil
		}
		return vm.DefineOwnProperty(receiver, key, PropertyDescriptor{Value: v, HasValue: true})
	}
	return vm.CreateDataProperty(receiver, key, v)
}

// Delete implements [[Delete]].
func (vm *VM) Delete(o Value, key PropertyKey) (bool, error) {
	if o.typ == TypeProxy {
		p := o.AsProxy()
		trap, err := vm.proxyTrap(p, "deleteProperty")
		if err != nil {
			return false, err
		}
		if trap.IsUndefined() {
			return vm.Delete(p.target, key)
		}
		res, err := vm.Call(trap, p.handler, []Value{p.target, key.ToValue()})
		if err != nil {
			return false, err
		}
		return ToBoolean(res), nil
	}
	return vm.storage(o).deleteOwnProperty(key), nil
}

// DeletePropertyOrThrow implements DeletePropertyOrThrow(O, P).
func (vm *VM) DeletePropertyOrThrow(o Value, key PropertyKey) error {
	ok, err := vm.Delete(o, key)
	if err != nil {
		return err
	}
	if !ok {
		return vm.NewTypeErrorf("Cannot delete property '%s' of %s", key, vm.describeForError(o))
	}
	return nil
}

// OwnPropertyKeys implements [[OwnPropertyKeys]].
func (vm *VM) OwnPropertyKeys(o Value) ([]PropertyKey, error) {
	if o.typ == TypeProxy {
		p := o.AsProxy()
		trap, err := vm.proxyTrap(p, "ownKeys")
		if err != nil {
			return nil, err
		}
		if trap.IsUndefined() {
			return vm.OwnPropertyKeys(p.target)
		}
		res, err := vm.Call(trap, p.handler, []Value{p.target})
		if err != nil {
			return nil, err
		}
		list, err := vm.CreateListFromArrayLike(res)
		if err != nil {
			return nil, err
		}
		keys := make([]PropertyKey, 0, len(list))
		for _, k := range list {
			switch {
			case k.IsString():
				keys = append(keys, StringKey(k.AsString()))
			case k.IsSymbol():
				keys = append(keys, SymbolKey(k.AsSymbol()))
			default:
				return nil, vm.NewTypeErrorf("%s is not a valid property name", vm.describeForError(k))
			}
		}
		return keys, nil
	}
	return vm.storage(o).ownKeys(), nil
}

// CreateDataProperty implements CreateDataProperty(O, P, V).
func (vm *VM) CreateDataProperty(o Value, key PropertyKey, v Value) (bool, error) {
	return vm.DefineOwnProperty(o, key, DefaultDataProperty(v))
}

// CreateDataPropertyOrThrow implements CreateDataPropertyOrThrow(O, P, V).
func (vm *VM) CreateDataPropertyOrThrow(o Value, key PropertyKey, v Value) error {
	ok, err := vm.CreateDataProperty(o, key, v)
	if err != nil {
		return err
	}
	if !ok {
		return vm.NewTypeErrorf("Cannot add property %s, object is not extensible", key)
	}
	return nil
}

// DefinePropertyOrThrow implements DefinePropertyOrThrow(O, P, desc).
func (vm *VM) DefinePropertyOrThrow(o Value, key PropertyKey, desc PropertyDescriptor) error {
	ok, err := vm.DefineOwnProperty(o, key, desc)
	if err != nil {
		return err
	}
	if !ok {
		return vm.NewTypeErrorf("Cannot redefine property: %s", key)
	}
	return nil
}

// GetMethod implements GetMethod(V, P).
func (vm *VM) GetMethod(v Value, key PropertyKey) (Value, error) {
	fn, err := vm.GetV(v, key)
	if err != nil {
		return Undefined, err
	}
	if fn.IsNullish() {
		return Undefined, nil
	}
	if !fn.IsCallable() {
		return Undefined, vm.NewTypeErrorf("%s is not a function", vm.describeForError(fn))
	}
	return fn, nil
}

// Invoke implements Invoke(V, P, args).
func (vm *VM) Invoke(v Value, key PropertyKey, args []Value) (Value, error) {
	fn, err := vm.GetV(v, key)
	if err != nil {
		return Undefined, err
	}
	return vm.Call(fn, v, args)
}

// CreateListFromArrayLike implements CreateListFromArrayLike(obj).
func (vm *VM) CreateListFromArrayLike(obj Value) ([]Value, error) {
	if !obj.IsObject() {
		return nil, vm.NewTypeError("CreateListFromArrayLike called on non-object")
	}
	n, err := vm.LengthOfArrayLike(obj)
	if err != nil {
		return nil, err
	}
	list := make([]Value, 0, n)
	for i := int64(0); i < n; i++ {
		v, err := vm.Get(obj, IndexKey(i))
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

// ToPropertyDescriptor implements ToPropertyDescriptor(Obj).
func (vm *VM) ToPropertyDescriptor(obj Value) (PropertyDescriptor, error) {
	if !obj.IsObject() {
		return PropertyDescriptor{}, vm.NewTypeErrorf("Property description must be an object: %s", vm.describeForError(obj))
	}
	var desc PropertyDescriptor
	field := func(name string, apply func(Value) error) error {
		has, err := vm.HasProperty(obj, StringKey(name))
		if err != nil || !has {
			return err
		}
		v, err := vm.Get(obj, StringKey(name))
		if err != nil {
			return err
		}
		return apply(v)
	}
	steps := []struct {
		name  string
		apply func(Value) error
	}{
		{"enumerable", func(v Value) error { desc.Enumerable, desc.HasEnumerable = ToBoolean(v), true; return nil }},
		{"configurable", func(v Value) error { desc.Configurable, desc.HasConfigurable = ToBoolean(v), true; return nil }},
		{"value", func(v Value) error { desc.Value, desc.HasValue = v, true; return nil }},
		{"writable", func(v Value) error { desc.Writable, desc.HasWritable = ToBoolean(v), true; return nil }},
		{"get", func(v Value) error {
			if !v.IsUndefined() && !v.IsCallable() {
				return vm.NewTypeErrorf("Getter must be a function: %s", vm.describeForError(v))
			}
			desc.Get, desc.HasGet = v, true
			return nil
		}},
		{"set", func(v Value) error {
			if !v.IsUndefined() && !v.IsCallable() {
				return vm.NewTypeErrorf("Setter must be a function: %s", vm.describeForError(v))
			}
			desc.Set, desc.HasSet = v, true
			return nil
		}},
	}
	for _, s := range steps {
		if err := field(s.name, s.apply); err != nil {
			return PropertyDescriptor{}, err
		}
	}
	if desc.IsAccessor() && desc.IsData() {
		return PropertyDescriptor{}, vm.NewTypeError("Invalid property descriptor. Cannot both specify accessors and a value or writable attribute")
	}
	return desc, nil
}

// FromPropertyDescriptor implements FromPropertyDescriptor(Desc).
func (vm *VM) FromPropertyDescriptor(desc PropertyDescriptor) Value {
	obj := NewObject(vm.realm.ObjectPrototype)
	po := obj.AsPlainObject()
	if desc.HasValue {
		po.SetOwn("value", desc.Value)
	}
	if desc.HasWritable {
		po.SetOwn("writable", BooleanValue(desc.Writable))
	}
	if desc.HasGet {
		po.SetOwn("get", desc.Get)
	}
	if desc.HasSet {
		po.SetOwn("set", desc.Set)
	}
	if desc.HasEnumerable {
		po.SetOwn("enumerable", BooleanValue(desc.Enumerable))
	}
	if desc.HasConfigurable {
		po.SetOwn("configurable", BooleanValue(desc.Configurable))
	}
	return obj
}

// SetIntegrityLevel implements SetIntegrityLevel(O, frozen|sealed).
func (vm *VM) SetIntegrityLevel(o Value, frozen bool) (bool, error) {
	ok, err := vm.PreventExtensions(o)
	if err != nil || !ok {
		return false, err
	}
	keys, err := vm.OwnPropertyKeys(o)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		desc := PropertyDescriptor{Configurable: false, HasConfigurable: true}
		if frozen {
			cur, has, err := vm.GetOwnProperty(o, k)
			if err != nil {
				return false, err
			}
			if !has {
				continue
			}
			if !cur.IsAccessor() {
				desc.Writable, desc.HasWritable = false, true
			}
		}
		if err := vm.DefinePropertyOrThrow(o, k, desc); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (vm *VM) proxyCall(p *ProxyObject, thisValue Value, args []Value) (Value, error) {
	trap, err := vm.proxyTrap(p, "apply")
	if err != nil {
		return Undefined, err
	}
	if trap.IsUndefined() {
		return vm.Call(p.target, thisValue, args)
	}
	return vm.Call(trap, p.handler, []Value{p.target, thisValue, vm.NewArrayFromSlice(append([]Value(nil), args...))})
}

func (vm *VM) proxyConstruct(p *ProxyObject, args []Value, newTarget Value) (Value, error) {
	trap, err := vm.proxyTrap(p, "construct")
	if err != nil {
		return Undefined, err
	}
	if trap.IsUndefined() {
		return vm.Construct(p.target, args, newTarget)
	}
	res, err := vm.Call(trap, p.handler, []Value{p.target, vm.NewArrayFromSlice(append([]Value(nil), args...)), newTarget})
	if err != nil {
		return Undefined, err
	}
	if !res.IsObject() {
		return Undefined, vm.NewTypeError("proxy [[Construct]] must return an object")
	}
	return res, nil
}

// IsArray implements IsArray(argument), seeing through proxies.
func (vm *VM) IsArray(v Value) (bool, error) {
	switch v.typ {
	case TypeArray:
		return true, nil
	case TypeProxy:
		p := v.AsProxy()
		if p.revoked {
			return false, vm.NewTypeError("Cannot perform 'IsArray' on a proxy that has been revoked")
		}
		return vm.IsArray(p.target)
	}
	return false, nil
}

// GetPrototypeFromConstructor implements GetPrototypeFromConstructor. A
// non-object "prototype" falls back to the intrinsic default.
func (vm *VM) GetPrototypeFromConstructor(ctor, fallback Value) (Value, error) {
	if !ctor.IsObject() {
		return fallback, nil
	}
	proto, err := vm.Get(ctor, StringKey("prototype"))
	if err != nil {
		return Undefined, err
	}
	if !proto.IsObject() {
		return fallback, nil
	}
	return proto, nil
}

// SpeciesConstructor implements SpeciesConstructor(O, defaultConstructor).
func (vm *VM) SpeciesConstructor(o, defaultCtor Value) (Value, error) {
	c, err := vm.Get(o, StringKey("constructor"))
	if err != nil {
		return Undefined, err
	}
	if c.IsUndefined() {
		return defaultCtor, nil
	}
	if !c.IsObject() {
		return Undefined, vm.NewTypeError("object.constructor is not an object")
	}
	s, err := vm.Get(c, SymbolKey(SymbolSpecies))
	if err != nil {
		return Undefined, err
	}
	if s.IsNullish() {
		return defaultCtor, nil
	}
	if s.IsConstructor() {
		return s, nil
	}
	return Undefined, vm.NewTypeError("object.constructor[Symbol.species] is not a constructor")
}

// ArraySpeciesCreate implements ArraySpeciesCreate(originalArray, length).
func (vm *VM) ArraySpeciesCreate(original Value, length int64) (Value, error) {
	isArray, err := vm.IsArray(original)
	if err != nil {
		return Undefined, err
	}
	if !isArray {
		return vm.ArrayCreate(length, Undefined)
	}
	c, err := vm.Get(original, StringKey("constructor"))
	if err != nil {
		return Undefined, err
	}
	if c.IsObject() {
		c, err = vm.Get(c, SymbolKey(SymbolSpecies))
		if err != nil {
			return Undefined, err
		}
		if c.IsNull() {
			c = Undefined
		}
	}
	if c.IsUndefined() || (c.IsObject() && c.obj == vm.realm.ArrayConstructor.obj) {
		return vm.ArrayCreate(length, Undefined)
	}
	if !c.IsConstructor() {
		return Undefined, vm.NewTypeError("object.constructor[Symbol.species] is not a constructor")
	}
	return vm.Construct(c, []Value{IndexValue(length)}, Undefined)
}

// describeForError renders a value for an error message without calling
// user code.
func (vm *VM) describeForError(v Value) string {
	switch v.typ {
	case TypeString:
		return fmt.Sprintf("%q", v.AsString())
	case TypeFunction:
		if name := v.AsFunction().Name; name != "" {
			return "function " + name
		}
		return "function"
	case TypeArray:
		return "[object Array]"
	}
	if v.IsObject() {
		return "#<" + v.AsPlainObject().class + ">"
	}
	return v.Inspect()
}
