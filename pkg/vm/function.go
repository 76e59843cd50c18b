package vm

import (
	"unsafe"
)

// NativeFunc is the Go body of a builtin. The receiver and new.target are
// read from the VM with GetThis and GetNewTarget.
type NativeFunc func(args []Value) (Value, error)

// FunctionObject is a native function. Constructor marks [[Construct]].
type FunctionObject struct {
	PlainObject
	Name        string
	Arity       int
	Variadic    bool
	Constructor bool
	Fn          NativeFunc
	// Host is an embedder slot, e.g. the wasm function behind an exported
	// function object.
	Host any
}

// NewNativeFunction creates a callable with the standard "length" and "name"
// properties and %Function.prototype% as prototype.
func (vm *VM) NewNativeFunction(arity int, variadic bool, name string, fn NativeFunc) Value {
	f := &FunctionObject{Name: name, Arity: arity, Variadic: variadic, Fn: fn}
	f.init(vm.realm.FunctionPrototype, "Function")
	f.putOwn(lengthKey, DataProperty(IntegerValue(int32(arity)), false, false, true))
	f.putOwn(StringKey("name"), DataProperty(NewString(name), false, false, true))
	return objectValue(TypeFunction, unsafe.Pointer(f))
}

// NewNativeConstructor is NewNativeFunction with [[Construct]]. The body
// checks GetNewTarget to tell construction from a plain call.
func (vm *VM) NewNativeConstructor(arity int, name string, fn NativeFunc) Value {
	v := vm.NewNativeFunction(arity, false, name, fn)
	v.AsFunction().Constructor = true
	return v
}

// NewGetter creates an accessor getter named "get <name>".
func (vm *VM) NewGetter(name string, fn NativeFunc) Value {
	return vm.NewNativeFunction(0, false, "get "+name, fn)
}

// LinkConstructor wires ctor.prototype and proto.constructor.
func LinkConstructor(ctor, proto Value) {
	ctor.AsPlainObject().DefineOwnPropertyFlags(StringKey("prototype"), proto, false, false, false)
	proto.AsPlainObject().SetOwnNonEnumerable("constructor", ctor)
}
