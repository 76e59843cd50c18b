package builtins

import (
	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/vm"
)

// BuiltinInitializer is implemented by each builtin module
type BuiltinInitializer interface {
	// Name returns the module name (e.g., "Array", "Error", "WebAssembly")
	Name() string

	// Requires lists the modules that must be installed first. Install
	// orders initializers by this graph.
	Requires() []string

	// InitRuntime creates runtime values for the VM
	InitRuntime(ctx *RuntimeContext) error
}

// RuntimeContext provides everything needed for runtime initialization
type RuntimeContext struct {
	// The VM instance
	VM *vm.VM

	// Realm holds the intrinsic prototypes; initializers fill them in.
	Realm *vm.Realm

	Logger *zap.Logger

	// Define a global value
	DefineGlobal func(name string, value vm.Value) error
}

// methodSpec is one row of a builtin method table.
type methodSpec struct {
	name  string
	arity int
	fn    vm.NativeFunc
}

// defineMethods installs a method table on target as writable,
// non-enumerable, configurable properties.
func defineMethods(vmInstance *vm.VM, target vm.Value, methods []methodSpec) {
	po := target.AsPlainObject()
	for _, m := range methods {
		po.SetOwnNonEnumerable(m.name, vmInstance.NewNativeFunction(m.arity, false, m.name, m.fn))
	}
}

// defineGetter installs a configurable, non-enumerable accessor with only a getter.
func defineGetter(vmInstance *vm.VM, target vm.Value, name string, fn vm.NativeFunc) {
	target.AsPlainObject().DefineAccessorProperty(vm.StringKey(name), vmInstance.NewGetter(name, fn), vm.Undefined, false, true)
}

// defineSymbolMethod installs a method under a well-known symbol, named
// "[Symbol.iterator]" and so on.
func defineSymbolMethod(vmInstance *vm.VM, target vm.Value, sym *vm.Symbol, arity int, fn vm.NativeFunc) vm.Value {
	f := vmInstance.NewNativeFunction(arity, false, "["+sym.Description+"]", fn)
	target.AsPlainObject().SetOwnSymbolNonEnumerable(sym, f)
	return f
}

// defineToStringTag installs the non-writable @@toStringTag string.
func defineToStringTag(target vm.Value, tag string) {
	target.AsPlainObject().DefineOwnPropertyFlags(vm.SymbolKey(vm.SymbolToStringTag), vm.NewString(tag), false, false, true)
}

// defineConstant installs a non-writable, non-enumerable, non-configurable value.
func defineConstant(target vm.Value, name string, value vm.Value) {
	target.AsPlainObject().DefineOwnPropertyFlags(vm.StringKey(name), value, false, false, false)
}

// defineSpecies installs the shared `get [Symbol.species]() { return this }`.
func defineSpecies(vmInstance *vm.VM, ctor vm.Value) {
	getter := vmInstance.NewGetter("[Symbol.species]", func(args []vm.Value) (vm.Value, error) {
		return vmInstance.GetThis(), nil
	})
	ctor.AsPlainObject().DefineAccessorProperty(vm.SymbolKey(vm.SymbolSpecies), getter, vm.Undefined, false, true)
}

func arg(args []vm.Value, i int) vm.Value {
	if i < len(args) {
		return args[i]
	}
	return vm.Undefined
}

// requireNew rejects a plain call of a constructor that needs new.
func requireNew(vmInstance *vm.VM, name string) error {
	if vmInstance.GetNewTarget().IsUndefined() {
		return vmInstance.NewTypeErrorf("Constructor %s requires 'new'", name)
	}
	return nil
}

// prototypeForNew resolves the prototype for the object being constructed.
func prototypeForNew(vmInstance *vm.VM, fallback vm.Value) (vm.Value, error) {
	return vmInstance.GetPrototypeFromConstructor(vmInstance.GetNewTarget(), fallback)
}
