package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type SymbolInitializer struct{}

func (s *SymbolInitializer) Name() string       { return "Symbol" }
func (s *SymbolInitializer) Requires() []string { return []string{"Function"} }

func (s *SymbolInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	symbolProto := ctx.Realm.SymbolPrototype

	thisSymbol := func(method string) (*vm.Symbol, error) {
		this := vmInstance.GetThis()
		if this.IsSymbol() {
			return this.AsSymbol(), nil
		}
		if prim, ok := vm.PrimitiveOf(this, "Symbol"); ok {
			return prim.AsSymbol(), nil
		}
		return nil, vmInstance.NewTypeErrorf("Symbol.prototype.%s requires that 'this' be a Symbol", method)
	}

	defineMethods(vmInstance, symbolProto, []methodSpec{
		{"toString", 0, func(args []vm.Value) (vm.Value, error) {
			sym, err := thisSymbol("toString")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.NewString(sym.String()), nil
		}},
		{"valueOf", 0, func(args []vm.Value) (vm.Value, error) {
			sym, err := thisSymbol("valueOf")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.SymbolValue(sym), nil
		}},
	})
	defineGetter(vmInstance, symbolProto, "description", func(args []vm.Value) (vm.Value, error) {
		sym, err := thisSymbol("description")
		if err != nil {
			return vm.Undefined, err
		}
		if !sym.HasDescription {
			return vm.Undefined, nil
		}
		return vm.NewString(sym.Description), nil
	})
	defineSymbolMethod(vmInstance, symbolProto, vm.SymbolToPrimitive, 1, func(args []vm.Value) (vm.Value, error) {
		sym, err := thisSymbol("[Symbol.toPrimitive]")
		if err != nil {
			return vm.Undefined, err
		}
		return vm.SymbolValue(sym), nil
	})
	defineToStringTag(symbolProto, "Symbol")

	symbolCtor := vmInstance.NewNativeConstructor(0, "Symbol", func(args []vm.Value) (vm.Value, error) {
		if !vmInstance.GetNewTarget().IsUndefined() {
			return vm.Undefined, vmInstance.NewTypeError("Symbol is not a constructor")
		}
		desc := arg(args, 0)
		if desc.IsUndefined() {
			return vm.SymbolValue(&vm.Symbol{}), nil
		}
		s, err := vmInstance.ToString(desc)
		if err != nil {
			return vm.Undefined, err
		}
		return vm.SymbolValue(vm.NewSymbol(s)), nil
	})
	vm.LinkConstructor(symbolCtor, symbolProto)

	for name, sym := range vm.WellKnownSymbols {
		defineConstant(symbolCtor, name, vm.SymbolValue(sym))
	}
	defineMethods(vmInstance, symbolCtor, []methodSpec{
		{"for", 1, func(args []vm.Value) (vm.Value, error) {
			key, err := vmInstance.ToString(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			return vm.SymbolValue(vmInstance.SymbolFor(key)), nil
		}},
		{"keyFor", 1, func(args []vm.Value) (vm.Value, error) {
			v := arg(args, 0)
			if !v.IsSymbol() {
				return vm.Undefined, vmInstance.NewTypeErrorf("%s is not a symbol", v.Inspect())
			}
			if key, ok := vmInstance.SymbolKeyFor(v.AsSymbol()); ok {
				return vm.NewString(key), nil
			}
			return vm.Undefined, nil
		}},
	})

	return ctx.DefineGlobal("Symbol", symbolCtor)
}
