package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type FunctionInitializer struct{}

func (f *FunctionInitializer) Name() string       { return "Function" }
func (f *FunctionInitializer) Requires() []string { return []string{"Object"} }

func (f *FunctionInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	functionProto := ctx.Realm.FunctionPrototype

	thisCallable := func(method string) (vm.Value, error) {
		fn := vmInstance.GetThis()
		if !fn.IsCallable() {
			return vm.Undefined, vmInstance.NewTypeErrorf("Function.prototype.%s called on non-function", method)
		}
		return fn, nil
	}

	defineMethods(vmInstance, functionProto, []methodSpec{
		{"call", 1, func(args []vm.Value) (vm.Value, error) {
			fn, err := thisCallable("call")
			if err != nil {
				return vm.Undefined, err
			}
			var rest []vm.Value
			if len(args) > 1 {
				rest = args[1:]
			}
			return vmInstance.Call(fn, arg(args, 0), rest)
		}},
		{"apply", 2, func(args []vm.Value) (vm.Value, error) {
			fn, err := thisCallable("apply")
			if err != nil {
				return vm.Undefined, err
			}
			argArray := arg(args, 1)
			if argArray.IsNullish() {
				return vmInstance.Call(fn, arg(args, 0), nil)
			}
			list, err := vmInstance.CreateListFromArrayLike(argArray)
			if err != nil {
				return vm.Undefined, err
			}
			return vmInstance.Call(fn, arg(args, 0), list)
		}},
		{"bind", 1, func(args []vm.Value) (vm.Value, error) {
			target, err := thisCallable("bind")
			if err != nil {
				return vm.Undefined, err
			}
			boundThis := arg(args, 0)
			var boundArgs []vm.Value
			if len(args) > 1 {
				boundArgs = append(boundArgs, args[1:]...)
			}
			name := ""
			if target.IsFunction() {
				name = target.AsFunction().Name
			}
			arity := 0
			if target.IsFunction() {
				arity = max(target.AsFunction().Arity-len(boundArgs), 0)
			}
			bound := vmInstance.NewNativeFunction(arity, true, "bound "+name, func(callArgs []vm.Value) (vm.Value, error) {
				all := append(append([]vm.Value(nil), boundArgs...), callArgs...)
				if nt := vmInstance.GetNewTarget(); !nt.IsUndefined() {
					if nt.Is(vmInstance.GetCallee()) {
						nt = target
					}
					return vmInstance.Construct(target, all, nt)
				}
				return vmInstance.Call(target, boundThis, all)
			})
			bound.AsFunction().Constructor = target.IsConstructor()
			return bound, nil
		}},
		{"toString", 0, func(args []vm.Value) (vm.Value, error) {
			fn, err := thisCallable("toString")
			if err != nil {
				return vm.Undefined, err
			}
			name := ""
			if fn.IsFunction() {
				name = fn.AsFunction().Name
			}
			return vm.NewString("function " + name + "() { [native code] }"), nil
		}},
	})

	functionCtor := vmInstance.NewNativeConstructor(1, "Function", func(args []vm.Value) (vm.Value, error) {
		return vm.Undefined, vmInstance.Throw(vm.KindEvalError, "Code generation from strings disallowed for this context")
	})
	vm.LinkConstructor(functionCtor, functionProto)

	return ctx.DefineGlobal("Function", functionCtor)
}
