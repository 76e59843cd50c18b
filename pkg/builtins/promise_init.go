package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type PromiseInitializer struct{}

func (p *PromiseInitializer) Name() string       { return "Promise" }
func (p *PromiseInitializer) Requires() []string { return []string{"Error"} }

func (p *PromiseInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm
	promiseProto := realm.PromisePrototype

	resolvingFunctions := func(resolve, reject func(vm.Value)) (vm.Value, vm.Value) {
		resolveFn := vmInstance.NewNativeFunction(1, false, "", func(args []vm.Value) (vm.Value, error) {
			resolve(arg(args, 0))
			return vm.Undefined, nil
		})
		rejectFn := vmInstance.NewNativeFunction(1, false, "", func(args []vm.Value) (vm.Value, error) {
			reject(arg(args, 0))
			return vm.Undefined, nil
		})
		return resolveFn, rejectFn
	}

	defineMethods(vmInstance, promiseProto, []methodSpec{
		{"then", 2, func(args []vm.Value) (vm.Value, error) {
			return vmInstance.PromiseThen(vmInstance.GetThis(), arg(args, 0), arg(args, 1))
		}},
		{"catch", 1, func(args []vm.Value) (vm.Value, error) {
			return vmInstance.Invoke(vmInstance.GetThis(), vm.StringKey("then"), []vm.Value{vm.Undefined, arg(args, 0)})
		}},
		{"finally", 1, func(args []vm.Value) (vm.Value, error) {
			this := vmInstance.GetThis()
			onFinally := arg(args, 0)
			if !onFinally.IsCallable() {
				return vmInstance.Invoke(this, vm.StringKey("then"), []vm.Value{onFinally, onFinally})
			}
			// Both handlers run onFinally, wait for its result and then
			// pass the original outcome through.
			settle := func(rethrow bool) vm.Value {
				return vmInstance.NewNativeFunction(1, false, "", func(handlerArgs []vm.Value) (vm.Value, error) {
					outcome := arg(handlerArgs, 0)
					result, err := vmInstance.Call(onFinally, vm.Undefined, nil)
					if err != nil {
						return vm.Undefined, err
					}
					passThrough := vmInstance.NewNativeFunction(0, false, "", func([]vm.Value) (vm.Value, error) {
						if rethrow {
							return vm.Undefined, vm.NewException(outcome)
						}
						return outcome, nil
					})
					return vmInstance.Invoke(vmInstance.PromiseResolve(result), vm.StringKey("then"), []vm.Value{passThrough})
				})
			}
			return vmInstance.Invoke(this, vm.StringKey("then"), []vm.Value{settle(false), settle(true)})
		}},
	})
	defineToStringTag(promiseProto, "Promise")

	promiseCtor := vmInstance.NewNativeConstructor(1, "Promise", func(args []vm.Value) (vm.Value, error) {
		if err := requireNew(vmInstance, "Promise"); err != nil {
			return vm.Undefined, err
		}
		executor := arg(args, 0)
		if !executor.IsCallable() {
			return vm.Undefined, vmInstance.NewTypeErrorf("Promise resolver %s is not a function", executor.Inspect())
		}
		proto, err := prototypeForNew(vmInstance, promiseProto)
		if err != nil {
			return vm.Undefined, err
		}
		promise, resolve, reject := vmInstance.NewPendingPromise(proto)
		resolveFn, rejectFn := resolvingFunctions(resolve, reject)
		if _, err := vmInstance.Call(executor, vm.Undefined, []vm.Value{resolveFn, rejectFn}); err != nil {
			reject(vmInstance.ThrownValue(err))
		}
		return promise, nil
	})
	vm.LinkConstructor(promiseCtor, promiseProto)
	defineSpecies(vmInstance, promiseCtor)
	realm.PromiseConstructor = promiseCtor

	defineMethods(vmInstance, promiseCtor, []methodSpec{
		{"resolve", 1, func(args []vm.Value) (vm.Value, error) {
			return vmInstance.PromiseResolve(arg(args, 0)), nil
		}},
		{"reject", 1, func(args []vm.Value) (vm.Value, error) {
			return vmInstance.NewRejectedPromise(arg(args, 0)), nil
		}},
		{"all", 1, func(args []vm.Value) (vm.Value, error) {
			result, resolve, reject := vmInstance.NewPendingPromise(vm.Undefined)
			items, err := vmInstance.IterableToList(arg(args, 0))
			if err != nil {
				reject(vmInstance.ThrownValue(err))
				return result, nil
			}
			values := make([]vm.Value, len(items))
			remaining := len(items)
			if remaining == 0 {
				resolve(vmInstance.NewArrayFromSlice(values))
				return result, nil
			}
			for i, item := range items {
				vmInstance.OnSettled(vmInstance.PromiseResolve(item), func(v vm.Value) {
					values[i] = v
					if remaining--; remaining == 0 {
						resolve(vmInstance.NewArrayFromSlice(values))
					}
				}, reject)
			}
			return result, nil
		}},
	})

	return ctx.DefineGlobal("Promise", promiseCtor)
}
