package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type ProxyInitializer struct{}

func (p *ProxyInitializer) Name() string       { return "Proxy" }
func (p *ProxyInitializer) Requires() []string { return []string{"Function"} }

func (p *ProxyInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM

	proxyCtor := vmInstance.NewNativeConstructor(2, "Proxy", func(args []vm.Value) (vm.Value, error) {
		if err := requireNew(vmInstance, "Proxy"); err != nil {
			return vm.Undefined, err
		}
		return vmInstance.NewProxy(arg(args, 0), arg(args, 1))
	})

	defineMethods(vmInstance, proxyCtor, []methodSpec{
		{"revocable", 2, func(args []vm.Value) (vm.Value, error) {
			proxy, err := vmInstance.NewProxy(arg(args, 0), arg(args, 1))
			if err != nil {
				return vm.Undefined, err
			}
			revoke := vmInstance.NewNativeFunction(0, false, "", func([]vm.Value) (vm.Value, error) {
				proxy.AsProxy().Revoke()
				return vm.Undefined, nil
			})
			result := vm.NewObject(ctx.Realm.ObjectPrototype)
			result.AsPlainObject().SetOwn("proxy", proxy)
			result.AsPlainObject().SetOwn("revoke", revoke)
			return result, nil
		}},
	})

	return ctx.DefineGlobal("Proxy", proxyCtor)
}
