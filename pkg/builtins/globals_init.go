package builtins

import (
	"math"

	"github.com/corvidjs/corvid/pkg/vm"
)

type GlobalsInitializer struct{}

func (g *GlobalsInitializer) Name() string       { return "Globals" }
func (g *GlobalsInitializer) Requires() []string { return []string{"Number"} }

func (g *GlobalsInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm

	// NaN, Infinity and undefined are read-only.
	global := realm.GlobalObject.AsPlainObject()
	global.DefineOwnPropertyFlags(vm.StringKey("Infinity"), vm.NumberValue(math.Inf(1)), false, false, false)
	global.DefineOwnPropertyFlags(vm.StringKey("NaN"), vm.NaN, false, false, false)
	global.DefineOwnPropertyFlags(vm.StringKey("undefined"), vm.Undefined, false, false, false)

	if err := ctx.DefineGlobal("globalThis", realm.GlobalObject); err != nil {
		return err
	}
	for _, name := range []string{"parseFloat", "parseInt"} {
		if err := ctx.DefineGlobal(name, realm.Intrinsics["%"+name+"%"]); err != nil {
			return err
		}
	}

	// The global predicates coerce, unlike Number.isNaN and Number.isFinite.
	isNaN := vmInstance.NewNativeFunction(1, false, "isNaN", func(args []vm.Value) (vm.Value, error) {
		n, err := vmInstance.ToNumber(arg(args, 0))
		return vm.BooleanValue(math.IsNaN(n)), err
	})
	if err := ctx.DefineGlobal("isNaN", isNaN); err != nil {
		return err
	}
	isFiniteFn := vmInstance.NewNativeFunction(1, false, "isFinite", func(args []vm.Value) (vm.Value, error) {
		n, err := vmInstance.ToNumber(arg(args, 0))
		return vm.BooleanValue(isFinite(n)), err
	})
	return ctx.DefineGlobal("isFinite", isFiniteFn)
}
