package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

// IteratorInitializer sets up %IteratorPrototype% and the next methods of
// the builtin iterator prototypes (Array, Map, Set).
type IteratorInitializer struct{}

func (i *IteratorInitializer) Name() string       { return "Iterator" }
func (i *IteratorInitializer) Requires() []string { return []string{"Symbol"} }

func (i *IteratorInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm

	defineSymbolMethod(vmInstance, realm.IteratorPrototype, vm.SymbolIterator, 0, func(args []vm.Value) (vm.Value, error) {
		return vmInstance.GetThis(), nil
	})

	for proto, tag := range map[*vm.Value]string{
		&realm.ArrayIteratorPrototype: "Array Iterator",
		&realm.MapIteratorPrototype:   "Map Iterator",
		&realm.SetIteratorPrototype:   "Set Iterator",
	} {
		tag := tag
		defineMethods(vmInstance, *proto, []methodSpec{
			{"next", 0, func(args []vm.Value) (vm.Value, error) {
				this := vmInstance.GetThis()
				if this.Type() != vm.TypeIterator || this.AsIterator().Tag != tag {
					return vm.Undefined, vmInstance.NewTypeErrorf("next method called on incompatible receiver %s", this.Inspect())
				}
				v, done, err := this.AsIterator().Step()
				if err != nil {
					return vm.Undefined, err
				}
				return vmInstance.CreateIterResultObject(v, done), nil
			}},
		})
		defineToStringTag(*proto, tag)
	}
	return nil
}
