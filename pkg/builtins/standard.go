package builtins

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/vm"
)

// GetStandardInitializers returns all built-in initializers in install order
func GetStandardInitializers() []BuiltinInitializer {
	return []BuiltinInitializer{
		&ObjectInitializer{},
		&FunctionInitializer{},
		&SymbolInitializer{},
		&IteratorInitializer{},
		&ArrayInitializer{},
		&PrimitiveWrappersInitializer{},
		&NumberInitializer{},
		&ErrorInitializer{},
		&MapInitializer{},
		&SetInitializer{},
		&WeakMapInitializer{},
		&WeakSetInitializer{},
		&PromiseInitializer{},
		&ProxyInitializer{},
		&ArrayBufferInitializer{},
		&TypedArrayInitializer{},
		&GlobalsInitializer{},
	}
}

// SortInitializers orders initializers so that every module comes after the
// modules it requires. Ties keep the input order. A missing requirement or a
// cycle is an error.
func SortInitializers(inits []BuiltinInitializer) ([]BuiltinInitializer, error) {
	index := make(map[string]int, len(inits))
	for i, init := range inits {
		if _, dup := index[init.Name()]; dup {
			return nil, fmt.Errorf("builtins: duplicate initializer %q", init.Name())
		}
		index[init.Name()] = i
	}

	indegree := make([]int, len(inits))
	dependents := make([][]int, len(inits))
	for i, init := range inits {
		for _, req := range init.Requires() {
			j, ok := index[req]
			if !ok {
				return nil, fmt.Errorf("builtins: %s requires unknown module %q", init.Name(), req)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := range inits {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	sorted := make([]BuiltinInitializer, 0, len(inits))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		sorted = append(sorted, inits[i])
		for _, d := range dependents[i] {
			if indegree[d]--; indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(sorted) != len(inits) {
		var stuck []string
		for i, n := range indegree {
			if n > 0 {
				stuck = append(stuck, inits[i].Name())
			}
		}
		return nil, fmt.Errorf("builtins: dependency cycle among %v", stuck)
	}
	return sorted, nil
}

// Install populates the VM's realm with the standard builtins plus any extra
// modules (e.g. the WebAssembly namespace), in dependency order.
func Install(vmInstance *vm.VM, extra ...BuiltinInitializer) error {
	inits, err := SortInitializers(append(GetStandardInitializers(), extra...))
	if err != nil {
		return err
	}
	ctx := &RuntimeContext{
		VM:     vmInstance,
		Realm:  vmInstance.Realm(),
		Logger: vmInstance.Logger(),
		DefineGlobal: func(name string, value vm.Value) error {
			vmInstance.DefineGlobal(name, value)
			return nil
		},
	}
	for _, init := range inits {
		if err := init.InitRuntime(ctx); err != nil {
			return fmt.Errorf("builtins: initializing %s: %w", init.Name(), err)
		}
		ctx.Logger.Debug("installed builtin", zap.String("builtin", init.Name()))
	}
	return nil
}
