package wasmjs

import (
	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/errors"
	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

// hostData returns the payload of a host object of type T.
func hostData[T any](v vm.Value) (T, bool) {
	var zero T
	if v.Type() != vm.TypeHostObject {
		return zero, false
	}
	d, ok := v.AsHostObject().Data.(T)
	return d, ok
}

// resolveImports reads every import of m from importObject as
// importObject[module][name] and turns it into an extern of the declared
// kind.
func (b *Bridge) resolveImports(m *wasm.Module, importObject vm.Value) ([]wasm.Extern, error) {
	if len(m.Imports) > 0 && importObject.IsUndefined() {
		return nil, b.vm.NewTypeError("imports argument must be present and must be an object")
	}
	if !importObject.IsUndefined() && !importObject.IsObject() {
		return nil, b.vm.NewTypeError("imports argument must be an object")
	}

	externs := make([]wasm.Extern, len(m.Imports))
	for i, imp := range m.Imports {
		ns, err := b.vm.Get(importObject, vm.StringKey(imp.Module))
		if err != nil {
			return nil, err
		}
		if !ns.IsObject() {
			return nil, b.vm.NewTypeErrorf("import module %q must be an object", imp.Module)
		}
		v, err := b.vm.Get(ns, vm.StringKey(imp.Name))
		if err != nil {
			return nil, err
		}
		ext, err := b.resolveImport(m, imp, v)
		if err != nil {
			return nil, err
		}
		externs[i] = ext
	}
	b.logger.Debug("resolved imports", zap.Int("imports", len(externs)))
	return externs, nil
}

func (b *Bridge) resolveImport(m *wasm.Module, imp wasm.Import, v vm.Value) (wasm.Extern, error) {
	ext := wasm.Extern{Kind: imp.Kind}
	switch imp.Kind {
	case wasm.ExternFunc:
		if !v.IsCallable() {
			return ext, b.throw(errors.Linkf(imp.Module, imp.Name, "function import requires a callable"))
		}
		want := &m.Types[imp.TypeIndex]
		if c, ok := exportedCallable(v); ok {
			if !c.Type().Equal(want) {
				return ext, b.throw(errors.Linkf(imp.Module, imp.Name,
					"imported function does not match the expected type %s", want))
			}
			ext.Func = c
			return ext, nil
		}
		ext.Func = b.importFunction(imp.Module+"."+imp.Name, v, *want)

	case wasm.ExternGlobal:
		if g, ok := hostData[*wasm.Global](v); ok {
			if g.Type() != imp.Global {
				return ext, b.throw(errors.Linkf(imp.Module, imp.Name, "imported global does not match the expected type"))
			}
			ext.Global = g
			return ext, nil
		}
		if imp.Global.Mutable {
			return ext, b.throw(errors.Linkf(imp.Module, imp.Name, "imported mutable global must be a WebAssembly.Global object"))
		}
		t := imp.Global.ValueType
		switch {
		case t == wasm.TypeI64 && !v.IsBigInt(),
			(t == wasm.TypeI32 || t == wasm.TypeF32 || t == wasm.TypeF64) && !v.IsNumber():
			return ext, b.throw(errors.Linkf(imp.Module, imp.Name, "global import must be a %s", jsTypeFor(t)))
		case t == wasm.TypeV128:
			return ext, b.throw(errors.Linkf(imp.Module, imp.Name, "v128 globals cannot be imported from JavaScript"))
		}
		w, err := b.ToWebAssemblyValue(v, t)
		if err != nil {
			return ext, err
		}
		g, err := wasm.NewGlobal(imp.Global, w)
		if err != nil {
			return ext, b.throw(errors.Linkf(imp.Module, imp.Name, "%v", err))
		}
		ext.Global = g

	case wasm.ExternMemory:
		mem, ok := hostData[*wasm.Memory](v)
		if !ok {
			return ext, b.throw(errors.Linkf(imp.Module, imp.Name, "memory import must be a WebAssembly.Memory object"))
		}
		ext.Memory = mem

	default:
		return ext, b.throw(errors.Linkf(imp.Module, imp.Name, "%s imports are not supported", imp.Kind))
	}
	return ext, nil
}

func jsTypeFor(t wasm.ValueType) string {
	if t == wasm.TypeI64 {
		return "BigInt"
	}
	return "Number"
}

// instantiate links m against importObject and wraps the result in an
// Instance object with prototype proto.
func (b *Bridge) instantiate(m *wasm.Module, importObject, proto vm.Value) (vm.Value, error) {
	externs, err := b.resolveImports(m, importObject)
	if err != nil {
		return vm.Undefined, err
	}
	inst, err := b.engine.Instantiate(m, externs)
	if err != nil {
		return vm.Undefined, b.throw(err)
	}
	return b.wrapInstance(inst, proto)
}

// exportsObject builds the frozen, null-prototype exports object of inst.
func (b *Bridge) exportsObject(inst *wasm.Instance) (vm.Value, error) {
	exports := vm.NewObject(vm.Null)
	for _, exp := range inst.Exports() {
		var v vm.Value
		switch exp.Kind {
		case wasm.ExternFunc:
			v = b.exportFunction(exp.Func)
		case wasm.ExternGlobal:
			v = b.wrapGlobal(exp.Global, b.globalProto)
		case wasm.ExternMemory:
			v = b.wrapMemory(exp.Memory, b.memoryProto)
		case wasm.ExternTable:
			v = b.wrapTable(exp.Table, b.tableProto)
		}
		if err := b.vm.CreateDataPropertyOrThrow(exports, vm.StringKey(exp.Name), v); err != nil {
			return vm.Undefined, err
		}
	}
	if _, err := b.vm.SetIntegrityLevel(exports, true); err != nil {
		return vm.Undefined, err
	}
	return exports, nil
}
