package wasmjs

import (
	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

// readLimits reads the initial and maximum members of a Memory or Table
// descriptor. Both must be at most bound.
func (b *Bridge) readLimits(desc vm.Value, bound uint32) (wasm.Limits, error) {
	var lim wasm.Limits
	initial, err := b.vm.Get(desc, vm.StringKey("initial"))
	if err != nil {
		return lim, err
	}
	if initial.IsUndefined() {
		return lim, b.vm.NewTypeError("descriptor property 'initial' is required")
	}
	if lim.Min, err = b.enforceRange(initial, "initial"); err != nil {
		return lim, err
	}
	maximum, err := b.vm.Get(desc, vm.StringKey("maximum"))
	if err != nil {
		return lim, err
	}
	if !maximum.IsUndefined() {
		hi, err := b.enforceRange(maximum, "maximum")
		if err != nil {
			return lim, err
		}
		if hi > bound {
			return lim, b.vm.NewRangeError("descriptor property 'maximum' is too large")
		}
		if hi < lim.Min {
			return lim, b.vm.NewRangeError("descriptor property 'maximum' is smaller than 'initial'")
		}
		lim.Max = &hi
	}
	if lim.Min > bound {
		return lim, b.vm.NewRangeError("descriptor property 'initial' is too large")
	}
	return lim, nil
}

func (b *Bridge) descriptor(v vm.Value, class string) error {
	if !v.IsObject() {
		return b.vm.NewTypeErrorf("WebAssembly.%s(): argument must be a descriptor object", class)
	}
	return nil
}

func (b *Bridge) memoryConstructor() vm.Value {
	ctor := b.constructor("Memory", 1, b.memoryProto, func(args []vm.Value, proto vm.Value) (vm.Value, error) {
		desc := arg(args, 0)
		if err := b.descriptor(desc, "Memory"); err != nil {
			return vm.Undefined, err
		}
		lim, err := b.readLimits(desc, wasm.MaxPages)
		if err != nil {
			return vm.Undefined, err
		}
		mem, err := wasm.NewMemory(lim)
		if err != nil {
			return vm.Undefined, b.vm.NewRangeError(err.Error())
		}
		return b.wrapMemory(mem, proto), nil
	})

	b.defineAccessor(b.memoryProto, "buffer", func(args []vm.Value) (vm.Value, error) {
		mem, err := thisData[*wasm.Memory](b, "WebAssembly.Memory")
		if err != nil {
			return vm.Undefined, err
		}
		return b.memoryBuffer(mem), nil
	}, nil)
	b.defineMethods(b.memoryProto, []method{
		{"grow", 1, func(args []vm.Value) (vm.Value, error) {
			mem, err := thisData[*wasm.Memory](b, "WebAssembly.Memory")
			if err != nil {
				return vm.Undefined, err
			}
			delta, err := b.enforceRange(arg(args, 0), "delta")
			if err != nil {
				return vm.Undefined, err
			}
			prev, ok := mem.Grow(delta)
			if !ok {
				return vm.Undefined, b.vm.NewRangeError("WebAssembly.Memory.grow(): maximum memory size exceeded")
			}
			b.detachBuffer(mem)
			return vm.IndexValue(int64(prev)), nil
		}},
	})
	return ctor
}

func (b *Bridge) tableConstructor() vm.Value {
	ctor := b.constructor("Table", 1, b.tableProto, func(args []vm.Value, proto vm.Value) (vm.Value, error) {
		desc := arg(args, 0)
		if err := b.descriptor(desc, "Table"); err != nil {
			return vm.Undefined, err
		}
		element, err := b.vm.Get(desc, vm.StringKey("element"))
		if err != nil {
			return vm.Undefined, err
		}
		name, err := b.vm.ToString(element)
		if err != nil {
			return vm.Undefined, err
		}
		elem, ok := wasm.ParseValueType(name)
		if !ok || !elem.IsRef() {
			return vm.Undefined, b.vm.NewTypeErrorf("WebAssembly.Table(): invalid element type %q", name)
		}
		lim, err := b.readLimits(desc, wasm.MaxTableSize)
		if err != nil {
			return vm.Undefined, err
		}
		init, err := b.elementValue(args, 1, elem)
		if err != nil {
			return vm.Undefined, err
		}
		t, err := wasm.NewTable(elem, lim, init)
		if err != nil {
			return vm.Undefined, b.vm.NewRangeError(err.Error())
		}
		return b.wrapTable(t, proto), nil
	})

	table := func() (*wasm.Table, error) {
		return thisData[*wasm.Table](b, "WebAssembly.Table")
	}
	b.defineAccessor(b.tableProto, "length", func(args []vm.Value) (vm.Value, error) {
		t, err := table()
		if err != nil {
			return vm.Undefined, err
		}
		return vm.IndexValue(int64(t.Len())), nil
	}, nil)
	b.defineMethods(b.tableProto, []method{
		{"get", 1, func(args []vm.Value) (vm.Value, error) {
			t, err := table()
			if err != nil {
				return vm.Undefined, err
			}
			i, err := b.enforceRange(arg(args, 0), "index")
			if err != nil {
				return vm.Undefined, err
			}
			w, err := t.Get(i)
			if err != nil {
				return vm.Undefined, b.vm.NewRangeError(err.Error())
			}
			return b.ToJSValue(w)
		}},
		{"set", 1, func(args []vm.Value) (vm.Value, error) {
			t, err := table()
			if err != nil {
				return vm.Undefined, err
			}
			i, err := b.enforceRange(arg(args, 0), "index")
			if err != nil {
				return vm.Undefined, err
			}
			w, err := b.elementValue(args, 1, t.ElemType())
			if err != nil {
				return vm.Undefined, err
			}
			if err := t.Set(i, w); err != nil {
				return vm.Undefined, b.vm.NewRangeError(err.Error())
			}
			return vm.Undefined, nil
		}},
		{"grow", 1, func(args []vm.Value) (vm.Value, error) {
			t, err := table()
			if err != nil {
				return vm.Undefined, err
			}
			delta, err := b.enforceRange(arg(args, 0), "delta")
			if err != nil {
				return vm.Undefined, err
			}
			w, err := b.elementValue(args, 1, t.ElemType())
			if err != nil {
				return vm.Undefined, err
			}
			prev, ok := t.Grow(delta, w)
			if !ok {
				return vm.Undefined, b.vm.NewRangeError("WebAssembly.Table.grow(): failed to grow table")
			}
			return vm.IndexValue(int64(prev)), nil
		}},
	})
	return ctor
}

// elementValue converts the optional value argument at i, defaulting it
// when missing.
func (b *Bridge) elementValue(args []vm.Value, i int, t wasm.ValueType) (wasm.Value, error) {
	if i >= len(args) || args[i].IsUndefined() {
		return b.DefaultValue(t)
	}
	return b.ToWebAssemblyValue(args[i], t)
}

func (b *Bridge) globalConstructor() vm.Value {
	ctor := b.constructor("Global", 1, b.globalProto, func(args []vm.Value, proto vm.Value) (vm.Value, error) {
		desc := arg(args, 0)
		if err := b.descriptor(desc, "Global"); err != nil {
			return vm.Undefined, err
		}
		mutable, err := b.vm.Get(desc, vm.StringKey("mutable"))
		if err != nil {
			return vm.Undefined, err
		}
		value, err := b.vm.Get(desc, vm.StringKey("value"))
		if err != nil {
			return vm.Undefined, err
		}
		name, err := b.vm.ToString(value)
		if err != nil {
			return vm.Undefined, err
		}
		t, ok := wasm.ParseValueType(name)
		if !ok || t == wasm.TypeV128 {
			return vm.Undefined, b.vm.NewTypeErrorf("WebAssembly.Global(): invalid value type %q", name)
		}
		w, err := b.elementValue(args, 1, t)
		if err != nil {
			return vm.Undefined, err
		}
		g, err := wasm.NewGlobal(wasm.GlobalType{ValueType: t, Mutable: vm.ToBoolean(mutable)}, w)
		if err != nil {
			return vm.Undefined, b.vm.NewTypeError(err.Error())
		}
		return b.wrapGlobal(g, proto), nil
	})

	value := func(args []vm.Value) (vm.Value, error) {
		g, err := thisData[*wasm.Global](b, "WebAssembly.Global")
		if err != nil {
			return vm.Undefined, err
		}
		return b.ToJSValue(g.Get())
	}
	b.defineAccessor(b.globalProto, "value", value, func(args []vm.Value) (vm.Value, error) {
		g, err := thisData[*wasm.Global](b, "WebAssembly.Global")
		if err != nil {
			return vm.Undefined, err
		}
		if !g.Type().Mutable {
			return vm.Undefined, b.vm.NewTypeError("can't set the value of an immutable global")
		}
		w, err := b.ToWebAssemblyValue(arg(args, 0), g.Type().ValueType)
		if err != nil {
			return vm.Undefined, err
		}
		if err := g.Set(w); err != nil {
			return vm.Undefined, b.vm.NewTypeError(err.Error())
		}
		return vm.Undefined, nil
	})
	b.defineMethods(b.globalProto, []method{{"valueOf", 0, value}})
	return ctor
}
