package wasmjs

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

// exportedCallable returns the wasm function behind an exported function
// object.
func exportedCallable(v vm.Value) (wasm.Callable, bool) {
	if !v.IsFunction() {
		return nil, false
	}
	c, ok := v.AsFunction().Host.(wasm.Callable)
	return c, ok
}

// exportFunction returns the ExportedFunctionObject for c. The wrapper is
// cached so that the same wasm function always yields the same JS object.
func (b *Bridge) exportFunction(c wasm.Callable) vm.Value {
	if fn, ok := b.cache.functions[c]; ok {
		return fn
	}
	ft := c.Type()
	name := "0"
	if f, ok := c.(*wasm.Function); ok {
		name = strconv.FormatUint(uint64(f.Index()), 10)
	} else if h, ok := c.(*wasm.HostFunction); ok {
		name = h.Name
	}

	fn := b.vm.NewNativeFunction(len(ft.Params), false, name, func(args []vm.Value) (vm.Value, error) {
		params := make([]wasm.Value, len(ft.Params))
		for i, t := range ft.Params {
			a := vm.Undefined
			if i < len(args) {
				a = args[i]
			}
			if t == wasm.TypeV128 {
				return vm.Undefined, b.vm.NewTypeError("v128 parameters cannot be passed from JavaScript")
			}
			w, err := b.ToWebAssemblyValue(a, t)
			if err != nil {
				return vm.Undefined, err
			}
			params[i] = w
		}

		results, err := wasm.Invoke(c, params...)
		if err != nil {
			return vm.Undefined, b.throw(err)
		}
		switch len(results) {
		case 0:
			return vm.Undefined, nil
		case 1:
			return b.ToJSValue(results[0])
		}
		out := make([]vm.Value, len(results))
		for i, r := range results {
			v, err := b.ToJSValue(r)
			if err != nil {
				return vm.Undefined, err
			}
			out[i] = v
		}
		return b.vm.NewArrayFromSlice(out), nil
	})
	fn.AsFunction().Host = c
	b.cache.functions[c] = fn
	return fn
}

// importFunction wraps a JS callable as a host function of type ft. The
// callee sees its arguments converted with ToJSValue and undefined as this.
// Its return value is discarded for no results, converted for one, and
// drained as an iterable of exactly len(ft.Results) values otherwise.
func (b *Bridge) importFunction(name string, callee vm.Value, ft wasm.FuncType) *wasm.HostFunction {
	return wasm.NewHostFunction(name, ft, func(args []wasm.Value) ([]wasm.Value, error) {
		jsArgs := make([]vm.Value, len(args))
		for i, a := range args {
			v, err := b.ToJSValue(a)
			if err != nil {
				return nil, err
			}
			jsArgs[i] = v
		}
		ret, err := b.vm.Call(callee, vm.Undefined, jsArgs)
		if err != nil {
			return nil, err
		}

		switch len(ft.Results) {
		case 0:
			return nil, nil
		case 1:
			w, err := b.ToWebAssemblyValue(ret, ft.Results[0])
			if err != nil {
				return nil, err
			}
			return []wasm.Value{w}, nil
		}

		values, err := b.drainResults(ret, len(ft.Results))
		if err != nil {
			return nil, err
		}
		out := make([]wasm.Value, len(values))
		for i, v := range values {
			w, err := b.ToWebAssemblyValue(v, ft.Results[i])
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	})
}

// drainResults reads exactly n values from the iterable ret.
func (b *Bridge) drainResults(ret vm.Value, n int) ([]vm.Value, error) {
	if !ret.IsObject() {
		return nil, b.vm.NewTypeError("imported function with several results must return an iterable")
	}
	method, err := b.vm.GetMethod(ret, vm.SymbolKey(vm.SymbolIterator))
	if err != nil {
		return nil, err
	}
	if method.IsUndefined() {
		return nil, b.vm.NewTypeError("imported function with several results must return an iterable")
	}
	rec, err := b.vm.GetIteratorFromMethod(ret, method)
	if err != nil {
		return nil, err
	}
	values, err := b.vm.IteratorToList(rec)
	if err != nil {
		return nil, err
	}
	if len(values) != n {
		b.logger.Debug("host result count mismatch", zap.Int("expected", n), zap.Int("got", len(values)))
		return nil, b.vm.NewTypeErrorf("imported function returned %d values, expected %d", len(values), n)
	}
	return values, nil
}
