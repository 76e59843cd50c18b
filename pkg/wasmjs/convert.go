package wasmjs

import (
	"math"
	"math/big"

	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

// ToWebAssemblyValue converts v to a wasm value of type t.
//
//	i32        ToInt32
//	i64        ToBigInt, wrapped to 64 bits
//	f32        ToNumber rounded to float32, NaN canonicalized
//	f64        ToNumber
//	externref  null is the null reference, anything else a cached handle
//	funcref    null or an exported wasm function, TypeError otherwise
func (b *Bridge) ToWebAssemblyValue(v vm.Value, t wasm.ValueType) (wasm.Value, error) {
	switch t {
	case wasm.TypeI32:
		n, err := b.vm.ToInt32(v)
		if err != nil {
			return wasm.Void, err
		}
		return wasm.I32(n), nil
	case wasm.TypeI64:
		n, err := b.vm.ToBigInt(v)
		if err != nil {
			return wasm.Void, err
		}
		return wasm.I64(vm.BigIntToInt64(n)), nil
	case wasm.TypeF32:
		f, err := b.vm.ToNumber(v)
		if err != nil {
			return wasm.Void, err
		}
		return wasm.F32(float32(f)), nil
	case wasm.TypeF64:
		f, err := b.vm.ToNumber(v)
		if err != nil {
			return wasm.Void, err
		}
		return wasm.F64(f), nil
	case wasm.TypeExternRef:
		if v.IsNull() {
			return wasm.NullRef(t), nil
		}
		return wasm.ExternRef(b.cache.ExternHandle(v)), nil
	case wasm.TypeFuncRef:
		if v.IsNull() {
			return wasm.NullRef(t), nil
		}
		c, ok := exportedCallable(v)
		if !ok {
			return wasm.Void, b.vm.NewTypeError("funcref value must be null or an exported WebAssembly function")
		}
		return wasm.FuncRef(b.engine.RefFunc(c)), nil
	}
	return wasm.Void, b.vm.NewTypeErrorf("cannot convert to WebAssembly type %s", t)
}

// ToJSValue is the inverse of ToWebAssemblyValue. References resolve to the
// value or function wrapper they were created from.
func (b *Bridge) ToJSValue(w wasm.Value) (vm.Value, error) {
	switch w.Type() {
	case wasm.TypeI32:
		return vm.IntegerValue(w.I32()), nil
	case wasm.TypeI64:
		return vm.NewBigInt(big.NewInt(w.I64())), nil
	case wasm.TypeF32:
		return vm.NumberValue(float64(w.F32())), nil
	case wasm.TypeF64:
		return vm.NumberValue(w.F64()), nil
	case wasm.TypeExternRef:
		if w.IsNull() {
			return vm.Null, nil
		}
		v, ok := b.cache.ExternValue(w.Ref())
		if !ok {
			return vm.Undefined, b.vm.NewTypeErrorf("unknown externref handle %d", w.Ref())
		}
		return v, nil
	case wasm.TypeFuncRef:
		if w.IsNull() {
			return vm.Null, nil
		}
		c, ok := b.engine.ResolveFunc(w.Ref())
		if !ok {
			return vm.Undefined, b.vm.NewTypeErrorf("unknown funcref handle %d", w.Ref())
		}
		return b.exportFunction(c), nil
	case wasm.TypeVoid:
		return vm.Undefined, nil
	}
	return vm.Undefined, b.vm.NewTypeErrorf("%s values cannot cross into JavaScript", w.Type())
}

// DefaultValue is the value a global, table slot or missing argument of
// type t starts with. externref defaults to a reference to undefined, not
// to null.
func (b *Bridge) DefaultValue(t wasm.ValueType) (wasm.Value, error) {
	if t == wasm.TypeExternRef {
		return b.ToWebAssemblyValue(vm.Undefined, t)
	}
	if !t.Valid() || t == wasm.TypeV128 {
		return wasm.Void, b.vm.NewTypeErrorf("no default value for %s", t)
	}
	return wasm.Zero(t), nil
}

// ToWebAssemblyValue converts with the bridge of vmInstance.
func ToWebAssemblyValue(vmInstance *vm.VM, v vm.Value, t wasm.ValueType) (wasm.Value, error) {
	return BridgeFor(vmInstance).ToWebAssemblyValue(v, t)
}

// ToJSValue converts with the bridge of vmInstance.
func ToJSValue(vmInstance *vm.VM, w wasm.Value) (vm.Value, error) {
	return BridgeFor(vmInstance).ToJSValue(w)
}

// DefaultValue returns the default of t with the bridge of vmInstance.
func DefaultValue(vmInstance *vm.VM, t wasm.ValueType) (wasm.Value, error) {
	return BridgeFor(vmInstance).DefaultValue(t)
}

// enforceRange implements the [EnforceRange] unsigned long conversion used
// by the descriptor and index arguments of the JS API.
func (b *Bridge) enforceRange(v vm.Value, what string) (uint32, error) {
	f, err := b.vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, b.vm.NewTypeErrorf("%s must be a finite number", what)
	}
	f = math.Trunc(f)
	if f < 0 || f > math.MaxUint32 {
		return 0, b.vm.NewTypeErrorf("%s is out of range", what)
	}
	return uint32(f), nil
}
