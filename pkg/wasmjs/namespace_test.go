package wasmjs

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidjs/corvid/internal/wasmtest"
	"github.com/corvidjs/corvid/pkg/vm"
)

func namespace(t *testing.T, vmInstance *vm.VM) vm.Value {
	t.Helper()
	ns, ok := vmInstance.GetGlobal("WebAssembly")
	require.True(t, ok)
	return ns
}

func member(t *testing.T, vmInstance *vm.VM, obj vm.Value, name string) vm.Value {
	t.Helper()
	v, err := vmInstance.Get(obj, vm.StringKey(name))
	require.NoError(t, err)
	return v
}

func object(vmInstance *vm.VM, kv ...any) vm.Value {
	o := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	for i := 0; i < len(kv); i += 2 {
		o.AsPlainObject().SetOwn(kv[i].(string), kv[i+1].(vm.Value))
	}
	return o
}

func bytesOf(vmInstance *vm.VM, m *wasmtest.Module) vm.Value {
	return vmInstance.NewArrayBuffer(m.MustEncode())
}

func newWasm(t *testing.T, vmInstance *vm.VM, ctor string, args ...vm.Value) (vm.Value, error) {
	t.Helper()
	return vmInstance.Construct(member(t, vmInstance, namespace(t, vmInstance), ctor), args, vm.Undefined)
}

// instantiate compiles m synchronously and returns the exports object.
func instantiate(t *testing.T, vmInstance *vm.VM, m *wasmtest.Module, imports vm.Value) vm.Value {
	t.Helper()
	module, err := newWasm(t, vmInstance, "Module", bytesOf(vmInstance, m))
	require.NoError(t, err)
	inst, err := newWasm(t, vmInstance, "Instance", module, imports)
	require.NoError(t, err)
	return member(t, vmInstance, inst, "exports")
}

func call(vmInstance *vm.VM, fn vm.Value, args ...vm.Value) (vm.Value, error) {
	return vmInstance.Call(fn, vm.Undefined, args)
}

func thrownKind(t *testing.T, err error) vm.ErrorKind {
	t.Helper()
	ex, ok := vm.AsException(err)
	require.True(t, ok, "expected a thrown value, got %v", err)
	require.Equal(t, vm.TypeError, ex.Type(), "thrown %s", ex.Inspect())
	return ex.AsError().Kind
}

var addModule = &wasmtest.Module{
	Imports: []wasmtest.Import{{
		Module: "env", Name: "add", Kind: "func",
		Params: []string{"i32", "i32"}, Results: []string{"i32"},
	}},
	Funcs: []wasmtest.Func{{
		Params:  []string{"i32"},
		Results: []string{"i32"},
		Body:    []string{"local.get 0", "i32.const 10", "call 0"},
	}},
	Exports: []wasmtest.Export{{Name: "addTen", Kind: "func", Index: 1}},
}

func TestInstanceCallsHostImports(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	var this vm.Value
	add := vmInstance.NewNativeFunction(2, false, "add", func(args []vm.Value) (vm.Value, error) {
		this = vmInstance.GetThis()
		return vm.NumberValue(args[0].AsNumber() + args[1].AsNumber()), nil
	})
	exports := instantiate(t, vmInstance, addModule, object(vmInstance, "env", object(vmInstance, "add", add)))

	addTen := member(t, vmInstance, exports, "addTen")
	assert.Equal(t, "1", member(t, vmInstance, addTen, "name").AsString())
	assert.Equal(t, 1.0, member(t, vmInstance, addTen, "length").AsNumber())

	got, err := call(vmInstance, addTen, vm.IntegerValue(5))
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.AsNumber())
	assert.True(t, this.IsUndefined())

	// Missing arguments convert from undefined.
	got, err = call(vmInstance, addTen)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.AsNumber())

	proto, err := vmInstance.GetPrototypeOf(exports)
	require.NoError(t, err)
	assert.True(t, proto.IsNull())
	assert.False(t, exports.AsPlainObject().IsExtensible())
	assert.Error(t, vmInstance.Set(exports, vm.StringKey("addTen"), vm.Null, true))
}

func TestHostResultRules(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	m := &wasmtest.Module{
		Imports: []wasmtest.Import{{
			Module: "env", Name: "pair", Kind: "func", Results: []string{"i64", "i32"},
		}},
		Funcs: []wasmtest.Func{{
			Results: []string{"i64", "i32"},
			Body:    []string{"call 0"},
		}},
		Exports: []wasmtest.Export{{Name: "run", Kind: "func", Index: 1}},
	}

	var ret vm.Value
	pair := vmInstance.NewNativeFunction(0, false, "pair", func([]vm.Value) (vm.Value, error) { return ret, nil })
	run := member(t, vmInstance, instantiate(t, vmInstance, m, object(vmInstance, "env", object(vmInstance, "pair", pair))), "run")

	ret = vmInstance.NewArrayFromSlice([]vm.Value{vm.NewBigInt(big.NewInt(7)), vm.IntegerValue(9)})
	got, err := call(vmInstance, run)
	require.NoError(t, err)
	require.True(t, got.IsArray())
	assert.Equal(t, int64(7), member(t, vmInstance, got, "0").AsBigInt().Int64())
	assert.Equal(t, 9.0, member(t, vmInstance, got, "1").AsNumber())

	ret = vmInstance.NewArrayFromSlice([]vm.Value{vm.NewBigInt(big.NewInt(7))})
	_, err = call(vmInstance, run)
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))

	ret = vm.IntegerValue(3)
	_, err = call(vmInstance, run)
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))

	// @@iterator is looked up once per call.
	lookups := 0
	values := vmInstance.NewArrayFromSlice([]vm.Value{vm.NewBigInt(big.NewInt(1)), vm.IntegerValue(2)})
	iterate, err := vmInstance.Get(values, vm.SymbolKey(vm.SymbolIterator))
	require.NoError(t, err)
	counted := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	counted.AsPlainObject().DefineAccessorProperty(vm.SymbolKey(vm.SymbolIterator),
		vmInstance.NewGetter("[Symbol.iterator]", func([]vm.Value) (vm.Value, error) {
			lookups++
			return vmInstance.NewNativeFunction(0, false, "", func([]vm.Value) (vm.Value, error) {
				return vmInstance.Call(iterate, values, nil)
			}), nil
		}), vm.Undefined, false, true)
	ret = counted
	got, err = call(vmInstance, run)
	require.NoError(t, err)
	assert.Equal(t, 1, lookups)
	assert.Equal(t, 2.0, member(t, vmInstance, got, "1").AsNumber())
}

func TestHostThrowsPropagateUnchanged(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	reason := vm.NewObject(vmInstance.Realm().ObjectPrototype)
	add := vmInstance.NewNativeFunction(2, false, "add", func([]vm.Value) (vm.Value, error) {
		return vm.Undefined, vm.NewException(reason)
	})
	exports := instantiate(t, vmInstance, addModule, object(vmInstance, "env", object(vmInstance, "add", add)))

	_, err := call(vmInstance, member(t, vmInstance, exports, "addTen"), vm.IntegerValue(1))
	thrown, ok := vm.AsException(err)
	require.True(t, ok)
	assert.True(t, thrown.Is(reason))
}

func TestExportedFunctionsLinkDirectly(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	provider := instantiate(t, vmInstance, &wasmtest.Module{
		Funcs: []wasmtest.Func{{
			Params: []string{"i32", "i32"}, Results: []string{"i32"},
			Body: []string{"local.get 0", "local.get 1", "i32.mul"},
		}},
		Exports: []wasmtest.Export{{Name: "mul", Kind: "func", Index: 0}},
	}, vm.Undefined)
	mul := member(t, vmInstance, provider, "mul")

	exports := instantiate(t, vmInstance, addModule, object(vmInstance, "env", object(vmInstance, "add", mul)))
	got, err := call(vmInstance, member(t, vmInstance, exports, "addTen"), vm.IntegerValue(4))
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.AsNumber())

	// The same wasm function re-exported surfaces as the same wrapper.
	reexport := instantiate(t, vmInstance, &wasmtest.Module{
		Imports: []wasmtest.Import{{
			Module: "env", Name: "mul", Kind: "func",
			Params: []string{"i32", "i32"}, Results: []string{"i32"},
		}},
		Exports: []wasmtest.Export{{Name: "mul", Kind: "func", Index: 0}},
	}, object(vmInstance, "env", object(vmInstance, "mul", mul)))
	assert.True(t, member(t, vmInstance, reexport, "mul").Is(mul))
}

func TestStageErrorsBecomeWebAssemblyErrors(t *testing.T) {
	vmInstance, _ := newTestBridge(t)

	_, err := newWasm(t, vmInstance, "Module", vmInstance.NewArrayBuffer([]byte("nope")))
	assert.Equal(t, vm.KindCompileError, thrownKind(t, err))

	module, err := newWasm(t, vmInstance, "Module", bytesOf(vmInstance, addModule))
	require.NoError(t, err)

	_, err = newWasm(t, vmInstance, "Instance", module, object(vmInstance, "env", object(vmInstance, "add", vm.IntegerValue(1))))
	assert.Equal(t, vm.KindLinkError, thrownKind(t, err))

	_, err = newWasm(t, vmInstance, "Instance", module, object(vmInstance))
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err), "a missing import module is a TypeError")

	_, err = newWasm(t, vmInstance, "Instance", module)
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))

	trap := instantiate(t, vmInstance, &wasmtest.Module{
		Funcs:   []wasmtest.Func{{Body: []string{"unreachable"}}},
		Exports: []wasmtest.Export{{Name: "trap", Kind: "func", Index: 0}},
	}, vm.Undefined)
	_, err = call(vmInstance, member(t, vmInstance, trap, "trap"))
	assert.Equal(t, vm.KindRuntimeError, thrownKind(t, err))

	ns := namespace(t, vmInstance)
	ctor := member(t, vmInstance, ns, "RuntimeError")
	ex, _ := vm.AsException(err)
	proto, err := vmInstance.GetPrototypeOf(ex)
	require.NoError(t, err)
	assert.True(t, proto.Is(member(t, vmInstance, ctor, "prototype")))

	_, ok := vmInstance.GetGlobal("CompileError")
	assert.False(t, ok, "the error classes live on the namespace only")

	_, err = call(vmInstance, member(t, vmInstance, ns, "Module"), bytesOf(vmInstance, addModule))
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err), "constructors require new")
}

func TestAsyncCompileAndInstantiate(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	ns := namespace(t, vmInstance)
	add := vmInstance.NewNativeFunction(2, false, "add", func(args []vm.Value) (vm.Value, error) {
		return vm.NumberValue(args[0].AsNumber() - args[1].AsNumber()), nil
	})
	imports := object(vmInstance, "env", object(vmInstance, "add", add))

	p, err := vmInstance.Invoke(ns, vm.StringKey("instantiate"), []vm.Value{bytesOf(vmInstance, addModule), imports})
	require.NoError(t, err)
	promise := p.AsPromise()
	assert.Equal(t, vm.PromisePending, promise.GetState(), "settled by a job, not inline")

	vmInstance.DrainMicrotasks()
	require.Equal(t, vm.PromiseFulfilled, promise.GetState())
	result := promise.GetResult()
	module := member(t, vmInstance, result, "module")
	exports := member(t, vmInstance, member(t, vmInstance, result, "instance"), "exports")
	got, err := call(vmInstance, member(t, vmInstance, exports, "addTen"), vm.IntegerValue(4))
	require.NoError(t, err)
	assert.Equal(t, -6.0, got.AsNumber())

	p, err = vmInstance.Invoke(ns, vm.StringKey("instantiate"), []vm.Value{module, imports})
	require.NoError(t, err)
	vmInstance.DrainMicrotasks()
	require.Equal(t, vm.PromiseFulfilled, p.AsPromise().GetState())
	assert.True(t, member(t, vmInstance, p.AsPromise().GetResult(), "exports").IsObject())

	p, err = vmInstance.Invoke(ns, vm.StringKey("compile"), []vm.Value{vmInstance.NewArrayBuffer([]byte{0, 'a', 's', 'm'})})
	require.NoError(t, err)
	vmInstance.DrainMicrotasks()
	require.Equal(t, vm.PromiseRejected, p.AsPromise().GetState())
	assert.Equal(t, vm.KindCompileError, p.AsPromise().GetResult().AsError().Kind)

	p, err = vmInstance.Invoke(ns, vm.StringKey("compile"), []vm.Value{vm.IntegerValue(1)})
	require.NoError(t, err)
	require.Equal(t, vm.PromiseRejected, p.AsPromise().GetState())
	assert.Equal(t, vm.KindTypeError, p.AsPromise().GetResult().AsError().Kind)
}

func TestValidate(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	ns := namespace(t, vmInstance)

	ok, err := vmInstance.Invoke(ns, vm.StringKey("validate"), []vm.Value{bytesOf(vmInstance, addModule)})
	require.NoError(t, err)
	assert.True(t, ok.AsBoolean())

	ok, err = vmInstance.Invoke(ns, vm.StringKey("validate"), []vm.Value{vmInstance.NewArrayBuffer([]byte{1, 2, 3})})
	require.NoError(t, err)
	assert.False(t, ok.AsBoolean())

	_, err = vmInstance.Invoke(ns, vm.StringKey("validate"), []vm.Value{vm.NewString("x")})
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))
}

func TestModuleReflection(t *testing.T) {
	vmInstance, _ := newTestBridge(t)
	m := &wasmtest.Module{
		Imports: addModule.Imports,
		Funcs:   addModule.Funcs,
		Memory:  &wasmtest.Limits{Min: 1},
		Exports: []wasmtest.Export{
			{Name: "addTen", Kind: "func", Index: 1},
			{Name: "mem", Kind: "memory", Index: 0},
		},
		Customs: []wasmtest.Custom{{Name: "note", Payload: "hi"}},
	}
	module, err := newWasm(t, vmInstance, "Module", bytesOf(vmInstance, m))
	require.NoError(t, err)
	ctor := member(t, vmInstance, namespace(t, vmInstance), "Module")

	exports, err := vmInstance.Invoke(ctor, vm.StringKey("exports"), []vm.Value{module})
	require.NoError(t, err)
	assert.Equal(t, 2.0, member(t, vmInstance, exports, "length").AsNumber())
	second := member(t, vmInstance, exports, "1")
	assert.Equal(t, "mem", member(t, vmInstance, second, "name").AsString())
	assert.Equal(t, "memory", member(t, vmInstance, second, "kind").AsString())

	imports, err := vmInstance.Invoke(ctor, vm.StringKey("imports"), []vm.Value{module})
	require.NoError(t, err)
	first := member(t, vmInstance, imports, "0")
	assert.Equal(t, "env", member(t, vmInstance, first, "module").AsString())
	assert.Equal(t, "add", member(t, vmInstance, first, "name").AsString())
	assert.Equal(t, "function", member(t, vmInstance, first, "kind").AsString())

	sections, err := vmInstance.Invoke(ctor, vm.StringKey("customSections"), []vm.Value{module, vm.NewString("note")})
	require.NoError(t, err)
	buf := member(t, vmInstance, sections, "0")
	assert.Equal(t, []byte("hi"), buf.AsArrayBuffer().GetData())

	_, err = vmInstance.Invoke(ctor, vm.StringKey("exports"), []vm.Value{vm.Null})
	assert.Equal(t, vm.KindTypeError, thrownKind(t, err))
}
