package wasmjs

import (
	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/builtins"
	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

// Initializer installs the WebAssembly namespace. Pass it to builtins.Install.
type Initializer struct {
	// Engine compiles and runs modules; nil means a default engine.
	Engine *wasm.Engine
}

func (i *Initializer) Name() string { return "WebAssembly" }
func (i *Initializer) Requires() []string {
	return []string{"Error", "Promise", "ArrayBuffer", "TypedArray"}
}

type method struct {
	name  string
	arity int
	fn    vm.NativeFunc
}

func (b *Bridge) defineMethods(target vm.Value, methods []method) {
	po := target.AsPlainObject()
	for _, m := range methods {
		po.SetOwnNonEnumerable(m.name, b.vm.NewNativeFunction(m.arity, false, m.name, m.fn))
	}
}

func (b *Bridge) defineAccessor(target vm.Value, name string, get, set vm.NativeFunc) {
	getter, setter := b.vm.NewGetter(name, get), vm.Undefined
	if set != nil {
		setter = b.vm.NewNativeFunction(1, false, "set "+name, set)
	}
	target.AsPlainObject().DefineAccessorProperty(vm.StringKey(name), getter, setter, false, true)
}

func defineToStringTag(target vm.Value, tag string) {
	target.AsPlainObject().DefineOwnPropertyFlags(vm.SymbolKey(vm.SymbolToStringTag), vm.NewString(tag), false, false, true)
}

func arg(args []vm.Value, i int) vm.Value {
	if i < len(args) {
		return args[i]
	}
	return vm.Undefined
}

// constructor creates a constructor that rejects plain calls and resolves
// the prototype of the new object from new.target.
func (b *Bridge) constructor(name string, arity int, proto vm.Value, build func(args []vm.Value, proto vm.Value) (vm.Value, error)) vm.Value {
	ctor := b.vm.NewNativeConstructor(arity, name, func(args []vm.Value) (vm.Value, error) {
		newTarget := b.vm.GetNewTarget()
		if newTarget.IsUndefined() {
			return vm.Undefined, b.vm.NewTypeErrorf("WebAssembly.%s must be invoked with 'new'", name)
		}
		p, err := b.vm.GetPrototypeFromConstructor(newTarget, proto)
		if err != nil {
			return vm.Undefined, err
		}
		return build(args, p)
	})
	vm.LinkConstructor(ctor, proto)
	defineToStringTag(proto, "WebAssembly."+name)
	return ctor
}

func (i *Initializer) InitRuntime(ctx *builtins.RuntimeContext) error {
	b := Attach(ctx.VM, i.Engine)
	ns := vm.NewObject(ctx.Realm.ObjectPrototype)
	defineToStringTag(ns, "WebAssembly")

	b.defineMethods(ns, []method{
		{"validate", 1, b.validate},
		{"compile", 1, b.compile},
		{"instantiate", 1, b.instantiateAsync},
	})

	po := ns.AsPlainObject()
	po.SetOwnNonEnumerable("Module", b.moduleConstructor())
	po.SetOwnNonEnumerable("Instance", b.instanceConstructor())
	po.SetOwnNonEnumerable("Memory", b.memoryConstructor())
	po.SetOwnNonEnumerable("Table", b.tableConstructor())
	po.SetOwnNonEnumerable("Global", b.globalConstructor())
	for _, kind := range []vm.ErrorKind{vm.KindCompileError, vm.KindLinkError, vm.KindRuntimeError} {
		ctor, ok := builtins.ErrorConstructor(ctx.VM, kind)
		if !ok {
			ctx.Logger.Warn("missing error constructor", zap.Stringer("kind", kind))
			continue
		}
		po.SetOwnNonEnumerable(kind.String(), ctor)
	}
	return ctx.DefineGlobal("WebAssembly", ns)
}

// validate implements WebAssembly.validate(bytes).
func (b *Bridge) validate(args []vm.Value) (vm.Value, error) {
	bin, err := b.bufferSource(arg(args, 0))
	if err != nil {
		return vm.Undefined, err
	}
	err = b.engine.Validate(b.ctx, bin)
	if err != nil {
		b.logger.Debug("validation failed", zap.Error(err))
	}
	return vm.BooleanValue(err == nil), nil
}

// compile implements WebAssembly.compile(bytes). The module is compiled by a
// job, so the returned promise settles when microtasks are drained.
func (b *Bridge) compile(args []vm.Value) (vm.Value, error) {
	promise, resolve, reject := b.vm.NewPendingPromise(b.vm.Realm().PromisePrototype)
	bin, err := b.bufferSource(arg(args, 0))
	if err != nil {
		reject(b.vm.ThrownValue(err))
		return promise, nil
	}
	b.vm.EnqueueJob(func() {
		m, err := b.engine.Compile(b.ctx, bin)
		if err != nil {
			reject(b.vm.ThrownValue(b.throw(err)))
			return
		}
		resolve(b.wrapModule(m, b.moduleProto))
	})
	return promise, nil
}

// instantiateAsync implements both overloads of WebAssembly.instantiate. A
// Module resolves to an Instance; bytes resolve to {module, instance}, with
// compilation and instantiation in separate jobs.
func (b *Bridge) instantiateAsync(args []vm.Value) (vm.Value, error) {
	promise, resolve, reject := b.vm.NewPendingPromise(b.vm.Realm().PromisePrototype)
	source, importObject := arg(args, 0), arg(args, 1)

	if m, ok := hostData[*wasm.Module](source); ok {
		b.vm.EnqueueJob(func() {
			inst, err := b.instantiate(m, importObject, b.instanceProto)
			if err != nil {
				reject(b.vm.ThrownValue(err))
				return
			}
			resolve(inst)
		})
		return promise, nil
	}

	bin, err := b.bufferSource(source)
	if err != nil {
		reject(b.vm.ThrownValue(err))
		return promise, nil
	}
	b.vm.EnqueueJob(func() {
		m, err := b.engine.Compile(b.ctx, bin)
		if err != nil {
			reject(b.vm.ThrownValue(b.throw(err)))
			return
		}
		module := b.wrapModule(m, b.moduleProto)
		b.vm.EnqueueJob(func() {
			inst, err := b.instantiate(m, importObject, b.instanceProto)
			if err != nil {
				reject(b.vm.ThrownValue(err))
				return
			}
			result := vm.NewObject(b.vm.Realm().ObjectPrototype)
			result.AsPlainObject().SetOwn("module", module)
			result.AsPlainObject().SetOwn("instance", inst)
			resolve(result)
		})
	})
	return promise, nil
}

func (b *Bridge) moduleConstructor() vm.Value {
	ctor := b.constructor("Module", 1, b.moduleProto, func(args []vm.Value, proto vm.Value) (vm.Value, error) {
		bin, err := b.bufferSource(arg(args, 0))
		if err != nil {
			return vm.Undefined, err
		}
		m, err := b.engine.Compile(b.ctx, bin)
		if err != nil {
			return vm.Undefined, b.throw(err)
		}
		return b.wrapModule(m, proto), nil
	})

	module := func(args []vm.Value) (*wasm.Module, error) {
		m, ok := hostData[*wasm.Module](arg(args, 0))
		if !ok {
			return nil, b.vm.NewTypeError("first argument must be a WebAssembly.Module")
		}
		return m, nil
	}
	descriptor := func(fields ...string) vm.Value {
		o := vm.NewObject(b.vm.Realm().ObjectPrototype)
		for i := 0; i < len(fields); i += 2 {
			o.AsPlainObject().SetOwn(fields[i], vm.NewString(fields[i+1]))
		}
		return o
	}

	b.defineMethods(ctor, []method{
		{"exports", 1, func(args []vm.Value) (vm.Value, error) {
			m, err := module(args)
			if err != nil {
				return vm.Undefined, err
			}
			out := make([]vm.Value, len(m.Exports))
			for i, exp := range m.Exports {
				out[i] = descriptor("name", exp.Name, "kind", exp.Kind.String())
			}
			return b.vm.NewArrayFromSlice(out), nil
		}},
		{"imports", 1, func(args []vm.Value) (vm.Value, error) {
			m, err := module(args)
			if err != nil {
				return vm.Undefined, err
			}
			out := make([]vm.Value, len(m.Imports))
			for i, imp := range m.Imports {
				out[i] = descriptor("module", imp.Module, "name", imp.Name, "kind", imp.Kind.String())
			}
			return b.vm.NewArrayFromSlice(out), nil
		}},
		{"customSections", 2, func(args []vm.Value) (vm.Value, error) {
			m, err := module(args)
			if err != nil {
				return vm.Undefined, err
			}
			if arg(args, 1).IsUndefined() {
				return vm.Undefined, b.vm.NewTypeError("section name is required")
			}
			name, err := b.vm.ToString(arg(args, 1))
			if err != nil {
				return vm.Undefined, err
			}
			var out []vm.Value
			for _, payload := range m.CustomSections(name) {
				out = append(out, b.vm.NewArrayBuffer(append([]byte(nil), payload...)))
			}
			return b.vm.NewArrayFromSlice(out), nil
		}},
	})
	return ctor
}

func (b *Bridge) instanceConstructor() vm.Value {
	ctor := b.constructor("Instance", 1, b.instanceProto, func(args []vm.Value, proto vm.Value) (vm.Value, error) {
		m, ok := hostData[*wasm.Module](arg(args, 0))
		if !ok {
			return vm.Undefined, b.vm.NewTypeError("first argument must be a WebAssembly.Module")
		}
		return b.instantiate(m, arg(args, 1), proto)
	})
	b.defineAccessor(b.instanceProto, "exports", func(args []vm.Value) (vm.Value, error) {
		d, err := thisData[*instanceData](b, "WebAssembly.Instance")
		if err != nil {
			return vm.Undefined, err
		}
		return d.exports, nil
	}, nil)
	return ctor
}
