package vm

import (
	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/runtime"
)

// DefaultMaxCallDepth bounds native re-entrancy (a builtin calling a
// callback calling a builtin ...).
const DefaultMaxCallDepth = 10000

// Options configures a VM.
type Options struct {
	// Logger receives structured debug output. Defaults to a no-op logger.
	Logger *zap.Logger
	// MaxCallDepth limits nested calls; exceeding it throws a RangeError.
	MaxCallDepth int
	// AsyncRuntime runs promise jobs. Defaults to runtime.NewDefaultAsyncRuntime.
	AsyncRuntime runtime.AsyncRuntime
}

type callFrame struct {
	callee    Value
	this      Value
	newTarget Value
}

// VM is one single-threaded execution context: a realm, a call stack of
// native frames and a job queue. It is not safe for concurrent use.
type VM struct {
	realm  *Realm
	logger *zap.Logger
	async  runtime.AsyncRuntime

	frames       []callFrame
	maxCallDepth int

	symbolRegistry    map[string]*Symbol
	registeredSymbols map[*Symbol]string

	hostSlots map[any]any
}

// New creates a VM with an empty realm. builtins.Install populates it.
func New(opts Options) *VM {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	if opts.AsyncRuntime == nil {
		opts.AsyncRuntime = runtime.NewDefaultAsyncRuntime()
	}
	return &VM{
		realm:             newRealm(),
		logger:            opts.Logger,
		async:             opts.AsyncRuntime,
		maxCallDepth:      opts.MaxCallDepth,
		symbolRegistry:    make(map[string]*Symbol),
		registeredSymbols: make(map[*Symbol]string),
		hostSlots:         make(map[any]any),
	}
}

func (vm *VM) Realm() *Realm { return vm.realm }

func (vm *VM) Logger() *zap.Logger { return vm.logger }

// Global returns the global object.
func (vm *VM) Global() Value { return vm.realm.GlobalObject }

// DefineGlobal installs a writable, configurable, non-enumerable global.
func (vm *VM) DefineGlobal(name string, value Value) {
	vm.realm.GlobalObject.AsPlainObject().SetOwnNonEnumerable(name, value)
}

// GetGlobal reads a global binding.
func (vm *VM) GetGlobal(name string) (Value, bool) {
	return vm.realm.GlobalObject.AsPlainObject().GetOwn(name)
}

// HostSlot returns per-VM embedder state under key, creating it on first use.
func (vm *VM) HostSlot(key any, create func() any) any {
	if v, ok := vm.hostSlots[key]; ok {
		return v
	}
	v := create()
	vm.hostSlots[key] = v
	return v
}

// GetThis returns the receiver of the innermost native call.
func (vm *VM) GetThis() Value {
	if len(vm.frames) == 0 {
		return Undefined
	}
	return vm.frames[len(vm.frames)-1].this
}

// GetNewTarget returns new.target of the innermost native call; Undefined
// for a plain [[Call]].
func (vm *VM) GetNewTarget() Value {
	if len(vm.frames) == 0 {
		return Undefined
	}
	return vm.frames[len(vm.frames)-1].newTarget
}

// GetCallee returns the function object of the innermost native call.
func (vm *VM) GetCallee() Value {
	if len(vm.frames) == 0 {
		return Undefined
	}
	return vm.frames[len(vm.frames)-1].callee
}

// Call implements Call(F, V, args).
func (vm *VM) Call(fn Value, thisValue Value, args []Value) (Value, error) {
	switch fn.typ {
	case TypeFunction:
		return vm.invoke(fn, thisValue, Undefined, args)
	case TypeProxy:
		if fn.AsProxy().callable {
			return vm.proxyCall(fn.AsProxy(), thisValue, args)
		}
	}
	return Undefined, vm.NewTypeErrorf("%s is not a function", vm.describeForError(fn))
}

// Construct implements Construct(F, args, newTarget). A newTarget of
// Undefined means fn itself.
func (vm *VM) Construct(fn Value, args []Value, newTarget Value) (Value, error) {
	if newTarget.IsUndefined() {
		newTarget = fn
	}
	if !fn.IsConstructor() {
		return Undefined, vm.NewTypeErrorf("%s is not a constructor", vm.describeForError(fn))
	}
	if fn.typ == TypeProxy {
		return vm.proxyConstruct(fn.AsProxy(), args, newTarget)
	}
	result, err := vm.invoke(fn, Undefined, newTarget, args)
	if err != nil {
		return Undefined, err
	}
	if !result.IsObject() {
		return Undefined, vm.NewTypeErrorf("%s did not return an object", fn.AsFunction().Name)
	}
	return result, nil
}

func (vm *VM) invoke(fn Value, thisValue, newTarget Value, args []Value) (Value, error) {
	if len(vm.frames) >= vm.maxCallDepth {
		return Undefined, vm.NewRangeError("Maximum call stack size exceeded")
	}
	vm.frames = append(vm.frames, callFrame{callee: fn, this: thisValue, newTarget: newTarget})
	defer func() {
		vm.frames = vm.frames[:len(vm.frames)-1]
	}()
	return fn.AsFunction().Fn(args)
}

// EnqueueJob schedules a job on the microtask queue.
func (vm *VM) EnqueueJob(job func()) {
	vm.async.ScheduleMicrotask(job)
}

// DrainMicrotasks runs jobs until the queue is empty, including jobs that
// earlier jobs enqueue.
func (vm *VM) DrainMicrotasks() {
	rounds, jobs := 0, 0
	for {
		n := vm.async.Pending()
		if n == 0 {
			break
		}
		vm.async.RunUntilIdle()
		rounds++
		jobs += n
	}
	if rounds > 0 {
		vm.logger.Debug("drained microtasks", zap.Int("rounds", rounds), zap.Int("jobs", jobs))
	}
}
