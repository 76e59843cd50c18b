package vm

import (
	"unsafe"
)

// PromiseState represents the state of a Promise
type PromiseState int

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromiseFulfilled:
		return "fulfilled"
	case PromiseRejected:
		return "rejected"
	}
	return "pending"
}

// PromiseReaction represents a callback registered via .then()
type PromiseReaction struct {
	Handler Value       // Function to call (onFulfilled or onRejected), or Undefined
	Resolve func(Value) // Settles the derived promise
	Reject  func(Value)
}

// PromiseObject represents a JavaScript Promise
type PromiseObject struct {
	PlainObject
	State            PromiseState
	Result           Value // Fulfillment value or rejection reason
	FulfillReactions []PromiseReaction
	RejectReactions  []PromiseReaction
}

// GetState returns the promise state
func (p *PromiseObject) GetState() PromiseState {
	return p.State
}

// GetResult returns the promise result (value or reason)
func (p *PromiseObject) GetResult() Value {
	return p.Result
}

// NewPendingPromise creates a pending promise with the realm prototype and
// its resolving functions. Both functions are no-ops after the first call.
func (vm *VM) NewPendingPromise(proto Value) (Value, func(Value), func(Value)) {
	if proto.IsUndefined() {
		proto = vm.realm.PromisePrototype
	}
	p := &PromiseObject{State: PromisePending, Result: Undefined}
	p.init(proto, "Promise")
	promiseVal := objectValue(TypePromise, unsafe.Pointer(p))

	alreadyResolved := false
	resolve := func(v Value) {
		if alreadyResolved {
			return
		}
		alreadyResolved = true
		vm.resolvePromise(p, promiseVal, v)
	}
	reject := func(r Value) {
		if alreadyResolved {
			return
		}
		alreadyResolved = true
		vm.settlePromise(p, PromiseRejected, r)
	}
	return promiseVal, resolve, reject
}

// NewResolvedPromise creates a promise resolved with value.
func (vm *VM) NewResolvedPromise(value Value) Value {
	p, resolve, _ := vm.NewPendingPromise(Undefined)
	resolve(value)
	return p
}

// NewRejectedPromise creates a promise rejected with reason.
func (vm *VM) NewRejectedPromise(reason Value) Value {
	p, _, reject := vm.NewPendingPromise(Undefined)
	reject(reason)
	return p
}

// PromiseResolve implements PromiseResolve(%Promise%, x).
func (vm *VM) PromiseResolve(x Value) Value {
	if x.Type() == TypePromise {
		return x
	}
	return vm.NewResolvedPromise(x)
}

// resolvePromise runs the promise resolve function steps, including the
// thenable job for objects with a callable then.
func (vm *VM) resolvePromise(p *PromiseObject, self, value Value) {
	if value.IsObject() && value.obj == self.obj {
		vm.settlePromise(p, PromiseRejected, vm.NewError(KindTypeError, "Chaining cycle detected for promise"))
		return
	}
	if !value.IsObject() {
		vm.settlePromise(p, PromiseFulfilled, value)
		return
	}
	then, err := vm.Get(value, StringKey("then"))
	if err != nil {
		vm.settlePromise(p, PromiseRejected, vm.ThrownValue(err))
		return
	}
	if !then.IsCallable() {
		vm.settlePromise(p, PromiseFulfilled, value)
		return
	}
	vm.EnqueueJob(func() {
		done := false
		resolveFn := vm.NewNativeFunction(1, false, "", func(args []Value) (Value, error) {
			if !done {
				done = true
				vm.resolvePromise(p, self, argOrUndefined(args, 0))
			}
			return Undefined, nil
		})
		rejectFn := vm.NewNativeFunction(1, false, "", func(args []Value) (Value, error) {
			if !done {
				done = true
				vm.settlePromise(p, PromiseRejected, argOrUndefined(args, 0))
			}
			return Undefined, nil
		})
		if _, err := vm.Call(then, value, []Value{resolveFn, rejectFn}); err != nil && !done {
			done = true
			vm.settlePromise(p, PromiseRejected, vm.ThrownValue(err))
		}
	})
}

func (vm *VM) settlePromise(p *PromiseObject, state PromiseState, result Value) {
	if p.State != PromisePending {
		return
	}
	p.State = state
	p.Result = result
	vm.triggerPromiseReactions(p)
}

// triggerPromiseReactions schedules all reactions for a settled promise
func (vm *VM) triggerPromiseReactions(p *PromiseObject) {
	reactions := p.FulfillReactions
	if p.State == PromiseRejected {
		reactions = p.RejectReactions
	}
	p.FulfillReactions = nil
	p.RejectReactions = nil
	for _, reaction := range reactions {
		vm.schedulePromiseReaction(reaction, p.State, p.Result)
	}
}

func (vm *VM) schedulePromiseReaction(reaction PromiseReaction, state PromiseState, value Value) {
	vm.EnqueueJob(func() {
		if reaction.Handler.IsUndefined() {
			// No handler - pass through
			if state == PromiseFulfilled {
				reaction.Resolve(value)
			} else {
				reaction.Reject(value)
			}
			return
		}
		result, err := vm.Call(reaction.Handler, Undefined, []Value{value})
		if err != nil {
			reaction.Reject(vm.ThrownValue(err))
			return
		}
		reaction.Resolve(result)
	})
}

// PromiseThen implements PerformPromiseThen with a fresh derived promise.
func (vm *VM) PromiseThen(promiseVal Value, onFulfilled, onRejected Value) (Value, error) {
	if promiseVal.Type() != TypePromise {
		return Undefined, vm.NewTypeError("Promise.prototype.then called on incompatible receiver")
	}
	derived, resolve, reject := vm.NewPendingPromise(Undefined)
	if !onFulfilled.IsCallable() {
		onFulfilled = Undefined
	}
	if !onRejected.IsCallable() {
		onRejected = Undefined
	}
	vm.addReactions(promiseVal.AsPromise(),
		PromiseReaction{Handler: onFulfilled, Resolve: resolve, Reject: reject},
		PromiseReaction{Handler: onRejected, Resolve: resolve, Reject: reject})
	return derived, nil
}

// OnSettled registers Go callbacks on a promise without a derived promise.
func (vm *VM) OnSettled(promiseVal Value, onFulfilled, onRejected func(Value)) {
	vm.addReactions(promiseVal.AsPromise(),
		PromiseReaction{Handler: Undefined, Resolve: onFulfilled, Reject: onFulfilled},
		PromiseReaction{Handler: Undefined, Resolve: onRejected, Reject: onRejected})
}

func (vm *VM) addReactions(p *PromiseObject, fulfill, reject PromiseReaction) {
	switch p.State {
	case PromisePending:
		p.FulfillReactions = append(p.FulfillReactions, fulfill)
		p.RejectReactions = append(p.RejectReactions, reject)
	case PromiseFulfilled:
		vm.schedulePromiseReaction(fulfill, PromiseFulfilled, p.Result)
	case PromiseRejected:
		vm.schedulePromiseReaction(reject, PromiseRejected, p.Result)
	}
}

func argOrUndefined(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}
