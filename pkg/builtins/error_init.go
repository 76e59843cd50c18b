package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

// ErrorInitializer installs Error and its native subclasses, AggregateError
// included. The WebAssembly error constructors are built here too but left
// off the global object; the WebAssembly namespace picks them up with
// ErrorConstructor.
type ErrorInitializer struct{}

func (e *ErrorInitializer) Name() string       { return "Error" }
func (e *ErrorInitializer) Requires() []string { return []string{"Iterator", "Array"} }

func errorIntrinsic(kind vm.ErrorKind) string {
	return "%" + kind.String() + "%"
}

// ErrorConstructor returns the installed constructor for kind.
func ErrorConstructor(vmInstance *vm.VM, kind vm.ErrorKind) (vm.Value, bool) {
	ctor, ok := vmInstance.Realm().Intrinsics[errorIntrinsic(kind)]
	return ctor, ok
}

func (e *ErrorInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm

	baseProto := realm.ErrorPrototypes[vm.KindError]
	defineMethods(vmInstance, baseProto, []methodSpec{
		{"toString", 0, func(args []vm.Value) (vm.Value, error) {
			return errorToString(vmInstance, vmInstance.GetThis())
		}},
	})

	var baseCtor vm.Value
	for _, kind := range vm.ErrorKinds {
		proto := realm.ErrorPrototypes[kind]
		ctor := newErrorConstructor(vmInstance, kind, proto)
		vm.LinkConstructor(ctor, proto)
		proto.AsPlainObject().SetOwnNonEnumerable("name", vm.NewString(kind.String()))
		proto.AsPlainObject().SetOwnNonEnumerable("message", vm.NewString(""))

		if kind == vm.KindError {
			baseCtor = ctor
		} else {
			// NativeError constructors inherit from %Error%.
			ctor.AsPlainObject().SetPrototype(baseCtor)
		}
		realm.Intrinsics[errorIntrinsic(kind)] = ctor

		if kind.IsWebAssembly() {
			continue
		}
		if err := ctx.DefineGlobal(kind.String(), ctor); err != nil {
			return err
		}
	}

	defineMethods(vmInstance, baseCtor, []methodSpec{
		{"isError", 1, func(args []vm.Value) (vm.Value, error) {
			return vm.BooleanValue(arg(args, 0).Type() == vm.TypeError), nil
		}},
	})
	return nil
}

func newErrorConstructor(vmInstance *vm.VM, kind vm.ErrorKind, proto vm.Value) vm.Value {
	arity := 1
	if kind == vm.KindAggregateError {
		arity = 2
	}
	return vmInstance.NewNativeConstructor(arity, kind.String(), func(args []vm.Value) (vm.Value, error) {
		newTarget := vmInstance.GetNewTarget()
		if newTarget.IsUndefined() {
			newTarget = vmInstance.GetCallee()
		}
		p, err := vmInstance.GetPrototypeFromConstructor(newTarget, proto)
		if err != nil {
			return vm.Undefined, err
		}

		message, options := arg(args, 0), arg(args, 1)
		if kind == vm.KindAggregateError {
			message, options = arg(args, 1), arg(args, 2)
		}
		o, err := createError(vmInstance, kind, p, message, options)
		if err != nil {
			return vm.Undefined, err
		}

		if kind == vm.KindAggregateError {
			errors, err := vmInstance.IterableToList(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			o.AsPlainObject().SetOwnNonEnumerable("errors", vmInstance.NewArrayFromSlice(errors))
		}
		return o, nil
	})
}

// createError is the part every Error constructor shares: allocate with the
// resolved prototype, install message when given, then InstallErrorCause.
func createError(vmInstance *vm.VM, kind vm.ErrorKind, proto, message, options vm.Value) (vm.Value, error) {
	msg, hasMessage := "", !message.IsUndefined()
	if hasMessage {
		s, err := vmInstance.ToString(message)
		if err != nil {
			return vm.Undefined, err
		}
		msg = s
	}
	o := vm.NewErrorWithPrototype(kind, proto, msg, hasMessage)

	if options.IsObject() {
		hasCause, err := vmInstance.HasProperty(options, vm.StringKey("cause"))
		if err != nil {
			return vm.Undefined, err
		}
		if hasCause {
			cause, err := vmInstance.Get(options, vm.StringKey("cause"))
			if err != nil {
				return vm.Undefined, err
			}
			o.AsPlainObject().SetOwnNonEnumerable("cause", cause)
		}
	}
	return o, nil
}

// errorToString implements Error.prototype.toString. A receiver whose name
// or message getter leads back into its own toString renders as "".
func errorToString(vmInstance *vm.VM, o vm.Value) (vm.Value, error) {
	if !o.IsObject() {
		return vm.Undefined, vmInstance.NewTypeErrorf("Error.prototype.toString called on non-object %s", o.Inspect())
	}
	release, ok := guardFor(vmInstance).enter(o)
	if !ok {
		return vm.NewString(""), nil
	}
	defer release()

	field := func(key, dflt string) (string, error) {
		v, err := vmInstance.Get(o, vm.StringKey(key))
		if err != nil || v.IsUndefined() {
			return dflt, err
		}
		return vmInstance.ToString(v)
	}
	name, err := field("name", "Error")
	if err != nil {
		return vm.Undefined, err
	}
	msg, err := field("message", "")
	if err != nil {
		return vm.Undefined, err
	}
	switch {
	case name == "":
		return vm.NewString(msg), nil
	case msg == "":
		return vm.NewString(name), nil
	}
	return vm.NewString(name + ": " + msg), nil
}
