package vm

import (
	"unsafe"
)

// ErrorKind tags the concrete error constructor an ErrorObject came from.
type ErrorKind uint8

const (
	KindError ErrorKind = iota
	KindTypeError
	KindRangeError
	KindSyntaxError
	KindReferenceError
	KindURIError
	KindEvalError
	KindAggregateError
	KindCompileError
	KindLinkError
	KindRuntimeError
)

// ErrorKinds lists every kind in installation order. Error comes first
// since every other prototype inherits from Error.prototype.
var ErrorKinds = []ErrorKind{
	KindError, KindTypeError, KindRangeError, KindSyntaxError, KindReferenceError,
	KindURIError, KindEvalError, KindAggregateError,
	KindCompileError, KindLinkError, KindRuntimeError,
}

func (k ErrorKind) String() string {
	switch k {
	case KindError:
		return "Error"
	case KindTypeError:
		return "TypeError"
	case KindRangeError:
		return "RangeError"
	case KindSyntaxError:
		return "SyntaxError"
	case KindReferenceError:
		return "ReferenceError"
	case KindURIError:
		return "URIError"
	case KindEvalError:
		return "EvalError"
	case KindAggregateError:
		return "AggregateError"
	case KindCompileError:
		return "CompileError"
	case KindLinkError:
		return "LinkError"
	case KindRuntimeError:
		return "RuntimeError"
	}
	return "Error"
}

// IsWebAssembly reports whether the kind lives on the WebAssembly namespace.
func (k ErrorKind) IsWebAssembly() bool {
	return k == KindCompileError || k == KindLinkError || k == KindRuntimeError
}

// ErrorObject is an instance of one of the Error constructors.
type ErrorObject struct {
	PlainObject
	Kind ErrorKind
}

// NewErrorWithPrototype allocates an error object. The message is installed
// only when non-empty.
func NewErrorWithPrototype(kind ErrorKind, proto Value, message string, hasMessage bool) Value {
	e := &ErrorObject{Kind: kind}
	e.init(proto, "Error")
	if hasMessage {
		e.SetOwnNonEnumerable("message", NewString(message))
	}
	return objectValue(TypeError, unsafe.Pointer(e))
}

// NewError creates an error of the given kind with the realm's prototype.
func (vm *VM) NewError(kind ErrorKind, message string) Value {
	return NewErrorWithPrototype(kind, vm.realm.ErrorPrototypes[kind], message, message != "")
}
