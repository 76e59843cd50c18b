package vm

import (
	"errors"
	"fmt"
)

// exceptionError carries a thrown JS value through Go error returns.
type exceptionError struct {
	exception Value
}

func (e exceptionError) Error() string {
	return describeThrown(e.exception)
}

// ExceptionValue returns the thrown value.
func (e exceptionError) ExceptionValue() Value {
	return e.exception
}

// NewException wraps a thrown value as a Go error.
func NewException(v Value) error {
	return exceptionError{exception: v}
}

// AsException extracts the thrown value from err, if it carries one.
func AsException(err error) (Value, bool) {
	var ex exceptionError
	if errors.As(err, &ex) {
		return ex.exception, true
	}
	return Undefined, false
}

// ThrownValue converts any error into the value a JS catch would observe.
// Plain Go errors become Error objects.
func (vm *VM) ThrownValue(err error) Value {
	if v, ok := AsException(err); ok {
		return v
	}
	return vm.NewError(KindError, err.Error())
}

// describeThrown renders a thrown value without running user code.
func describeThrown(v Value) string {
	if v.Type() == TypeError {
		e := v.AsError()
		name := e.Kind.String()
		if n, ok := e.GetOwn("name"); ok && n.IsString() {
			name = n.AsString()
		}
		if msg, ok := e.GetOwn("message"); ok && msg.IsString() && msg.AsString() != "" {
			return name + ": " + msg.AsString()
		}
		return name
	}
	if v.IsString() {
		return v.AsString()
	}
	return "Uncaught " + v.Inspect()
}

func (vm *VM) NewTypeError(message string) error {
	return NewException(vm.NewError(KindTypeError, message))
}

func (vm *VM) NewRangeError(message string) error {
	return NewException(vm.NewError(KindRangeError, message))
}

func (vm *VM) NewSyntaxError(message string) error {
	return NewException(vm.NewError(KindSyntaxError, message))
}

func (vm *VM) NewReferenceError(message string) error {
	return NewException(vm.NewError(KindReferenceError, message))
}

// NewTypeErrorf formats a TypeError message.
func (vm *VM) NewTypeErrorf(format string, args ...any) error {
	return vm.NewTypeError(fmt.Sprintf(format, args...))
}

// Throw wraps an error object of the given kind.
func (vm *VM) Throw(kind ErrorKind, message string) error {
	return NewException(vm.NewError(kind, message))
}
