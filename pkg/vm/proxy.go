package vm

import (
	"unsafe"
)

// ProxyObject is a Proxy exotic object. Every internal method is routed
// through the handler.
type ProxyObject struct {
	PlainObject
	target      Value
	handler     Value
	revoked     bool
	callable    bool
	constructor bool
}

func (vm *VM) NewProxy(target, handler Value) (Value, error) {
	if !target.IsObject() || !handler.IsObject() {
		return Undefined, vm.NewTypeError("Cannot create proxy with a non-object as target or handler")
	}
	p := &ProxyObject{
		target:      target,
		handler:     handler,
		callable:    target.IsCallable(),
		constructor: target.IsConstructor(),
	}
	p.init(Null, "Object")
	return objectValue(TypeProxy, unsafe.Pointer(p)), nil
}

func (p *ProxyObject) Target() Value  { return p.target }
func (p *ProxyObject) Handler() Value { return p.handler }

// Revoke detaches the proxy from its target and handler.
func (p *ProxyObject) Revoke() {
	p.revoked = true
	p.target = Null
	p.handler = Null
}

// trap returns the handler method for name, or Undefined when the handler
// does not define it.
func (vm *VM) proxyTrap(p *ProxyObject, name string) (Value, error) {
	if p.revoked {
		return Undefined, vm.NewTypeErrorf("Cannot perform '%s' on a proxy that has been revoked", name)
	}
	return vm.GetMethod(p.handler, StringKey(name))
}
