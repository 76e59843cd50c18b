package vm

import (
	"unsafe"
)

// IteratorObject is a builtin iterator (Array, Map, Set iterators). The
// shared %XIteratorPrototype%.next reads its step function.
type IteratorObject struct {
	PlainObject
	Tag  string
	step func() (Value, bool, error)
	done bool
}

// NewNativeIterator creates a builtin iterator. step returns the next value
// and whether iteration is finished.
func (vm *VM) NewNativeIterator(proto Value, tag string, step func() (Value, bool, error)) Value {
	it := &IteratorObject{Tag: tag, step: step}
	it.init(proto, "Object")
	return objectValue(TypeIterator, unsafe.Pointer(it))
}

// Step advances the iterator. Once finished it stays finished.
func (it *IteratorObject) Step() (Value, bool, error) {
	if it.done {
		return Undefined, true, nil
	}
	v, done, err := it.step()
	if err != nil || done {
		it.done = true
		it.step = nil
	}
	if done {
		return Undefined, true, err
	}
	return v, false, err
}

// IteratorRecord is the Iterator Record of the iteration protocol.
type IteratorRecord struct {
	Iterator   Value
	NextMethod Value
	Done       bool
}

// GetIterator implements GetIterator(obj, sync).
func (vm *VM) GetIterator(obj Value) (*IteratorRecord, error) {
	method, err := vm.GetMethod(obj, SymbolKey(SymbolIterator))
	if err != nil {
		return nil, err
	}
	if method.IsUndefined() {
		return nil, vm.NewTypeErrorf("%s is not iterable", vm.describeForError(obj))
	}
	return vm.GetIteratorFromMethod(obj, method)
}

// GetIteratorFromMethod calls method on obj and records its next method.
func (vm *VM) GetIteratorFromMethod(obj, method Value) (*IteratorRecord, error) {
	iterator, err := vm.Call(method, obj, nil)
	if err != nil {
		return nil, err
	}
	if !iterator.IsObject() {
		return nil, vm.NewTypeError("Result of the Symbol.iterator method is not an object")
	}
	next, err := vm.Get(iterator, StringKey("next"))
	if err != nil {
		return nil, err
	}
	return &IteratorRecord{Iterator: iterator, NextMethod: next}, nil
}

// IteratorStepValue calls next and returns the value, or done=true when the
// iterator is exhausted. Any error marks the record done.
func (vm *VM) IteratorStepValue(rec *IteratorRecord) (Value, bool, error) {
	result, err := vm.Call(rec.NextMethod, rec.Iterator, nil)
	if err != nil {
		rec.Done = true
		return Undefined, true, err
	}
	if !result.IsObject() {
		rec.Done = true
		return Undefined, true, vm.NewTypeErrorf("Iterator result %s is not an object", vm.describeForError(result))
	}
	doneVal, err := vm.Get(result, StringKey("done"))
	if err != nil {
		rec.Done = true
		return Undefined, true, err
	}
	if ToBoolean(doneVal) {
		rec.Done = true
		return Undefined, true, nil
	}
	value, err := vm.Get(result, StringKey("value"))
	if err != nil {
		rec.Done = true
		return Undefined, true, err
	}
	return value, false, nil
}

// IteratorClose calls the iterator's return method. When completion is a
// thrown error, that error wins over anything return does.
func (vm *VM) IteratorClose(rec *IteratorRecord, completion error) error {
	ret, err := vm.GetMethod(rec.Iterator, StringKey("return"))
	if completion != nil {
		if err == nil && !ret.IsUndefined() {
			_, _ = vm.Call(ret, rec.Iterator, nil)
		}
		return completion
	}
	if err != nil {
		return err
	}
	if ret.IsUndefined() {
		return nil
	}
	result, err := vm.Call(ret, rec.Iterator, nil)
	if err != nil {
		return err
	}
	if !result.IsObject() {
		return vm.NewTypeError("iterator.return() did not return an object")
	}
	return nil
}

// IteratorCloseOnError runs the closer and then propagates err unchanged.
// A nil err passes through without closing.
func (vm *VM) IteratorCloseOnError(rec *IteratorRecord, err error) error {
	if err == nil {
		return nil
	}
	return vm.IteratorClose(rec, err)
}

// IterableToList drains an iterable into a slice.
func (vm *VM) IterableToList(iterable Value) ([]Value, error) {
	rec, err := vm.GetIterator(iterable)
	if err != nil {
		return nil, err
	}
	return vm.IteratorToList(rec)
}

// IteratorToList steps rec until it is done.
func (vm *VM) IteratorToList(rec *IteratorRecord) ([]Value, error) {
	var values []Value
	for {
		v, done, err := vm.IteratorStepValue(rec)
		if err != nil {
			return nil, err
		}
		if done {
			return values, nil
		}
		values = append(values, v)
	}
}

// CreateIterResultObject builds { value, done }.
func (vm *VM) CreateIterResultObject(value Value, done bool) Value {
	obj := NewObject(vm.realm.ObjectPrototype)
	po := obj.AsPlainObject()
	po.SetOwn("value", value)
	po.SetOwn("done", BooleanValue(done))
	return obj
}
