package vm

import (
	"unsafe"
)

// Realm holds the global object and the builtin prototypes and intrinsics.
// newRealm allocates every prototype up front as an empty object so that the
// VM can create arrays and errors before any builtin is installed; the
// builtins package then fills them in.
type Realm struct {
	GlobalObject Value

	// Built-in prototypes
	ObjectPrototype        Value
	FunctionPrototype      Value
	ArrayPrototype         Value
	StringPrototype        Value
	NumberPrototype        Value
	BigIntPrototype        Value
	BooleanPrototype       Value
	SymbolPrototype        Value
	MapPrototype           Value
	SetPrototype           Value
	WeakMapPrototype       Value
	WeakSetPrototype       Value
	IteratorPrototype      Value // %Iterator.prototype% - base for all iterators
	ArrayIteratorPrototype Value
	MapIteratorPrototype   Value
	SetIteratorPrototype   Value
	PromisePrototype       Value
	ArrayBufferPrototype   Value
	TypedArrayPrototype    Value // Abstract %TypedArray%.prototype

	ErrorPrototypes      map[ErrorKind]Value
	TypedArrayPrototypes map[TypedArrayKind]Value

	// Constructors cached for species lookups and error creation
	ArrayConstructor   Value
	ObjectConstructor  Value
	PromiseConstructor Value

	// Intrinsics holds named functions other builtins reach for, e.g.
	// "%Array.prototype.values%".
	Intrinsics map[string]Value
}

func newRealm() *Realm {
	r := &Realm{
		ErrorPrototypes:      make(map[ErrorKind]Value),
		TypedArrayPrototypes: make(map[TypedArrayKind]Value),
		Intrinsics:           make(map[string]Value),
	}

	r.ObjectPrototype = NewObject(Null)
	r.FunctionPrototype = NewObject(r.ObjectPrototype)
	r.ArrayPrototype = objectValue(TypeArray, unsafe.Pointer(newArrayObject(r.ObjectPrototype, nil)))

	obj := func() Value { return NewObject(r.ObjectPrototype) }
	r.StringPrototype = obj()
	r.NumberPrototype = obj()
	r.BigIntPrototype = obj()
	r.BooleanPrototype = obj()
	r.SymbolPrototype = obj()
	r.MapPrototype = obj()
	r.SetPrototype = obj()
	r.WeakMapPrototype = obj()
	r.WeakSetPrototype = obj()
	r.IteratorPrototype = obj()
	r.ArrayIteratorPrototype = NewObject(r.IteratorPrototype)
	r.MapIteratorPrototype = NewObject(r.IteratorPrototype)
	r.SetIteratorPrototype = NewObject(r.IteratorPrototype)
	r.PromisePrototype = obj()
	r.ArrayBufferPrototype = obj()
	r.TypedArrayPrototype = obj()

	base := NewObject(r.ObjectPrototype)
	r.ErrorPrototypes[KindError] = base
	for _, kind := range ErrorKinds {
		if kind != KindError {
			r.ErrorPrototypes[kind] = NewObject(base)
		}
	}
	for _, kind := range TypedArrayKinds {
		r.TypedArrayPrototypes[kind] = NewObject(r.TypedArrayPrototype)
	}

	r.GlobalObject = obj()
	return r
}
