package vm

// Presence is the tri-state answer of HasIndexedProperty.
type Presence uint8

const (
	PresenceAbsent Presence = iota
	// PresenceValue means the property is a data property; the result
	// carries its value.
	PresenceValue
	// PresenceAccessor means reading the property runs code: a getter or a
	// proxy trap. GetIndexedValue performs the read.
	PresenceAccessor
)

func (p Presence) String() string {
	switch p {
	case PresenceValue:
		return "value"
	case PresenceAccessor:
		return "accessor"
	}
	return "absent"
}

// IndexedResult describes an index found on an object or its prototype chain.
type IndexedResult struct {
	Presence Presence
	Value    Value
	// Holder is the object on the chain that has the property.
	Holder Value
	getter Value
}

func (r IndexedResult) IsPresent() bool { return r.Presence != PresenceAbsent }

var absentIndex = IndexedResult{Presence: PresenceAbsent, Value: Undefined, Holder: Undefined, getter: Undefined}

func presentValue(holder, v Value) IndexedResult {
	return IndexedResult{Presence: PresenceValue, Value: v, Holder: holder, getter: Undefined}
}

// AccessorKind names the closed set of IndexedAccessor variants.
type AccessorKind uint8

const (
	AccessorFastArray AccessorKind = iota
	AccessorSlowArray
	AccessorTypedArray
	AccessorProxy
	AccessorArguments
	AccessorGeneric
)

func (k AccessorKind) String() string {
	switch k {
	case AccessorFastArray:
		return "fast-array"
	case AccessorSlowArray:
		return "slow-array"
	case AccessorTypedArray:
		return "typed-array"
	case AccessorProxy:
		return "proxy"
	case AccessorArguments:
		return "arguments"
	}
	return "generic"
}

// IndexedAccessor is indexed access on an arbitrary object. Every variant
// follows [[HasProperty]]/[[Get]] semantics including the prototype chain;
// they differ only in how fast they can answer.
type IndexedAccessor interface {
	Kind() AccessorKind
	Object() Value
	// Length is the array length for arrays and ToLength(Get(O, "length"))
	// for everything else.
	Length() (int64, error)
	Has(i int64) (IndexedResult, error)
	Get(i int64, receiver Value) (Value, error)
	Set(i int64, v Value) error
	Delete(i int64) error
	// NextForward returns the smallest present index in [from, limit), or limit.
	NextForward(from, limit int64) (int64, error)
	// NextBackward returns the largest present index in (limit, from], or limit.
	NextBackward(from, limit int64) (int64, error)
}

// Indexed returns the accessor variant for o, which must be an object.
func (vm *VM) Indexed(o Value) IndexedAccessor {
	base := ordinaryAccessor{vm: vm, obj: o, kind: AccessorGeneric}
	switch o.typ {
	case TypeArray:
		arr := o.AsArray()
		if arr.mode == ArrayDense {
			base.kind = AccessorFastArray
			return fastArrayAccessor{ordinaryAccessor: base, arr: arr}
		}
		base.kind = AccessorSlowArray
		return arrayAccessor{ordinaryAccessor: base, arr: arr}
	case TypeTypedArray:
		base.kind = AccessorTypedArray
		return typedArrayAccessor{ordinaryAccessor: base, ta: o.AsTypedArray()}
	case TypeProxy:
		base.kind = AccessorProxy
		return proxyAccessor{ordinaryAccessor: base}
	case TypeArguments:
		base.kind = AccessorArguments
	}
	return base
}

// ordinaryAccessor serves generic objects and arguments objects, and is the
// fallback the faster variants defer to.
type ordinaryAccessor struct {
	vm   *VM
	obj  Value
	kind AccessorKind
}

func (a ordinaryAccessor) Kind() AccessorKind { return a.kind }
func (a ordinaryAccessor) Object() Value      { return a.obj }

func (a ordinaryAccessor) Length() (int64, error) {
	v, err := a.vm.Get(a.obj, lengthKey)
	if err != nil {
		return 0, err
	}
	return a.vm.ToLength(v)
}

func (a ordinaryAccessor) Has(i int64) (IndexedResult, error) {
	return a.vm.hasIndexedChain(a.obj, i)
}

func (a ordinaryAccessor) Get(i int64, receiver Value) (Value, error) {
	return a.vm.GetWithReceiver(a.obj, IndexKey(i), receiver)
}

func (a ordinaryAccessor) Set(i int64, v Value) error {
	return a.vm.Set(a.obj, IndexKey(i), v, true)
}

func (a ordinaryAccessor) Delete(i int64) error {
	return a.vm.DeletePropertyOrThrow(a.obj, IndexKey(i))
}

func (a ordinaryAccessor) NextForward(from, limit int64) (int64, error) {
	return a.vm.scanForward(a.obj, from, limit)
}

func (a ordinaryAccessor) NextBackward(from, limit int64) (int64, error) {
	return a.vm.scanBackward(a.obj, from, limit)
}

// arrayAccessor is the slow-mode array: the length is authoritative.
type arrayAccessor struct {
	ordinaryAccessor
	arr *ArrayObject
}

func (a arrayAccessor) Length() (int64, error) { return a.arr.length, nil }

// fastArrayAccessor reads dense elements in place and only walks the
// prototype chain for holes.
type fastArrayAccessor struct {
	ordinaryAccessor
	arr *ArrayObject
}

func (a fastArrayAccessor) Length() (int64, error) { return a.arr.length, nil }

func (a fastArrayAccessor) Has(i int64) (IndexedResult, error) {
	if a.arr.mode == ArrayDense && i >= 0 && i < int64(len(a.arr.dense)) && !a.arr.dense[i].IsHole() {
		return presentValue(a.obj, a.arr.dense[i]), nil
	}
	return a.ordinaryAccessor.Has(i)
}

func (a fastArrayAccessor) Get(i int64, receiver Value) (Value, error) {
	if a.arr.mode == ArrayDense && i >= 0 && i < int64(len(a.arr.dense)) && !a.arr.dense[i].IsHole() {
		return a.arr.dense[i], nil
	}
	return a.ordinaryAccessor.Get(i, receiver)
}

// typedArrayAccessor answers every index from the view's length; numeric
// keys never reach the prototype chain.
type typedArrayAccessor struct {
	ordinaryAccessor
	ta *TypedArrayObject
}

func (a typedArrayAccessor) Has(i int64) (IndexedResult, error) {
	if !a.ta.validIndex(i) {
		return absentIndex, nil
	}
	return presentValue(a.obj, a.ta.GetElement(i)), nil
}

func (a typedArrayAccessor) Get(i int64, receiver Value) (Value, error) {
	return a.ta.GetElement(i), nil
}

func (a typedArrayAccessor) NextForward(from, limit int64) (int64, error) {
	return typedForward(a.ta, from, limit), nil
}

func (a typedArrayAccessor) NextBackward(from, limit int64) (int64, error) {
	return typedBackward(a.ta, from, limit), nil
}

// proxyAccessor has no shortcut: every index is a candidate and presence is
// decided by the has trap.
type proxyAccessor struct {
	ordinaryAccessor
}

func (a proxyAccessor) Has(i int64) (IndexedResult, error) {
	ok, err := a.vm.HasProperty(a.obj, IndexKey(i))
	if err != nil || !ok {
		return absentIndex, err
	}
	return IndexedResult{Presence: PresenceAccessor, Value: Undefined, Holder: a.obj, getter: Undefined}, nil
}

func (a proxyAccessor) NextForward(from, limit int64) (int64, error) {
	return min(max(from, 0), limit), nil
}

func (a proxyAccessor) NextBackward(from, limit int64) (int64, error) {
	return max(from, limit), nil
}

// HasIndexedProperty implements [[HasProperty]] for an integer key, reporting
// where the property was found and whether reading it runs code.
func (vm *VM) HasIndexedProperty(o Value, i int64) (IndexedResult, error) {
	return vm.Indexed(o).Has(i)
}

// GetIndexedPropertyValue reads index i of o with the given receiver.
func (vm *VM) GetIndexedPropertyValue(o Value, i int64, receiver Value) (Value, error) {
	return vm.Indexed(o).Get(i, receiver)
}

// GetIndexedValue completes a HasIndexedProperty lookup without repeating
// the chain walk for data properties.
func (vm *VM) GetIndexedValue(r IndexedResult, i int64, receiver Value) (Value, error) {
	switch r.Presence {
	case PresenceValue:
		return r.Value, nil
	case PresenceAccessor:
		if r.Holder.typ == TypeProxy {
			return vm.GetWithReceiver(r.Holder, IndexKey(i), receiver)
		}
		if !r.getter.IsCallable() {
			return Undefined, nil
		}
		return vm.Call(r.getter, receiver, nil)
	}
	return Undefined, nil
}

// SetIndexedPropertyThrowsException is Set(O, i, v, true).
func (vm *VM) SetIndexedPropertyThrowsException(o Value, i int64, v Value) error {
	return vm.Indexed(o).Set(i, v)
}

// DeleteIndexedPropertyThrowsException is DeletePropertyOrThrow(O, i).
func (vm *VM) DeleteIndexedPropertyThrowsException(o Value, i int64) error {
	return vm.Indexed(o).Delete(i)
}

// NextIndexForward returns the smallest index i with from <= i < limit that
// o has, own or inherited, or limit when there is none.
func (vm *VM) NextIndexForward(o Value, from, limit int64) (int64, error) {
	return vm.Indexed(o).NextForward(from, limit)
}

// NextIndexBackward returns the largest index i with limit < i <= from that
// o has, own or inherited, or limit when there is none. limit may be -1.
func (vm *VM) NextIndexBackward(o Value, from, limit int64) (int64, error) {
	return vm.Indexed(o).NextBackward(from, limit)
}

// LengthOfArrayLike implements LengthOfArrayLike(obj).
func (vm *VM) LengthOfArrayLike(o Value) (int64, error) {
	return vm.Indexed(o).Length()
}

func (vm *VM) hasIndexedChain(o Value, i int64) (IndexedResult, error) {
	key := IndexKey(i)
	for cur := o; cur.IsObject(); {
		switch cur.typ {
		case TypeProxy:
			return proxyAccessor{ordinaryAccessor{vm: vm, obj: cur, kind: AccessorProxy}}.Has(i)
		case TypeTypedArray:
			ta := cur.AsTypedArray()
			if !ta.validIndex(i) {
				return absentIndex, nil
			}
			return presentValue(cur, ta.GetElement(i)), nil
		}
		if d, ok := vm.storage(cur).getOwnProperty(key); ok {
			if d.IsAccessor() {
				return IndexedResult{Presence: PresenceAccessor, Value: Undefined, Holder: cur, getter: d.Get}, nil
			}
			return presentValue(cur, d.Value), nil
		}
		cur = cur.AsPlainObject().prototype
	}
	return absentIndex, nil
}

// scanForward takes the smallest candidate across the chain. A proxy
// anywhere on the chain makes every index a candidate.
func (vm *VM) scanForward(o Value, from, limit int64) (int64, error) {
	from = max(from, 0)
	if from >= limit {
		return limit, nil
	}
	best := limit
	for cur := o; cur.IsObject() && best > from; {
		switch cur.typ {
		case TypeProxy:
			return from, nil
		case TypeTypedArray:
			return min(best, typedForward(cur.AsTypedArray(), from, limit)), nil
		case TypeArray:
			best = min(best, cur.AsArray().nextOwnIndex(from, best))
		default:
			best = min(best, cur.AsPlainObject().nextOwnIndex(from, best))
		}
		cur = cur.AsPlainObject().prototype
	}
	return best, nil
}

func (vm *VM) scanBackward(o Value, from, limit int64) (int64, error) {
	if from <= limit {
		return limit, nil
	}
	best := limit
	for cur := o; cur.IsObject() && best < from; {
		switch cur.typ {
		case TypeProxy:
			return from, nil
		case TypeTypedArray:
			return max(best, typedBackward(cur.AsTypedArray(), from, limit)), nil
		case TypeArray:
			best = max(best, cur.AsArray().prevOwnIndex(from, best))
		default:
			best = max(best, cur.AsPlainObject().prevOwnIndex(from, best))
		}
		cur = cur.AsPlainObject().prototype
	}
	return best, nil
}

func typedForward(ta *TypedArrayObject, from, limit int64) int64 {
	if from = max(from, 0); from < min(limit, int64(ta.Length())) {
		return from
	}
	return limit
}

func typedBackward(ta *TypedArrayObject, from, limit int64) int64 {
	if i := min(from, int64(ta.Length())-1); i > limit {
		return i
	}
	return limit
}
