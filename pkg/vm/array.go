package vm

import (
	"unsafe"
)

// ArrayMode is the backing-store state of an ArrayObject.
type ArrayMode uint8

const (
	// ArrayDense keeps indices in a contiguous slice; Hole marks a gap.
	ArrayDense ArrayMode = iota
	// ArraySparse keeps indices in the ordinary property table. An array
	// never leaves this mode once it enters it.
	ArraySparse
)

func (m ArrayMode) String() string {
	if m == ArrayDense {
		return "dense"
	}
	return "sparse"
}

// denseGapLimit bounds how far past the dense tail a write may land before
// the array goes sparse.
const denseGapLimit = 1024

// ArrayObject is the Array exotic object.
type ArrayObject struct {
	PlainObject
	mode           ArrayMode
	dense          []Value // len(dense) <= length; trailing holes are implicit
	length         int64
	lengthWritable bool
}

func newArrayObject(proto Value, values []Value) *ArrayObject {
	a := &ArrayObject{dense: values, length: int64(len(values)), lengthWritable: true}
	a.init(proto, "Array")
	return a
}

// NewArray creates an empty array with %Array.prototype%.
func (vm *VM) NewArray() Value {
	return vm.NewArrayFromSlice(nil)
}

// NewArrayFromSlice creates a dense array that takes ownership of values.
func (vm *VM) NewArrayFromSlice(values []Value) Value {
	return objectValue(TypeArray, unsafe.Pointer(newArrayObject(vm.realm.ArrayPrototype, values)))
}

// NewArrayWithLength creates an array of holes. The backing store is not
// allocated, so lengths up to 2^32-1 are cheap.
func (vm *VM) NewArrayWithLength(length int64) Value {
	a := newArrayObject(vm.realm.ArrayPrototype, nil)
	a.length = length
	return objectValue(TypeArray, unsafe.Pointer(a))
}

// ArrayCreate implements ArrayCreate(length, proto).
func (vm *VM) ArrayCreate(length int64, proto Value) (Value, error) {
	if length > MaxArrayLength {
		return Undefined, vm.NewRangeError("Invalid array length")
	}
	if proto.IsUndefined() {
		proto = vm.realm.ArrayPrototype
	}
	a := newArrayObject(proto, nil)
	a.length = length
	return objectValue(TypeArray, unsafe.Pointer(a)), nil
}

func (a *ArrayObject) Mode() ArrayMode { return a.mode }

func (a *ArrayObject) Length() int64 { return a.length }

// Get returns the own element at i, or Undefined when it is absent or an
// accessor. It never consults the prototype chain.
func (a *ArrayObject) Get(i int64) Value {
	d, ok := a.getOwnProperty(IndexKey(i))
	if !ok || d.IsAccessor() {
		return Undefined
	}
	return d.Value
}

// Append pushes v onto a dense array, or defines the next index otherwise.
func (a *ArrayObject) Append(v Value) {
	if a.mode == ArrayDense && int64(len(a.dense)) == a.length && a.extensible && a.lengthWritable {
		a.dense = append(a.dense, v)
		a.length++
		return
	}
	a.defineOwnProperty(IndexKey(a.length), DefaultDataProperty(v))
}

// Values copies the elements into a slice, holes included.
func (a *ArrayObject) Values() []Value {
	out := make([]Value, a.length)
	for i := range out {
		out[i] = Hole
	}
	if a.mode == ArrayDense {
		copy(out, a.dense)
		return out
	}
	for _, i := range a.elemKeys {
		if i >= a.length {
			break
		}
		if d := a.elems[i]; !d.IsAccessor() {
			out[i] = d.Value
		}
	}
	return out
}

func (a *ArrayObject) toSparse() {
	if a.mode == ArraySparse {
		return
	}
	for i, v := range a.dense {
		if !v.IsHole() {
			a.PlainObject.putOwn(IndexKey(int64(i)), DefaultDataProperty(v))
		}
	}
	a.dense = nil
	a.mode = ArraySparse
}

func (a *ArrayObject) trimDense() {
	n := len(a.dense)
	for n > 0 && a.dense[n-1].IsHole() {
		n--
	}
	clear(a.dense[n:])
	a.dense = a.dense[:n]
}

var lengthKey = StringKey("length")

func (a *ArrayObject) getOwnProperty(key PropertyKey) (PropertyDescriptor, bool) {
	if key == lengthKey {
		return DataProperty(IndexValue(a.length), a.lengthWritable, false, false), true
	}
	if a.mode == ArrayDense {
		if i, ok := key.ArrayIndex(); ok {
			if i < int64(len(a.dense)) && !a.dense[i].IsHole() {
				return DefaultDataProperty(a.dense[i]), true
			}
			return PropertyDescriptor{}, false
		}
	}
	return a.PlainObject.getOwnProperty(key)
}

func (a *ArrayObject) defineOwnProperty(key PropertyKey, desc PropertyDescriptor) bool {
	if key == lengthKey {
		return a.defineLength(desc)
	}
	i, isIndex := key.ArrayIndex()
	if !isIndex {
		return a.PlainObject.defineOwnProperty(key, desc)
	}
	if i >= a.length && !a.lengthWritable {
		return false
	}

	if a.mode == ArrayDense {
		current, has := a.getOwnProperty(key)
		next, ok := validateAndApply(a.extensible, desc, current, has)
		if !ok {
			return false
		}
		if next.isDefaultData() && i <= int64(len(a.dense))+denseGapLimit {
			for int64(len(a.dense)) <= i {
				a.dense = append(a.dense, Hole)
			}
			a.dense[i] = next.Value
			if i >= a.length {
				a.length = i + 1
			}
			return true
		}
		a.toSparse()
		a.PlainObject.putOwn(key, next)
		if i >= a.length {
			a.length = i + 1
		}
		return true
	}

	if !a.PlainObject.defineOwnProperty(key, desc) {
		return false
	}
	if i >= a.length {
		a.length = i + 1
	}
	return true
}

// defineLength applies a descriptor to "length". A value in desc must
// already be a valid array length.
func (a *ArrayObject) defineLength(desc PropertyDescriptor) bool {
	if desc.HasConfigurable && desc.Configurable {
		return false
	}
	if desc.HasEnumerable && desc.Enumerable {
		return false
	}
	if desc.IsAccessor() {
		return false
	}
	if !desc.HasValue {
		if desc.HasWritable && desc.Writable && !a.lengthWritable {
			return false
		}
		if desc.HasWritable && !desc.Writable {
			a.lengthWritable = false
		}
		return true
	}
	newLen := int64(desc.Value.AsNumber())
	if newLen != a.length {
		if !a.lengthWritable {
			return false
		}
		if !a.setLength(newLen) {
			if desc.HasWritable && !desc.Writable {
				a.lengthWritable = false
			}
			return false
		}
	} else if desc.HasWritable && desc.Writable && !a.lengthWritable {
		return false
	}
	if desc.HasWritable && !desc.Writable {
		a.lengthWritable = false
	}
	return true
}

// setLength truncates or extends the array. Truncation deletes from the
// highest index down and stops at the first non-configurable element.
func (a *ArrayObject) setLength(newLen int64) bool {
	if newLen >= a.length {
		a.length = newLen
		return true
	}
	if a.mode == ArrayDense {
		if newLen < int64(len(a.dense)) {
			clear(a.dense[newLen:])
			a.dense = a.dense[:newLen]
			a.trimDense()
		}
		a.length = newLen
		return true
	}
	for j := len(a.elemKeys) - 1; j >= 0; j-- {
		k := a.elemKeys[j]
		if k < newLen {
			break
		}
		if k >= MaxArrayLength {
			continue
		}
		if !a.elems[k].Configurable {
			a.length = k + 1
			return false
		}
		a.PlainObject.removeOwn(IndexKey(k))
	}
	a.length = newLen
	return true
}

func (a *ArrayObject) deleteOwnProperty(key PropertyKey) bool {
	if key == lengthKey {
		return false
	}
	if a.mode == ArrayDense {
		if i, ok := key.ArrayIndex(); ok {
			if i < int64(len(a.dense)) {
				a.dense[i] = Hole
				a.trimDense()
			}
			return true
		}
	}
	return a.PlainObject.deleteOwnProperty(key)
}

func (a *ArrayObject) ownKeys() []PropertyKey {
	keys := make([]PropertyKey, 0, len(a.dense)+len(a.elemKeys)+len(a.order)+1)
	if a.mode == ArrayDense {
		for i, v := range a.dense {
			if !v.IsHole() {
				keys = append(keys, IndexKey(int64(i)))
			}
		}
	}
	for _, i := range a.elemKeys {
		keys = append(keys, IndexKey(i))
	}
	keys = append(keys, lengthKey)
	for _, k := range a.order {
		if !k.IsSymbol() {
			keys = append(keys, k)
		}
	}
	for _, k := range a.order {
		if k.IsSymbol() {
			keys = append(keys, k)
		}
	}
	return keys
}

// nextOwnIndex returns the smallest own index in [from, limit), or limit.
func (a *ArrayObject) nextOwnIndex(from, limit int64) int64 {
	if a.mode == ArraySparse {
		return a.PlainObject.nextOwnIndex(from, limit)
	}
	end := min(limit, int64(len(a.dense)))
	for i := max(from, 0); i < end; i++ {
		if !a.dense[i].IsHole() {
			return i
		}
	}
	return a.PlainObject.nextOwnIndex(max(from, end), limit)
}

// prevOwnIndex returns the largest own index in (limit, from], or limit.
func (a *ArrayObject) prevOwnIndex(from, limit int64) int64 {
	if a.mode == ArraySparse {
		return a.PlainObject.prevOwnIndex(from, limit)
	}
	if from >= int64(len(a.dense)) {
		if i := a.PlainObject.prevOwnIndex(from, max(limit, int64(len(a.dense))-1)); i > limit && i >= int64(len(a.dense)) {
			return i
		}
		from = int64(len(a.dense)) - 1
	}
	for i := from; i > limit; i-- {
		if !a.dense[i].IsHole() {
			return i
		}
	}
	return limit
}

// ArgumentsObject is an unmapped arguments object: ordinary storage with the
// Arguments class tag.
type ArgumentsObject struct {
	PlainObject
}

// NewArguments creates an unmapped arguments object for args.
func (vm *VM) NewArguments(args []Value) Value {
	o := &ArgumentsObject{}
	o.init(vm.realm.ObjectPrototype, "Arguments")
	for i, v := range args {
		o.putOwn(IndexKey(int64(i)), DefaultDataProperty(v))
	}
	o.putOwn(lengthKey, DataProperty(IndexValue(int64(len(args))), true, false, true))
	if values, ok := vm.realm.Intrinsics["%Array.prototype.values%"]; ok {
		o.putOwn(SymbolKey(SymbolIterator), DataProperty(values, true, false, true))
	}
	return objectValue(TypeArguments, unsafe.Pointer(o))
}
