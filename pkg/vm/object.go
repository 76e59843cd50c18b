package vm

import (
	"sort"
	"strconv"
	"unsafe"
)

const (
	// MaxSafeInteger is 2^53-1, the upper bound for array-like lengths.
	MaxSafeInteger = 1<<53 - 1
	// MaxArrayLength is 2^32-1, the upper bound for Array lengths.
	MaxArrayLength = 1<<32 - 1
)

type keyKind uint8

const (
	keyString keyKind = iota
	keySymbol
)

// PropertyKey is a string or symbol property name. It is comparable and
// used directly as a map key.
type PropertyKey struct {
	kind keyKind
	name string
	sym  *Symbol
}

func StringKey(name string) PropertyKey {
	return PropertyKey{kind: keyString, name: name}
}

func SymbolKey(sym *Symbol) PropertyKey {
	return PropertyKey{kind: keySymbol, sym: sym}
}

// IndexKey returns the canonical key for an integer index.
func IndexKey(i int64) PropertyKey {
	return PropertyKey{kind: keyString, name: strconv.FormatInt(i, 10)}
}

func (k PropertyKey) IsSymbol() bool  { return k.kind == keySymbol }
func (k PropertyKey) Name() string    { return k.name }
func (k PropertyKey) Symbol() *Symbol { return k.sym }

// Index reports whether k is the canonical form of an integer in
// [0, 2^53-1] and returns it.
func (k PropertyKey) Index() (int64, bool) {
	if k.kind != keyString {
		return 0, false
	}
	return parseIndex(k.name)
}

// ArrayIndex reports whether k is an array index, i.e. an integer below 2^32-1.
func (k PropertyKey) ArrayIndex() (int64, bool) {
	i, ok := k.Index()
	if !ok || i >= MaxArrayLength {
		return 0, false
	}
	return i, true
}

func (k PropertyKey) ToValue() Value {
	if k.kind == keySymbol {
		return SymbolValue(k.sym)
	}
	return NewString(k.name)
}

func (k PropertyKey) String() string {
	if k.kind == keySymbol {
		return k.sym.String()
	}
	return k.name
}

func parseIndex(s string) (int64, bool) {
	n := len(s)
	if n == 0 || n > 16 {
		return 0, false
	}
	if s[0] == '0' {
		return 0, n == 1
	}
	var v int64
	for i := 0; i < n; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
	}
	if v > MaxSafeInteger {
		return 0, false
	}
	return v, true
}

// PropertyDescriptor is both the stored form of a property (all Has* fields
// set for one kind) and the partial form passed to [[DefineOwnProperty]].
type PropertyDescriptor struct {
	Value        Value
	Get          Value
	Set          Value
	Writable     bool
	Enumerable   bool
	Configurable bool

	HasValue        bool
	HasGet          bool
	HasSet          bool
	HasWritable     bool
	HasEnumerable   bool
	HasConfigurable bool
}

func DataProperty(v Value, writable, enumerable, configurable bool) PropertyDescriptor {
	return PropertyDescriptor{
		Value: v, Writable: writable, Enumerable: enumerable, Configurable: configurable,
		HasValue: true, HasWritable: true, HasEnumerable: true, HasConfigurable: true,
	}
}

func AccessorProperty(get, set Value, enumerable, configurable bool) PropertyDescriptor {
	return PropertyDescriptor{
		Get: get, Set: set, Enumerable: enumerable, Configurable: configurable,
		HasGet: true, HasSet: true, HasEnumerable: true, HasConfigurable: true,
	}
}

// DefaultDataProperty is the descriptor CreateDataProperty uses.
func DefaultDataProperty(v Value) PropertyDescriptor {
	return DataProperty(v, true, true, true)
}

func (d PropertyDescriptor) IsAccessor() bool { return d.HasGet || d.HasSet }
func (d PropertyDescriptor) IsData() bool     { return d.HasValue || d.HasWritable }
func (d PropertyDescriptor) IsGeneric() bool  { return !d.IsAccessor() && !d.IsData() }

func (d PropertyDescriptor) isDefaultData() bool {
	return !d.IsAccessor() && d.Writable && d.Enumerable && d.Configurable
}

// validateAndApply implements ValidateAndApplyPropertyDescriptor without the
// store step: it returns the descriptor to store, or false when the change is
// not permitted.
func validateAndApply(extensible bool, desc PropertyDescriptor, current PropertyDescriptor, hasCurrent bool) (PropertyDescriptor, bool) {
	if !hasCurrent {
		if !extensible {
			return PropertyDescriptor{}, false
		}
		if desc.IsAccessor() {
			get, set := Undefined, Undefined
			if desc.HasGet {
				get = desc.Get
			}
			if desc.HasSet {
				set = desc.Set
			}
			return AccessorProperty(get, set, desc.Enumerable, desc.Configurable), true
		}
		v := Undefined
		if desc.HasValue {
			v = desc.Value
		}
		return DataProperty(v, desc.Writable, desc.Enumerable, desc.Configurable), true
	}

	if !current.Configurable {
		if desc.HasConfigurable && desc.Configurable {
			return PropertyDescriptor{}, false
		}
		if desc.HasEnumerable && desc.Enumerable != current.Enumerable {
			return PropertyDescriptor{}, false
		}
		if !desc.IsGeneric() && desc.IsAccessor() != current.IsAccessor() {
			return PropertyDescriptor{}, false
		}
		if current.IsAccessor() {
			if desc.HasGet && !SameValue(desc.Get, current.Get) {
				return PropertyDescriptor{}, false
			}
			if desc.HasSet && !SameValue(desc.Set, current.Set) {
				return PropertyDescriptor{}, false
			}
		} else if !current.Writable {
			if desc.HasWritable && desc.Writable {
				return PropertyDescriptor{}, false
			}
			if desc.HasValue && !SameValue(desc.Value, current.Value) {
				return PropertyDescriptor{}, false
			}
		}
	}

	result := current
	if !desc.IsGeneric() && desc.IsAccessor() != current.IsAccessor() {
		if desc.IsAccessor() {
			result = AccessorProperty(Undefined, Undefined, current.Enumerable, current.Configurable)
		} else {
			result = DataProperty(Undefined, false, current.Enumerable, current.Configurable)
		}
	}
	if desc.HasValue {
		result.Value = desc.Value
	}
	if desc.HasWritable {
		result.Writable = desc.Writable
	}
	if desc.HasGet {
		result.Get = desc.Get
	}
	if desc.HasSet {
		result.Set = desc.Set
	}
	if desc.HasEnumerable {
		result.Enumerable = desc.Enumerable
	}
	if desc.HasConfigurable {
		result.Configurable = desc.Configurable
	}
	return result, true
}

// ownStorage is the per-variant own-property layer. Ordinary objects use
// PlainObject directly; arrays and typed arrays override it.
type ownStorage interface {
	plain() *PlainObject
	getOwnProperty(key PropertyKey) (PropertyDescriptor, bool)
	defineOwnProperty(key PropertyKey, desc PropertyDescriptor) bool
	deleteOwnProperty(key PropertyKey) bool
	ownKeys() []PropertyKey
}

// PlainObject is the ordinary object: a prototype link, an extensible flag
// and an ordered property table. Integer-keyed properties are kept apart in
// ascending order so that index scans do not touch named properties.
type PlainObject struct {
	prototype  Value
	extensible bool
	class      string

	props map[PropertyKey]PropertyDescriptor
	order []PropertyKey

	elems    map[int64]PropertyDescriptor
	elemKeys []int64
}

func (o *PlainObject) init(proto Value, class string) {
	o.prototype = proto
	o.extensible = true
	o.class = class
}

// NewObject creates an ordinary object with the given prototype (an object
// or Null).
func NewObject(proto Value) Value {
	o := &PlainObject{}
	o.init(proto, "Object")
	return objectValue(TypeObject, unsafe.Pointer(o))
}

func (o *PlainObject) plain() *PlainObject { return o }

func (o *PlainObject) GetPrototype() Value { return o.prototype }

func (o *PlainObject) SetPrototype(proto Value) { o.prototype = proto }

func (o *PlainObject) IsExtensible() bool { return o.extensible }

// Class is the builtin tag reported by Object.prototype.toString.
func (o *PlainObject) Class() string { return o.class }

func (o *PlainObject) getOwnProperty(key PropertyKey) (PropertyDescriptor, bool) {
	if i, ok := key.Index(); ok {
		d, ok := o.elems[i]
		return d, ok
	}
	d, ok := o.props[key]
	return d, ok
}

func (o *PlainObject) defineOwnProperty(key PropertyKey, desc PropertyDescriptor) bool {
	current, has := o.getOwnProperty(key)
	next, ok := validateAndApply(o.extensible, desc, current, has)
	if !ok {
		return false
	}
	o.putOwn(key, next)
	return true
}

func (o *PlainObject) deleteOwnProperty(key PropertyKey) bool {
	d, has := o.getOwnProperty(key)
	if !has {
		return true
	}
	if !d.Configurable {
		return false
	}
	o.removeOwn(key)
	return true
}

// putOwn stores a complete descriptor without validation.
func (o *PlainObject) putOwn(key PropertyKey, desc PropertyDescriptor) {
	if i, ok := key.Index(); ok {
		if o.elems == nil {
			o.elems = make(map[int64]PropertyDescriptor)
		}
		if _, exists := o.elems[i]; !exists {
			pos := sort.Search(len(o.elemKeys), func(j int) bool { return o.elemKeys[j] >= i })
			o.elemKeys = append(o.elemKeys, 0)
			copy(o.elemKeys[pos+1:], o.elemKeys[pos:])
			o.elemKeys[pos] = i
		}
		o.elems[i] = desc
		return
	}
	if o.props == nil {
		o.props = make(map[PropertyKey]PropertyDescriptor)
	}
	if _, exists := o.props[key]; !exists {
		o.order = append(o.order, key)
	}
	o.props[key] = desc
}

func (o *PlainObject) removeOwn(key PropertyKey) {
	if i, ok := key.Index(); ok {
		if _, exists := o.elems[i]; !exists {
			return
		}
		delete(o.elems, i)
		pos := sort.Search(len(o.elemKeys), func(j int) bool { return o.elemKeys[j] >= i })
		o.elemKeys = append(o.elemKeys[:pos], o.elemKeys[pos+1:]...)
		return
	}
	if _, exists := o.props[key]; !exists {
		return
	}
	delete(o.props, key)
	for j, k := range o.order {
		if k == key {
			o.order = append(o.order[:j], o.order[j+1:]...)
			break
		}
	}
}

func (o *PlainObject) ownKeys() []PropertyKey {
	keys := make([]PropertyKey, 0, len(o.elemKeys)+len(o.order))
	for _, i := range o.elemKeys {
		keys = append(keys, IndexKey(i))
	}
	for _, k := range o.order {
		if !k.IsSymbol() {
			keys = append(keys, k)
		}
	}
	for _, k := range o.order {
		if k.IsSymbol() {
			keys = append(keys, k)
		}
	}
	return keys
}

// nextOwnIndex returns the smallest own integer key in [from, limit), or limit.
func (o *PlainObject) nextOwnIndex(from, limit int64) int64 {
	pos := sort.Search(len(o.elemKeys), func(j int) bool { return o.elemKeys[j] >= from })
	if pos < len(o.elemKeys) && o.elemKeys[pos] < limit {
		return o.elemKeys[pos]
	}
	return limit
}

// prevOwnIndex returns the largest own integer key in (limit, from], or limit.
func (o *PlainObject) prevOwnIndex(from, limit int64) int64 {
	pos := sort.Search(len(o.elemKeys), func(j int) bool { return o.elemKeys[j] > from }) - 1
	if pos >= 0 && o.elemKeys[pos] > limit {
		return o.elemKeys[pos]
	}
	return limit
}

// --- Convenience definers used while building builtins ---

// SetOwn defines or overwrites an enumerable, writable, configurable data property.
func (o *PlainObject) SetOwn(name string, value Value) {
	o.putOwn(StringKey(name), DefaultDataProperty(value))
}

// SetOwnNonEnumerable defines a writable, configurable, non-enumerable data
// property. This is the shape of builtin methods.
func (o *PlainObject) SetOwnNonEnumerable(name string, value Value) {
	o.putOwn(StringKey(name), DataProperty(value, true, false, true))
}

// SetOwnSymbolNonEnumerable is SetOwnNonEnumerable for a symbol key.
func (o *PlainObject) SetOwnSymbolNonEnumerable(sym *Symbol, value Value) {
	o.putOwn(SymbolKey(sym), DataProperty(value, true, false, true))
}

// DefineOwnPropertyFlags stores a data property with explicit attributes.
func (o *PlainObject) DefineOwnPropertyFlags(key PropertyKey, value Value, writable, enumerable, configurable bool) {
	o.putOwn(key, DataProperty(value, writable, enumerable, configurable))
}

// DefineAccessorProperty stores a getter/setter pair.
func (o *PlainObject) DefineAccessorProperty(key PropertyKey, getter, setter Value, enumerable, configurable bool) {
	o.putOwn(key, AccessorProperty(getter, setter, enumerable, configurable))
}

// GetOwn returns the value of an own data property.
func (o *PlainObject) GetOwn(name string) (Value, bool) {
	d, ok := o.getOwnProperty(StringKey(name))
	if !ok || d.IsAccessor() {
		return Undefined, false
	}
	return d.Value, true
}

func (o *PlainObject) HasOwn(name string) bool {
	_, ok := o.getOwnProperty(StringKey(name))
	return ok
}

// OwnKeys lists own string keys in property order.
func (o *PlainObject) OwnKeys() []string {
	var names []string
	for _, k := range o.ownKeys() {
		if !k.IsSymbol() {
			names = append(names, k.name)
		}
	}
	return names
}

// HostObject carries an opaque embedder payload, e.g. a WebAssembly module.
type HostObject struct {
	PlainObject
	Data any
}

func NewHostObject(proto Value, class string, data any) Value {
	h := &HostObject{Data: data}
	h.init(proto, class)
	return objectValue(TypeHostObject, unsafe.Pointer(h))
}
