package vm

import (
	"math"
	"unsafe"
	"weak"
)

// collectionKey is the hashable form of a value under SameValueZero.
type collectionKey struct {
	typ ValueType
	num uint64
	str string
	ptr unsafe.Pointer
}

var canonicalNaNBits = math.Float64bits(math.NaN())

func keyOf(v Value) collectionKey {
	switch v.typ {
	case TypeFloatNumber, TypeIntegerNumber:
		f := v.AsNumber()
		switch {
		case math.IsNaN(f):
			return collectionKey{typ: TypeFloatNumber, num: canonicalNaNBits}
		case f == 0:
			return collectionKey{typ: TypeFloatNumber}
		}
		return collectionKey{typ: TypeFloatNumber, num: math.Float64bits(f)}
	case TypeString:
		return collectionKey{typ: TypeString, str: v.AsString()}
	case TypeBigInt:
		return collectionKey{typ: TypeBigInt, str: v.AsBigInt().String()}
	case TypeBoolean:
		return collectionKey{typ: TypeBoolean, num: v.payload}
	case TypeUndefined, TypeNull:
		return collectionKey{typ: v.typ}
	}
	return collectionKey{typ: TypeObject, ptr: v.obj}
}

// normalizeKey turns -0 into +0 as Map.prototype.set and Set.prototype.add do.
func normalizeKey(v Value) Value {
	if v.IsNumber() && v.AsNumber() == 0 {
		return IntegerValue(0)
	}
	return v
}

type storeEntry struct {
	key     Value
	value   Value
	deleted bool
}

// orderedStore is an insertion-ordered sequence with tombstones. Deleting
// marks an entry instead of removing it, so cursors held by live iterators
// stay valid while the collection is mutated.
type orderedStore struct {
	entries []storeEntry
	index   map[collectionKey]int
	size    int
}

func (s *orderedStore) lookup(key Value) (int, bool) {
	if s.index == nil {
		return 0, false
	}
	i, ok := s.index[keyOf(key)]
	return i, ok
}

func (s *orderedStore) get(key Value) (Value, bool) {
	if i, ok := s.lookup(key); ok {
		return s.entries[i].value, true
	}
	return Undefined, false
}

func (s *orderedStore) set(key, value Value) {
	if i, ok := s.lookup(key); ok {
		s.entries[i].value = value
		return
	}
	if s.index == nil {
		s.index = make(map[collectionKey]int)
	}
	key = normalizeKey(key)
	s.index[keyOf(key)] = len(s.entries)
	s.entries = append(s.entries, storeEntry{key: key, value: value})
	s.size++
}

func (s *orderedStore) remove(key Value) bool {
	i, ok := s.lookup(key)
	if !ok {
		return false
	}
	delete(s.index, keyOf(key))
	s.entries[i] = storeEntry{key: Hole, value: Undefined, deleted: true}
	s.size--
	return true
}

func (s *orderedStore) clear() {
	for i := range s.entries {
		s.entries[i] = storeEntry{key: Hole, value: Undefined, deleted: true}
	}
	clear(s.index)
	s.size = 0
}

// next returns the first live entry at or after cursor and the cursor to
// resume from.
func (s *orderedStore) next(cursor int) (int, Value, Value, bool) {
	for cursor < len(s.entries) {
		e := s.entries[cursor]
		cursor++
		if !e.deleted {
			return cursor, e.key, e.value, true
		}
	}
	return cursor, Undefined, Undefined, false
}

// MapObject is a Map instance.
type MapObject struct {
	PlainObject
	store orderedStore
}

func (vm *VM) NewMap(proto Value) Value {
	if proto.IsUndefined() {
		proto = vm.realm.MapPrototype
	}
	m := &MapObject{}
	m.init(proto, "Map")
	return objectValue(TypeMap, unsafe.Pointer(m))
}

func (m *MapObject) Get(key Value) (Value, bool) { return m.store.get(key) }
func (m *MapObject) Set(key, value Value)        { m.store.set(key, value) }
func (m *MapObject) Has(key Value) bool {
	_, ok := m.store.lookup(key)
	return ok
}
func (m *MapObject) Delete(key Value) bool { return m.store.remove(key) }
func (m *MapObject) Clear()                { m.store.clear() }
func (m *MapObject) Size() int             { return m.store.size }

// Next advances a cursor over live entries.
func (m *MapObject) Next(cursor int) (int, Value, Value, bool) { return m.store.next(cursor) }

// SetObject is a Set instance.
type SetObject struct {
	PlainObject
	store orderedStore
}

func (vm *VM) NewSet(proto Value) Value {
	if proto.IsUndefined() {
		proto = vm.realm.SetPrototype
	}
	s := &SetObject{}
	s.init(proto, "Set")
	return objectValue(TypeSet, unsafe.Pointer(s))
}

func (s *SetObject) Add(value Value) { s.store.set(value, value) }
func (s *SetObject) Has(value Value) bool {
	_, ok := s.store.lookup(value)
	return ok
}
func (s *SetObject) Delete(value Value) bool { return s.store.remove(value) }
func (s *SetObject) Clear()                  { s.store.clear() }
func (s *SetObject) Size() int               { return s.store.size }

// Next advances a cursor over live members.
func (s *SetObject) Next(cursor int) (int, Value, bool) {
	c, k, _, ok := s.store.next(cursor)
	return c, k, ok
}

// WeakMapEntry holds a weak reference to the key and a strong reference to the value
type WeakMapEntry struct {
	keyWeak weak.Pointer[byte]
	value   Value
}

// WeakMapObject holds its keys weakly through Go's weak package. Keys are
// objects or unregistered symbols; callers check CanBeHeldWeakly.
//
// Values are held strongly, so this is not an ephemeron table: a value that
// references its own key keeps that key alive for as long as the map lives.
// Entries whose keys were collected are dropped by a sweep that Set runs
// once the table has doubled since the last sweep.
type WeakMapObject struct {
	PlainObject
	entries map[uintptr]*WeakMapEntry
	sweepAt int
}

// minWeakSweep is the table size below which dead entries are left alone.
const minWeakSweep = 64

// nextSweep returns the table size that triggers the next sweep.
func nextSweep(live int) int {
	return max(2*live, minWeakSweep)
}

func (vm *VM) NewWeakMap(proto Value) Value {
	if proto.IsUndefined() {
		proto = vm.realm.WeakMapPrototype
	}
	wm := &WeakMapObject{entries: make(map[uintptr]*WeakMapEntry), sweepAt: minWeakSweep}
	wm.init(proto, "WeakMap")
	return objectValue(TypeWeakMap, unsafe.Pointer(wm))
}

func weakKeyable(v Value) bool {
	return v.IsObject() || v.IsSymbol()
}

func (wm *WeakMapObject) live(key Value) (*WeakMapEntry, bool) {
	if !weakKeyable(key) {
		return nil, false
	}
	ptr := uintptr(key.obj)
	entry, ok := wm.entries[ptr]
	if !ok {
		return nil, false
	}
	// A collected key can leave an entry whose address was reused.
	if entry.keyWeak.Value() != (*byte)(key.obj) {
		delete(wm.entries, ptr)
		return nil, false
	}
	return entry, true
}

// Set stores value under key. It reports false when key cannot be held weakly.
func (wm *WeakMapObject) Set(key, value Value) bool {
	if !weakKeyable(key) {
		return false
	}
	if entry, ok := wm.live(key); ok {
		entry.value = value
		return true
	}
	if len(wm.entries) >= wm.sweepAt {
		wm.sweep()
	}
	wm.entries[uintptr(key.obj)] = &WeakMapEntry{keyWeak: weak.Make((*byte)(key.obj)), value: value}
	return true
}

// sweep drops entries whose keys have been collected.
func (wm *WeakMapObject) sweep() {
	for ptr, entry := range wm.entries {
		if entry.keyWeak.Value() == nil {
			delete(wm.entries, ptr)
		}
	}
	wm.sweepAt = nextSweep(len(wm.entries))
}

func (wm *WeakMapObject) Get(key Value) (Value, bool) {
	if entry, ok := wm.live(key); ok {
		return entry.value, true
	}
	return Undefined, false
}

func (wm *WeakMapObject) Has(key Value) bool {
	_, ok := wm.live(key)
	return ok
}

func (wm *WeakMapObject) Delete(key Value) bool {
	if _, ok := wm.live(key); !ok {
		return false
	}
	delete(wm.entries, uintptr(key.obj))
	return true
}

// WeakSetObject is the key-only variant of WeakMapObject and sweeps the
// same way on Add.
type WeakSetObject struct {
	PlainObject
	entries map[uintptr]weak.Pointer[byte]
	sweepAt int
}

func (vm *VM) NewWeakSet(proto Value) Value {
	if proto.IsUndefined() {
		proto = vm.realm.WeakSetPrototype
	}
	ws := &WeakSetObject{entries: make(map[uintptr]weak.Pointer[byte]), sweepAt: minWeakSweep}
	ws.init(proto, "WeakSet")
	return objectValue(TypeWeakSet, unsafe.Pointer(ws))
}

func (ws *WeakSetObject) Add(value Value) bool {
	if !weakKeyable(value) {
		return false
	}
	if !ws.Has(value) {
		if len(ws.entries) >= ws.sweepAt {
			ws.sweep()
		}
		ws.entries[uintptr(value.obj)] = weak.Make((*byte)(value.obj))
	}
	return true
}

func (ws *WeakSetObject) sweep() {
	for ptr, wp := range ws.entries {
		if wp.Value() == nil {
			delete(ws.entries, ptr)
		}
	}
	ws.sweepAt = nextSweep(len(ws.entries))
}

func (ws *WeakSetObject) Has(value Value) bool {
	if !weakKeyable(value) {
		return false
	}
	ptr := uintptr(value.obj)
	wp, ok := ws.entries[ptr]
	if !ok {
		return false
	}
	if wp.Value() != (*byte)(value.obj) {
		delete(ws.entries, ptr)
		return false
	}
	return true
}

func (ws *WeakSetObject) Delete(value Value) bool {
	if !ws.Has(value) {
		return false
	}
	delete(ws.entries, uintptr(value.obj))
	return true
}
