package vm

import (
	"encoding/binary"
	"math"
	"math/big"
	"unsafe"
)

// TypedArrayKind represents the different typed array types
type TypedArrayKind uint8

const (
	TypedArrayInt8 TypedArrayKind = iota
	TypedArrayUint8
	TypedArrayUint8Clamped
	TypedArrayInt16
	TypedArrayUint16
	TypedArrayInt32
	TypedArrayUint32
	TypedArrayFloat32
	TypedArrayFloat64
	TypedArrayBigInt64
	TypedArrayBigUint64
)

// TypedArrayKinds lists every kind in constructor installation order.
var TypedArrayKinds = []TypedArrayKind{
	TypedArrayInt8, TypedArrayUint8, TypedArrayUint8Clamped, TypedArrayInt16, TypedArrayUint16,
	TypedArrayInt32, TypedArrayUint32, TypedArrayFloat32, TypedArrayFloat64,
	TypedArrayBigInt64, TypedArrayBigUint64,
}

// BytesPerElement returns the element size for each typed array kind
func (kind TypedArrayKind) BytesPerElement() int {
	switch kind {
	case TypedArrayInt8, TypedArrayUint8, TypedArrayUint8Clamped:
		return 1
	case TypedArrayInt16, TypedArrayUint16:
		return 2
	case TypedArrayInt32, TypedArrayUint32, TypedArrayFloat32:
		return 4
	case TypedArrayFloat64, TypedArrayBigInt64, TypedArrayBigUint64:
		return 8
	default:
		return 0
	}
}

// IsBigInt reports whether elements are BigInt values.
func (kind TypedArrayKind) IsBigInt() bool {
	return kind == TypedArrayBigInt64 || kind == TypedArrayBigUint64
}

// Name returns the ECMAScript constructor name for this TypedArray kind
func (kind TypedArrayKind) Name() string {
	switch kind {
	case TypedArrayInt8:
		return "Int8Array"
	case TypedArrayUint8:
		return "Uint8Array"
	case TypedArrayUint8Clamped:
		return "Uint8ClampedArray"
	case TypedArrayInt16:
		return "Int16Array"
	case TypedArrayUint16:
		return "Uint16Array"
	case TypedArrayInt32:
		return "Int32Array"
	case TypedArrayUint32:
		return "Uint32Array"
	case TypedArrayFloat32:
		return "Float32Array"
	case TypedArrayFloat64:
		return "Float64Array"
	case TypedArrayBigInt64:
		return "BigInt64Array"
	case TypedArrayBigUint64:
		return "BigUint64Array"
	default:
		return "TypedArray"
	}
}

// ArrayBufferObject represents a raw binary data buffer. A WebAssembly
// memory buffer aliases the memory's bytes until the memory grows.
type ArrayBufferObject struct {
	PlainObject
	data     []byte
	detached bool
}

func (vm *VM) NewArrayBuffer(data []byte) Value {
	ab := &ArrayBufferObject{data: data}
	ab.init(vm.realm.ArrayBufferPrototype, "ArrayBuffer")
	return objectValue(TypeArrayBuffer, unsafe.Pointer(ab))
}

// GetData returns the underlying byte slice
func (ab *ArrayBufferObject) GetData() []byte {
	return ab.data
}

func (ab *ArrayBufferObject) ByteLength() int {
	return len(ab.data)
}

// IsDetached returns whether the buffer has been detached
func (ab *ArrayBufferObject) IsDetached() bool {
	return ab.detached
}

// Detach detaches the ArrayBuffer, making it unusable
func (ab *ArrayBufferObject) Detach() {
	ab.detached = true
	ab.data = nil
}

// TypedArrayObject is an integer-indexed exotic object over an ArrayBuffer.
type TypedArrayObject struct {
	PlainObject
	kind       TypedArrayKind
	buffer     *ArrayBufferObject
	bufferVal  Value
	byteOffset int
	length     int
}

// NewTypedArray creates a view of length elements over buffer.
func (vm *VM) NewTypedArray(kind TypedArrayKind, buffer Value, byteOffset, length int) Value {
	ta := &TypedArrayObject{
		kind:       kind,
		buffer:     buffer.AsArrayBuffer(),
		bufferVal:  buffer,
		byteOffset: byteOffset,
		length:     length,
	}
	ta.init(vm.realm.TypedArrayPrototypes[kind], kind.Name())
	return objectValue(TypeTypedArray, unsafe.Pointer(ta))
}

func (ta *TypedArrayObject) Kind() TypedArrayKind { return ta.kind }
func (ta *TypedArrayObject) Buffer() Value        { return ta.bufferVal }
func (ta *TypedArrayObject) ByteOffset() int      { return ta.byteOffset }

// Length is zero once the buffer is detached.
func (ta *TypedArrayObject) Length() int {
	if ta.buffer.IsDetached() {
		return 0
	}
	return ta.length
}

func (ta *TypedArrayObject) validIndex(i int64) bool {
	return i >= 0 && i < int64(ta.Length())
}

// GetElement reads element i; out-of-range reads return Undefined.
func (ta *TypedArrayObject) GetElement(i int64) Value {
	if !ta.validIndex(i) {
		return Undefined
	}
	offset := ta.byteOffset + int(i)*ta.kind.BytesPerElement()
	data := ta.buffer.data[offset:]

	switch ta.kind {
	case TypedArrayInt8:
		return IntegerValue(int32(int8(data[0])))
	case TypedArrayUint8, TypedArrayUint8Clamped:
		return IntegerValue(int32(data[0]))
	case TypedArrayInt16:
		return IntegerValue(int32(int16(binary.LittleEndian.Uint16(data))))
	case TypedArrayUint16:
		return IntegerValue(int32(binary.LittleEndian.Uint16(data)))
	case TypedArrayInt32:
		return IntegerValue(int32(binary.LittleEndian.Uint32(data)))
	case TypedArrayUint32:
		return NumberValue(float64(binary.LittleEndian.Uint32(data)))
	case TypedArrayFloat32:
		return NumberValue(float64(math.Float32frombits(binary.LittleEndian.Uint32(data))))
	case TypedArrayFloat64:
		return NumberValue(math.Float64frombits(binary.LittleEndian.Uint64(data)))
	case TypedArrayBigInt64:
		return NewBigInt(big.NewInt(int64(binary.LittleEndian.Uint64(data))))
	case TypedArrayBigUint64:
		return NewBigInt(new(big.Int).SetUint64(binary.LittleEndian.Uint64(data)))
	}
	return Undefined
}

// SetElement writes an already-converted number or BigInt at i. Writes
// outside the current length are ignored.
func (ta *TypedArrayObject) SetElement(i int64, value Value) {
	if !ta.validIndex(i) {
		return
	}
	offset := ta.byteOffset + int(i)*ta.kind.BytesPerElement()
	data := ta.buffer.data[offset:]

	if ta.kind.IsBigInt() {
		binary.LittleEndian.PutUint64(data, BigIntToUint64(value.AsBigInt()))
		return
	}
	num := value.AsNumber()
	switch ta.kind {
	case TypedArrayInt8, TypedArrayUint8:
		data[0] = byte(float64ToUint32(num))
	case TypedArrayUint8Clamped:
		data[0] = clampUint8(num)
	case TypedArrayInt16, TypedArrayUint16:
		binary.LittleEndian.PutUint16(data, uint16(float64ToUint32(num)))
	case TypedArrayInt32, TypedArrayUint32:
		binary.LittleEndian.PutUint32(data, float64ToUint32(num))
	case TypedArrayFloat32:
		binary.LittleEndian.PutUint32(data, math.Float32bits(float32(num)))
	case TypedArrayFloat64:
		binary.LittleEndian.PutUint64(data, math.Float64bits(num))
	}
}

func clampUint8(f float64) byte {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	// Round half to even.
	return byte(math.RoundToEven(f))
}

func (ta *TypedArrayObject) getOwnProperty(key PropertyKey) (PropertyDescriptor, bool) {
	if i, ok := key.Index(); ok {
		if !ta.validIndex(i) {
			return PropertyDescriptor{}, false
		}
		return DefaultDataProperty(ta.GetElement(i)), true
	}
	return ta.PlainObject.getOwnProperty(key)
}

func (ta *TypedArrayObject) defineOwnProperty(key PropertyKey, desc PropertyDescriptor) bool {
	if i, ok := key.Index(); ok {
		if !ta.validIndex(i) || desc.IsAccessor() {
			return false
		}
		if (desc.HasConfigurable && !desc.Configurable) || (desc.HasEnumerable && !desc.Enumerable) || (desc.HasWritable && !desc.Writable) {
			return false
		}
		if desc.HasValue {
			ta.SetElement(i, desc.Value)
		}
		return true
	}
	return ta.PlainObject.defineOwnProperty(key, desc)
}

func (ta *TypedArrayObject) deleteOwnProperty(key PropertyKey) bool {
	if i, ok := key.Index(); ok {
		return !ta.validIndex(i)
	}
	return ta.PlainObject.deleteOwnProperty(key)
}

func (ta *TypedArrayObject) ownKeys() []PropertyKey {
	n := ta.Length()
	keys := make([]PropertyKey, 0, n+len(ta.order))
	for i := 0; i < n; i++ {
		keys = append(keys, IndexKey(int64(i)))
	}
	return append(keys, ta.PlainObject.ownKeys()...)
}
