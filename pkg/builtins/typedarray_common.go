package builtins

import (
	"math"

	"github.com/corvidjs/corvid/pkg/vm"
)

// validateTypedArray implements ValidateTypedArray: the receiver must be a
// typed array over a live buffer.
func validateTypedArray(vmInstance *vm.VM, v vm.Value, method string) (*vm.TypedArrayObject, error) {
	if v.Type() != vm.TypeTypedArray {
		return nil, vmInstance.NewTypeErrorf("%s: this is not a typed array", method)
	}
	ta := v.AsTypedArray()
	if ta.Buffer().AsArrayBuffer().IsDetached() {
		return nil, vmInstance.NewTypeErrorf("Cannot perform %s on a detached ArrayBuffer", method)
	}
	return ta, nil
}

// typedArrayMethod reuses a generic Array.prototype algorithm for
// %TypedArray%.prototype after validating the receiver. The typed array
// variant of the indexed protocol answers every index from the view.
func typedArrayMethod(name string, fn arrayFunc) arrayFunc {
	return func(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
		if _, err := validateTypedArray(vmInstance, vmInstance.GetThis(), "%TypedArray%.prototype."+name); err != nil {
			return vm.Undefined, err
		}
		return fn(vmInstance, args)
	}
}

// typedArrayOffset validates a byteOffset argument against the element size.
func typedArrayOffset(vmInstance *vm.VM, v vm.Value, kind vm.TypedArrayKind) (int64, error) {
	offset, err := vmInstance.ToIndex(v)
	if err != nil {
		return 0, err
	}
	if offset%int64(kind.BytesPerElement()) != 0 {
		return 0, vmInstance.NewRangeError("start offset of " + kind.Name() + " should be a multiple of " + vm.NumberToString(float64(kind.BytesPerElement())))
	}
	return offset, nil
}

// allocateTypedArray creates a zeroed view of length elements on a fresh
// buffer.
func allocateTypedArray(vmInstance *vm.VM, kind vm.TypedArrayKind, length int64, proto vm.Value) (vm.Value, error) {
	size := length * int64(kind.BytesPerElement())
	if size > maxByteLength {
		return vm.Undefined, vmInstance.NewRangeError("Invalid typed array length: " + vm.NumberToString(float64(length)))
	}
	ta := vmInstance.NewTypedArray(kind, vmInstance.NewArrayBuffer(make([]byte, size)), 0, int(length))
	ta.AsPlainObject().SetPrototype(proto)
	return ta, nil
}

// typedArrayFromBuffer implements InitializeTypedArrayFromArrayBuffer.
func typedArrayFromBuffer(vmInstance *vm.VM, kind vm.TypedArrayKind, buffer, offsetArg, lengthArg, proto vm.Value) (vm.Value, error) {
	size := int64(kind.BytesPerElement())
	offset, err := typedArrayOffset(vmInstance, offsetArg, kind)
	if err != nil {
		return vm.Undefined, err
	}
	var newLength int64
	if !lengthArg.IsUndefined() {
		if newLength, err = vmInstance.ToIndex(lengthArg); err != nil {
			return vm.Undefined, err
		}
	}
	buf := buffer.AsArrayBuffer()
	if buf.IsDetached() {
		return vm.Undefined, vmInstance.NewTypeError("Cannot construct a typed array on a detached ArrayBuffer")
	}
	bufferLength := int64(buf.ByteLength())
	var byteLength int64
	if lengthArg.IsUndefined() {
		if bufferLength%size != 0 {
			return vm.Undefined, vmInstance.NewRangeError("byte length of " + kind.Name() + " should be a multiple of " + vm.NumberToString(float64(size)))
		}
		if byteLength = bufferLength - offset; byteLength < 0 {
			return vm.Undefined, vmInstance.NewRangeError("Start offset " + vm.NumberToString(float64(offset)) + " is outside the bounds of the buffer")
		}
	} else {
		byteLength = newLength * size
		if offset+byteLength > bufferLength {
			return vm.Undefined, vmInstance.NewRangeError("Invalid typed array length: " + vm.NumberToString(float64(newLength)))
		}
	}
	ta := vmInstance.NewTypedArray(kind, buffer, int(offset), int(byteLength/size))
	ta.AsPlainObject().SetPrototype(proto)
	return ta, nil
}

// typedArraySort is %TypedArray%.prototype.sort: without a comparator the
// elements sort numerically, NaN last and -0 before +0.
func typedArraySort(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	comparefn := arg(args, 0)
	if err := requireComparator(vmInstance, comparefn, "%TypedArray%.prototype.sort"); err != nil {
		return vm.Undefined, err
	}
	this := vmInstance.GetThis()
	ta, err := validateTypedArray(vmInstance, this, "%TypedArray%.prototype.sort")
	if err != nil {
		return vm.Undefined, err
	}
	items := make([]vm.Value, ta.Length())
	for k := range items {
		items[k] = ta.GetElement(int64(k))
	}
	cmp := sortCompare(vmInstance, comparefn)
	if comparefn.IsUndefined() {
		cmp = func(x, y vm.Value) (int, error) { return compareNumeric(x, y), nil }
	}
	if err := mergeSort(items, cmp); err != nil {
		return vm.Undefined, err
	}
	// A comparator may have shrunk the buffer; SetElement ignores writes
	// past the current length.
	for k, v := range items {
		ta.SetElement(int64(k), v)
	}
	return this, nil
}

func compareNumeric(x, y vm.Value) int {
	if x.IsBigInt() {
		return x.AsBigInt().Cmp(y.AsBigInt())
	}
	a, b := x.AsNumber(), y.AsNumber()
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return 1
	case math.IsNaN(b):
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	case a == 0 && b == 0:
		if math.Signbit(a) && !math.Signbit(b) {
			return -1
		}
		if !math.Signbit(a) && math.Signbit(b) {
			return 1
		}
	}
	return 0
}
