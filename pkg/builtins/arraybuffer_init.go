package builtins

import (
	"github.com/corvidjs/corvid/pkg/vm"
)

type ArrayBufferInitializer struct{}

func (a *ArrayBufferInitializer) Name() string       { return "ArrayBuffer" }
func (a *ArrayBufferInitializer) Requires() []string { return []string{"Function"} }

func (a *ArrayBufferInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	bufferProto := ctx.Realm.ArrayBufferPrototype

	thisBuffer := func(method string) (*vm.ArrayBufferObject, error) {
		this := vmInstance.GetThis()
		if this.Type() != vm.TypeArrayBuffer {
			return nil, vmInstance.NewTypeErrorf("Method ArrayBuffer.prototype.%s called on incompatible receiver %s", method, this.Inspect())
		}
		return this.AsArrayBuffer(), nil
	}

	defineGetter(vmInstance, bufferProto, "byteLength", func(args []vm.Value) (vm.Value, error) {
		buf, err := thisBuffer("byteLength")
		if err != nil {
			return vm.Undefined, err
		}
		return vm.IndexValue(int64(buf.ByteLength())), nil
	})
	defineGetter(vmInstance, bufferProto, "detached", func(args []vm.Value) (vm.Value, error) {
		buf, err := thisBuffer("detached")
		if err != nil {
			return vm.Undefined, err
		}
		return vm.BooleanValue(buf.IsDetached()), nil
	})
	defineMethods(vmInstance, bufferProto, []methodSpec{
		{"slice", 2, func(args []vm.Value) (vm.Value, error) {
			buf, err := thisBuffer("slice")
			if err != nil {
				return vm.Undefined, err
			}
			if buf.IsDetached() {
				return vm.Undefined, vmInstance.NewTypeError("Cannot perform ArrayBuffer.prototype.slice on a detached ArrayBuffer")
			}
			n := int64(buf.ByteLength())
			first, err := vmInstance.RelativeIndex(arg(args, 0), n, 0)
			if err != nil {
				return vm.Undefined, err
			}
			final, err := vmInstance.RelativeIndex(arg(args, 1), n, n)
			if err != nil {
				return vm.Undefined, err
			}
			size := max(final-first, 0)
			data := make([]byte, size)
			copy(data, buf.GetData()[first:first+size])
			return vmInstance.NewArrayBuffer(data), nil
		}},
	})
	defineToStringTag(bufferProto, "ArrayBuffer")

	bufferCtor := vmInstance.NewNativeConstructor(1, "ArrayBuffer", func(args []vm.Value) (vm.Value, error) {
		if err := requireNew(vmInstance, "ArrayBuffer"); err != nil {
			return vm.Undefined, err
		}
		n, err := vmInstance.ToIndex(arg(args, 0))
		if err != nil {
			return vm.Undefined, err
		}
		if n > maxByteLength {
			return vm.Undefined, vmInstance.NewRangeError("Array buffer allocation failed")
		}
		proto, err := prototypeForNew(vmInstance, bufferProto)
		if err != nil {
			return vm.Undefined, err
		}
		buf := vmInstance.NewArrayBuffer(make([]byte, n))
		buf.AsPlainObject().SetPrototype(proto)
		return buf, nil
	})
	vm.LinkConstructor(bufferCtor, bufferProto)
	defineSpecies(vmInstance, bufferCtor)
	defineMethods(vmInstance, bufferCtor, []methodSpec{
		{"isView", 1, func(args []vm.Value) (vm.Value, error) {
			return vm.BooleanValue(arg(args, 0).Type() == vm.TypeTypedArray), nil
		}},
	})

	return ctx.DefineGlobal("ArrayBuffer", bufferCtor)
}

// maxByteLength bounds ArrayBuffer allocations.
const maxByteLength = 1 << 32
