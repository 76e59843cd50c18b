package wasmjs

import (
	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

type instanceData struct {
	inst    *wasm.Instance
	exports vm.Value
}

func (b *Bridge) wrapModule(m *wasm.Module, proto vm.Value) vm.Value {
	return vm.NewHostObject(proto, "WebAssembly.Module", m)
}

func (b *Bridge) wrapInstance(inst *wasm.Instance, proto vm.Value) (vm.Value, error) {
	exports, err := b.exportsObject(inst)
	if err != nil {
		return vm.Undefined, err
	}
	return vm.NewHostObject(proto, "WebAssembly.Instance", &instanceData{inst: inst, exports: exports}), nil
}

func (b *Bridge) wrapGlobal(g *wasm.Global, proto vm.Value) vm.Value {
	if v, ok := b.cache.globals[g]; ok {
		return v
	}
	v := vm.NewHostObject(proto, "WebAssembly.Global", g)
	b.cache.globals[g] = v
	return v
}

func (b *Bridge) wrapMemory(mem *wasm.Memory, proto vm.Value) vm.Value {
	if v, ok := b.cache.memories[mem]; ok {
		return v
	}
	v := vm.NewHostObject(proto, "WebAssembly.Memory", mem)
	b.cache.memories[mem] = v
	return v
}

func (b *Bridge) wrapTable(t *wasm.Table, proto vm.Value) vm.Value {
	if v, ok := b.cache.tables[t]; ok {
		return v
	}
	v := vm.NewHostObject(proto, "WebAssembly.Table", t)
	b.cache.tables[t] = v
	return v
}

// memoryBuffer returns the ArrayBuffer aliasing mem's bytes. A buffer that
// no longer covers the current bytes is detached and replaced.
func (b *Bridge) memoryBuffer(mem *wasm.Memory) vm.Value {
	data := mem.Bytes()
	if buf, ok := b.cache.buffers[mem]; ok {
		ab := buf.AsArrayBuffer()
		cur := ab.GetData()
		if !ab.IsDetached() && len(cur) == len(data) && (len(data) == 0 || &cur[0] == &data[0]) {
			return buf
		}
		ab.Detach()
	}
	buf := b.vm.NewArrayBuffer(data)
	b.cache.buffers[mem] = buf
	return buf
}

// detachBuffer detaches the current buffer of mem, if any.
func (b *Bridge) detachBuffer(mem *wasm.Memory) {
	if buf, ok := b.cache.buffers[mem]; ok {
		buf.AsArrayBuffer().Detach()
		delete(b.cache.buffers, mem)
	}
}

// bufferSource copies the bytes of an ArrayBuffer or typed array.
func (b *Bridge) bufferSource(v vm.Value) ([]byte, error) {
	switch v.Type() {
	case vm.TypeArrayBuffer:
		return append([]byte(nil), v.AsArrayBuffer().GetData()...), nil
	case vm.TypeTypedArray:
		ta := v.AsTypedArray()
		ab := ta.Buffer().AsArrayBuffer()
		data := ab.GetData()
		start := ta.ByteOffset()
		end := start + ta.Length()*ta.Kind().BytesPerElement()
		if ab.IsDetached() || end > len(data) {
			return nil, nil
		}
		return append([]byte(nil), data[start:end]...), nil
	}
	return nil, b.vm.NewTypeError("first argument must be an ArrayBuffer or typed array object")
}

// thisData returns the payload of the receiver, which must be a host object
// of type T.
func thisData[T any](b *Bridge, class string) (T, error) {
	d, ok := hostData[T](b.vm.GetThis())
	if !ok {
		return d, b.vm.NewTypeErrorf("receiver is not a %s", class)
	}
	return d, nil
}
