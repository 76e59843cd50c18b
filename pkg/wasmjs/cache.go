package wasmjs

import (
	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

// CacheMap keeps the identity of values crossing the wasm boundary. An
// object passed in as an externref comes back out as the same object, and a
// wasm function, global or memory always surfaces as the same JS wrapper.
// A CacheMap belongs to one VM and is not synchronized.
type CacheMap struct {
	externs   []vm.Value // handle-1 to value
	externIDs map[vm.Value]uint64

	functions map[wasm.Callable]vm.Value
	globals   map[*wasm.Global]vm.Value
	memories  map[*wasm.Memory]vm.Value
	tables    map[*wasm.Table]vm.Value

	// buffers holds the ArrayBuffer currently aliasing each memory.
	buffers map[*wasm.Memory]vm.Value
}

func newCacheMap() *CacheMap {
	return &CacheMap{
		externIDs: make(map[vm.Value]uint64),
		functions: make(map[wasm.Callable]vm.Value),
		globals:   make(map[*wasm.Global]vm.Value),
		memories:  make(map[*wasm.Memory]vm.Value),
		tables:    make(map[*wasm.Table]vm.Value),
		buffers:   make(map[*wasm.Memory]vm.Value),
	}
}

// ExternHandle returns the non-zero handle standing for v, assigning one on
// first sight.
func (c *CacheMap) ExternHandle(v vm.Value) uint64 {
	if h, ok := c.externIDs[v]; ok {
		return h
	}
	c.externs = append(c.externs, v)
	h := uint64(len(c.externs))
	c.externIDs[v] = h
	return h
}

// ExternValue is the reverse lookup of ExternHandle.
func (c *CacheMap) ExternValue(h uint64) (vm.Value, bool) {
	if h == 0 || h > uint64(len(c.externs)) {
		return vm.Undefined, false
	}
	return c.externs[h-1], true
}

// Len reports how many distinct externref values have been seen.
func (c *CacheMap) Len() int { return len(c.externs) }
