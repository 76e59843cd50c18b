// Package wasmjs exposes the wasm engine to JavaScript: value conversion
// across the boundary, exported and imported functions, and the
// WebAssembly namespace object.
package wasmjs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/errors"
	"github.com/corvidjs/corvid/pkg/vm"
	"github.com/corvidjs/corvid/pkg/wasm"
)

type bridgeKey struct{}

// Bridge is the per-VM state of the WebAssembly JS API.
type Bridge struct {
	vm     *vm.VM
	ctx    context.Context
	engine *wasm.Engine
	logger *zap.Logger
	cache  *CacheMap

	moduleProto   vm.Value
	instanceProto vm.Value
	memoryProto   vm.Value
	tableProto    vm.Value
	globalProto   vm.Value
}

// Attach returns the bridge of vmInstance, creating it around engine on
// first use. A nil engine gets a default one.
func Attach(vmInstance *vm.VM, engine *wasm.Engine) *Bridge {
	return vmInstance.HostSlot(bridgeKey{}, func() any {
		return newBridge(vmInstance, engine)
	}).(*Bridge)
}

// BridgeFor is Attach with the default engine.
func BridgeFor(vmInstance *vm.VM) *Bridge {
	return Attach(vmInstance, nil)
}

func newBridge(vmInstance *vm.VM, engine *wasm.Engine) *Bridge {
	ctx := context.Background()
	logger := vmInstance.Logger().Named("wasm")
	if engine == nil {
		engine = wasm.NewEngine(ctx, wasm.DefaultConfig(), logger)
	}
	objectProto := vmInstance.Realm().ObjectPrototype
	return &Bridge{
		vm:            vmInstance,
		ctx:           ctx,
		engine:        engine,
		logger:        logger,
		cache:         newCacheMap(),
		moduleProto:   vm.NewObject(objectProto),
		instanceProto: vm.NewObject(objectProto),
		memoryProto:   vm.NewObject(objectProto),
		tableProto:    vm.NewObject(objectProto),
		globalProto:   vm.NewObject(objectProto),
	}
}

func (b *Bridge) Engine() *wasm.Engine { return b.engine }
func (b *Bridge) Cache() *CacheMap     { return b.cache }

// Close releases the engine.
func (b *Bridge) Close() error {
	return b.engine.Close(b.ctx)
}

// throw turns a Go-side error into the JS exception a script observes.
// Thrown JS values pass through untouched; stage errors become instances
// of WebAssembly.CompileError, LinkError or RuntimeError.
func (b *Bridge) throw(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := vm.AsException(err); ok {
		return err
	}
	se, ok := errors.AsStageError(err)
	if !ok {
		return vm.NewException(b.vm.ThrownValue(err))
	}
	kind := vm.KindRuntimeError
	switch se.(type) {
	case *errors.CompileError:
		kind = vm.KindCompileError
	case *errors.LinkError:
		kind = vm.KindLinkError
	}
	msg := se.Message()
	if pos := se.Pos().String(); pos != "" {
		msg = fmt.Sprintf("%s: %s", pos, msg)
	}
	return vm.NewException(b.vm.NewError(kind, msg))
}
