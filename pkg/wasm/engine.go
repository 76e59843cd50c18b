package wasm

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/errors"
)

// DefaultMaxCallDepth bounds nested calls of wasm functions.
const DefaultMaxCallDepth = 1000

// Config holds configuration for engine creation.
type Config struct {
	// MaxCallDepth limits nested calls; exceeding it traps.
	// 0 means DefaultMaxCallDepth.
	MaxCallDepth int

	// Validate runs full module validation with wazero before our own
	// decoder compiles the module.
	Validate bool

	// CoreFeatures selects the proposals the validator accepts.
	// 0 means api.CoreFeaturesV2.
	CoreFeatures api.CoreFeatures
}

// DefaultConfig validates modules and uses the default call depth.
func DefaultConfig() Config {
	return Config{MaxCallDepth: DefaultMaxCallDepth, Validate: true, CoreFeatures: api.CoreFeaturesV2}
}

// Engine compiles and instantiates modules. It owns the function
// reference table shared by every instance it creates. An Engine is not
// safe for concurrent use.
type Engine struct {
	cfg       Config
	logger    *zap.Logger
	validator wazero.Runtime

	refs     []Callable
	refIndex map[Callable]uint64
	depth    int
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(ctx context.Context, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	if cfg.CoreFeatures == 0 {
		cfg.CoreFeatures = api.CoreFeaturesV2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{cfg: cfg, logger: logger, refIndex: make(map[Callable]uint64)}
	if cfg.Validate {
		rc := wazero.NewRuntimeConfigInterpreter().WithCoreFeatures(cfg.CoreFeatures)
		e.validator = wazero.NewRuntimeWithConfig(ctx, rc)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// Close releases the validator runtime.
func (e *Engine) Close(ctx context.Context) error {
	if e.validator == nil {
		return nil
	}
	return e.validator.Close(ctx)
}

// Validate reports whether bin is a module this engine can compile.
func (e *Engine) Validate(ctx context.Context, bin []byte) error {
	_, err := e.Compile(ctx, bin)
	return err
}

// Compile validates bin (when configured) and decodes it into a Module.
func (e *Engine) Compile(ctx context.Context, bin []byte) (*Module, error) {
	if e.validator != nil {
		compiled, err := e.validator.CompileModule(ctx, bin)
		if err != nil {
			return nil, (&errors.CompileError{Position: errors.NoPosition, Msg: err.Error()}).CausedBy(err)
		}
		if err := compiled.Close(ctx); err != nil {
			e.logger.Debug("closing validated module", zap.Error(err))
		}
	}
	m, err := Decode(bin)
	if err != nil {
		e.logger.Debug("module rejected", zap.Error(err))
		return nil, err
	}
	e.logger.Debug("compiled module",
		zap.Int("bytes", len(bin)),
		zap.Int("functions", len(m.Functions)),
		zap.Int("imports", len(m.Imports)),
		zap.Int("exports", len(m.Exports)))
	return m, nil
}

// RefFunc returns the reference handle of c, allocating one on first use.
// Handles are never 0, which is the null reference.
func (e *Engine) RefFunc(c Callable) uint64 {
	if h, ok := e.refIndex[c]; ok {
		return h
	}
	e.refs = append(e.refs, c)
	h := uint64(len(e.refs))
	e.refIndex[c] = h
	return h
}

// ResolveFunc returns the callable behind a function reference handle.
func (e *Engine) ResolveFunc(handle uint64) (Callable, bool) {
	if handle == 0 || handle > uint64(len(e.refs)) {
		return nil, false
	}
	return e.refs[handle-1], true
}

func (e *Engine) enter(fnIndex int) error {
	if e.depth >= e.cfg.MaxCallDepth {
		return errors.Trapf(errors.InFunction(fnIndex), "call stack exhausted")
	}
	e.depth++
	return nil
}

func (e *Engine) leave() { e.depth-- }
