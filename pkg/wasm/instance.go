package wasm

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/corvidjs/corvid/pkg/errors"
)

// Callable is an entry of an instance's function index space: a wasm
// Function or a HostFunction.
type Callable interface {
	Type() *FuncType
	// call consumes the parameter bytes and returns the result bytes.
	call(params []byte) ([]byte, error)
}

// Invoke calls c with typed arguments.
func Invoke(c Callable, args ...Value) ([]Value, error) {
	ft := c.Type()
	if len(args) != len(ft.Params) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(ft.Params), len(args))
	}
	params := make([]byte, ft.ParamSize())
	off := 0
	for i, a := range args {
		if a.typ != ft.Params[i] {
			return nil, fmt.Errorf("argument %d: expected %s, got %s", i, ft.Params[i], a.typ)
		}
		a.put(params[off:])
		off += a.typ.Size()
	}
	results, err := c.call(params)
	if err != nil {
		return nil, err
	}
	return decodeValues(ft.Results, results), nil
}

func (v Value) put(b []byte) {
	binary.LittleEndian.PutUint64(b, v.lo)
	if v.typ == TypeV128 {
		binary.LittleEndian.PutUint64(b[slotSize:], v.hi)
	}
}

func loadValue(t ValueType, b []byte) Value {
	v := Value{typ: t, lo: binary.LittleEndian.Uint64(b)}
	if t == TypeV128 {
		v.hi = binary.LittleEndian.Uint64(b[slotSize:])
	}
	return v
}

func decodeValues(types []ValueType, b []byte) []Value {
	out := make([]Value, len(types))
	for i, t := range types {
		out[i] = loadValue(t, b)
		b = b[t.Size():]
	}
	return out
}

// Function is a module-defined function bound to its instance.
type Function struct {
	inst  *Instance
	def   *FunctionDef
	typ   *FuncType
	index uint32
}

func (f *Function) Type() *FuncType          { return f.typ }
func (f *Function) Index() uint32            { return f.index }
func (f *Function) Instance() *Instance      { return f.inst }
func (f *Function) Definition() *FunctionDef { return f.def }

// Call invokes the function with typed arguments.
func (f *Function) Call(args ...Value) ([]Value, error) { return Invoke(f, args...) }

func (f *Function) call(params []byte) ([]byte, error) {
	eng := f.inst.engine
	if err := eng.enter(int(f.index)); err != nil {
		return nil, err
	}
	defer eng.leave()

	frame := make([]byte, f.def.FrameSize())
	copy(frame, params)
	return f.inst.execute(f, frame)
}

// HostFunc implements an imported function.
type HostFunc func(args []Value) ([]Value, error)

// HostFunction is a function supplied by the embedder.
type HostFunction struct {
	Name string
	typ  FuncType
	fn   HostFunc
}

func NewHostFunction(name string, typ FuncType, fn HostFunc) *HostFunction {
	return &HostFunction{Name: name, typ: typ, fn: fn}
}

func (h *HostFunction) Type() *FuncType { return &h.typ }

func (h *HostFunction) call(params []byte) ([]byte, error) {
	results, err := h.fn(decodeValues(h.typ.Params, params))
	if err != nil {
		return nil, err
	}
	if len(results) != len(h.typ.Results) {
		return nil, fmt.Errorf("host function %s returned %d values, expected %d", h.Name, len(results), len(h.typ.Results))
	}
	out := make([]byte, h.typ.ResultSize())
	off := 0
	for i, r := range results {
		if r.typ != h.typ.Results[i] {
			return nil, fmt.Errorf("host function %s result %d: expected %s, got %s", h.Name, i, h.typ.Results[i], r.typ)
		}
		r.put(out[off:])
		off += r.typ.Size()
	}
	return out, nil
}

// Global is a global variable, shared between the instances that import
// it.
type Global struct {
	typ GlobalType
	val Value
}

func NewGlobal(typ GlobalType, v Value) (*Global, error) {
	if v.typ != typ.ValueType {
		return nil, fmt.Errorf("global of type %s cannot hold %s", typ.ValueType, v.typ)
	}
	return &Global{typ: typ, val: v}, nil
}

func (g *Global) Type() GlobalType { return g.typ }
func (g *Global) Get() Value       { return g.val }

// Set stores v. Immutable globals and mismatched types are rejected.
func (g *Global) Set(v Value) error {
	if !g.typ.Mutable {
		return fmt.Errorf("cannot set an immutable global")
	}
	if v.typ != g.typ.ValueType {
		return fmt.Errorf("global of type %s cannot hold %s", g.typ.ValueType, v.typ)
	}
	g.val = v
	return nil
}

// Memory is a linear memory.
type Memory struct {
	data   []byte
	limits Limits
}

func NewMemory(lim Limits) (*Memory, error) {
	if lim.Min > MaxPages || lim.Max != nil && (*lim.Max > MaxPages || *lim.Max < lim.Min) {
		return nil, fmt.Errorf("invalid memory limits")
	}
	return &Memory{data: make([]byte, int(lim.Min)*PageSize), limits: lim}, nil
}

// Bytes returns the current contents. The slice is replaced on Grow.
func (m *Memory) Bytes() []byte  { return m.data }
func (m *Memory) Pages() uint32  { return uint32(len(m.data) / PageSize) }
func (m *Memory) Limits() Limits { return m.limits }

// Grow adds delta pages and returns the previous size in pages. It fails
// when the result would exceed the maximum.
func (m *Memory) Grow(delta uint32) (uint32, bool) {
	prev := m.Pages()
	limit := uint64(MaxPages)
	if m.limits.Max != nil {
		limit = uint64(*m.limits.Max)
	}
	if uint64(prev)+uint64(delta) > limit {
		return prev, false
	}
	grown := make([]byte, (int(prev)+int(delta))*PageSize)
	copy(grown, m.data)
	m.data = grown
	return prev, true
}

// MaxTableSize bounds table growth.
const MaxTableSize = 10_000_000

// Table is a vector of references of one element type.
type Table struct {
	elem   ValueType
	elems  []uint64
	limits Limits
}

// NewTable creates a table of lim.Min elements, each set to init.
func NewTable(elem ValueType, lim Limits, init Value) (*Table, error) {
	if !elem.IsRef() {
		return nil, fmt.Errorf("invalid table element type %s", elem)
	}
	if lim.Min > MaxTableSize || lim.Max != nil && *lim.Max < lim.Min {
		return nil, fmt.Errorf("invalid table limits")
	}
	if init.typ != elem {
		return nil, fmt.Errorf("table of %s cannot hold %s", elem, init.typ)
	}
	t := &Table{elem: elem, elems: make([]uint64, lim.Min), limits: lim}
	for i := range t.elems {
		t.elems[i] = init.lo
	}
	return t, nil
}

func (t *Table) ElemType() ValueType { return t.elem }
func (t *Table) Len() uint32         { return uint32(len(t.elems)) }
func (t *Table) Limits() Limits      { return t.limits }

func (t *Table) Get(i uint32) (Value, error) {
	if i >= t.Len() {
		return Value{}, fmt.Errorf("table index %d out of bounds", i)
	}
	return Value{typ: t.elem, lo: t.elems[i]}, nil
}

func (t *Table) Set(i uint32, v Value) error {
	if i >= t.Len() {
		return fmt.Errorf("table index %d out of bounds", i)
	}
	if v.typ != t.elem {
		return fmt.Errorf("table of %s cannot hold %s", t.elem, v.typ)
	}
	t.elems[i] = v.lo
	return nil
}

// Grow appends delta elements set to init and returns the previous
// length.
func (t *Table) Grow(delta uint32, init Value) (uint32, bool) {
	prev := t.Len()
	limit := uint64(MaxTableSize)
	if t.limits.Max != nil {
		limit = min(limit, uint64(*t.limits.Max))
	}
	if uint64(prev)+uint64(delta) > limit || init.typ != t.elem {
		return prev, false
	}
	for range delta {
		t.elems = append(t.elems, init.lo)
	}
	return prev, true
}

// Extern is an importable or exportable entity.
type Extern struct {
	Kind   ExternKind
	Func   Callable
	Global *Global
	Memory *Memory
	Table  *Table
}

// NamedExtern is an export of an instance.
type NamedExtern struct {
	Name string
	Extern
}

// Instance is an instantiated module.
type Instance struct {
	module  *Module
	engine  *Engine
	funcs   []Callable
	globals []*Global
	memory  *Memory
	exports []NamedExtern
	byName  map[string]int
}

func (inst *Instance) Module() *Module          { return inst.module }
func (inst *Instance) Engine() *Engine          { return inst.engine }
func (inst *Instance) Exports() []NamedExtern   { return inst.exports }
func (inst *Instance) Memory() *Memory          { return inst.memory }
func (inst *Instance) Func(idx uint32) Callable { return inst.funcs[idx] }

// Export looks up an export by name.
func (inst *Instance) Export(name string) (Extern, bool) {
	i, ok := inst.byName[name]
	if !ok {
		return Extern{}, false
	}
	return inst.exports[i].Extern, true
}

// memoryFits reports whether an imported memory satisfies the declared
// limits.
func memoryFits(got, want Limits, pages uint32) bool {
	if pages < want.Min {
		return false
	}
	if want.Max == nil {
		return true
	}
	return got.Max != nil && *got.Max <= *want.Max
}

// Instantiate links m against imports, given in import section order,
// initializes globals and memory, and runs the start function.
func (e *Engine) Instantiate(m *Module, imports []Extern) (*Instance, error) {
	if len(imports) != len(m.Imports) {
		return nil, errors.Linkf("", "", "expected %d imports, got %d", len(m.Imports), len(imports))
	}
	inst := &Instance{module: m, engine: e, byName: make(map[string]int, len(m.Exports))}
	for i, imp := range m.Imports {
		ext := imports[i]
		if ext.Kind != imp.Kind {
			return nil, errors.Linkf(imp.Module, imp.Name, "expected %s, got %s", imp.Kind, ext.Kind)
		}
		switch imp.Kind {
		case ExternFunc:
			want := &m.Types[imp.TypeIndex]
			if ext.Func == nil || !ext.Func.Type().Equal(want) {
				return nil, errors.Linkf(imp.Module, imp.Name, "imported function does not match the expected type %s", want)
			}
			inst.funcs = append(inst.funcs, ext.Func)
		case ExternGlobal:
			if ext.Global == nil || ext.Global.Type() != imp.Global {
				return nil, errors.Linkf(imp.Module, imp.Name, "imported global does not match the expected type")
			}
			inst.globals = append(inst.globals, ext.Global)
		case ExternMemory:
			if ext.Memory == nil || !memoryFits(ext.Memory.Limits(), imp.Memory, ext.Memory.Pages()) {
				return nil, errors.Linkf(imp.Module, imp.Name, "memory import has an incompatible size")
			}
			inst.memory = ext.Memory
		}
	}

	for i, def := range m.Functions {
		inst.funcs = append(inst.funcs, &Function{
			inst:  inst,
			def:   def,
			typ:   &m.Types[def.TypeIndex],
			index: uint32(m.importedFuncs + i),
		})
	}
	for _, g := range m.Globals {
		inst.globals = append(inst.globals, &Global{typ: g.Type, val: inst.evalConst(g.Init, g.Type.ValueType)})
	}
	if len(m.Memories) > 0 {
		mem, err := NewMemory(m.Memories[0])
		if err != nil {
			return nil, errors.Linkf("", "", "%v", err)
		}
		inst.memory = mem
	}

	for i, seg := range m.Data {
		if seg.Passive {
			continue
		}
		offset := uint64(uint32(inst.evalConst(seg.Offset, TypeI32).I32()))
		data := inst.memory.Bytes()
		if offset+uint64(len(seg.Bytes)) > uint64(len(data)) {
			return nil, errors.Trapf(errors.NoPosition, "data segment %d does not fit in memory", i)
		}
		copy(data[offset:], seg.Bytes)
	}

	for _, exp := range m.Exports {
		ext := Extern{Kind: exp.Kind}
		switch exp.Kind {
		case ExternFunc:
			ext.Func = inst.funcs[exp.Index]
		case ExternGlobal:
			ext.Global = inst.globals[exp.Index]
		case ExternMemory:
			ext.Memory = inst.memory
		}
		inst.byName[exp.Name] = len(inst.exports)
		inst.exports = append(inst.exports, NamedExtern{Name: exp.Name, Extern: ext})
	}

	if m.Start != nil {
		if _, err := inst.funcs[*m.Start].call(nil); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("instantiated module",
		zap.Int("functions", len(inst.funcs)),
		zap.Int("globals", len(inst.globals)),
		zap.Int("exports", len(inst.exports)))
	return inst, nil
}

func (inst *Instance) evalConst(e ConstExpr, t ValueType) Value {
	switch e.Op {
	case opcodeGlobalGet:
		return inst.globals[e.Global].Get()
	case opcodeRefFunc:
		return FuncRef(inst.engine.RefFunc(inst.funcs[e.Func]))
	case opcodeRefNull:
		return NullRef(t)
	}
	return e.Value
}
