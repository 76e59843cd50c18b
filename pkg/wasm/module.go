package wasm

import (
	"bytes"

	"github.com/corvidjs/corvid/pkg/errors"
)

var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6D}
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

const (
	sectionCustom    = 0
	sectionType      = 1
	sectionImport    = 2
	sectionFunction  = 3
	sectionTable     = 4
	sectionMemory    = 5
	sectionGlobal    = 6
	sectionExport    = 7
	sectionStart     = 8
	sectionElement   = 9
	sectionCode      = 10
	sectionData      = 11
	sectionDataCount = 12
)

// Import is one entry of the import section.
type Import struct {
	Module, Name string
	Kind         ExternKind
	// TypeIndex is set for function imports.
	TypeIndex uint32
	// Global is set for global imports.
	Global GlobalType
	// Memory is set for memory imports.
	Memory Limits
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// CustomSection is a named custom section with its raw payload.
type CustomSection struct {
	Name    string
	Payload []byte
}

// GlobalDef is a global defined by the module.
type GlobalDef struct {
	Type GlobalType
	Init ConstExpr
}

// DataSegment initializes memory. Passive segments keep their bytes but
// are never copied.
type DataSegment struct {
	Passive bool
	Offset  ConstExpr
	Bytes   []byte
}

// ConstExpr is a decoded constant expression: a constant, a global
// read, or a function reference.
type ConstExpr struct {
	Op     byte
	Value  Value
	Global uint32
	Func   uint32
}

// FunctionDef is a function body compiled to byte code.
type FunctionDef struct {
	TypeIndex uint32
	Locals    []ValueType
	Code      []byte
	// RequiredStackSize is the operand stack high-water mark in bytes.
	RequiredStackSize int
	// localOffsets[i] is the frame offset of local i (params first).
	localOffsets []int
	localsSize   int
}

// FrameSize is the number of bytes a call to the function allocates.
func (f *FunctionDef) FrameSize() int { return f.localsSize + f.RequiredStackSize }

// Module is an immutable decoded module.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Functions []*FunctionDef
	Memories  []Limits
	Globals   []GlobalDef
	Exports   []Export
	Start     *uint32
	Data      []DataSegment
	Customs   []CustomSection

	importedFuncs    int
	importedGlobals  int
	importedMemories int
	funcTypes        []uint32 // type index per function in the index space
	globalTypes      []GlobalType
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() int { return len(m.funcTypes) }

// FuncType returns the signature of function index idx.
func (m *Module) FuncType(idx uint32) *FuncType {
	return &m.Types[m.funcTypes[idx]]
}

// CustomSections returns the payloads of every custom section named name,
// in binary order.
func (m *Module) CustomSections(name string) [][]byte {
	var out [][]byte
	for _, c := range m.Customs {
		if c.Name == name {
			out = append(out, c.Payload)
		}
	}
	return out
}

// Decode parses and compiles a module binary. It does not validate
// beyond what compilation needs; Engine.Compile runs full validation
// first when configured to.
func Decode(bin []byte) (*Module, error) {
	r := &reader{buf: bin}
	if len(bin) < 8 || !bytes.Equal(bin[:4], magic) {
		return nil, errors.Compilef(errors.At(0), "invalid magic number")
	}
	if !bytes.Equal(bin[4:8], version) {
		return nil, errors.Compilef(errors.At(4), "invalid version header")
	}
	r.off = 8

	m := &Module{}
	var funcDecls []uint32
	var bodies []body
	last := 0
	for !r.eof() {
		start := r.off
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		payload, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		if id != sectionCustom {
			order := sectionOrder(id)
			if order <= last {
				return nil, errors.Compilef(errors.At(start), "unexpected section %d", id)
			}
			last = order
		}
		sr := &reader{buf: payload, base: r.off - len(payload)}
		switch id {
		case sectionCustom:
			err = m.decodeCustom(sr)
		case sectionType:
			err = m.decodeTypes(sr)
		case sectionImport:
			err = m.decodeImports(sr)
		case sectionFunction:
			funcDecls, err = sr.u32Vec()
		case sectionTable, sectionElement:
			err = errors.Compilef(errors.At(start), "tables are not supported")
		case sectionMemory:
			err = m.decodeMemories(sr)
		case sectionGlobal:
			err = m.decodeGlobals(sr)
		case sectionExport:
			err = m.decodeExports(sr)
		case sectionStart:
			var idx uint32
			idx, err = sr.u32()
			m.Start = &idx
		case sectionCode:
			bodies, err = decodeCode(sr)
		case sectionData:
			err = m.decodeData(sr)
		case sectionDataCount:
			_, err = sr.u32()
		default:
			err = errors.Compilef(errors.At(start), "unknown section id %d", id)
		}
		if err != nil {
			return nil, err
		}
		if id != sectionCustom && !sr.eof() {
			return nil, errors.Compilef(errors.At(sr.pos()), "section %d size mismatch", id)
		}
	}

	if len(funcDecls) != len(bodies) {
		return nil, errors.Compilef(errors.NoPosition, "function and code section have inconsistent lengths")
	}
	for _, t := range funcDecls {
		if int(t) >= len(m.Types) {
			return nil, errors.Compilef(errors.NoPosition, "unknown type %d", t)
		}
		m.funcTypes = append(m.funcTypes, t)
	}
	for _, g := range m.Globals {
		m.globalTypes = append(m.globalTypes, g.Type)
	}
	if err := m.checkIndices(); err != nil {
		return nil, err
	}
	for i, b := range bodies {
		fn, err := compileFunction(m, m.importedFuncs+i, funcDecls[i], b)
		if err != nil {
			return nil, err
		}
		m.Functions = append(m.Functions, fn)
	}
	return m, nil
}

// sectionOrder ranks non-custom sections; datacount sits between import
// data and code.
func sectionOrder(id byte) int {
	switch id {
	case sectionDataCount:
		return int(sectionElement) + 1
	case sectionCode, sectionData:
		return int(id) + 1
	}
	return int(id)
}

func (m *Module) decodeCustom(r *reader) error {
	name, err := r.name()
	if err != nil {
		return err
	}
	m.Customs = append(m.Customs, CustomSection{Name: name, Payload: bytes.Clone(r.rest())})
	return nil
}

func (m *Module) decodeTypes(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for range n {
		at := r.pos()
		form, err := r.byte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return errors.Compilef(errors.At(at), "invalid function type form 0x%02x", form)
		}
		params, err := r.valueTypes()
		if err != nil {
			return err
		}
		results, err := r.valueTypes()
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

func (m *Module) decodeImports(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for range n {
		var imp Import
		if imp.Module, err = r.name(); err != nil {
			return err
		}
		if imp.Name, err = r.name(); err != nil {
			return err
		}
		at := r.pos()
		kind, err := r.byte()
		if err != nil {
			return err
		}
		imp.Kind = ExternKind(kind)
		switch imp.Kind {
		case ExternFunc:
			if imp.TypeIndex, err = r.u32(); err != nil {
				return err
			}
			if int(imp.TypeIndex) >= len(m.Types) {
				return errors.Compilef(errors.At(at), "unknown type %d", imp.TypeIndex)
			}
			m.funcTypes = append(m.funcTypes, imp.TypeIndex)
			m.importedFuncs++
		case ExternGlobal:
			if imp.Global, err = r.globalType(); err != nil {
				return err
			}
			m.globalTypes = append(m.globalTypes, imp.Global)
			m.importedGlobals++
		case ExternMemory:
			if imp.Memory, err = r.limits(MaxPages); err != nil {
				return err
			}
			m.importedMemories++
		case ExternTable:
			return errors.Compilef(errors.At(at), "table imports are not supported")
		default:
			return errors.Compilef(errors.At(at), "invalid import kind 0x%02x", kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func (m *Module) decodeMemories(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for range n {
		lim, err := r.limits(MaxPages)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, lim)
	}
	if m.importedMemories+len(m.Memories) > 1 {
		return errors.Compilef(errors.At(r.pos()), "multiple memories")
	}
	return nil
}

func (m *Module) decodeGlobals(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for range n {
		gt, err := r.globalType()
		if err != nil {
			return err
		}
		init, err := r.constExpr(gt.ValueType)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, GlobalDef{Type: gt, Init: init})
	}
	return nil
}

func (m *Module) decodeExports(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, n)
	for range n {
		at := r.pos()
		var exp Export
		if exp.Name, err = r.name(); err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		exp.Kind = ExternKind(kind)
		if exp.Index, err = r.u32(); err != nil {
			return err
		}
		if seen[exp.Name] {
			return errors.Compilef(errors.At(at), "duplicate export name %q", exp.Name)
		}
		seen[exp.Name] = true
		m.Exports = append(m.Exports, exp)
	}
	return nil
}

func (m *Module) decodeData(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for range n {
		at := r.pos()
		flags, err := r.u32()
		if err != nil {
			return err
		}
		var seg DataSegment
		switch flags {
		case 0:
		case 1:
			seg.Passive = true
		case 2:
			mem, err := r.u32()
			if err != nil {
				return err
			}
			if mem != 0 {
				return errors.Compilef(errors.At(at), "unknown memory %d", mem)
			}
		default:
			return errors.Compilef(errors.At(at), "invalid data segment flags %d", flags)
		}
		if !seg.Passive {
			if seg.Offset, err = r.constExpr(TypeI32); err != nil {
				return err
			}
		}
		size, err := r.u32()
		if err != nil {
			return err
		}
		data, err := r.bytes(int(size))
		if err != nil {
			return err
		}
		seg.Bytes = bytes.Clone(data)
		m.Data = append(m.Data, seg)
	}
	return nil
}

// checkIndices resolves every index that points outside the body of a
// function.
func (m *Module) checkIndices() error {
	numMem := m.importedMemories + len(m.Memories)
	for _, exp := range m.Exports {
		var ok bool
		switch exp.Kind {
		case ExternFunc:
			ok = int(exp.Index) < len(m.funcTypes)
		case ExternGlobal:
			ok = int(exp.Index) < len(m.globalTypes)
		case ExternMemory:
			ok = int(exp.Index) < numMem
		}
		if !ok {
			return errors.Compilef(errors.NoPosition, "export %q: unknown %s %d", exp.Name, exp.Kind, exp.Index)
		}
	}
	if m.Start != nil {
		if int(*m.Start) >= len(m.funcTypes) {
			return errors.Compilef(errors.NoPosition, "unknown start function %d", *m.Start)
		}
		ft := m.FuncType(*m.Start)
		if len(ft.Params) != 0 || len(ft.Results) != 0 {
			return errors.Compilef(errors.InFunction(int(*m.Start)), "start function must be () -> ()")
		}
	}
	for i, g := range m.Globals {
		if err := m.checkConstExpr(g.Init, g.Type.ValueType, m.importedGlobals+i); err != nil {
			return err
		}
	}
	for _, d := range m.Data {
		if numMem == 0 {
			return errors.Compilef(errors.NoPosition, "data segment without memory")
		}
		if !d.Passive {
			if err := m.checkConstExpr(d.Offset, TypeI32, m.importedGlobals); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkConstExpr verifies globals and functions referenced from a
// constant expression. Only the first visible globals may be read.
func (m *Module) checkConstExpr(e ConstExpr, want ValueType, visible int) error {
	switch e.Op {
	case opcodeGlobalGet:
		if int(e.Global) >= visible {
			return errors.Compilef(errors.NoPosition, "unknown global %d in constant expression", e.Global)
		}
		if got := m.globalTypes[e.Global].ValueType; got != want {
			return errors.Compilef(errors.NoPosition, "type mismatch: expected %s, got %s", want, got)
		}
	case opcodeRefFunc:
		if int(e.Func) >= len(m.funcTypes) {
			return errors.Compilef(errors.NoPosition, "unknown function %d in constant expression", e.Func)
		}
	}
	return nil
}

// body is an undecoded code section entry.
type body struct {
	locals []ValueType
	code   *reader
}

func decodeCode(r *reader) ([]body, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]body, 0, n)
	for range n {
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		base := r.pos()
		raw, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		br := &reader{buf: raw, base: base}
		groups, err := br.u32()
		if err != nil {
			return nil, err
		}
		var locals []ValueType
		for range groups {
			count, err := br.u32()
			if err != nil {
				return nil, err
			}
			t, err := br.valueType()
			if err != nil {
				return nil, err
			}
			if len(locals)+int(count) > maxLocals {
				return nil, errors.Compilef(errors.At(br.pos()), "too many locals")
			}
			for range count {
				locals = append(locals, t)
			}
		}
		out = append(out, body{locals: locals, code: br})
	}
	return out, nil
}

const maxLocals = 50000
