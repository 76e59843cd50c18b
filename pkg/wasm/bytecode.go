package wasm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/corvidjs/corvid/pkg/errors"
)

// Binary format opcodes accepted in function bodies.
const (
	opcodeUnreachable = 0x00
	opcodeNop         = 0x01
	opcodeEnd         = 0x0b
	opcodeReturn      = 0x0f
	opcodeCall        = 0x10
	opcodeDrop        = 0x1a
	opcodeLocalGet    = 0x20
	opcodeLocalSet    = 0x21
	opcodeLocalTee    = 0x22
	opcodeGlobalGet   = 0x23
	opcodeGlobalSet   = 0x24
	opcodeI32Const    = 0x41
	opcodeI64Const    = 0x42
	opcodeF32Const    = 0x43
	opcodeF64Const    = 0x44
	opcodeI32Add      = 0x6a
	opcodeI32Sub      = 0x6b
	opcodeI32Mul      = 0x6c
	opcodeI64Add      = 0x7c
	opcodeI64Sub      = 0x7d
	opcodeI64Mul      = 0x7e
	opcodeF32Add      = 0x92
	opcodeF32Sub      = 0x93
	opcodeF32Mul      = 0x94
	opcodeF64Add      = 0xa0
	opcodeF64Sub      = 0xa1
	opcodeF64Mul      = 0xa2
	opcodeRefNull     = 0xd0
	opcodeRefIsNull   = 0xd1
	opcodeRefFunc     = 0xd2
)

// OpCode tags an instruction of the internal byte code. Every
// instruction has a fixed layout: the tag byte followed by little-endian
// operands. The interpreter reads operands in place and advances the
// program counter by the instruction's size.
type OpCode byte

const (
	OpEnd         OpCode = iota // returns the top result bytes
	OpUnreachable               // traps
	OpI32Const                  // value int32
	OpConst64                   // bits uint64 (i64, f32 and f64 constants)
	OpCall                      // index uint32
	OpDrop                      // size uint8
	OpLocalGet                  // offset uint32, size uint8
	OpLocalSet                  // offset uint32, size uint8
	OpLocalTee                  // offset uint32, size uint8
	OpGlobalGet                 // index uint32
	OpGlobalSet                 // index uint32
	OpI32Add
	OpI32Sub
	OpI32Mul
	OpI64Add
	OpI64Sub
	OpI64Mul
	OpF32Add
	OpF32Sub
	OpF32Mul
	OpF64Add
	OpF64Sub
	OpF64Mul
	OpRefNull
	OpRefIsNull
	OpRefFunc // index uint32
	opCount
)

var opNames = [opCount]string{
	"end", "unreachable", "i32.const", "const64", "call", "drop",
	"local.get", "local.set", "local.tee", "global.get", "global.set",
	"i32.add", "i32.sub", "i32.mul", "i64.add", "i64.sub", "i64.mul",
	"f32.add", "f32.sub", "f32.mul", "f64.add", "f64.sub", "f64.mul",
	"ref.null", "ref.is_null", "ref.func",
}

func (op OpCode) String() string {
	if op < opCount {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", byte(op))
}

// Size returns the number of bytes of an instruction, tag included.
func (op OpCode) Size() int {
	switch op {
	case OpI32Const, OpCall, OpGlobalGet, OpGlobalSet, OpRefFunc:
		return 5
	case OpConst64:
		return 9
	case OpDrop:
		return 2
	case OpLocalGet, OpLocalSet, OpLocalTee:
		return 6
	}
	return 1
}

var binaryOps = map[byte]struct {
	op OpCode
	t  ValueType
}{
	opcodeI32Add: {OpI32Add, TypeI32}, opcodeI32Sub: {OpI32Sub, TypeI32}, opcodeI32Mul: {OpI32Mul, TypeI32},
	opcodeI64Add: {OpI64Add, TypeI64}, opcodeI64Sub: {OpI64Sub, TypeI64}, opcodeI64Mul: {OpI64Mul, TypeI64},
	opcodeF32Add: {OpF32Add, TypeF32}, opcodeF32Sub: {OpF32Sub, TypeF32}, opcodeF32Mul: {OpF32Mul, TypeF32},
	opcodeF64Add: {OpF64Add, TypeF64}, opcodeF64Sub: {OpF64Sub, TypeF64}, opcodeF64Mul: {OpF64Mul, TypeF64},
}

// Disassemble renders byte code one instruction per line.
func Disassemble(code []byte) string {
	var sb strings.Builder
	for pc := 0; pc < len(code); {
		op := OpCode(code[pc])
		fmt.Fprintf(&sb, "%04d %s", pc, op)
		switch op {
		case OpI32Const:
			fmt.Fprintf(&sb, " %d", int32(binary.LittleEndian.Uint32(code[pc+1:])))
		case OpConst64:
			fmt.Fprintf(&sb, " 0x%x", binary.LittleEndian.Uint64(code[pc+1:]))
		case OpCall, OpGlobalGet, OpGlobalSet, OpRefFunc:
			fmt.Fprintf(&sb, " %d", binary.LittleEndian.Uint32(code[pc+1:]))
		case OpDrop:
			fmt.Fprintf(&sb, " %d", code[pc+1])
		case OpLocalGet, OpLocalSet, OpLocalTee:
			fmt.Fprintf(&sb, " @%d/%d", binary.LittleEndian.Uint32(code[pc+1:]), code[pc+5])
		}
		sb.WriteByte('\n')
		pc += op.Size()
	}
	return sb.String()
}

// emitter translates one function body into byte code while tracking
// the operand stack types and the running maximum of its byte height.
type emitter struct {
	m       *Module
	fnIndex int
	code    []byte
	stack   []ValueType
	height  int
	max     int
	// dead is set after return or unreachable; the rest of the body is
	// decoded but not emitted.
	dead bool
}

func (e *emitter) errorf(at int, format string, args ...any) error {
	return errors.Compilef(errors.Position{Offset: at, Function: e.fnIndex}, format, args...)
}

func (e *emitter) emit(op OpCode) { e.code = append(e.code, byte(op)) }

func (e *emitter) emitU32(op OpCode, v uint32) {
	e.code = binary.LittleEndian.AppendUint32(append(e.code, byte(op)), v)
}

func (e *emitter) emitLocal(op OpCode, offset int, t ValueType) {
	e.emitU32(op, uint32(offset))
	e.code = append(e.code, byte(t.Size()))
}

func (e *emitter) push(t ValueType) {
	e.stack = append(e.stack, t)
	e.height += t.Size()
	e.max = max(e.max, e.height)
}

func (e *emitter) pop(at int, want ValueType) error {
	if len(e.stack) == 0 {
		return e.errorf(at, "type mismatch: expected %s, but stack is empty", want)
	}
	got := e.stack[len(e.stack)-1]
	if got != want {
		return e.errorf(at, "type mismatch: expected %s, got %s", want, got)
	}
	e.stack = e.stack[:len(e.stack)-1]
	e.height -= got.Size()
	return nil
}

func (e *emitter) popAny(at int) (ValueType, error) {
	if len(e.stack) == 0 {
		return 0, e.errorf(at, "type mismatch: stack is empty")
	}
	t := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	e.height -= t.Size()
	return t, nil
}

// checkResults verifies the stack ends with want. exact additionally
// requires nothing below them.
func (e *emitter) checkResults(at int, want []ValueType, exact bool) error {
	if len(e.stack) < len(want) || exact && len(e.stack) != len(want) {
		return e.errorf(at, "type mismatch: expected %d result values, stack holds %d", len(want), len(e.stack))
	}
	top := e.stack[len(e.stack)-len(want):]
	for i, t := range want {
		if top[i] != t {
			return e.errorf(at, "type mismatch: result %d expected %s, got %s", i, t, top[i])
		}
	}
	return nil
}

// compileFunction translates a function body to byte code and computes
// its RequiredStackSize.
func compileFunction(m *Module, fnIndex int, typeIndex uint32, b body) (*FunctionDef, error) {
	ft := &m.Types[typeIndex]
	fn := &FunctionDef{TypeIndex: typeIndex, Locals: b.locals}
	for _, t := range append(append([]ValueType{}, ft.Params...), b.locals...) {
		fn.localOffsets = append(fn.localOffsets, fn.localsSize)
		fn.localsSize += t.Size()
	}
	localType := func(i uint32) ValueType {
		if int(i) < len(ft.Params) {
			return ft.Params[i]
		}
		return b.locals[int(i)-len(ft.Params)]
	}

	e := &emitter{m: m, fnIndex: fnIndex}
	r := b.code
	for {
		at := r.pos()
		opcode, err := r.byte()
		if err != nil {
			return nil, e.errorf(at, "END opcode expected")
		}
		switch opcode {
		case opcodeEnd:
			if !e.dead {
				if err := e.checkResults(at, ft.Results, true); err != nil {
					return nil, err
				}
				e.emit(OpEnd)
			}
			if !r.eof() {
				return nil, e.errorf(r.pos(), "operators remaining after end of function")
			}
			fn.Code = e.code
			fn.RequiredStackSize = e.max
			return fn, nil

		case opcodeNop:

		case opcodeUnreachable:
			if !e.dead {
				e.emit(OpUnreachable)
			}
			e.dead = true

		case opcodeReturn:
			if !e.dead {
				if err := e.checkResults(at, ft.Results, false); err != nil {
					return nil, err
				}
				e.emit(OpEnd)
			}
			e.dead = true

		case opcodeCall:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			if int(idx) >= m.NumFuncs() {
				return nil, e.errorf(at, "unknown function %d", idx)
			}
			if e.dead {
				continue
			}
			callee := m.FuncType(idx)
			for i := len(callee.Params) - 1; i >= 0; i-- {
				if err := e.pop(at, callee.Params[i]); err != nil {
					return nil, err
				}
			}
			for _, t := range callee.Results {
				e.push(t)
			}
			e.emitU32(OpCall, idx)

		case opcodeDrop:
			if e.dead {
				continue
			}
			t, err := e.popAny(at)
			if err != nil {
				return nil, err
			}
			e.code = append(e.code, byte(OpDrop), byte(t.Size()))

		case opcodeLocalGet, opcodeLocalSet, opcodeLocalTee:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			if int(idx) >= len(fn.localOffsets) {
				return nil, e.errorf(at, "unknown local %d", idx)
			}
			if e.dead {
				continue
			}
			t := localType(idx)
			switch opcode {
			case opcodeLocalGet:
				e.push(t)
				e.emitLocal(OpLocalGet, fn.localOffsets[idx], t)
			case opcodeLocalSet:
				if err := e.pop(at, t); err != nil {
					return nil, err
				}
				e.emitLocal(OpLocalSet, fn.localOffsets[idx], t)
			default:
				if err := e.pop(at, t); err != nil {
					return nil, err
				}
				e.push(t)
				e.emitLocal(OpLocalTee, fn.localOffsets[idx], t)
			}

		case opcodeGlobalGet, opcodeGlobalSet:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			if int(idx) >= len(m.globalTypes) {
				return nil, e.errorf(at, "unknown global %d", idx)
			}
			if e.dead {
				continue
			}
			gt := m.globalTypes[idx]
			if opcode == opcodeGlobalGet {
				e.push(gt.ValueType)
				e.emitU32(OpGlobalGet, idx)
				continue
			}
			if !gt.Mutable {
				return nil, e.errorf(at, "global is immutable: cannot modify it with `global.set`")
			}
			if err := e.pop(at, gt.ValueType); err != nil {
				return nil, err
			}
			e.emitU32(OpGlobalSet, idx)

		case opcodeI32Const:
			v, err := r.sleb(32)
			if err != nil {
				return nil, err
			}
			if !e.dead {
				e.push(TypeI32)
				e.emitU32(OpI32Const, uint32(int32(v)))
			}

		case opcodeI64Const, opcodeF32Const, opcodeF64Const:
			var bits uint64
			var t ValueType
			switch opcode {
			case opcodeI64Const:
				v, err := r.sleb(64)
				if err != nil {
					return nil, err
				}
				bits, t = uint64(v), TypeI64
			case opcodeF32Const:
				v, err := r.f32()
				if err != nil {
					return nil, err
				}
				bits, t = uint64(math.Float32bits(v)), TypeF32
			default:
				v, err := r.f64()
				if err != nil {
					return nil, err
				}
				bits, t = math.Float64bits(v), TypeF64
			}
			if !e.dead {
				e.push(t)
				e.code = binary.LittleEndian.AppendUint64(append(e.code, byte(OpConst64)), bits)
			}

		case opcodeI32Add, opcodeI32Sub, opcodeI32Mul,
			opcodeI64Add, opcodeI64Sub, opcodeI64Mul,
			opcodeF32Add, opcodeF32Sub, opcodeF32Mul,
			opcodeF64Add, opcodeF64Sub, opcodeF64Mul:
			if e.dead {
				continue
			}
			bin := binaryOps[opcode]
			if err := e.pop(at, bin.t); err != nil {
				return nil, err
			}
			if err := e.pop(at, bin.t); err != nil {
				return nil, err
			}
			e.push(bin.t)
			e.emit(bin.op)

		case opcodeRefNull:
			t, err := r.valueType()
			if err != nil {
				return nil, err
			}
			if !t.IsRef() {
				return nil, e.errorf(at, "malformed reference type 0x%02x", byte(t))
			}
			if !e.dead {
				e.push(t)
				e.emit(OpRefNull)
			}

		case opcodeRefIsNull:
			if e.dead {
				continue
			}
			t, err := e.popAny(at)
			if err != nil {
				return nil, err
			}
			if !t.IsRef() {
				return nil, e.errorf(at, "type mismatch: ref.is_null on %s", t)
			}
			e.push(TypeI32)
			e.emit(OpRefIsNull)

		case opcodeRefFunc:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			if int(idx) >= m.NumFuncs() {
				return nil, e.errorf(at, "unknown function %d", idx)
			}
			if !e.dead {
				e.push(TypeFuncRef)
				e.emitU32(OpRefFunc, idx)
			}

		default:
			return nil, e.errorf(at, "unsupported opcode 0x%02x", opcode)
		}
	}
}
