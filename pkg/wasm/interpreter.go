package wasm

import (
	"encoding/binary"
	"math"

	"github.com/corvidjs/corvid/pkg/errors"
)

var le = binary.LittleEndian

// execute runs f's byte code over frame, which holds the locals followed
// by RequiredStackSize bytes of operand stack. The result bytes are the
// top of the stack when End is reached.
func (inst *Instance) execute(f *Function, frame []byte) ([]byte, error) {
	code := f.def.Code
	sp := f.def.localsSize
	pc := 0
	for {
		op := OpCode(code[pc])
		switch op {
		case OpEnd:
			n := f.typ.ResultSize()
			return frame[sp-n : sp], nil

		case OpUnreachable:
			return nil, errors.Trapf(errors.InFunction(int(f.index)), "unreachable")

		case OpI32Const:
			le.PutUint64(frame[sp:], uint64(le.Uint32(code[pc+1:])))
			sp += slotSize

		case OpConst64:
			le.PutUint64(frame[sp:], le.Uint64(code[pc+1:]))
			sp += slotSize

		case OpCall:
			results, err := inst.callOperation(frame, &sp, le.Uint32(code[pc+1:]))
			if err != nil {
				return nil, err
			}
			sp += copy(frame[sp:], results)

		case OpDrop:
			sp -= int(code[pc+1])

		case OpLocalGet:
			off, size := int(le.Uint32(code[pc+1:])), int(code[pc+5])
			copy(frame[sp:sp+size], frame[off:off+size])
			sp += size

		case OpLocalSet:
			off, size := int(le.Uint32(code[pc+1:])), int(code[pc+5])
			sp -= size
			copy(frame[off:off+size], frame[sp:sp+size])

		case OpLocalTee:
			off, size := int(le.Uint32(code[pc+1:])), int(code[pc+5])
			copy(frame[off:off+size], frame[sp-size:sp])

		case OpGlobalGet:
			v := inst.globals[le.Uint32(code[pc+1:])].val
			v.put(frame[sp:])
			sp += v.typ.Size()

		case OpGlobalSet:
			g := inst.globals[le.Uint32(code[pc+1:])]
			size := g.typ.ValueType.Size()
			sp -= size
			g.val = loadValue(g.typ.ValueType, frame[sp:sp+size])

		case OpI32Add, OpI32Sub, OpI32Mul:
			a, b := uint32(le.Uint64(frame[sp-16:])), uint32(le.Uint64(frame[sp-8:]))
			var r uint32
			switch op {
			case OpI32Add:
				r = a + b
			case OpI32Sub:
				r = a - b
			default:
				r = a * b
			}
			sp -= slotSize
			le.PutUint64(frame[sp-slotSize:], uint64(r))

		case OpI64Add, OpI64Sub, OpI64Mul:
			a, b := le.Uint64(frame[sp-16:]), le.Uint64(frame[sp-8:])
			var r uint64
			switch op {
			case OpI64Add:
				r = a + b
			case OpI64Sub:
				r = a - b
			default:
				r = a * b
			}
			sp -= slotSize
			le.PutUint64(frame[sp-slotSize:], r)

		case OpF32Add, OpF32Sub, OpF32Mul:
			a := math.Float32frombits(uint32(le.Uint64(frame[sp-16:])))
			b := math.Float32frombits(uint32(le.Uint64(frame[sp-8:])))
			var r float32
			switch op {
			case OpF32Add:
				r = a + b
			case OpF32Sub:
				r = a - b
			default:
				r = a * b
			}
			sp -= slotSize
			le.PutUint64(frame[sp-slotSize:], uint64(math.Float32bits(r)))

		case OpF64Add, OpF64Sub, OpF64Mul:
			a := math.Float64frombits(le.Uint64(frame[sp-16:]))
			b := math.Float64frombits(le.Uint64(frame[sp-8:]))
			var r float64
			switch op {
			case OpF64Add:
				r = a + b
			case OpF64Sub:
				r = a - b
			default:
				r = a * b
			}
			sp -= slotSize
			le.PutUint64(frame[sp-slotSize:], math.Float64bits(r))

		case OpRefNull:
			le.PutUint64(frame[sp:], 0)
			sp += slotSize

		case OpRefIsNull:
			var r uint64
			if le.Uint64(frame[sp-slotSize:]) == 0 {
				r = 1
			}
			le.PutUint64(frame[sp-slotSize:], r)

		case OpRefFunc:
			h := inst.engine.RefFunc(inst.funcs[le.Uint32(code[pc+1:])])
			le.PutUint64(frame[sp:], h)
			sp += slotSize

		default:
			return nil, errors.Trapf(errors.InFunction(int(f.index)), "invalid byte code %s at %d", op, pc)
		}
		pc += op.Size()
	}
}

// callOperation pops the callee's parameter bytes off the caller's stack
// and invokes it. The caller pushes the returned result bytes.
func (inst *Instance) callOperation(frame []byte, sp *int, index uint32) ([]byte, error) {
	callee := inst.funcs[index]
	n := callee.Type().ParamSize()
	*sp -= n
	params := frame[*sp : *sp+n]
	return callee.call(params)
}
