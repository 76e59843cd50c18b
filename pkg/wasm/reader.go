package wasm

import (
	"math"
	"unicode/utf8"

	"github.com/corvidjs/corvid/pkg/errors"
)

// reader walks a slice of a module binary. base is the offset of buf[0]
// in the whole binary so errors carry absolute positions.
type reader struct {
	buf  []byte
	off  int
	base int
}

func (r *reader) pos() int  { return r.base + r.off }
func (r *reader) eof() bool { return r.off >= len(r.buf) }

func (r *reader) rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

func (r *reader) truncated() error {
	return errors.Compilef(errors.At(r.pos()), "unexpected end of section or function")
}

func (r *reader) byte() (byte, error) {
	if r.eof() {
		return 0, r.truncated()
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, r.truncated()
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// uleb reads an unsigned LEB128 number of at most bits bits.
func (r *reader) uleb(bits uint) (uint64, error) {
	at := r.pos()
	var result uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= bits || (shift+7 > bits && b&0x7f>>(bits-shift) != 0) {
			return 0, errors.Compilef(errors.At(at), "integer representation too long")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// sleb reads a signed LEB128 number of at most bits bits.
func (r *reader) sleb(bits uint) (int64, error) {
	at := r.pos()
	var result int64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= bits {
			return 0, errors.Compilef(errors.At(at), "integer representation too long")
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			if bits < 64 && (result < -(1<<(bits-1)) || result >= 1<<(bits-1)) {
				return 0, errors.Compilef(errors.At(at), "integer too large")
			}
			return result, nil
		}
	}
}

func (r *reader) u32() (uint32, error) {
	v, err := r.uleb(32)
	return uint32(v), err
}

func (r *reader) u32Vec() ([]uint32, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, min(int(n), len(r.buf)))
	for range n {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *reader) f32() (float32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24), nil
}

func (r *reader) f64() (float64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	var bits uint64
	for i := 7; i >= 0; i-- {
		bits = bits<<8 | uint64(b[i])
	}
	return math.Float64frombits(bits), nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	at := r.pos()
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.Compilef(errors.At(at), "malformed UTF-8 encoding")
	}
	return string(b), nil
}

func (r *reader) valueType() (ValueType, error) {
	at := r.pos()
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	t := ValueType(b)
	if !t.Valid() {
		return 0, errors.Compilef(errors.At(at), "invalid value type 0x%02x", b)
	}
	return t, nil
}

func (r *reader) valueTypes() ([]ValueType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]ValueType, 0, min(int(n), len(r.buf)))
	for range n {
		t, err := r.valueType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *reader) limits(maxMin uint32) (Limits, error) {
	at := r.pos()
	flag, err := r.byte()
	if err != nil {
		return Limits{}, err
	}
	var lim Limits
	if lim.Min, err = r.u32(); err != nil {
		return Limits{}, err
	}
	switch flag {
	case 0x00:
	case 0x01:
		hi, err := r.u32()
		if err != nil {
			return Limits{}, err
		}
		lim.Max = &hi
	default:
		return Limits{}, errors.Compilef(errors.At(at), "invalid limits flags 0x%02x", flag)
	}
	if lim.Min > maxMin || lim.Max != nil && (*lim.Max > maxMin || *lim.Max < lim.Min) {
		return Limits{}, errors.Compilef(errors.At(at), "invalid limits")
	}
	return lim, nil
}

func (r *reader) globalType() (GlobalType, error) {
	t, err := r.valueType()
	if err != nil {
		return GlobalType{}, err
	}
	at := r.pos()
	mut, err := r.byte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, errors.Compilef(errors.At(at), "invalid mutability 0x%02x", mut)
	}
	return GlobalType{ValueType: t, Mutable: mut == 1}, nil
}

// constExpr reads a single-instruction constant expression of type want
// followed by end.
func (r *reader) constExpr(want ValueType) (ConstExpr, error) {
	at := r.pos()
	op, err := r.byte()
	if err != nil {
		return ConstExpr{}, err
	}
	e := ConstExpr{Op: op}
	got := want
	switch op {
	case opcodeI32Const:
		v, err := r.sleb(32)
		if err != nil {
			return ConstExpr{}, err
		}
		e.Value, got = I32(int32(v)), TypeI32
	case opcodeI64Const:
		v, err := r.sleb(64)
		if err != nil {
			return ConstExpr{}, err
		}
		e.Value, got = I64(v), TypeI64
	case opcodeF32Const:
		v, err := r.f32()
		if err != nil {
			return ConstExpr{}, err
		}
		e.Value, got = Value{typ: TypeF32, lo: uint64(math.Float32bits(v))}, TypeF32
	case opcodeF64Const:
		v, err := r.f64()
		if err != nil {
			return ConstExpr{}, err
		}
		e.Value, got = F64(v), TypeF64
	case opcodeRefNull:
		t, err := r.valueType()
		if err != nil {
			return ConstExpr{}, err
		}
		e.Value, got = NullRef(t), t
	case opcodeRefFunc:
		if e.Func, err = r.u32(); err != nil {
			return ConstExpr{}, err
		}
		got = TypeFuncRef
	case opcodeGlobalGet:
		if e.Global, err = r.u32(); err != nil {
			return ConstExpr{}, err
		}
	default:
		return ConstExpr{}, errors.Compilef(errors.At(at), "constant expression required")
	}
	if got != want {
		return ConstExpr{}, errors.Compilef(errors.At(at), "type mismatch: expected %s, got %s", want, got)
	}
	end, err := r.byte()
	if err != nil {
		return ConstExpr{}, err
	}
	if end != opcodeEnd {
		return ConstExpr{}, errors.Compilef(errors.At(r.pos()-1), "constant expression required")
	}
	return e, nil
}
