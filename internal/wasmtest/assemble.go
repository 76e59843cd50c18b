// Package wasmtest assembles small WebAssembly binaries for tests. Modules
// are described with plain data (which YAML fixtures decode into) and
// function bodies with one text instruction per entry, e.g. "i32.const 5".
package wasmtest

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Module describes a module. Functions are numbered imports first.
type Module struct {
	Imports []Import `yaml:"imports"`
	Funcs   []Func   `yaml:"funcs"`
	Memory  *Limits  `yaml:"memory"`
	Globals []Global `yaml:"globals"`
	Exports []Export `yaml:"exports"`
	Start   *uint32  `yaml:"start"`
	Data    []Data   `yaml:"data"`
	Customs []Custom `yaml:"customs"`
}

type Import struct {
	Module  string   `yaml:"module"`
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Params  []string `yaml:"params"`
	Results []string `yaml:"results"`
	Global  *Global  `yaml:"global"`
	Memory  *Limits  `yaml:"memory"`
}

type Func struct {
	Params  []string `yaml:"params"`
	Results []string `yaml:"results"`
	Locals  []string `yaml:"locals"`
	Body    []string `yaml:"body"`
}

type Limits struct {
	Min uint32  `yaml:"min"`
	Max *uint32 `yaml:"max"`
}

type Global struct {
	Type    string `yaml:"type"`
	Mutable bool   `yaml:"mutable"`
	// Init is a constant instruction; unused for imports.
	Init string `yaml:"init"`
}

type Export struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Index uint32 `yaml:"index"`
}

type Data struct {
	Offset int32  `yaml:"offset"`
	Bytes  string `yaml:"bytes"`
}

type Custom struct {
	Name    string `yaml:"name"`
	Payload string `yaml:"payload"`
}

// MustEncode is Encode that panics on error.
func (m *Module) MustEncode() []byte {
	bin, err := m.Encode()
	if err != nil {
		panic(err)
	}
	return bin
}

type signature struct{ params, results []byte }

// Encode emits the module binary.
func (m *Module) Encode() ([]byte, error) {
	var sigs []signature
	typeIndex := func(params, results []string) (uint32, error) {
		p, err := valueTypes(params)
		if err != nil {
			return 0, err
		}
		r, err := valueTypes(results)
		if err != nil {
			return 0, err
		}
		for i, s := range sigs {
			if slices.Equal(s.params, p) && slices.Equal(s.results, r) {
				return uint32(i), nil
			}
		}
		sigs = append(sigs, signature{p, r})
		return uint32(len(sigs) - 1), nil
	}

	var imports, funcs, memory, globals, exports, code, data []byte
	imports = appendU(imports, uint64(len(m.Imports)))
	for _, imp := range m.Imports {
		imports = appendName(appendName(imports, imp.Module), imp.Name)
		switch imp.Kind {
		case "func", "function":
			idx, err := typeIndex(imp.Params, imp.Results)
			if err != nil {
				return nil, err
			}
			imports = appendU(append(imports, 0x00), uint64(idx))
		case "global":
			if imp.Global == nil {
				return nil, fmt.Errorf("import %s.%s: missing global type", imp.Module, imp.Name)
			}
			gt, err := globalType(*imp.Global)
			if err != nil {
				return nil, err
			}
			imports = append(append(imports, 0x03), gt...)
		case "memory":
			if imp.Memory == nil {
				return nil, fmt.Errorf("import %s.%s: missing limits", imp.Module, imp.Name)
			}
			imports = appendLimits(append(imports, 0x02), *imp.Memory)
		default:
			return nil, fmt.Errorf("import %s.%s: unknown kind %q", imp.Module, imp.Name, imp.Kind)
		}
	}

	funcs = appendU(funcs, uint64(len(m.Funcs)))
	code = appendU(code, uint64(len(m.Funcs)))
	for i, fn := range m.Funcs {
		idx, err := typeIndex(fn.Params, fn.Results)
		if err != nil {
			return nil, err
		}
		funcs = appendU(funcs, uint64(idx))
		locals, err := valueTypes(fn.Locals)
		if err != nil {
			return nil, err
		}
		var body []byte
		body = appendU(body, uint64(len(locals)))
		for _, t := range locals {
			body = append(appendU(body, 1), t)
		}
		for _, text := range fn.Body {
			instr, err := Instr(text)
			if err != nil {
				return nil, fmt.Errorf("func %d: %w", i, err)
			}
			body = append(body, instr...)
		}
		body = append(body, 0x0b)
		code = append(appendU(code, uint64(len(body))), body...)
	}

	if m.Memory != nil {
		memory = appendLimits(appendU(memory, 1), *m.Memory)
	}

	globals = appendU(globals, uint64(len(m.Globals)))
	for _, g := range m.Globals {
		gt, err := globalType(g)
		if err != nil {
			return nil, err
		}
		init, err := Instr(g.Init)
		if err != nil {
			return nil, err
		}
		globals = append(append(append(globals, gt...), init...), 0x0b)
	}

	exports = appendU(exports, uint64(len(m.Exports)))
	for _, exp := range m.Exports {
		kind, err := externKind(exp.Kind)
		if err != nil {
			return nil, err
		}
		exports = appendU(append(appendName(exports, exp.Name), kind), uint64(exp.Index))
	}

	data = appendU(data, uint64(len(m.Data)))
	for _, d := range m.Data {
		data = append(appendS(append(data, 0x00, 0x41), int64(d.Offset)), 0x0b)
		data = append(appendU(data, uint64(len(d.Bytes))), d.Bytes...)
	}

	types := encodeTypes(sigs)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = appendSection(out, 1, types, len(sigs) > 0)
	out = appendSection(out, 2, imports, len(m.Imports) > 0)
	out = appendSection(out, 3, funcs, len(m.Funcs) > 0)
	out = appendSection(out, 5, memory, m.Memory != nil)
	out = appendSection(out, 6, globals, len(m.Globals) > 0)
	out = appendSection(out, 7, exports, len(m.Exports) > 0)
	if m.Start != nil {
		out = appendSection(out, 8, appendU(nil, uint64(*m.Start)), true)
	}
	out = appendSection(out, 10, code, len(m.Funcs) > 0)
	out = appendSection(out, 11, data, len(m.Data) > 0)
	for _, c := range m.Customs {
		out = appendSection(out, 0, append(appendName(nil, c.Name), c.Payload...), true)
	}
	return out, nil
}

func encodeTypes(sigs []signature) []byte {
	out := appendU(nil, uint64(len(sigs)))
	for _, s := range sigs {
		out = append(out, 0x60)
		out = append(appendU(out, uint64(len(s.params))), s.params...)
		out = append(appendU(out, uint64(len(s.results))), s.results...)
	}
	return out
}

func appendSection(out []byte, id byte, payload []byte, present bool) []byte {
	if !present {
		return out
	}
	return append(appendU(append(out, id), uint64(len(payload))), payload...)
}

func appendU(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendS(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v == 0 && c&0x40 == 0 || v == -1 && c&0x40 != 0 {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendName(b []byte, s string) []byte {
	return append(appendU(b, uint64(len(s))), s...)
}

func appendLimits(b []byte, l Limits) []byte {
	if l.Max == nil {
		return appendU(append(b, 0x00), uint64(l.Min))
	}
	return appendU(appendU(append(b, 0x01), uint64(l.Min)), uint64(*l.Max))
}

var valueTypeCodes = map[string]byte{
	"i32": 0x7f, "i64": 0x7e, "f32": 0x7d, "f64": 0x7c,
	"v128": 0x7b, "funcref": 0x70, "externref": 0x6f,
}

func valueTypes(names []string) ([]byte, error) {
	out := make([]byte, 0, len(names))
	for _, n := range names {
		c, ok := valueTypeCodes[n]
		if !ok {
			return nil, fmt.Errorf("unknown value type %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}

func globalType(g Global) ([]byte, error) {
	t, err := valueTypes([]string{g.Type})
	if err != nil {
		return nil, err
	}
	if g.Mutable {
		return append(t, 0x01), nil
	}
	return append(t, 0x00), nil
}

func externKind(kind string) (byte, error) {
	switch kind {
	case "func", "function":
		return 0x00, nil
	case "table":
		return 0x01, nil
	case "memory":
		return 0x02, nil
	case "global":
		return 0x03, nil
	}
	return 0, fmt.Errorf("unknown extern kind %q", kind)
}

var simpleOps = map[string]byte{
	"unreachable": 0x00, "nop": 0x01, "return": 0x0f, "drop": 0x1a,
	"i32.add": 0x6a, "i32.sub": 0x6b, "i32.mul": 0x6c,
	"i64.add": 0x7c, "i64.sub": 0x7d, "i64.mul": 0x7e,
	"f32.add": 0x92, "f32.sub": 0x93, "f32.mul": 0x94,
	"f64.add": 0xa0, "f64.sub": 0xa1, "f64.mul": 0xa2,
	"ref.is_null": 0xd1,
}

var indexOps = map[string]byte{
	"call": 0x10, "local.get": 0x20, "local.set": 0x21, "local.tee": 0x22,
	"global.get": 0x23, "global.set": 0x24, "ref.func": 0xd2,
}

// Instr encodes one text instruction. "raw 0x02 0x40" emits the listed
// bytes verbatim.
func Instr(text string) ([]byte, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty instruction")
	}
	name, args := fields[0], fields[1:]
	arg := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s: expected one immediate", name)
		}
		return args[0], nil
	}

	if op, ok := simpleOps[name]; ok {
		return []byte{op}, nil
	}
	if op, ok := indexOps[name]; ok {
		a, err := arg()
		if err != nil {
			return nil, err
		}
		idx, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return appendU([]byte{op}, idx), nil
	}

	switch name {
	case "i32.const", "i64.const":
		a, err := arg()
		if err != nil {
			return nil, err
		}
		bits := 32
		op := byte(0x41)
		if name == "i64.const" {
			bits, op = 64, 0x42
		}
		v, err := strconv.ParseInt(a, 0, bits)
		if err != nil {
			u, uerr := strconv.ParseUint(a, 0, bits)
			if uerr != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			v = int64(u)
			if bits == 32 {
				v = int64(int32(uint32(u)))
			}
		}
		return appendS([]byte{op}, v), nil
	case "f32.const":
		a, err := arg()
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		bits := math.Float32bits(float32(f))
		return []byte{0x43, byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}, nil
	case "f64.const":
		a, err := arg()
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		bits := math.Float64bits(f)
		out := []byte{0x44}
		for i := 0; i < 8; i++ {
			out = append(out, byte(bits>>(8*i)))
		}
		return out, nil
	case "ref.null":
		a, err := arg()
		if err != nil {
			return nil, err
		}
		switch a {
		case "func", "funcref":
			return []byte{0xd0, 0x70}, nil
		case "extern", "externref":
			return []byte{0xd0, 0x6f}, nil
		}
		return nil, fmt.Errorf("ref.null: unknown heap type %q", a)
	case "raw":
		out := make([]byte, 0, len(args))
		for _, a := range args {
			b, err := strconv.ParseUint(a, 0, 8)
			if err != nil {
				return nil, fmt.Errorf("raw: %w", err)
			}
			out = append(out, byte(b))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown instruction %q", name)
}
