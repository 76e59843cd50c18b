package wasm

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidjs/corvid/internal/wasmtest"
	"github.com/corvidjs/corvid/pkg/errors"
)

func compile(t *testing.T, e *Engine, m *wasmtest.Module) *Module {
	t.Helper()
	mod, err := e.Compile(context.Background(), m.MustEncode())
	require.NoError(t, err)
	return mod
}

func TestDecodeRejectsBadHeader(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00})
	var ce *errors.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "invalid version header", ce.Message())
	assert.Equal(t, 4, ce.Pos().Offset)

	e := newTestEngine(t, DefaultConfig())
	err = e.Validate(context.Background(), []byte("not wasm"))
	require.ErrorAs(t, err, &ce)
}

func TestEmitterChecksTypesWithoutValidator(t *testing.T) {
	e := newTestEngine(t, Config{Validate: false})
	bin := (&wasmtest.Module{Funcs: []wasmtest.Func{{
		Results: []string{"i32"},
		Body:    []string{"i64.const 1"},
	}}}).MustEncode()

	_, err := e.Compile(context.Background(), bin)
	var ce *errors.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message(), "type mismatch")
	assert.Equal(t, 0, ce.Pos().Function)
}

func TestHostImportCallBoundary(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	m := compile(t, e, &wasmtest.Module{
		Imports: []wasmtest.Import{{
			Module: "env", Name: "combine", Kind: "func",
			Params: []string{"i32", "f64"}, Results: []string{"i64", "i32"},
		}},
		Funcs: []wasmtest.Func{{
			Params:  []string{"i32"},
			Results: []string{"i64"},
			Body:    []string{"local.get 0", "f64.const 0.5", "call 0", "drop"},
		}},
		Exports: []wasmtest.Export{{Name: "run", Kind: "func", Index: 1}},
	})

	var seen []Value
	host := NewHostFunction("combine", FuncType{
		Params:  []ValueType{TypeI32, TypeF64},
		Results: []ValueType{TypeI64, TypeI32},
	}, func(args []Value) ([]Value, error) {
		seen = args
		return []Value{I64(int64(args[0].I32()) * 100), I32(-1)}, nil
	})

	inst, err := e.Instantiate(m, []Extern{{Kind: ExternFunc, Func: host}})
	require.NoError(t, err)
	run, ok := inst.Export("run")
	require.True(t, ok)

	got, err := Invoke(run.Func, I32(7))
	require.NoError(t, err)
	assert.Equal(t, []Value{I64(700)}, got)
	assert.Equal(t, []Value{I32(7), F64(0.5)}, seen)
}

func TestHostErrorsPropagateUnchanged(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	m := compile(t, e, &wasmtest.Module{
		Imports: []wasmtest.Import{{Module: "env", Name: "fail", Kind: "func"}},
		Funcs:   []wasmtest.Func{{Body: []string{"call 0"}}},
		Exports: []wasmtest.Export{{Name: "run", Kind: "func", Index: 1}},
	})
	boom := stderrors.New("boom")
	host := NewHostFunction("fail", FuncType{}, func([]Value) ([]Value, error) { return nil, boom })

	inst, err := e.Instantiate(m, []Extern{{Kind: ExternFunc, Func: host}})
	require.NoError(t, err)
	run, _ := inst.Export("run")
	_, err = Invoke(run.Func)
	assert.Same(t, boom, err)
}

func TestLinkErrors(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	m := compile(t, e, &wasmtest.Module{
		Imports: []wasmtest.Import{{
			Module: "env", Name: "f", Kind: "func", Params: []string{"i32"},
		}},
	})

	var le *errors.LinkError
	_, err := e.Instantiate(m, nil)
	require.ErrorAs(t, err, &le)

	g, err := NewGlobal(GlobalType{ValueType: TypeI32}, I32(1))
	require.NoError(t, err)
	_, err = e.Instantiate(m, []Extern{{Kind: ExternGlobal, Global: g}})
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "env", le.Module)
	assert.Equal(t, "f", le.Name)

	wrong := NewHostFunction("f", FuncType{Params: []ValueType{TypeI64}}, nil)
	_, err = e.Instantiate(m, []Extern{{Kind: ExternFunc, Func: wrong}})
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Error(), "import env.f: imported function does not match")
}

func TestImportedGlobalIsShared(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	m := compile(t, e, &wasmtest.Module{
		Imports: []wasmtest.Import{{
			Module: "env", Name: "counter", Kind: "global",
			Global: &wasmtest.Global{Type: "i64", Mutable: true},
		}},
		Funcs: []wasmtest.Func{{
			Body: []string{"global.get 0", "i64.const 1", "i64.add", "global.set 0"},
		}},
		Exports: []wasmtest.Export{{Name: "bump", Kind: "func", Index: 0}},
	})
	counter, err := NewGlobal(GlobalType{ValueType: TypeI64, Mutable: true}, I64(41))
	require.NoError(t, err)

	inst, err := e.Instantiate(m, []Extern{{Kind: ExternGlobal, Global: counter}})
	require.NoError(t, err)
	bump, _ := inst.Export("bump")
	_, err = Invoke(bump.Func)
	require.NoError(t, err)
	assert.Equal(t, I64(42), counter.Get())

	frozen, err := NewGlobal(GlobalType{ValueType: TypeI64}, I64(0))
	require.NoError(t, err)
	assert.Error(t, frozen.Set(I64(1)))
	assert.Error(t, counter.Set(I32(1)))
}

func TestMemoryDataAndGrow(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	maxPages := uint32(2)
	m := compile(t, e, &wasmtest.Module{
		Memory:  &wasmtest.Limits{Min: 1, Max: &maxPages},
		Data:    []wasmtest.Data{{Offset: 8, Bytes: "hi"}},
		Exports: []wasmtest.Export{{Name: "mem", Kind: "memory", Index: 0}},
	})
	inst, err := e.Instantiate(m, nil)
	require.NoError(t, err)

	exp, ok := inst.Export("mem")
	require.True(t, ok)
	mem := exp.Memory
	assert.Same(t, inst.Memory(), mem)
	assert.Equal(t, "hi", string(mem.Bytes()[8:10]))

	prev, ok := mem.Grow(1)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), prev)
	assert.Len(t, mem.Bytes(), 2*PageSize)
	assert.Equal(t, "hi", string(mem.Bytes()[8:10]))

	_, ok = mem.Grow(1)
	assert.False(t, ok)
}

func TestMemoryImportLimits(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	m := compile(t, e, &wasmtest.Module{
		Imports: []wasmtest.Import{{
			Module: "js", Name: "mem", Kind: "memory", Memory: &wasmtest.Limits{Min: 2},
		}},
	})
	small, err := NewMemory(Limits{Min: 1})
	require.NoError(t, err)
	_, err = e.Instantiate(m, []Extern{{Kind: ExternMemory, Memory: small}})
	var le *errors.LinkError
	require.ErrorAs(t, err, &le)

	big, err := NewMemory(Limits{Min: 3})
	require.NoError(t, err)
	inst, err := e.Instantiate(m, []Extern{{Kind: ExternMemory, Memory: big}})
	require.NoError(t, err)
	assert.Same(t, big, inst.Memory())
}

func TestRefFuncHandlesAreStable(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	m := compile(t, e, &wasmtest.Module{
		Funcs: []wasmtest.Func{
			{Results: []string{"funcref"}, Body: []string{"ref.func 1"}},
			{Results: []string{"i32"}, Body: []string{"i32.const 3"}},
		},
		Exports: []wasmtest.Export{
			{Name: "get", Kind: "func", Index: 0},
			{Name: "three", Kind: "func", Index: 1},
		},
	})
	inst, err := e.Instantiate(m, nil)
	require.NoError(t, err)
	get, _ := inst.Export("get")
	three, _ := inst.Export("three")

	first, err := Invoke(get.Func)
	require.NoError(t, err)
	second, err := Invoke(get.Func)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	callee, ok := e.ResolveFunc(first[0].Ref())
	require.True(t, ok)
	assert.Same(t, three.Func, callee)
	assert.Equal(t, first[0].Ref(), e.RefFunc(three.Func))

	_, ok = e.ResolveFunc(0)
	assert.False(t, ok)
}

func TestCustomSectionsAndExportOrder(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	m := compile(t, e, &wasmtest.Module{
		Funcs: []wasmtest.Func{{}},
		Globals: []wasmtest.Global{
			{Type: "f32", Init: "f32.const 1.5"},
		},
		Exports: []wasmtest.Export{
			{Name: "z", Kind: "func", Index: 0},
			{Name: "a", Kind: "global", Index: 0},
		},
		Customs: []wasmtest.Custom{
			{Name: "meta", Payload: "one"},
			{Name: "other", Payload: "x"},
			{Name: "meta", Payload: "two"},
		},
	})
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, m.CustomSections("meta"))
	assert.Empty(t, m.CustomSections("missing"))

	inst, err := e.Instantiate(m, nil)
	require.NoError(t, err)
	names := []string{}
	for _, exp := range inst.Exports() {
		names = append(names, exp.Name)
	}
	assert.Equal(t, []string{"z", "a"}, names)
	a, _ := inst.Export("a")
	assert.Equal(t, F32(1.5), a.Global.Get())
}

func TestTable(t *testing.T) {
	tbl, err := NewTable(TypeExternRef, Limits{Min: 2}, ExternRef(9))
	require.NoError(t, err)
	v, err := tbl.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v.Ref())

	require.NoError(t, tbl.Set(0, NullRef(TypeExternRef)))
	v, _ = tbl.Get(0)
	assert.True(t, v.IsNull())
	assert.Error(t, tbl.Set(0, FuncRef(1)))
	_, err = tbl.Get(2)
	assert.Error(t, err)

	prev, ok := tbl.Grow(3, NullRef(TypeExternRef))
	assert.True(t, ok)
	assert.Equal(t, uint32(2), prev)
	assert.Equal(t, uint32(5), tbl.Len())

	_, err = NewTable(TypeI32, Limits{}, I32(0))
	assert.Error(t, err)
}

func TestValueEncodings(t *testing.T) {
	nan := F32(math.Float32frombits(0x7fa00001))
	assert.True(t, nan.IsCanonicalNaN())
	assert.Equal(t, "i32:-1", I32(-1).String())
	assert.Equal(t, "externref:null", NullRef(TypeExternRef).String())
	assert.Equal(t, "(i32, f64) -> (externref)",
		(&FuncType{Params: []ValueType{TypeI32, TypeF64}, Results: []ValueType{TypeExternRef}}).String())

	typ, ok := ParseValueType("anyfunc")
	assert.True(t, ok)
	assert.Equal(t, TypeFuncRef, typ)
}
