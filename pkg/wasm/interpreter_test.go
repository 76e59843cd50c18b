package wasm

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/corvidjs/corvid/internal/wasmtest"
	"github.com/corvidjs/corvid/pkg/errors"
)

type fixture struct {
	Name      string          `yaml:"name"`
	Module    wasmtest.Module `yaml:"module"`
	Invoke    string          `yaml:"invoke"`
	Args      []string        `yaml:"args"`
	Expect    []string        `yaml:"expect"`
	Error     string          `yaml:"error"`
	Message   string          `yaml:"message"`
	StackSize *int            `yaml:"stack_size"`
}

func loadFixtures(t *testing.T, path string) []fixture {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var cases []fixture
	require.NoError(t, yaml.Unmarshal(raw, &cases))
	require.NotEmpty(t, cases)
	return cases
}

// parseValue reads the type:value notation of the fixtures.
func parseValue(t *testing.T, s string) Value {
	t.Helper()
	typ, lit, ok := strings.Cut(s, ":")
	require.True(t, ok, "value %q", s)
	switch typ {
	case "i32":
		n, err := strconv.ParseInt(lit, 10, 32)
		require.NoError(t, err)
		return I32(int32(n))
	case "i64":
		n, err := strconv.ParseInt(lit, 10, 64)
		require.NoError(t, err)
		return I64(n)
	case "f32":
		f, err := strconv.ParseFloat(lit, 32)
		require.NoError(t, err)
		return F32(float32(f))
	case "f64":
		f, err := strconv.ParseFloat(lit, 64)
		require.NoError(t, err)
		return F64(f)
	}
	t.Fatalf("unknown value type in %q", s)
	return Void
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e := NewEngine(context.Background(), cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestInterpreterFixtures(t *testing.T) {
	for _, fx := range loadFixtures(t, "testdata/interpreter.yaml") {
		t.Run(fx.Name, func(t *testing.T) {
			bin, err := fx.Module.Encode()
			require.NoError(t, err)

			e := newTestEngine(t, DefaultConfig())
			err = func() error {
				m, err := e.Compile(context.Background(), bin)
				if err != nil {
					return err
				}
				if fx.StackSize != nil {
					assert.Equal(t, *fx.StackSize, m.Functions[0].RequiredStackSize)
				}
				inst, err := e.Instantiate(m, nil)
				if err != nil {
					return err
				}
				if fx.Invoke == "" {
					return nil
				}
				exp, ok := inst.Export(fx.Invoke)
				require.True(t, ok)
				args := make([]Value, len(fx.Args))
				for i, a := range fx.Args {
					args[i] = parseValue(t, a)
				}
				got, err := Invoke(exp.Func, args...)
				if err != nil {
					return err
				}
				want := make([]Value, len(fx.Expect))
				for i, s := range fx.Expect {
					want[i] = parseValue(t, s)
				}
				assert.Equal(t, want, got)
				return nil
			}()

			if fx.Error == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			se, ok := errors.AsStageError(err)
			require.True(t, ok, "%v is not a stage error", err)
			assert.Equal(t, strings.ToUpper(fx.Error[:1])+fx.Error[1:], se.Kind())
			assert.Contains(t, se.Message(), fx.Message)
		})
	}
}

func TestRequiredStackSizeSizesTheFrame(t *testing.T) {
	bin := (&wasmtest.Module{
		Funcs: []wasmtest.Func{{
			Params:  []string{"i64", "f32"},
			Results: []string{"i64"},
			Locals:  []string{"i32"},
			Body:    []string{"local.get 0", "local.get 0", "i64.add"},
		}},
	}).MustEncode()

	m, err := Decode(bin)
	require.NoError(t, err)
	fn := m.Functions[0]
	assert.Equal(t, 16, fn.RequiredStackSize)
	assert.Equal(t, 3*slotSize+16, fn.FrameSize())
	assert.Equal(t,
		"0000 local.get @0/8\n0006 local.get @0/8\n0012 i64.add\n0013 end\n",
		Disassemble(fn.Code))
}
