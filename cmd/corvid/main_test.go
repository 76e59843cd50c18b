package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/corvidjs/corvid/internal/wasmtest"
	"github.com/corvidjs/corvid/pkg/errors"
	"github.com/corvidjs/corvid/pkg/wasm"
)

func writeModule(t *testing.T, m *wasmtest.Module) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "m.wasm")
	require.NoError(t, os.WriteFile(path, m.MustEncode(), 0o644))
	return path
}

func newRunner(t *testing.T, stub bool) (*runner, *bytes.Buffer) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	e := wasm.NewEngine(context.Background(), wasm.DefaultConfig(), logger)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	var out bytes.Buffer
	return &runner{engine: e, logger: logger, out: &out, stubImports: stub}, &out
}

var logModule = &wasmtest.Module{
	Imports: []wasmtest.Import{{Module: "env", Name: "log", Kind: "func", Params: []string{"i32"}, Results: []string{"i32"}}},
	Funcs: []wasmtest.Func{{
		Params:  []string{"i32", "i64"},
		Results: []string{"i64", "i32"},
		Body:    []string{"local.get 1", "local.get 1", "i64.add", "local.get 0", "call 0"},
	}},
	Exports: []wasmtest.Export{{Name: "run", Kind: "func", Index: 1}},
}

func TestValidateAndExports(t *testing.T) {
	r, out := newRunner(t, false)
	path := writeModule(t, logModule)

	require.NoError(t, r.validate(context.Background(), path))
	assert.Contains(t, out.String(), ": ok")

	out.Reset()
	require.NoError(t, r.exports(context.Background(), path))
	assert.Equal(t,
		"import function env.log (i32) -> (i32)\nexport function run (i32, i64) -> (i64, i32)\n",
		out.String())

	bad := filepath.Join(t.TempDir(), "bad.wasm")
	require.NoError(t, os.WriteFile(bad, []byte{0, 'a', 's', 'm', 9, 0, 0, 0}, 0o644))
	err := r.validate(context.Background(), bad)
	var ce *errors.CompileError
	assert.ErrorAs(t, err, &ce)
}

func TestInvoke(t *testing.T) {
	r, out := newRunner(t, false)
	path := writeModule(t, logModule)

	err := r.invoke(context.Background(), path, "run", []string{"1", "2"})
	var le *errors.LinkError
	require.ErrorAs(t, err, &le, "imports need -stub-imports")

	r.stubImports = true
	require.NoError(t, r.invoke(context.Background(), path, "run", []string{"7", "0x10"}))
	assert.Equal(t, "i64:32 i32:0\n", out.String())

	assert.Error(t, r.invoke(context.Background(), path, "run", []string{"1"}))
	assert.Error(t, r.invoke(context.Background(), path, "missing", nil))
}

func TestParseArg(t *testing.T) {
	v, err := parseArg(wasm.TypeI32, "4294967295")
	require.NoError(t, err)
	assert.Equal(t, wasm.I32(-1), v)

	v, err = parseArg(wasm.TypeF64, "2.5")
	require.NoError(t, err)
	assert.Equal(t, wasm.F64(2.5), v)

	v, err = parseArg(wasm.TypeExternRef, "null")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = parseArg(wasm.TypeI64, "x")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corvid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\ndevelopment: true\nmax_call_depth: 50\nvalidate: false\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Development)
	ec := cfg.engineConfig()
	assert.Equal(t, 50, ec.MaxCallDepth)
	assert.False(t, ec.Validate)

	logger, err := cfg.logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg, err = loadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.engineConfig().Validate)

	cfg.LogLevel = "loud"
	_, err = cfg.logger()
	assert.Error(t, err)
}

// runWith executes run with a fresh flag set and the given arguments.
func runWith(t *testing.T, args ...string) int {
	t.Helper()
	savedArgs, savedFlags := os.Args, flag.CommandLine
	t.Cleanup(func() { os.Args, flag.CommandLine = savedArgs, savedFlags })
	os.Args = append([]string{"corvid"}, args...)
	flag.CommandLine = flag.NewFlagSet("corvid", flag.ContinueOnError)
	return run()
}

func TestRunExitCodes(t *testing.T) {
	path := writeModule(t, logModule)
	bad := filepath.Join(t.TempDir(), "bad.wasm")
	require.NoError(t, os.WriteFile(bad, []byte("not wasm"), 0o644))

	assert.Equal(t, exitOK, runWith(t, "-log-level", "error", "validate", path))
	assert.Equal(t, exitError, runWith(t, "-log-level", "error", "validate", bad))
	assert.Equal(t, exitError, runWith(t, "-log-level", "error", "invoke", path, "run", "1", "2"))
	assert.Equal(t, exitOK, runWith(t, "-log-level", "error", "-stub-imports", "invoke", path, "run", "1", "2"))
	assert.Equal(t, exitUsage, runWith(t, "frobnicate", path))
	assert.Equal(t, exitUsage, runWith(t, "validate"))
	assert.Equal(t, exitUsage, runWith(t, "-log-level", "loud", "validate", path))
}
