package errors

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	cases := []struct {
		err  StageError
		want string
	}{
		{Compilef(At(0x1a), "unexpected end"), "Compile Error (@ 0x1a): unexpected end"},
		{Trapf(InFunction(3), "unreachable"), "Runtime Error (func 3): unreachable"},
		{Trapf(Position{Offset: 16, Function: 2}, "boom"), "Runtime Error (func 2 @ 0x10): boom"},
		{Linkf("env", "log", "function import requires a callable"), "Link Error: import env.log: function import requires a callable"},
		{&CompileError{Position: NoPosition, Msg: "bad magic"}, "Compile Error: bad magic"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.Error())
	}
}

func TestAsStageErrorUnwrapsChains(t *testing.T) {
	inner := Compilef(At(8), "bad section").CausedBy(io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("compiling module: %w", inner)

	se, ok := AsStageError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "Compile", se.Kind())
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)

	_, ok = AsStageError(io.EOF)
	assert.False(t, ok)
}

func TestDisplay(t *testing.T) {
	var buf bytes.Buffer
	Display(&buf, "add.wasm", []StageError{
		Compilef(At(4), "unknown version"),
		Trapf(NoPosition, "stack exhausted"),
	})
	assert.Equal(t, "add.wasm: Compile Error (@ 0x4): unknown version\nadd.wasm: Runtime Error: stack exhausted\n", buf.String())
}
