package wasmtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrEncodings(t *testing.T) {
	cases := map[string][]byte{
		"i32.const -1":         {0x41, 0x7f},
		"i32.const 64":         {0x41, 0xc0, 0x00},
		"i32.const 0xffffffff": {0x41, 0x7f},
		"i64.const 128":        {0x42, 0x80, 0x01},
		"local.get 300":        {0x20, 0xac, 0x02},
		"f32.const 1":          {0x43, 0x00, 0x00, 0x80, 0x3f},
		"ref.null extern":      {0xd0, 0x6f},
		"raw 0x02 0x40":        {0x02, 0x40},
		"i32.add":              {0x6a},
	}
	for text, want := range cases {
		got, err := Instr(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, got, text)
	}

	_, err := Instr("i32.frobnicate")
	assert.Error(t, err)
	_, err = Instr("call")
	assert.Error(t, err)
}

func TestEncodeDeduplicatesSignatures(t *testing.T) {
	bin, err := (&Module{
		Funcs: []Func{
			{Params: []string{"i32"}, Body: []string{"nop"}},
			{Params: []string{"i32"}},
		},
	}).Encode()
	require.NoError(t, err)

	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x05, 0x01, 0x60, 0x01, 0x7f, 0x00, // one type
		0x03, 0x03, 0x02, 0x00, 0x00, // two functions of type 0
		0x0a, 0x08, 0x02, 0x03, 0x00, 0x01, 0x0b, 0x02, 0x00, 0x0b,
	}
	assert.Equal(t, want, bin)
}
