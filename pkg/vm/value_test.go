package vm

import (
	"math"
	"math/big"
	"testing"
)

func TestHoleIsDistinctFromUndefined(t *testing.T) {
	if Hole.IsUndefined() || !Hole.IsHole() {
		t.Errorf("hole must not report as undefined")
	}
	if StrictEquals(Hole, Undefined) {
		t.Errorf("hole and undefined are different values")
	}
}

func TestObjectValuePanicsOnNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic for a nil object pointer")
		}
	}()
	objectValue(TypeObject, nil)
}

func TestEqualityFlavors(t *testing.T) {
	negZero := NumberValue(math.Copysign(0, -1))
	tests := []struct {
		name                 string
		a, b                 Value
		strict, svz, sameVal bool
	}{
		{"nan", NaN, NaN, false, true, true},
		{"signed zero", negZero, IntegerValue(0), true, true, false},
		{"int and float", IntegerValue(3), NumberValue(3), true, true, true},
		{"strings", NewString("a"), NewString("a"), true, true, true},
		{"bigints", NewBigInt(big.NewInt(5)), NewBigInt(big.NewInt(5)), true, true, true},
		{"distinct objects", NewObject(Null), NewObject(Null), false, false, false},
		{"number vs string", IntegerValue(1), NewString("1"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StrictEquals(tt.a, tt.b); got != tt.strict {
				t.Errorf("StrictEquals = %v, want %v", got, tt.strict)
			}
			if got := SameValueZero(tt.a, tt.b); got != tt.svz {
				t.Errorf("SameValueZero = %v, want %v", got, tt.svz)
			}
			if got := SameValue(tt.a, tt.b); got != tt.sameVal {
				t.Errorf("SameValue = %v, want %v", got, tt.sameVal)
			}
		})
	}
}

func TestIndexValueUsesIntegerFastPath(t *testing.T) {
	if v := IndexValue(7); v.Type() != TypeIntegerNumber {
		t.Errorf("expected integer representation, got %s", v.Type())
	}
	if v := IndexValue(MaxArrayLength); v.Type() != TypeFloatNumber || v.AsNumber() != MaxArrayLength {
		t.Errorf("expected float representation of 2^32-1, got %v", v)
	}
}

func TestTypeOf(t *testing.T) {
	vm := New(Options{})
	fn := vm.NewNativeFunction(0, false, "f", func(args []Value) (Value, error) { return Undefined, nil })
	tests := map[string]Value{
		"undefined": Undefined,
		"object":    Null,
		"boolean":   True,
		"number":    NaN,
		"bigint":    NewBigInt(big.NewInt(1)),
		"string":    NewString(""),
		"symbol":    SymbolValue(NewSymbol("x")),
		"function":  fn,
	}
	for want, v := range tests {
		if got := v.TypeOf(); got != want {
			t.Errorf("typeof %s = %q, want %q", v.Inspect(), got, want)
		}
	}
	if got := vm.NewArray().TypeOf(); got != "object" {
		t.Errorf("typeof [] = %q", got)
	}
}

func TestInspectArrayShowsHoles(t *testing.T) {
	vm := New(Options{})
	arr := vm.NewArrayFromSlice([]Value{IntegerValue(1), Hole, NewString("x")})
	if got := arr.Inspect(); got != `[1, <hole>, "x"]` {
		t.Errorf("Inspect = %s", got)
	}
}
