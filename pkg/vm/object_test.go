package vm

import (
	"testing"
)

func TestPlainObjectBasic(t *testing.T) {
	po := NewObject(Null).AsPlainObject()
	if po.HasOwn("foo") {
		t.Errorf("expected HasOwn(\"foo\") to be false on new object")
	}
	if v, ok := po.GetOwn("foo"); ok {
		t.Errorf("expected GetOwn(\"foo\") ok=false, got ok=true, v=%v", v)
	}

	po.SetOwn("foo", IntegerValue(42))
	v, ok := po.GetOwn("foo")
	if !ok || v.AsInteger() != 42 {
		t.Fatalf("expected GetOwn to return 42, got %v (ok=%v)", v, ok)
	}

	po.SetOwn("foo", IntegerValue(7))
	if v, _ := po.GetOwn("foo"); v.AsInteger() != 7 {
		t.Errorf("expected overwritten value 7, got %v", v)
	}

	keys := po.OwnKeys()
	if len(keys) != 1 || keys[0] != "foo" {
		t.Errorf("OwnKeys mismatch, expected [foo], got %v", keys)
	}
}

func TestOwnKeysOrdering(t *testing.T) {
	vm := New(Options{})
	obj := NewObject(Null)
	po := obj.AsPlainObject()
	sym := NewSymbol("s")
	po.SetOwnSymbolNonEnumerable(sym, True)
	po.SetOwn("b", True)
	po.SetOwn("10", True)
	po.SetOwn("a", True)
	po.SetOwn("2", True)
	po.SetOwn("01", True)

	keys, err := vm.OwnPropertyKeys(obj)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2", "10", "b", "a", "01", "Symbol(s)"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i, k := range keys {
		if k.String() != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], k)
		}
	}
}

func TestIndexKeyCanonicalForm(t *testing.T) {
	cases := []struct {
		name  string
		index int64
		ok    bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"042", 0, false},
		{"-1", 0, false},
		{"1.0", 0, false},
		{"9007199254740991", MaxSafeInteger, true},
		{"9007199254740992", 0, false},
	}
	for _, c := range cases {
		i, ok := StringKey(c.name).Index()
		if ok != c.ok || i != c.index {
			t.Errorf("Index(%q) = %d, %v; want %d, %v", c.name, i, ok, c.index, c.ok)
		}
	}
	if _, ok := StringKey("4294967295").ArrayIndex(); ok {
		t.Errorf("2^32-1 is not an array index")
	}
}

func TestValidateAndApply(t *testing.T) {
	vm := New(Options{})
	obj := NewObject(Null)
	key := StringKey("x")
	if ok, _ := vm.DefineOwnProperty(obj, key, DataProperty(IntegerValue(1), false, true, false)); !ok {
		t.Fatalf("initial define failed")
	}

	// Same value on a frozen property is allowed.
	if ok, _ := vm.DefineOwnProperty(obj, key, PropertyDescriptor{Value: IntegerValue(1), HasValue: true}); !ok {
		t.Errorf("redefining with the same value should succeed")
	}
	if ok, _ := vm.DefineOwnProperty(obj, key, PropertyDescriptor{Value: IntegerValue(2), HasValue: true}); ok {
		t.Errorf("changing a non-writable, non-configurable value should fail")
	}
	if ok, _ := vm.DefineOwnProperty(obj, key, PropertyDescriptor{Enumerable: false, HasEnumerable: true}); ok {
		t.Errorf("changing enumerability of a non-configurable property should fail")
	}
	if ok, _ := vm.DefineOwnProperty(obj, key, AccessorProperty(Undefined, Undefined, true, false)); ok {
		t.Errorf("converting a non-configurable data property to an accessor should fail")
	}

	po := obj.AsPlainObject()
	po.extensible = false
	if ok, _ := vm.DefineOwnProperty(obj, StringKey("y"), DefaultDataProperty(True)); ok {
		t.Errorf("adding to a non-extensible object should fail")
	}
}

func TestPrototypeCycleRejected(t *testing.T) {
	vm := New(Options{})
	a := NewObject(Null)
	b := NewObject(a)
	ok, err := vm.SetPrototypeOf(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("prototype cycle must be rejected")
	}
}

func TestGetWalksChainAndCallsGetterWithReceiver(t *testing.T) {
	vm := New(Options{})
	proto := NewObject(Null)
	var seen Value
	getter := vm.NewGetter("v", func(args []Value) (Value, error) {
		seen = vm.GetThis()
		return NewString("from getter"), nil
	})
	proto.AsPlainObject().DefineAccessorProperty(StringKey("v"), getter, Undefined, false, true)
	child := NewObject(proto)

	v, err := vm.Get(child, StringKey("v"))
	if err != nil {
		t.Fatal(err)
	}
	if v.AsString() != "from getter" {
		t.Errorf("unexpected value %v", v)
	}
	if !seen.Is(child) {
		t.Errorf("getter receiver should be the child object")
	}
}

func TestSetIntegrityLevelFrozen(t *testing.T) {
	vm := New(Options{})
	obj := NewObject(Null)
	obj.AsPlainObject().SetOwn("a", IntegerValue(1))
	if ok, err := vm.SetIntegrityLevel(obj, true); err != nil || !ok {
		t.Fatalf("freeze: ok=%v err=%v", ok, err)
	}
	if err := vm.Set(obj, StringKey("a"), IntegerValue(2), true); err == nil {
		t.Errorf("write to frozen property should throw")
	}
	if err := vm.Set(obj, StringKey("b"), IntegerValue(2), true); err == nil {
		t.Errorf("adding to frozen object should throw")
	}
}

func TestProxyTrapsAndRevocation(t *testing.T) {
	vm := New(Options{})
	target := NewObject(Null)
	handler := NewObject(Null)
	handler.AsPlainObject().SetOwn("get", vm.NewNativeFunction(3, false, "get", func(args []Value) (Value, error) {
		return NewString("trapped " + args[1].AsString()), nil
	}))
	proxy, err := vm.NewProxy(target, handler)
	if err != nil {
		t.Fatal(err)
	}
	v, err := vm.Get(proxy, StringKey("x"))
	if err != nil || v.AsString() != "trapped x" {
		t.Errorf("expected trapped get, got %v (%v)", v, err)
	}

	if err := vm.Set(proxy, StringKey("y"), True, true); err != nil {
		t.Fatalf("set without trap forwards to target: %v", err)
	}
	if !target.AsPlainObject().HasOwn("y") {
		t.Errorf("expected target to receive y")
	}

	proxy.AsProxy().Revoke()
	if _, err := vm.Get(proxy, StringKey("x")); err == nil {
		t.Errorf("revoked proxy must throw")
	}
}
