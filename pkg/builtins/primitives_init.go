package builtins

import (
	"math"
	"math/big"
	"strings"
	"unicode/utf16"

	"github.com/corvidjs/corvid/pkg/vm"
)

// PrimitiveWrappersInitializer installs Boolean, String and BigInt: their
// constructors and the prototypes that ToObject boxes primitives with.
type PrimitiveWrappersInitializer struct{}

func (p *PrimitiveWrappersInitializer) Name() string       { return "PrimitiveWrappers" }
func (p *PrimitiveWrappersInitializer) Requires() []string { return []string{"Iterator"} }

func (p *PrimitiveWrappersInitializer) InitRuntime(ctx *RuntimeContext) error {
	if err := initBoolean(ctx); err != nil {
		return err
	}
	if err := initString(ctx); err != nil {
		return err
	}
	return initBigInt(ctx)
}

// thisPrimitive implements the thisXValue family: the receiver itself when
// it has the right type, or the primitive inside a wrapper of that class.
func thisPrimitive(vmInstance *vm.VM, class string, is func(vm.Value) bool, method string) (vm.Value, error) {
	this := vmInstance.GetThis()
	if is(this) {
		return this, nil
	}
	if prim, ok := vm.PrimitiveOf(this, class); ok {
		return prim, nil
	}
	return vm.Undefined, vmInstance.NewTypeErrorf("%s.prototype.%s requires that 'this' be a %s", class, method, class)
}

// boxWithNewTarget boxes prim and, when constructing through a subclass,
// swaps in the prototype new.target asks for.
func boxWithNewTarget(vmInstance *vm.VM, prim, fallback vm.Value) (vm.Value, error) {
	proto, err := prototypeForNew(vmInstance, fallback)
	if err != nil {
		return vm.Undefined, err
	}
	obj, err := vmInstance.ToObject(prim)
	if err != nil {
		return vm.Undefined, err
	}
	obj.AsPlainObject().SetPrototype(proto)
	return obj, nil
}

func initBoolean(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	booleanProto := ctx.Realm.BooleanPrototype
	thisBoolean := func(method string) (vm.Value, error) {
		return thisPrimitive(vmInstance, "Boolean", vm.Value.IsBoolean, method)
	}

	defineMethods(vmInstance, booleanProto, []methodSpec{
		{"toString", 0, func(args []vm.Value) (vm.Value, error) {
			b, err := thisBoolean("toString")
			if err != nil {
				return vm.Undefined, err
			}
			if b.AsBoolean() {
				return vm.NewString("true"), nil
			}
			return vm.NewString("false"), nil
		}},
		{"valueOf", 0, func(args []vm.Value) (vm.Value, error) {
			return thisBoolean("valueOf")
		}},
	})

	booleanCtor := vmInstance.NewNativeConstructor(1, "Boolean", func(args []vm.Value) (vm.Value, error) {
		b := vm.BooleanValue(vm.ToBoolean(arg(args, 0)))
		if vmInstance.GetNewTarget().IsUndefined() {
			return b, nil
		}
		return boxWithNewTarget(vmInstance, b, booleanProto)
	})
	vm.LinkConstructor(booleanCtor, booleanProto)
	return ctx.DefineGlobal("Boolean", booleanCtor)
}

func unitsToString(units []uint16) string {
	return string(utf16.Decode(units))
}

func initString(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm
	stringProto := realm.StringPrototype

	thisString := func(method string) (vm.Value, error) {
		return thisPrimitive(vmInstance, "String", vm.Value.IsString, method)
	}
	// coercible is RequireObjectCoercible(this) followed by ToString.
	coercible := func(method string) ([]uint16, error) {
		this := vmInstance.GetThis()
		if this.IsNullish() {
			return nil, vmInstance.NewTypeErrorf("String.prototype.%s called on null or undefined", method)
		}
		s, err := vmInstance.ToString(this)
		if err != nil {
			return nil, err
		}
		return vm.CodeUnits(s), nil
	}

	defineMethods(vmInstance, stringProto, []methodSpec{
		{"toString", 0, func(args []vm.Value) (vm.Value, error) {
			return thisString("toString")
		}},
		{"valueOf", 0, func(args []vm.Value) (vm.Value, error) {
			return thisString("valueOf")
		}},
		{"at", 1, func(args []vm.Value) (vm.Value, error) {
			units, err := coercible("at")
			if err != nil {
				return vm.Undefined, err
			}
			rel, err := vmInstance.ToIntegerOrInfinity(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			if rel < 0 {
				rel += float64(len(units))
			}
			if rel < 0 || rel >= float64(len(units)) {
				return vm.Undefined, nil
			}
			return vm.NewString(unitsToString(units[int(rel) : int(rel)+1])), nil
		}},
		{"charAt", 1, func(args []vm.Value) (vm.Value, error) {
			units, err := coercible("charAt")
			if err != nil {
				return vm.Undefined, err
			}
			pos, err := vmInstance.ToIntegerOrInfinity(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			if pos < 0 || pos >= float64(len(units)) {
				return vm.NewString(""), nil
			}
			return vm.NewString(unitsToString(units[int(pos) : int(pos)+1])), nil
		}},
		{"charCodeAt", 1, func(args []vm.Value) (vm.Value, error) {
			units, err := coercible("charCodeAt")
			if err != nil {
				return vm.Undefined, err
			}
			pos, err := vmInstance.ToIntegerOrInfinity(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			if pos < 0 || pos >= float64(len(units)) {
				return vm.NaN, nil
			}
			return vm.IntegerValue(int32(units[int(pos)])), nil
		}},
		{"indexOf", 1, func(args []vm.Value) (vm.Value, error) {
			units, err := coercible("indexOf")
			if err != nil {
				return vm.Undefined, err
			}
			search, err := vmInstance.ToString(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			pos, err := vmInstance.ToIntegerOrInfinity(arg(args, 1))
			if err != nil {
				return vm.Undefined, err
			}
			start := int(min(max(pos, 0), float64(len(units))))
			needle := vm.CodeUnits(search)
			for i := start; i+len(needle) <= len(units); i++ {
				if vm.CompareCodeUnits(units[i:i+len(needle)], needle) == 0 {
					return vm.IntegerValue(int32(i)), nil
				}
			}
			return vm.IntegerValue(-1), nil
		}},
		{"slice", 2, func(args []vm.Value) (vm.Value, error) {
			units, err := coercible("slice")
			if err != nil {
				return vm.Undefined, err
			}
			n := int64(len(units))
			from, err := vmInstance.RelativeIndex(arg(args, 0), n, 0)
			if err != nil {
				return vm.Undefined, err
			}
			to, err := vmInstance.RelativeIndex(arg(args, 1), n, n)
			if err != nil {
				return vm.Undefined, err
			}
			if from >= to {
				return vm.NewString(""), nil
			}
			return vm.NewString(unitsToString(units[from:to])), nil
		}},
		{"repeat", 1, func(args []vm.Value) (vm.Value, error) {
			units, err := coercible("repeat")
			if err != nil {
				return vm.Undefined, err
			}
			count, err := vmInstance.ToIntegerOrInfinity(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			if count < 0 || math.IsInf(count, 1) {
				return vm.Undefined, vmInstance.NewRangeError("Invalid count value: " + vm.NumberToString(count))
			}
			if float64(len(units))*count > maxStringLength {
				return vm.Undefined, vmInstance.NewRangeError("Invalid string length")
			}
			return vm.NewString(strings.Repeat(unitsToString(units), int(count))), nil
		}},
	})

	// String.prototype[@@iterator] yields code points.
	defineSymbolMethod(vmInstance, stringProto, vm.SymbolIterator, 0, func(args []vm.Value) (vm.Value, error) {
		this := vmInstance.GetThis()
		if this.IsNullish() {
			return vm.Undefined, vmInstance.NewTypeError("String.prototype[Symbol.iterator] called on null or undefined")
		}
		s, err := vmInstance.ToString(this)
		if err != nil {
			return vm.Undefined, err
		}
		runes := []rune(s)
		i := 0
		return vmInstance.NewNativeIterator(realm.ArrayIteratorPrototype, "Array Iterator", func() (vm.Value, bool, error) {
			if i >= len(runes) {
				return vm.Undefined, true, nil
			}
			i++
			return vm.NewString(string(runes[i-1])), false, nil
		}), nil
	})

	stringCtor := vmInstance.NewNativeConstructor(1, "String", func(args []vm.Value) (vm.Value, error) {
		s := vm.NewString("")
		if len(args) > 0 {
			v := args[0]
			if v.IsSymbol() && vmInstance.GetNewTarget().IsUndefined() {
				return vm.NewString(v.AsSymbol().String()), nil
			}
			str, err := vmInstance.ToString(v)
			if err != nil {
				return vm.Undefined, err
			}
			s = vm.NewString(str)
		}
		if vmInstance.GetNewTarget().IsUndefined() {
			return s, nil
		}
		return boxWithNewTarget(vmInstance, s, stringProto)
	})
	vm.LinkConstructor(stringCtor, stringProto)

	defineMethods(vmInstance, stringCtor, []methodSpec{
		{"fromCharCode", 1, func(args []vm.Value) (vm.Value, error) {
			units := make([]uint16, len(args))
			for i, a := range args {
				n, err := vmInstance.ToUint32(a)
				if err != nil {
					return vm.Undefined, err
				}
				units[i] = uint16(n)
			}
			return vm.NewString(unitsToString(units)), nil
		}},
	})
	return ctx.DefineGlobal("String", stringCtor)
}

func initBigInt(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	bigintProto := ctx.Realm.BigIntPrototype
	thisBigInt := func(method string) (vm.Value, error) {
		return thisPrimitive(vmInstance, "BigInt", vm.Value.IsBigInt, method)
	}

	defineMethods(vmInstance, bigintProto, []methodSpec{
		{"toString", 0, func(args []vm.Value) (vm.Value, error) {
			n, err := thisBigInt("toString")
			if err != nil {
				return vm.Undefined, err
			}
			radix, err := radixArg(vmInstance, arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			return vm.NewString(n.AsBigInt().Text(radix)), nil
		}},
		{"toLocaleString", 0, func(args []vm.Value) (vm.Value, error) {
			n, err := thisBigInt("toLocaleString")
			if err != nil {
				return vm.Undefined, err
			}
			return vm.NewString(n.AsBigInt().String()), nil
		}},
		{"valueOf", 0, func(args []vm.Value) (vm.Value, error) {
			return thisBigInt("valueOf")
		}},
	})
	defineToStringTag(bigintProto, "BigInt")

	bigintCtor := vmInstance.NewNativeConstructor(1, "BigInt", func(args []vm.Value) (vm.Value, error) {
		if !vmInstance.GetNewTarget().IsUndefined() {
			return vm.Undefined, vmInstance.NewTypeError("BigInt is not a constructor")
		}
		prim, err := vmInstance.ToPrimitive(arg(args, 0), "number")
		if err != nil {
			return vm.Undefined, err
		}
		if prim.IsNumber() {
			f := prim.AsNumber()
			if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
				return vm.Undefined, vmInstance.NewRangeError("The number " + vm.NumberToString(f) + " cannot be converted to a BigInt because it is not an integer")
			}
			n, _ := new(big.Float).SetFloat64(f).Int(nil)
			return vm.NewBigInt(n), nil
		}
		n, err := vmInstance.ToBigInt(prim)
		if err != nil {
			return vm.Undefined, err
		}
		return vm.NewBigInt(n), nil
	})
	vm.LinkConstructor(bigintCtor, bigintProto)

	asN := func(signed bool) vm.NativeFunc {
		return func(args []vm.Value) (vm.Value, error) {
			bits, err := vmInstance.ToIndex(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			n, err := vmInstance.ToBigInt(arg(args, 1))
			if err != nil {
				return vm.Undefined, err
			}
			return vm.NewBigInt(wrapBigInt(n, uint(bits), signed)), nil
		}
	}
	defineMethods(vmInstance, bigintCtor, []methodSpec{
		{"asIntN", 2, asN(true)},
		{"asUintN", 2, asN(false)},
	})
	return ctx.DefineGlobal("BigInt", bigintCtor)
}

// wrapBigInt reduces n modulo 2^bits, into the signed range when signed.
func wrapBigInt(n *big.Int, bits uint, signed bool) *big.Int {
	if bits == 0 {
		return new(big.Int)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	r := new(big.Int).Mod(n, mod)
	if signed && r.Cmp(new(big.Int).Rsh(mod, 1)) >= 0 {
		r.Sub(r, mod)
	}
	return r
}

// radixArg validates the radix of toString(radix), defaulting to 10.
func radixArg(vmInstance *vm.VM, v vm.Value) (int, error) {
	if v.IsUndefined() {
		return 10, nil
	}
	r, err := vmInstance.ToIntegerOrInfinity(v)
	if err != nil {
		return 0, err
	}
	if r < 2 || r > 36 {
		return 0, vmInstance.NewRangeError("toString() radix must be between 2 and 36")
	}
	return int(r), nil
}
