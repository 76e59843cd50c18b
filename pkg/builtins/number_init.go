package builtins

import (
	"math"
	"math/big"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/corvidjs/corvid/pkg/vm"
)

type NumberInitializer struct{}

func (n *NumberInitializer) Name() string       { return "Number" }
func (n *NumberInitializer) Requires() []string { return []string{"Function"} }

func (n *NumberInitializer) InitRuntime(ctx *RuntimeContext) error {
	vmInstance := ctx.VM
	realm := ctx.Realm
	numberProto := realm.NumberPrototype

	thisNumber := func(method string) (float64, error) {
		v, err := thisPrimitive(vmInstance, "Number", vm.Value.IsNumber, method)
		if err != nil {
			return 0, err
		}
		return v.AsNumber(), nil
	}
	// digitsArg reads fractionDigits/precision, already converted before the
	// non-finite short cut as the algorithms require.
	digitsArg := func(v vm.Value) (float64, error) {
		return vmInstance.ToIntegerOrInfinity(v)
	}

	defineMethods(vmInstance, numberProto, []methodSpec{
		{"toString", 1, func(args []vm.Value) (vm.Value, error) {
			x, err := thisNumber("toString")
			if err != nil {
				return vm.Undefined, err
			}
			radix, err := radixArg(vmInstance, arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			if radix == 10 {
				return vm.NewString(vm.NumberToString(x)), nil
			}
			return vm.NewString(formatRadix(x, radix)), nil
		}},
		{"toLocaleString", 0, func(args []vm.Value) (vm.Value, error) {
			x, err := thisNumber("toLocaleString")
			if err != nil {
				return vm.Undefined, err
			}
			tag := language.AmericanEnglish
			if locale := arg(args, 0); !locale.IsUndefined() {
				s, err := vmInstance.ToString(locale)
				if err != nil {
					return vm.Undefined, err
				}
				if tag, err = language.Parse(s); err != nil {
					return vm.Undefined, vmInstance.NewRangeError("Incorrect locale information provided")
				}
			}
			return vm.NewString(formatLocale(tag, x)), nil
		}},
		{"valueOf", 0, func(args []vm.Value) (vm.Value, error) {
			x, err := thisNumber("valueOf")
			return vm.NumberValue(x), err
		}},
		{"toFixed", 1, func(args []vm.Value) (vm.Value, error) {
			x, err := thisNumber("toFixed")
			if err != nil {
				return vm.Undefined, err
			}
			f, err := digitsArg(arg(args, 0))
			if err != nil {
				return vm.Undefined, err
			}
			if f < 0 || f > 100 || math.IsInf(f, 0) {
				return vm.Undefined, vmInstance.NewRangeError("toFixed() digits argument must be between 0 and 100")
			}
			return vm.NewString(formatFixed(x, int(f))), nil
		}},
		{"toExponential", 1, func(args []vm.Value) (vm.Value, error) {
			x, err := thisNumber("toExponential")
			if err != nil {
				return vm.Undefined, err
			}
			fdArg := arg(args, 0)
			f, err := digitsArg(fdArg)
			if err != nil {
				return vm.Undefined, err
			}
			if s, ok := nonFiniteString(x); ok {
				return vm.NewString(s), nil
			}
			if f < 0 || f > 100 || math.IsInf(f, 0) {
				return vm.Undefined, vmInstance.NewRangeError("toExponential() argument must be between 0 and 100")
			}
			if fdArg.IsUndefined() {
				return vm.NewString(formatExponential(x, -1)), nil
			}
			return vm.NewString(formatExponential(x, int(f))), nil
		}},
		{"toPrecision", 1, func(args []vm.Value) (vm.Value, error) {
			x, err := thisNumber("toPrecision")
			if err != nil {
				return vm.Undefined, err
			}
			if arg(args, 0).IsUndefined() {
				return vm.NewString(vm.NumberToString(x)), nil
			}
			p, err := digitsArg(args[0])
			if err != nil {
				return vm.Undefined, err
			}
			if s, ok := nonFiniteString(x); ok {
				return vm.NewString(s), nil
			}
			if p < 1 || p > 100 || math.IsInf(p, 0) {
				return vm.Undefined, vmInstance.NewRangeError("toPrecision() argument must be between 1 and 100")
			}
			return vm.NewString(formatPrecision(x, int(p))), nil
		}},
	})

	numberCtor := vmInstance.NewNativeConstructor(1, "Number", func(args []vm.Value) (vm.Value, error) {
		x := 0.0
		if len(args) > 0 {
			prim, err := vmInstance.ToNumeric(args[0])
			if err != nil {
				return vm.Undefined, err
			}
			if prim.IsBigInt() {
				x, _ = new(big.Float).SetInt(prim.AsBigInt()).Float64()
			} else {
				x = prim.AsNumber()
			}
		}
		if vmInstance.GetNewTarget().IsUndefined() {
			return vm.NumberValue(x), nil
		}
		return boxWithNewTarget(vmInstance, vm.NumberValue(x), numberProto)
	})
	vm.LinkConstructor(numberCtor, numberProto)

	for name, value := range map[string]float64{
		"MAX_SAFE_INTEGER":  vm.MaxSafeInteger,
		"MIN_SAFE_INTEGER":  -vm.MaxSafeInteger,
		"EPSILON":           math.Nextafter(1, 2) - 1,
		"MAX_VALUE":         math.MaxFloat64,
		"MIN_VALUE":         math.SmallestNonzeroFloat64,
		"NaN":               math.NaN(),
		"POSITIVE_INFINITY": math.Inf(1),
		"NEGATIVE_INFINITY": math.Inf(-1),
	} {
		defineConstant(numberCtor, name, vm.NumberValue(value))
	}

	parseFloat := vmInstance.NewNativeFunction(1, false, "parseFloat", func(args []vm.Value) (vm.Value, error) {
		s, err := vmInstance.ToString(arg(args, 0))
		if err != nil {
			return vm.Undefined, err
		}
		return vm.NumberValue(vm.ParseFloatPrefix(s)), nil
	})
	parseInt := vmInstance.NewNativeFunction(2, false, "parseInt", func(args []vm.Value) (vm.Value, error) {
		s, err := vmInstance.ToString(arg(args, 0))
		if err != nil {
			return vm.Undefined, err
		}
		radix, err := vmInstance.ToInt32(arg(args, 1))
		if err != nil {
			return vm.Undefined, err
		}
		return vm.NumberValue(parseIntString(s, radix)), nil
	})
	// Number.parseFloat and the global parseFloat are one function object.
	realm.Intrinsics["%parseFloat%"] = parseFloat
	realm.Intrinsics["%parseInt%"] = parseInt
	numberCtor.AsPlainObject().SetOwnNonEnumerable("parseFloat", parseFloat)
	numberCtor.AsPlainObject().SetOwnNonEnumerable("parseInt", parseInt)

	numberPredicate := func(test func(float64) bool) vm.NativeFunc {
		return func(args []vm.Value) (vm.Value, error) {
			v := arg(args, 0)
			return vm.BooleanValue(v.IsNumber() && test(v.AsNumber())), nil
		}
	}
	defineMethods(vmInstance, numberCtor, []methodSpec{
		{"isFinite", 1, numberPredicate(isFinite)},
		{"isInteger", 1, numberPredicate(isIntegral)},
		{"isNaN", 1, numberPredicate(math.IsNaN)},
		{"isSafeInteger", 1, numberPredicate(func(f float64) bool {
			return isIntegral(f) && math.Abs(f) <= vm.MaxSafeInteger
		})},
	})

	return ctx.DefineGlobal("Number", numberCtor)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isIntegral(f float64) bool {
	return isFinite(f) && math.Trunc(f) == f
}

// formatLocale renders x with the locale's grouping and decimal symbols and
// at most three fraction digits, the Intl.NumberFormat defaults.
func formatLocale(tag language.Tag, x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "∞"
	case math.IsInf(x, -1):
		return "-∞"
	}
	return message.NewPrinter(tag).Sprint(number.Decimal(x, number.MaxFractionDigits(3)))
}
