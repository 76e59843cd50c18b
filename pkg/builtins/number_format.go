package builtins

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/corvidjs/corvid/pkg/vm"
)

// exactDecimal returns the exact decimal expansion of |x| for finite x as
// (integer digits, fraction digits). Every float64 has a terminating
// decimal expansion of at most 1074 fractional digits.
func exactDecimal(x float64) (string, string) {
	s := new(big.Float).SetFloat64(math.Abs(x)).Text('f', 1100)
	intPart, frac, _ := strings.Cut(s, ".")
	return intPart, strings.TrimRight(frac, "0")
}

// roundHalfUp keeps the first n digits of the decimal digit string ds,
// rounding ties away from zero. carry reports that the result gained a
// digit ("999" -> "1000").
func roundHalfUp(ds string, n int) (string, bool) {
	if n >= len(ds) {
		return ds + strings.Repeat("0", n-len(ds)), false
	}
	kept := []byte(ds[:n])
	if ds[n] < '5' {
		return string(kept), false
	}
	for i := n - 1; i >= 0; i-- {
		if kept[i] < '9' {
			kept[i]++
			return string(kept), false
		}
		kept[i] = '0'
	}
	return "1" + string(kept), true
}

// significantDigits rounds |x| (finite, non-zero) to n significant digits
// and returns them with the decimal exponent e, so that
// |x| ~ d.ddd * 10^e.
func significantDigits(x float64, n int) (string, int) {
	intPart, frac := exactDecimal(x)
	all := intPart + frac
	e := len(intPart) - 1
	lead := len(all) - len(strings.TrimLeft(all, "0"))
	all = all[lead:]
	e -= lead
	digits, carry := roundHalfUp(all, n)
	if carry {
		digits = digits[:n]
		e++
	}
	return digits, e
}

func signPrefix(x float64) string {
	if x < 0 {
		return "-"
	}
	return ""
}

func nonFiniteString(x float64) (string, bool) {
	switch {
	case math.IsNaN(x):
		return "NaN", true
	case math.IsInf(x, 1):
		return "Infinity", true
	case math.IsInf(x, -1):
		return "-Infinity", true
	}
	return "", false
}

// formatFixed implements the digit generation of Number.prototype.toFixed.
func formatFixed(x float64, f int) string {
	if s, ok := nonFiniteString(x); ok {
		return s
	}
	if math.Abs(x) >= 1e21 {
		return vm.NumberToString(x)
	}
	intPart, frac := exactDecimal(x)
	digits, _ := roundHalfUp(intPart+frac, len(intPart)+f)
	intLen := len(digits) - f
	out := digits[:intLen]
	out = strings.TrimLeft(out, "0")
	if out == "" {
		out = "0"
	}
	if f > 0 {
		out += "." + digits[intLen:]
	}
	return signPrefix(x) + out
}

func exponentSuffix(e int) string {
	if e < 0 {
		return "e-" + strconv.Itoa(-e)
	}
	return "e+" + strconv.Itoa(e)
}

// formatExponential implements Number.prototype.toExponential. f < 0
// means "as many digits as needed".
func formatExponential(x float64, f int) string {
	if s, ok := nonFiniteString(x); ok {
		return s
	}
	var digits string
	var e int
	switch {
	case x == 0:
		digits, e = strings.Repeat("0", max(f, 0)+1), 0
	case f < 0:
		// Shortest round-tripping digits.
		mant, exp, _ := strings.Cut(strconv.FormatFloat(math.Abs(x), 'e', -1, 64), "e")
		digits = strings.Replace(mant, ".", "", 1)
		e, _ = strconv.Atoi(exp)
	default:
		digits, e = significantDigits(x, f+1)
	}
	out := digits[:1]
	if len(digits) > 1 {
		out += "." + digits[1:]
	}
	return signPrefix(x) + out + exponentSuffix(e)
}

// formatPrecision implements Number.prototype.toPrecision for p in [1, 100].
func formatPrecision(x float64, p int) string {
	if s, ok := nonFiniteString(x); ok {
		return s
	}
	if x == 0 {
		if p == 1 {
			return "0"
		}
		return "0." + strings.Repeat("0", p-1)
	}
	digits, e := significantDigits(x, p)
	sign := signPrefix(x)
	if e < -6 || e >= p {
		out := digits[:1]
		if p > 1 {
			out += "." + digits[1:]
		}
		return sign + out + exponentSuffix(e)
	}
	if e == p-1 {
		return sign + digits
	}
	if e >= 0 {
		return sign + digits[:e+1] + "." + digits[e+1:]
	}
	return sign + "0." + strings.Repeat("0", -(e+1)) + digits
}

const radixDigits = "0123456789abcdefghijklmnopqrstuvwxyz"

// formatRadix implements Number::toString(x, radix) for radix != 10. The
// fraction is generated until it is within half an ulp of x, so the output
// is the shortest string that reads back as x.
func formatRadix(x float64, radix int) string {
	if s, ok := nonFiniteString(x); ok {
		return s
	}
	if x == 0 {
		return "0"
	}
	abs := math.Abs(x)
	integer := math.Floor(abs)
	fraction := abs - integer
	delta := max(0.5*(math.Nextafter(abs, math.Inf(1))-abs), math.Nextafter(0, 1))

	var frac []byte
	if fraction >= delta {
		for {
			fraction *= float64(radix)
			delta *= float64(radix)
			digit := int(fraction)
			frac = append(frac, radixDigits[digit])
			fraction -= float64(digit)
			if fraction > 0.5 || (fraction == 0.5 && digit&1 == 1) {
				if fraction+delta > 1 {
					// Round up, propagating into the integer part.
					for {
						if len(frac) == 0 {
							integer++
							break
						}
						last := strings.IndexByte(radixDigits, frac[len(frac)-1])
						frac = frac[:len(frac)-1]
						if last+1 < radix {
							frac = append(frac, radixDigits[last+1])
							break
						}
					}
					break
				}
			}
			if fraction < delta {
				break
			}
		}
	}

	intBig, _ := new(big.Float).SetFloat64(integer).Int(nil)
	out := intBig.Text(radix)
	if len(frac) > 0 {
		out += "." + string(frac)
	}
	return signPrefix(x) + out
}

// parseIntString implements the string half of parseInt(string, radix).
func parseIntString(s string, radix int32) float64 {
	s = vm.TrimJSWhitespace(s)
	sign := 1.0
	if s != "" && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	stripPrefix := true
	r := int(radix)
	if r != 0 {
		if r < 2 || r > 36 {
			return math.NaN()
		}
		if r != 16 {
			stripPrefix = false
		}
	} else {
		r = 10
	}
	if stripPrefix && len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
		r = 16
	}
	end := 0
	for end < len(s) {
		d := strings.IndexByte(radixDigits, lowerASCII(s[end]))
		if d < 0 || d >= r {
			break
		}
		end++
	}
	if end == 0 {
		return math.NaN()
	}
	digits := s[:end]
	if r == 10 {
		f, _ := strconv.ParseFloat(digits, 64)
		return sign * f
	}
	n, _ := new(big.Int).SetString(strings.ToLower(digits), r)
	f, _ := new(big.Float).SetInt(n).Float64()
	return sign * f
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
