package builtins

import (
	"math"
	"strings"

	"github.com/corvidjs/corvid/pkg/vm"
)

// maxStringLength caps strings built by join and friends.
const maxStringLength = 1<<30 - 25

// cycleGuard tracks the receivers of join and Error.prototype.toString that
// are currently being converted, so a self-referencing value renders as ""
// instead of recursing.
type cycleGuard struct {
	active map[vm.Value]struct{}
}

type cycleGuardKey struct{}

func guardFor(vmInstance *vm.VM) *cycleGuard {
	return vmInstance.HostSlot(cycleGuardKey{}, func() any {
		return &cycleGuard{active: make(map[vm.Value]struct{})}
	}).(*cycleGuard)
}

// enter reports false if o is already being converted. Otherwise the
// caller must call the returned release.
func (g *cycleGuard) enter(o vm.Value) (func(), bool) {
	if _, busy := g.active[o]; busy {
		return nil, false
	}
	g.active[o] = struct{}{}
	return func() { delete(g.active, o) }, true
}

type joinBuilder struct {
	sb strings.Builder
}

func (b *joinBuilder) write(vmInstance *vm.VM, s string, times int64) error {
	if times <= 0 || s == "" {
		return nil
	}
	if int64(b.sb.Len())+int64(len(s))*times > maxStringLength {
		return vmInstance.NewRangeError("Invalid string length")
	}
	for range times {
		b.sb.WriteString(s)
	}
	return nil
}

// arrayJoin skips absent runs with NextIndexForward and writes one
// separator per skipped index. An index the protocol reports as a
// candidate is read with Get, so prototype-supplied elements show up.
func arrayJoin(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	sep := ","
	if s := arg(args, 0); !s.IsUndefined() {
		if sep, err = vmInstance.ToString(s); err != nil {
			return vm.Undefined, err
		}
	}
	release, ok := guardFor(vmInstance).enter(a.obj)
	if !ok {
		return vm.NewString(""), nil
	}
	defer release()

	var b joinBuilder
	written := int64(0)
	for k := int64(0); k < a.length; k++ {
		next, err := a.acc.NextForward(k, a.length)
		if err != nil {
			return vm.Undefined, err
		}
		if next >= a.length {
			break
		}
		k = next
		if err := b.write(vmInstance, sep, k-written); err != nil {
			return vm.Undefined, err
		}
		written = k
		v, err := a.get(k)
		if err != nil {
			return vm.Undefined, err
		}
		if v.IsNullish() {
			continue
		}
		s, err := vmInstance.ToString(v)
		if err != nil {
			return vm.Undefined, err
		}
		if err := b.write(vmInstance, s, 1); err != nil {
			return vm.Undefined, err
		}
	}
	if a.length > 0 {
		if err := b.write(vmInstance, sep, a.length-1-written); err != nil {
			return vm.Undefined, err
		}
	}
	return vm.NewString(b.sb.String()), nil
}

func arrayToString(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	obj, err := vmInstance.ToObject(vmInstance.GetThis())
	if err != nil {
		return vm.Undefined, err
	}
	join, err := vmInstance.Get(obj, vm.StringKey("join"))
	if err != nil {
		return vm.Undefined, err
	}
	if join.IsCallable() {
		return vmInstance.Call(join, obj, nil)
	}
	s, err := objectToString(vmInstance, obj)
	return vm.NewString(s), err
}

func arrayToLocaleString(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	release, ok := guardFor(vmInstance).enter(a.obj)
	if !ok {
		return vm.NewString(""), nil
	}
	defer release()

	var b joinBuilder
	for k := int64(0); k < a.length; k++ {
		if k > 0 {
			if err := b.write(vmInstance, ",", 1); err != nil {
				return vm.Undefined, err
			}
		}
		v, err := a.get(k)
		if err != nil {
			return vm.Undefined, err
		}
		if v.IsNullish() {
			continue
		}
		r, err := vmInstance.Invoke(v, vm.StringKey("toLocaleString"), nil)
		if err != nil {
			return vm.Undefined, err
		}
		s, err := vmInstance.ToString(r)
		if err != nil {
			return vm.Undefined, err
		}
		if err := b.write(vmInstance, s, 1); err != nil {
			return vm.Undefined, err
		}
	}
	return vm.NewString(b.sb.String()), nil
}

// searchStart resolves fromIndex for indexOf and includes.
func searchStart(vmInstance *vm.VM, from vm.Value, length int64) (int64, bool, error) {
	n, err := vmInstance.ToIntegerOrInfinity(from)
	if err != nil {
		return 0, false, err
	}
	if math.IsInf(n, 1) || n >= float64(length) {
		return 0, false, nil
	}
	if n < 0 {
		return int64(max(float64(length)+n, 0)), true, nil
	}
	return int64(n), true, nil
}

func arrayIncludes(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	// 1-3. If len = 0, return false.
	a, err := thisArrayLike(vmInstance)
	if err != nil || a.length == 0 {
		return vm.False, err
	}
	// 4-10. Let k be the start index derived from fromIndex.
	k, ok, err := searchStart(vmInstance, arg(args, 1), a.length)
	if err != nil || !ok {
		return vm.False, err
	}
	// 11. Repeat, while k < len: if SameValueZero(searchElement,
	// ? Get(O, Pk)), return true.
	target := arg(args, 0)
	for ; k < a.length; k++ {
		next, err := a.acc.NextForward(k, a.length)
		if err != nil {
			return vm.Undefined, err
		}
		// An absent index reads as undefined.
		if next > k && target.IsUndefined() {
			return vm.True, nil
		}
		if next >= a.length {
			break
		}
		k = next
		v, err := a.get(k)
		if err != nil {
			return vm.Undefined, err
		}
		if vm.SameValueZero(v, target) {
			return vm.True, nil
		}
	}
	return vm.False, nil
}

func arrayIndexOf(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	// 1-3. If len = 0, return -1.
	a, err := thisArrayLike(vmInstance)
	if err != nil || a.length == 0 {
		return vm.IntegerValue(-1), err
	}
	// 4-10. Let k be the start index derived from fromIndex.
	k, ok, err := searchStart(vmInstance, arg(args, 1), a.length)
	if err != nil || !ok {
		return vm.IntegerValue(-1), err
	}
	// 11. Repeat, while k < len: if ? HasProperty(O, Pk) and
	// IsStrictlyEqual(searchElement, ? Get(O, Pk)), return k.
	target, found := arg(args, 0), int64(-1)
	err = a.forEachPresent(vmInstance, k, a.length, func(k int64, v vm.Value) (bool, error) {
		if vm.StrictEquals(v, target) {
			found = k
			return true, nil
		}
		return false, nil
	})
	return vm.IndexValue(found), err
}

func arrayLastIndexOf(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil || a.length == 0 {
		return vm.IntegerValue(-1), err
	}
	// 4. If fromIndex is present, let n be ? ToIntegerOrInfinity(fromIndex);
	// else let n be len - 1.
	n := float64(a.length - 1)
	if len(args) > 1 {
		if n, err = vmInstance.ToIntegerOrInfinity(args[1]); err != nil {
			return vm.Undefined, err
		}
	}
	if math.IsInf(n, -1) {
		return vm.IntegerValue(-1), nil
	}
	// 6-7. Let k be min(n, len - 1) if n ≥ 0, else len + n.
	var k int64
	if n >= 0 {
		k = int64(min(n, float64(a.length-1)))
	} else {
		k = int64(float64(a.length) + n)
	}
	target, found := arg(args, 0), int64(-1)
	err = a.forEachPresentBackward(vmInstance, k, -1, func(k int64, v vm.Value) (bool, error) {
		if vm.StrictEquals(v, target) {
			found = k
			return true, nil
		}
		return false, nil
	})
	return vm.IndexValue(found), err
}

func arrayAt(vmInstance *vm.VM, args []vm.Value) (vm.Value, error) {
	a, err := thisArrayLike(vmInstance)
	if err != nil {
		return vm.Undefined, err
	}
	rel, err := vmInstance.ToIntegerOrInfinity(arg(args, 0))
	if err != nil {
		return vm.Undefined, err
	}
	k := rel
	if rel < 0 {
		k = float64(a.length) + rel
	}
	if k < 0 || k >= float64(a.length) {
		return vm.Undefined, nil
	}
	return a.get(int64(k))
}
