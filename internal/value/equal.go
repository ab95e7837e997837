package value

// Equal reports whether a and b hold the same value. Strings and number
// literals compare byte for byte, so "1" and "1.0" differ, and so do NFC
// and NFD spellings of the same text. nil counts as Undefined, and an
// object key holding Undefined is the same as a missing key.
func Equal(a, b Value) bool {
	if a == nil {
		a = Undefined{}
	}
	if b == nil {
		b = Undefined{}
	}
	switch av := a.(type) {
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok {
			return false
		}
		for k, x := range av {
			if !Equal(x, bv[k]) {
				return false
			}
		}
		for k, y := range bv {
			if _, seen := av[k]; !seen && !IsUndefined(y) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// TupleEqual reports whether two tuples hold the same values.
// A nil tuple only equals another nil tuple; it marks "never recorded".
func TupleEqual(a, b []Value) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return Equal(Array(a), Array(b))
}
