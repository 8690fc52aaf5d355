package dispatch

import "reflect"

// Identical reports whether two values are the same for notification
// purposes. Scalars compare by equality, pointers/maps/funcs/channels
// by identity, slices by backing-array identity and length. There is
// deliberately no deep comparison: a rebuilt-but-equal message list is
// a new observation.
func Identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}

	switch ra.Kind() {
	case reflect.Slice:
		if ra.Len() != rb.Len() {
			return false
		}
		if ra.Len() == 0 {
			return true
		}
		return ra.Pointer() == rb.Pointer()
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	}

	if ra.Type().Comparable() {
		return a == b
	}
	return false
}
