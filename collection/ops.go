package collection

// Split returns the elements of buf matching predicate and the rest, both
// in their original order. buf is left untouched.
func Split[T any](buf []T, predicate func(i int, v T) bool) (in, out []T) {
	in = make([]T, 0, len(buf)/2+1)
	out = make([]T, 0, len(buf)/2+1)
	for i, v := range buf {
		if predicate(i, v) {
			in = append(in, v)
		} else {
			out = append(out, v)
		}
	}
	return in, out
}
