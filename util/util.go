package util

// Unpack spreads a slice over the given pointers.
// Missing elements leave the remaining targets untouched, extra elements are dropped.
func Unpack[T any](src []T, into ...*T) {
	n := len(src)
	if len(into) < n {
		n = len(into)
	}
	for i := 0; i < n; i++ {
		*into[i] = src[i]
	}
}
