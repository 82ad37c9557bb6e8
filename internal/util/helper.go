// Package util holds small generic helpers shared by the codec packages.
package util

// CloneSlice returns a copy of src with length cloneSize, or len(src) when cloneSize is 0.
// Elements beyond len(src) are zero values.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}
