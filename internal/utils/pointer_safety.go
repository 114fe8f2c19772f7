package utils

// Ptr returns a pointer to a copy of v, for filling optional patch fields from literals.
func Ptr[T any](v T) *T {
	return &v
}
