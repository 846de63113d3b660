package utils

// Value returns the value v points to, or the zero value of T when v is nil.
// Optional API fields such as a product's brand decode to nil pointers.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to a copy of v, for optional payload fields and
// pointer-valued query parameters.
func Ptr[T any](v T) *T {
	return &v
}
