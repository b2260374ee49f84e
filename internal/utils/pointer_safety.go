package utils

func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// ValueOr dereferences v, returning fallback for a nil pointer or a zero value
func ValueOr[T comparable](v *T, fallback T) T {
	var zero T
	if v == nil || *v == zero {
		return fallback
	}
	return *v
}
