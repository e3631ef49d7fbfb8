package stdx

// Zero returns the zero value for T. Generic code uses it on the failure
// paths of functions that return (T, error).
func Zero[T any]() T {
	var zero T
	return zero
}

// IsZero reports whether v equals the zero value of its comparable type.
func IsZero[T comparable](v T) bool {
	return v == Zero[T]()
}
