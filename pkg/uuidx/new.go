package uuidx

import "github.com/google/uuid"

// New returns a time-ordered version 7 UUID. It panics when the random source fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns New() in its canonical string form.
func NewString() string {
	return New().String()
}

// Short returns the last 12 hex digits of a fresh UUID. Correlation ids in
// logs use it where the full id would be noise.
func Short() string {
	s := NewString()
	return s[len(s)-12:]
}
