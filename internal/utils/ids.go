package utils

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string used as a row primary key.
func NewID() string {
	return uuid.NewString()
}

// IsID reports whether s looks like an id produced by NewID.
func IsID(s string) bool {
	return uuid.Validate(s) == nil
}
