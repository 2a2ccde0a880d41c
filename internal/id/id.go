package id

import "github.com/google/uuid"

// New returns a random (version 4) UUID string.
func New() string {
	return uuid.NewString()
}

func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
