package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionNotFound = errors.New("chat session not found")
	ErrInvalidState    = errors.New("operation not allowed in current chat status")
	ErrStateConflict   = errors.New("chat session was modified concurrently")
	ErrStoreFailure    = errors.New("store failure")
)

// storeErr tags a persistence error so callers can match ErrStoreFailure
// while the underlying cause stays reachable.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}
