package data

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by NotFoundError so callers can test with errors.Is.
var ErrNotFound = errors.New("document not found")

// NotFoundError is returned when a point read, replace or delete misses.
type NotFoundError struct {
	Container    string
	PartitionKey string
	ID           string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s/%s: %v", e.Container, e.PartitionKey, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StoreUnavailableError wraps a network, timeout or driver failure.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is or wraps a StoreUnavailableError.
func IsUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}
