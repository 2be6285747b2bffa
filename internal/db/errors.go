package db

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every *StorageError via errors.Is.
	ErrStorage = errors.New("storage error")

	// ErrNotFound is returned by lookups that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrNotInitialized is returned by Connect when EnsureSchema never created the file.
	ErrNotInitialized = errors.New("database not initialized")

	// ErrAlreadyConnected and ErrClosed report lifecycle misuse by the caller.
	ErrAlreadyConnected = errors.New("database already connected")
	ErrClosed           = errors.New("database closed")
)

// StorageError is a recoverable failure of the local store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
