package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrVersionMismatch is returned by conditional writes when the row changed
	// since the caller read it.
	ErrVersionMismatch = errors.New("version mismatch")
)
