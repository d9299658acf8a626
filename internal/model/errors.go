package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across parsers, the library and the download manager.
// Use errors.Is in callers.
var (
	// ErrFormat means a binary or text structure is malformed. Callers skip the
	// offending record or lump and continue.
	ErrFormat = errors.New("malformed format")
	// ErrIntegrity means a transferred file failed post-transfer validation.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrNotFound means an expected-absent resource (no manifest yet, unknown slug).
	ErrNotFound = errors.New("not found")
)

// IntegrityError describes a failed validation of a transferred file.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, got %q", e.Path, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrIntegrity) match.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
