package raster

import (
	"errors"
	"fmt"
)

// Sentinel errors for missing collaborators.
var (
	ErrNoSource = errors.New("no raster source configured")
	ErrNoLoader = errors.New("no file loader configured")
	ErrNoLookup = errors.New("no attribute lookup configured")
)

// MalformedInputError reports raw input that fails shape, length or
// consistency checks. It is never recovered locally.
type MalformedInputError struct {
	// Field names the offending part of the input (e.g. "spikeTimes").
	Field string

	// Reason is a human-readable description.
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed raster input: %s", e.Reason)
	}
	return fmt.Sprintf("malformed raster input: %s: %s", e.Field, e.Reason)
}

func malformed(field, format string, args ...any) *MalformedInputError {
	return &MalformedInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnresolvableOrderingKeyError reports that the ordering attribute could
// not be resolved for a cell. The lookup's own error is kept in Err.
type UnresolvableOrderingKeyError struct {
	Attribute string
	CellIndex int
	Err       error
}

func (e *UnresolvableOrderingKeyError) Error() string {
	if e.CellIndex < 0 {
		return fmt.Sprintf("cannot resolve ordering key %q: %v", e.Attribute, e.Err)
	}
	return fmt.Sprintf("cannot resolve ordering key %q for cell %d: %v", e.Attribute, e.CellIndex, e.Err)
}

func (e *UnresolvableOrderingKeyError) Unwrap() error {
	return e.Err
}

// IsMalformed returns true if err is or wraps a MalformedInputError.
func IsMalformed(err error) bool {
	var me *MalformedInputError
	return errors.As(err, &me)
}

// IsUnresolvableOrderingKey returns true if err is or wraps an
// UnresolvableOrderingKeyError.
func IsUnresolvableOrderingKey(err error) bool {
	var ue *UnresolvableOrderingKeyError
	return errors.As(err, &ue)
}
