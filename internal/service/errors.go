// Package service holds the booking engine, the ticket redemption gate and
// the review gate.  Every operation takes an explicit Identity; handlers
// derive it from the JWT and translate the errors below into HTTP status
// codes.
package service

import (
    "errors"
    "fmt"
)

var (
    // ErrValidation wraps every malformed-input failure.  Use errors.Is
    // to test for it; the concrete value is a *ValidationError.
    ErrValidation = errors.New("validation failed")
    // ErrEmptySelection means none of the requested cart lines exist and
    // belong to the caller.
    ErrEmptySelection = errors.New("no valid items selected")
    ErrNotFound       = errors.New("not found")
    // ErrForbidden is returned when the caller is neither the owner nor an admin.
    ErrForbidden = errors.New("unauthorized")
    // ErrNotEntitled means the caller has no successful booking that would
    // allow a review of the destination.
    ErrNotEntitled = errors.New("a settled booking of this destination is required")
    ErrDuplicate   = errors.New("already reviewed for this purchase")
    // ErrCodeAllocationExhausted is returned when no unique code was found
    // within the attempt bound.
    ErrCodeAllocationExhausted = errors.New("could not allocate a unique code")
)

// ValidationError names the offending field.
type ValidationError struct {
    Field   string
    Message string
}

func (e *ValidationError) Error() string {
    if e.Field == "" {
        return e.Message
    }
    return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
    return &ValidationError{Field: field, Message: msg}
}
