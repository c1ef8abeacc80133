package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrForbidden indicates the actor lacks permission.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates no authenticated actor.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBusinessRule marks a well-formed request rejected by domain state.
	// It unwraps to ErrValidation.
	ErrBusinessRule error = &kindError{msg: "business rule violation", kind: ErrValidation}
)

// kindError carries its own message while still matching a category sentinel.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// RuleError builds a sentinel that matches ErrBusinessRule.
func RuleError(msg string) error {
	return &kindError{msg: msg, kind: ErrBusinessRule}
}

// Validationf formats a validation failure.
func Validationf(format string, args ...any) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrValidation}
}

// Rulef formats a business rule violation.
func Rulef(format string, args ...any) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrBusinessRule}
}

// NotFoundf formats a not found error.
func NotFoundf(format string, args ...any) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrNotFound}
}
