package inventory

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes inventory errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates a bad request: unknown event, invalid
	// tier, or a non-positive or absurdly large quantity.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeInsufficient indicates the request exceeds actual availability.
	ErrCodeInsufficient ErrorCode = "INSUFFICIENT_INVENTORY"

	// ErrCodeAuthorization indicates a missing admin identity.
	ErrCodeAuthorization ErrorCode = "AUTHORIZATION"

	// ErrCodeInternal indicates an unexpected backend failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Sentinel errors returned by backends.
var (
	// ErrEventNotFound is returned by Backend.Load for unknown events.
	ErrEventNotFound = errors.New("event not found")

	// ErrVersionConflict is returned by Backend.Commit when the stored
	// version no longer matches the expected version.
	ErrVersionConflict = errors.New("inventory version conflict")
)

// Error is the structured failure returned by inventory operations.
//
// Business failures (validation, insufficient inventory, authorization) are
// ordinary return values, not panics; callers branch on Code. Internal
// failures keep their cause for logging via Unwrap but never put it in
// Message.
type Error struct {
	Code      ErrorCode
	Message   string
	EventID   string
	Tier      Tier
	Requested int
	Available int
	Details   map[string]string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of an *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == ErrCodeValidation }

// IsInsufficient returns true if err is an insufficient-inventory error.
func IsInsufficient(err error) bool { return CodeOf(err) == ErrCodeInsufficient }

// IsAuthorization returns true if err is an authorization error.
func IsAuthorization(err error) bool { return CodeOf(err) == ErrCodeAuthorization }

// IsInternal returns true if err is an internal error.
func IsInternal(err error) bool { return CodeOf(err) == ErrCodeInternal }

// NewValidationError creates a validation error for eventID.
func NewValidationError(eventID, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
		EventID: eventID,
	}
}

// NewUnknownEventError creates the validation error for an unknown event id.
func NewUnknownEventError(eventID string) *Error {
	return NewValidationError(eventID, "unknown event %q", eventID)
}

// NewInsufficientError creates an insufficient-inventory error.
func NewInsufficientError(eventID string, tier Tier, available, requested int) *Error {
	return &Error{
		Code:      ErrCodeInsufficient,
		Message:   fmt.Sprintf("insufficient inventory: Available: %d, Requested: %d", available, requested),
		EventID:   eventID,
		Tier:      tier,
		Requested: requested,
		Available: available,
		Details: map[string]string{
			"available": fmt.Sprintf("%d", available),
			"requested": fmt.Sprintf("%d", requested),
		},
	}
}

// NewAuthorizationError creates an authorization error for an admin operation.
func NewAuthorizationError(eventID, operation string) *Error {
	return &Error{
		Code:    ErrCodeAuthorization,
		Message: fmt.Sprintf("%s requires a non-empty authorized_by identity", operation),
		EventID: eventID,
	}
}

// newInternalError hides cause behind a generic message.
func newInternalError(eventID string, cause error) *Error {
	return &Error{
		Code:    ErrCodeInternal,
		Message: "inventory operation failed",
		EventID: eventID,
		cause:   cause,
	}
}
