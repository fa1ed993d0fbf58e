package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateLaw checks a Law projection record for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the law is valid.
func ValidateLaw(l *Law) error {
	var ve ValidationError

	// Title: required and at most 500 characters.
	title := strings.TrimSpace(l.Title)
	if title == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "is required"})
	} else if len([]rune(title)) > 500 {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must be 500 characters or fewer"})
	}

	// Status: must be a valid enum value (closed set).
	if !l.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q", l.Status),
		})
	}

	// FinalStatus: must be a valid enum value (closed set).
	if !l.FinalStatus.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "final_status",
			Message: fmt.Sprintf("invalid value %q", l.FinalStatus),
		})
	}

	// FinalStatus is write-once: a non-finalized law must still be pending.
	if l.Status != StatusFinalized && l.FinalStatus != FinalPending {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "final_status",
			Message: fmt.Sprintf("must be %q until the law is finalized", FinalPending),
		})
	}

	// A finalized law can no longer be active.
	if l.Status == StatusFinalized && l.Active {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "active",
			Message: "finalized laws must be inactive",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateSession checks a Session projection record for constraint violations.
func ValidateSession(s *Session) error {
	var ve ValidationError

	if strings.TrimSpace(s.Date) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "date", Message: "is required"})
	}

	if s.Active && s.FinalizedAt != nil {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "active",
			Message: "finalized sessions must be inactive",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
