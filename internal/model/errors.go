package model

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the two fatal error kinds. The typed errors below
// match them through errors.Is, so callers can test the kind without caring
// about the detail.
var (
	// ErrInvalidInput is matched by every InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionUnavailable is matched by every SessionUnavailableError.
	ErrSessionUnavailable = errors.New("session unavailable")

	// ErrInvalidTransition is returned when a session is moved to a state
	// that cannot follow its current state.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// InvalidInputError reports a phone number that cannot be searched.
// It is raised before any provider is contacted.
type InvalidInputError struct {
	// Digits is the number of digits left after normalization.
	Digits int

	// MinDigits is the platform minimum.
	MinDigits int

	// Reason overrides the default message when set.
	Reason string
}

// Error implements error.
func (e *InvalidInputError) Error() string {
	if e.Reason != "" {
		return "invalid phone number: " + e.Reason
	}
	return fmt.Sprintf("invalid phone number: %d digits, need at least %d", e.Digits, e.MinDigits)
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// SessionUnavailableError reports that the fetch or session provider never
// became ready. The session aborts and no further candidate is probed.
type SessionUnavailableError struct {
	// Provider names the provider that failed (e.g. "browser", "tor").
	Provider string

	// Timeout is the readiness timeout that elapsed, if any.
	Timeout time.Duration

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *SessionUnavailableError) Error() string {
	msg := "session unavailable"
	if e.Provider != "" {
		msg += ": " + e.Provider
	}
	if e.Timeout > 0 {
		msg += fmt.Sprintf(" not ready after %s", e.Timeout)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SessionUnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSessionUnavailable.
func (e *SessionUnavailableError) Is(target error) bool {
	return target == ErrSessionUnavailable
}

// ParseError reports a structured-extraction failure. It never aborts a
// session; the affected record is downgraded to existence-only.
type ParseError struct {
	// Stage is "block" when the embedded data block could not be located or
	// decoded, and "root" when required keys were missing.
	Stage string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Err == nil {
		return "extraction failed at " + e.Stage
	}
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort a session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrSessionUnavailable)
}
