package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is malformed input, reported before any state change.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredential covers wrong, expired and already used secrets.
	// Callers never learn which of those it was.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrPreconditionFailed is a business rule violation such as confirming
	// two-factor setup without a pending secret.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrLocked is returned while the withdrawal passcode is locked out.
	ErrLocked = errors.New("locked")

	ErrUserNotFound = errors.New("user not found")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PreconditionError carries a user-facing reason.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

func (e *PreconditionError) Is(target error) bool { return target == ErrPreconditionFailed }

func precondition(reason string) error {
	return &PreconditionError{Reason: reason}
}

// LockedError reports an active passcode lockout.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("withdrawal passcode locked for %d more minute(s)", LockoutMinutes(e.Remaining))
}

func (e *LockedError) Is(target error) bool { return target == ErrLocked }

// PasscodeMismatchError is a wrong passcode. Locked is set when this
// failure triggered the lockout.
type PasscodeMismatchError struct {
	AttemptsRemaining int
	Locked            bool
	Remaining         time.Duration
}

func (e *PasscodeMismatchError) Error() string {
	if e.Locked {
		return "invalid withdrawal passcode, locked out"
	}
	return fmt.Sprintf("invalid withdrawal passcode, %d attempt(s) remaining", e.AttemptsRemaining)
}

func (e *PasscodeMismatchError) Is(target error) bool { return target == ErrInvalidCredential }
