package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies protocol failures. Every rejected operation leaves
// the trial state untouched; the kind tells the caller whether a retry can
// ever succeed and which party was at fault.
type ErrorKind int

const (
	// ValidationError covers bad ranges, duplicate enrollment or
	// submission, and operations attempted in the wrong phase.
	ValidationError ErrorKind = iota + 1

	// AuthorizationError covers callers lacking a required capability,
	// such as a non-coordinator invoking a coordinator-only action or an
	// operation touching a handle without a processor grant.
	AuthorizationError

	// VerificationError covers oracle callbacks whose signature set fails
	// verification. The request remains pending.
	VerificationError

	// TimingError covers phase transitions requested before the phase
	// timer has elapsed.
	TimingError
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation"
	case AuthorizationError:
		return "authorization"
	case VerificationError:
		return "verification"
	case TimingError:
		return "timing"
	}
	return "unknown"
}

// Error is a classified protocol error.
type Error struct {
	Kind ErrorKind
	msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification from err, or 0 if err is not a
// protocol error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
