package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition is returned when the target status is not adjacent to the current one
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrGuardViolation is returned when a graph-legal transition fails a business guard
	ErrGuardViolation = errors.New("transition guard violated")

	// ErrUnknownStatus is returned when a value outside the 13 lifecycle statuses is supplied
	ErrUnknownStatus = errors.New("unknown status")
)

// Kind classifies why a transition was rejected
type Kind string

const (
	KindNone              Kind = ""
	KindIllegalTransition Kind = "illegal_transition"
	KindGuardViolation    Kind = "guard_violation"
	KindUnknownStatus     Kind = "unknown_status"
)

// sentinel returns the package error matching the kind
func (k Kind) sentinel() error {
	switch k {
	case KindIllegalTransition:
		return ErrIllegalTransition
	case KindGuardViolation:
		return ErrGuardViolation
	case KindUnknownStatus:
		return ErrUnknownStatus
	default:
		return nil
	}
}

// TransitionError carries the rejection kind and the human-readable reason
type TransitionError struct {
	Kind   Kind
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	return e.Reason
}

// Unwrap lets errors.Is match the sentinel for the kind
func (e *TransitionError) Unwrap() error {
	return e.Kind.sentinel()
}

// AsTransitionError extracts a *TransitionError from err
func AsTransitionError(err error) (*TransitionError, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func newUnknownStatusError(raw string) *TransitionError {
	return &TransitionError{
		Kind:   KindUnknownStatus,
		Reason: fmt.Sprintf("Unknown status %q", raw),
	}
}
