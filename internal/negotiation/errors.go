package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrRoleConflict      = errors.New("role conflict")
	ErrNegotiation       = errors.New("negotiation error")
	ErrTransportFailure  = errors.New("transport failure")
	ErrDevice            = errors.New("device error")
	ErrLinkLost          = errors.New("signaling link lost")
	ErrSessionLive       = errors.New("session already live")
	ErrIllegalTransition = errors.New("illegal state transition")
)

// Error ties an error kind (one of the sentinels above) to the operation that
// produced it and, optionally, the underlying cause.
type Error struct {
	Op      string
	Kind    error
	Err     error
	Details string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func WrapError(op string, kind error, details string) *Error {
	return &Error{Op: op, Kind: kind, Details: details}
}
