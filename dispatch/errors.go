package dispatch

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------
//
// Every failure surfaces immediately to the caller as one of four kinds.
// Nothing in this package retries or recovers internally.

// ErrInvalidReference is returned by every operation attempted on an empty
// or released object reference.
var ErrInvalidReference = errors.New("dispatch: invalid object reference")

// ErrTooManyArgs is returned when a call supplies more than MaxArgs
// positional arguments.
var ErrTooManyArgs = errors.New("dispatch: too many arguments (max 9)")

// UnknownMemberError reports that name resolution found no member with the
// given name on the target object.
type UnknownMemberError struct {
	Name string
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("dispatch: unknown member %q", e.Name)
}

// TypeMismatchError reports that a Value could not convert to the requested
// native type. Want names the requested native type, Got is the kind the
// value actually holds.
type TypeMismatchError struct {
	Want string
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("dispatch: cannot convert %s value to %s", e.Got, e.Want)
}

// InvocationError reports that the remote call itself failed: invalid
// arguments, a remote-side fault, permission denial, and so on. Code and
// Message come from the collaborator unmodified.
type InvocationError struct {
	Code    int32
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("dispatch: invocation failed (code %d): %s", e.Code, e.Message)
}
