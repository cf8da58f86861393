package engine

import (
	"errors"
	"fmt"
)

var (
	ErrStepNotFound      = errors.New("approval step not found on request")
	ErrRequestFrozen     = errors.New("request is cancelled and its steps can no longer change")
	ErrInvalidTransition = errors.New("transition not allowed for the request's current state")
	ErrUnauthorized      = errors.New("actor's role does not permit deciding this step")
	ErrOutOfOrder        = errors.New("previous approval step has not been approved")
	ErrStepAlreadyExists = errors.New("a step of this kind already exists on the request")
)

// ValidationError reports a malformed or missing input field. It is returned
// before any state change and is safe to surface to the caller verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
