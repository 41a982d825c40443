package action

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBindingInvalid indicates a required property was not supplied.
	ErrBindingInvalid = errors.New("action binding invalid")
	// ErrExecutionFailed indicates spawning or talking to an external process or session failed.
	ErrExecutionFailed = errors.New("action execution failed")
	// ErrUnknownAction indicates no description is registered under a name.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownMode indicates a mode name is not recognised.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrDuplicateNamespace indicates two providers claim the same namespace.
	ErrDuplicateNamespace = errors.New("duplicate action namespace")
)

// BindingError lists the required properties missing from a binding.
type BindingError struct {
	Action  string
	Missing []string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("%s: %s requires %s", ErrBindingInvalid, e.Action, strings.Join(e.Missing, ", "))
}

func (e *BindingError) Unwrap() error {
	return ErrBindingInvalid
}

// ActionError attaches the action, part and group to a failure.
type ActionError struct {
	Action string
	Part   string
	Group  string
	Err    error
}

func (e *ActionError) Error() string {
	target := e.Group
	if target == "" {
		target = "batch"
	}
	return fmt.Sprintf("%s on part %q for %s: %v", e.Action, e.Part, target, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// executionFailure wraps cause so it matches both ErrExecutionFailed and cause.
func executionFailure(cause error) error {
	return fmt.Errorf("%w: %w", ErrExecutionFailed, cause)
}
