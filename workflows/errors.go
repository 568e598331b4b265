package workflows

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadySubmitted is returned when submit is called on a
	// conversation that has already been submitted.
	ErrAlreadySubmitted = errors.New("conversation already submitted")

	// ErrInvalidScope is returned when an operation requires a page or
	// feature scope the conversation does not have.
	ErrInvalidScope = errors.New("conversation has no page or feature scope")

	// ErrInvalidState is returned for a disallowed status transition,
	// such as archiving a submitted or archived conversation.
	ErrInvalidState = errors.New("invalid conversation state transition")
)

// CollaboratorError wraps a failure from an external collaborator (agent,
// iteration service, email). Email failures are swallowed by the lifecycle
// operations; the rest propagate as hard failures.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
