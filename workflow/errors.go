package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the workflow core. Controllers map these to
// HTTP statuses; none of them are retryable by the core itself.
var (
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidTransition means a state-machine rule was violated. The
	// entity state is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConstraintViolation means a data invariant would be broken.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrCapacityExceeded means the annotator already holds their maximum
	// number of active assignments.
	ErrCapacityExceeded = errors.New("annotator capacity exceeded")

	// ErrImageNotAssignable means a target image is not in an assignable state.
	ErrImageNotAssignable = errors.New("image not assignable")

	// ErrDuplicateSubmission means the image already has an active annotation.
	ErrDuplicateSubmission = errors.New("duplicate annotation submission")

	// ErrAlreadyVerified means the annotation already has a verification.
	ErrAlreadyVerified = errors.New("annotation already verified")

	// ErrSameVerifierConflict means a second opinion must come from a
	// different verifier.
	ErrSameVerifierConflict = errors.New("second opinion requires a different verifier")
)

// TransitionError carries the rejected edge of a state machine.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// Is lets callers match any TransitionError with errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// constraintf wraps ErrConstraintViolation with a caller message.
func constraintf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConstraintViolation)...)
}
