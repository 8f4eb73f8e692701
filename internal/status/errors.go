package status

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState matches any *InvalidStateError via errors.Is.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrAlreadyProcessing matches any *AlreadyProcessingError via errors.Is.
	ErrAlreadyProcessing = errors.New("application is already processing")
	// ErrStaleRun is returned to a pipeline run that no longer owns the
	// application because it was reset or taken over by a forced retry.
	ErrStaleRun = errors.New("pipeline run superseded")
)

// InvalidStateError reports an action attempted from a state that does not allow it.
type InvalidStateError struct {
	Current State
	Action  Event
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s from state %s", e.Action, e.Current)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func (e *InvalidStateError) Details() map[string]any {
	return map[string]any{
		"current_state": e.Current,
		"action":        e.Action,
	}
}

// AlreadyProcessingError reports a processing request while a pipeline stage
// still owns the application.
type AlreadyProcessingError struct {
	Current State
}

func (e *AlreadyProcessingError) Error() string {
	return fmt.Sprintf("application is already processing (state %s)", e.Current)
}

func (e *AlreadyProcessingError) Is(target error) bool {
	return target == ErrAlreadyProcessing
}

func (e *AlreadyProcessingError) Details() map[string]any {
	return map[string]any{"current_state": e.Current}
}
