package wizard

import (
	"errors"
	"fmt"

	"daypass/models"
)

var (
	ErrSubmissionInFlight = errors.New("wizard: a booking submission is in progress")
	ErrFirstStep          = errors.New("wizard: already on the first step")
	ErrLastStep           = errors.New("wizard: already on the last step")
	ErrAttractionsOff     = errors.New("wizard: attraction add-ons are disabled")
	ErrAlreadyBooked      = errors.New("wizard: this checkout is already booked")
)

// ValidationError is a failed step validator or a rejected input.
type ValidationError struct {
	Step    models.Step
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("step %s: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("step %s: %s: %s", e.Step, e.Field, e.Message)
}

// WrongStepError is returned when an input belongs to a step other than the current one.
type WrongStepError struct {
	Current models.Step
	Wanted  models.Step
}

func (e *WrongStepError) Error() string {
	return fmt.Sprintf("wizard: on step %s, input belongs to step %s", e.Current, e.Wanted)
}

func invalid(step models.Step, field, msg string) *ValidationError {
	return &ValidationError{Step: step, Field: field, Message: msg}
}
