package progression

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("progression: invalid transition")
	ErrRoundComplete     = errors.New("progression: round already complete")
)

// TransitionError reports a command rejected in the current screen.
type TransitionError struct {
	Command string
	Screen  Screen
	Reason  string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("progression: %s not allowed in %s: %s", e.Command, e.Screen, e.Reason)
	}
	return fmt.Sprintf("progression: %s not allowed in %s", e.Command, e.Screen)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsInvalidTransition reports whether err is a rejected command.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
