package errors

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrInvalidInput is returned when caller-supplied input is invalid
	// (empty actor id, empty user message, missing profile data).
	ErrInvalidInput = errors.New("invalid input")

	// ErrActorNotFound is returned when an actor has no stored state
	ErrActorNotFound = errors.New("actor not found")

	// ErrProvider is returned when a completion or embedding provider call fails
	ErrProvider = errors.New("provider request failed")

	// ErrProviderTimeout is returned when a provider call exceeds its deadline
	ErrProviderTimeout = errors.New("provider request timed out")

	// ErrParse is returned when a model response cannot be parsed.
	// Callers generally recover from this with best-effort defaults.
	ErrParse = errors.New("malformed model response")

	// ErrToolExecution is returned when a registered tool handler fails
	ErrToolExecution = errors.New("tool execution failed")

	// ErrLoopExceeded is returned when the tool-call loop hits its iteration cap
	ErrLoopExceeded = errors.New("tool-call loop exceeded iteration limit")

	// ErrUnknownTool is returned when the model requests a function that is not registered
	ErrUnknownTool = errors.New("unknown tool")
)

// Wrap wraps an error with additional context
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience function that wraps errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target, and if so, sets
// target to that error value and returns true. Otherwise, it returns false.
// This is a convenience function that wraps errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
