// Package checks implements the header classification engine.
// This file defines the errors the engine and the policy registry return.
package checks

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpecShape is returned when a reference is neither a valued
	// nor a presence spec, or does not have the shape a policy requires.
	ErrInvalidSpecShape = errors.New("invalid reference spec shape")

	// ErrUnknownPolicy is returned for a policy name nobody registered.
	ErrUnknownPolicy = errors.New("unknown scan policy")
)

// PolicyError records which policy rejected its input.
type PolicyError struct {
	Policy string
	Err    error
}

// Error implements the error interface
func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy '%s': %v", e.Policy, e.Err)
}

// Unwrap returns the underlying error
func (e *PolicyError) Unwrap() error {
	return e.Err
}
