package sim

import "errors"

// Error kinds reported by the engine. They are wrapped with call-specific
// detail; test with errors.Is. No call mutates state when it returns one of
// these.
var (
	// ErrDimensionMismatch: an operator's shape does not match the
	// dimensions of the states it acts on.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidKrausSet: a Kraus set does not satisfy Σ K†K = I, or POVM
	// elements do not sum to the identity.
	ErrInvalidKrausSet = errors.New("operators do not sum to identity")

	// ErrAlreadyMeasured: the state or space is terminal.
	ErrAlreadyMeasured = errors.New("already measured")

	// ErrInvariantViolation: the engine found itself in, or was asked to
	// enter, a state that should be impossible (missing representation,
	// expanding past Matrix, collapsing onto a zero-probability outcome).
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDimensionLimit: dimension estimation grew past the configured cap.
	ErrDimensionLimit = errors.New("dimension limit exceeded")

	// ErrNotMember: a state is not part of the space, envelope or composite
	// it was passed to.
	ErrNotMember = errors.New("state is not a member")
)
