package domain

import "errors"

// Simulation errors. Operations wrap these with context; match with errors.Is.
var (
	// ErrInvalidState is returned when an operation is not legal in the
	// current session or grid state (e.g. pausing a stopped session).
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientFunds is returned when a grid investment exceeds the
	// available base balance. No funds are deducted in that case.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound is returned for unknown grid, scenario or session ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfiguration is returned when a config, scenario or
	// correlation matrix fails validation.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
