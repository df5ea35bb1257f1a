package health

import "errors"

var (
	// ErrCheckTimeout marks an observation that outran the sweep budget.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound marks a component name with no registered checker.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
