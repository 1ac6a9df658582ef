package state

import "errors"

var (
	ErrInvariantViolation = errors.New("internal invariant violated")
	ErrAlreadyActive      = errors.New("task is already active")
)
