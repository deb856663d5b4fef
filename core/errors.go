package core

import "errors"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidArgs     = errors.New("invalid args")

	// ErrAllocationConflict is returned by storage when a concurrent
	// allocation raced on the same project counter. CreateTask retries a
	// bounded number of times before surfacing it.
	ErrAllocationConflict = errors.New("card number allocation conflict")
)
