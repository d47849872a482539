package models

import "errors"

var (
	// ErrInvalidTransition is returned for a move to the actor's own room, a move
	// not permitted in the current drive mode, or an equipment operation attempted
	// from a disallowed state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrAlreadyActive is returned when powering on equipment that is not OFF.
	ErrAlreadyActive = errors.New("equipment already active")

	// ErrNotReady is returned when use begins or ends from the wrong state.
	ErrNotReady = errors.New("equipment not ready")

	// ErrUnknownEntity is returned when a command references a missing actor, room or command.
	ErrUnknownEntity = errors.New("unknown entity")
)
