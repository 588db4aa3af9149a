package domain

import "errors"

// Error taxonomy. Downstream components wrap these sentinels with fmt.Errorf
// and %w; the conversation service branches on errors.Is.
var (
	// ErrValidation marks malformed or unsafe input that is never executed:
	// rejected generated SQL, missing entity identifiers, empty queries.
	ErrValidation = errors.New("validation error")

	// ErrUpstreamTimeout marks a timed-out external call (generation, vector
	// search, SQL execution, tool APIs) after any permitted retry.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrNotFound marks a legitimate empty-evidence state, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrTurnInFlight is returned when a second turn is submitted for a
	// session that is still processing one, or when a delete races a turn.
	ErrTurnInFlight = errors.New("turn already in flight")
)
