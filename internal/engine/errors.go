package engine

import "errors"

// Every engine failure wraps exactly one of these sentinels; callers branch
// with errors.Is and must re-fetch current state before retrying after
// ErrConflict or ErrInvalidState.
var (
	// ErrInvalidArgument marks a malformed request, e.g. a zero duration.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState marks an operation that is illegal for the machine's
	// current status.
	ErrInvalidState = errors.New("invalid machine state")
	// ErrUnauthorized marks an attempt to end a reservation owned by
	// someone else.
	ErrUnauthorized = errors.New("caller does not own the reservation")
	// ErrConflict marks a lost race: the precondition held at read time but
	// not at write time.
	ErrConflict = errors.New("conflicting concurrent update")
	// ErrNotFound marks an unknown machine id.
	ErrNotFound = errors.New("machine not found")
	// ErrUnavailable marks a store failure; the attempt may be retried by
	// the caller, never by the engine.
	ErrUnavailable = errors.New("store unavailable")
)
