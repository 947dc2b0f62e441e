package domain

import "errors"

// Error taxonomy shared by the lifecycle components. Callers wrap these with
// context using fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrInvalidState: the requested transition is illegal from the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnauthorized: the caller is not the referee assigned to the match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidEvent: missing type/team, or team not in the match.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrNotFound: the match or tournament does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransientStore: the backing store failed; the operation was rolled back.
	ErrTransientStore = errors.New("transient store error")
)
