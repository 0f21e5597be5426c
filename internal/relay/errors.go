package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrSend reports a failed delivery to a single recipient.
	ErrSend = errors.New("relay: send failed")
	// ErrReceive reports that a connection can no longer be read from.
	ErrReceive = errors.New("relay: receive failed")
	// ErrClosed is returned by operations on a connection that was closed.
	ErrClosed = errors.New("relay: connection closed")
)

// JoinError is returned when a connection could not be established for a
// room. The connection is never registered.
type JoinError struct {
	Room string
	Err  error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("relay: join room %q: %v", e.Room, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }

// sendError wraps cause so that errors.Is matches both ErrSend and cause.
func sendError(cause error) error {
	return fmt.Errorf("%w: %w", ErrSend, cause)
}

// receiveError wraps cause so that errors.Is matches both ErrReceive and cause.
func receiveError(cause error) error {
	return fmt.Errorf("%w: %w", ErrReceive, cause)
}
