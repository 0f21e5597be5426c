package relay

import "context"

// Conn is one client's live, message-oriented channel. Each Send and Receive
// call carries exactly one message.
type Conn interface {
	// ID is stable for the lifetime of the connection and unique among live
	// connections.
	ID() string
	// Send delivers msg to the peer. It fails with an error matching ErrSend
	// when the connection is closed or the peer cannot keep up before ctx ends.
	Send(ctx context.Context, msg []byte) error
	// Receive blocks until the next inbound message. It fails with an error
	// matching ErrReceive once the connection is closed or broken.
	Receive(ctx context.Context) ([]byte, error)
	// Close releases the connection. It is safe to call more than once.
	Close() error
	// Done is closed once the connection is closed.
	Done() <-chan struct{}
}
