package relay_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/Tyrowin/roomrelay/internal/relay"
)

// fakeConn is an in-memory relay.Conn. Inbound messages are pushed with
// deliver; outbound messages are recorded.
type fakeConn struct {
	id    string
	inbox chan []byte
	done  chan struct{}

	mu       sync.Mutex
	received []string
	broken   bool
	stall    bool

	closeOnce sync.Once
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:    id,
		inbox: make(chan []byte, 128),
		done:  make(chan struct{}),
	}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(ctx context.Context, msg []byte) error {
	f.mu.Lock()
	broken, stall := f.broken, f.stall
	f.mu.Unlock()

	select {
	case <-f.done:
		return fmt.Errorf("%w: %s closed", relay.ErrSend, f.id)
	default:
	}
	if broken {
		return fmt.Errorf("%w: %s broken", relay.ErrSend, f.id)
	}
	if stall {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", relay.ErrSend, ctx.Err())
		case <-f.done:
			return fmt.Errorf("%w: %s closed", relay.ErrSend, f.id)
		}
	}

	f.mu.Lock()
	f.received = append(f.received, string(msg))
	f.mu.Unlock()
	return nil
}

// Receive drains queued inbound messages before reporting a close.
func (f *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-f.inbox:
		return msg, nil
	default:
	}

	select {
	case msg := <-f.inbox:
		return msg, nil
	case <-f.done:
		return nil, fmt.Errorf("%w: %s closed", relay.ErrReceive, f.id)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", relay.ErrReceive, ctx.Err())
	}
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) Done() <-chan struct{} { return f.done }

func (f *fakeConn) deliver(msgs ...string) {
	for _, m := range msgs {
		f.inbox <- []byte(m)
	}
}

func (f *fakeConn) breakChannel() {
	f.mu.Lock()
	f.broken = true
	f.mu.Unlock()
}

func (f *fakeConn) stallSends() {
	f.mu.Lock()
	f.stall = true
	f.mu.Unlock()
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func memberIDs(members []relay.Conn) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID())
	}
	return ids
}
