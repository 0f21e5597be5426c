package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// DefaultSendTimeout bounds a single recipient's delivery when no timeout is
// configured.
const DefaultSendTimeout = 5 * time.Second

// Fanout delivers messages to every member of a room. It holds no membership
// state of its own; each Broadcast works on a snapshot taken from the Registry.
type Fanout struct {
	registry    *Registry
	sendTimeout time.Duration
	log         *zap.Logger
}

// NewFanout creates a Fanout over registry. A non-positive sendTimeout falls
// back to DefaultSendTimeout.
func NewFanout(registry *Registry, sendTimeout time.Duration, log *zap.Logger) *Fanout {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{registry: registry, sendTimeout: sendTimeout, log: log}
}

// Broadcast sends msg to every current member of room except exclude (pass
// nil to include everyone) and returns the number of successful deliveries.
//
// Sends run concurrently so one stalled peer cannot hold up the others. A
// member whose send fails is removed from room and closed. Members that join
// after the snapshot is taken do not receive msg.
func (f *Fanout) Broadcast(ctx context.Context, room string, msg []byte, exclude Conn) int {
	targets := f.targets(room, exclude)
	if len(targets) == 0 {
		return 0
	}

	f.log.Debug("broadcasting message",
		zap.String("room", room),
		zap.Int("targets", len(targets)),
		zap.Int("bytes", len(msg)))

	failed := f.sendAll(ctx, targets, msg)
	f.removeFailed(room, failed)
	return len(targets) - len(failed)
}

// targets returns the member snapshot of room without exclude.
func (f *Fanout) targets(room string, exclude Conn) []Conn {
	members := f.registry.Members(room)
	if exclude == nil {
		return members
	}
	excludeID := exclude.ID()
	out := members[:0]
	for _, c := range members {
		if c.ID() != excludeID {
			out = append(out, c)
		}
	}
	return out
}

// sendAll attempts delivery to each target and returns those that failed.
func (f *Fanout) sendAll(ctx context.Context, targets []Conn, msg []byte) []Conn {
	results := make([]error, len(targets))

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for i, c := range targets {
		i, c := i, c
		go func() {
			defer wg.Done()
			results[i] = f.sendOne(ctx, c, msg)
		}()
	}
	wg.Wait()

	var failed []Conn
	for i, err := range results {
		if err == nil {
			metrics.Deliveries.WithLabelValues(metrics.ResultOK).Inc()
			continue
		}
		metrics.Deliveries.WithLabelValues(metrics.ResultFailed).Inc()
		f.log.Info("delivery failed",
			zap.String("conn", targets[i].ID()),
			zap.Error(err))
		failed = append(failed, targets[i])
	}
	return failed
}

func (f *Fanout) sendOne(ctx context.Context, c Conn, msg []byte) error {
	sendCtx, cancel := context.WithTimeout(ctx, f.sendTimeout)
	defer cancel()
	return c.Send(sendCtx, msg)
}

// removeFailed drops failed recipients from room and closes them.
func (f *Fanout) removeFailed(room string, failed []Conn) {
	for _, c := range failed {
		if f.registry.Leave(room, c) {
			f.log.Info("member removed after failed delivery",
				zap.String("room", room),
				zap.String("conn", c.ID()))
		}
		if err := c.Close(); err != nil && !isExpectedCloseError(err) {
			f.log.Warn("error closing failed member",
				zap.String("conn", c.ID()),
				zap.Error(err))
		}
	}
}
