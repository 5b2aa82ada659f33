// Package broadcast implements the single-slot fan-out used for live
// streaming: one producer publishes the newest encoded visualization,
// any number of viewers wait for a version newer than the last one they
// saw.
//
// The design is a condition-variable broadcast over one shared cell
// rather than per-client channels: memory stays O(1) in the number of
// viewers, a slow client that missed several publications sees only the
// newest one, and the publisher never blocks on a consumer. Versions are
// monotonically increasing and never reset while the process runs.
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by AwaitNewer after Close, once no newer payload
// remains to deliver.
var ErrClosed = errors.New("broadcast: closed")

// Broadcaster holds the most recently published payload and its version.
type Broadcaster struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current []byte
	version uint64
	closed  bool
}

// New creates an empty Broadcaster at version 0.
func New() *Broadcaster {
	b := &Broadcaster{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish replaces the current payload, increments the version and wakes
// every waiter. The caller must not modify payload afterwards. Returns
// the new version. Publishing after Close is a no-op.
func (b *Broadcaster) Publish(payload []byte) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return b.version
	}
	b.current = payload
	b.version++
	b.cond.Broadcast()
	return b.version
}

// Version returns the version of the most recent publication.
func (b *Broadcaster) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// AwaitNewer blocks until a payload with version > lastSeen exists, the
// context is cancelled, or the broadcaster is closed. On success it
// returns the newest payload and its version; intermediate publications
// are coalesced away. The returned slice is shared between all viewers
// and must be treated as read-only.
func (b *Broadcaster) AwaitNewer(ctx context.Context, lastSeen uint64) ([]byte, uint64, error) {
	// sync.Cond has no context support; bridge cancellation in by waking
	// all waiters, each of which re-checks its own context below.
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.version <= lastSeen && !b.closed && ctx.Err() == nil {
		b.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if b.version <= lastSeen {
		return nil, 0, ErrClosed
	}
	return b.current, b.version, nil
}

// Close wakes every waiter and makes future waits fail with ErrClosed.
// Called once during shutdown so streaming responses terminate cleanly.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}
