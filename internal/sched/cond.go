package sched

import (
	"context"
	"sync"

	"github.com/minisource/schedulerd/internal/sched/clock"
)

// broadcastCond is the Go rendition of a POSIX condition variable paired
// with the scheduler lock, per spec.md §9's note that an implementation
// may substitute a single condvar with a predicate over state as long as
// every wait site re-checks its predicate under the lock. sync.Cond has
// no deadline-aware Wait, so broadcastCond signals by closing (and
// replacing) a channel, which every current waiter observes; deadline
// waits delegate to the injected Clock so the same primitive is usable
// with a fake clock in tests.
type broadcastCond struct {
	mu *sync.Mutex
	ch chan struct{}
}

func newBroadcastCond(mu *sync.Mutex) *broadcastCond {
	return &broadcastCond{mu: mu, ch: make(chan struct{})}
}

// Broadcast wakes every current waiter. Must be called with mu held.
func (c *broadcastCond) Broadcast() {
	close(c.ch)
	c.ch = make(chan struct{})
}

// Wait blocks until Broadcast is called or ctx is done. Must be called
// with mu held; it releases mu while blocked and reacquires it before
// returning, exactly like sync.Cond.Wait.
func (c *broadcastCond) Wait(ctx context.Context) clock.WakeCause {
	ch := c.ch
	c.mu.Unlock()
	defer c.mu.Lock()

	select {
	case <-ch:
		return clock.Spurious
	case <-ctx.Done():
		return clock.Cancelled
	}
}

// WaitDeadline is like Wait but also wakes at deadline (UTC seconds), as
// reported by clk.
func (c *broadcastCond) WaitDeadline(ctx context.Context, deadline int64, clk clock.Clock) clock.WakeCause {
	ch := c.ch
	c.mu.Unlock()
	defer c.mu.Lock()

	return clk.SleepUntil(ctx, deadline, ch)
}
