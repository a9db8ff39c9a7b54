// Package ratelimit serializes calls to a single hot catalog endpoint.
//
// A Gate is shared by every caller in the process. It hands out call slots at
// least MinInterval apart and honors server backoff hints by pushing a shared
// blocked-until deadline forward. All state sits behind one mutex.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

// DefaultMinInterval is used when NewGate is given a non-positive interval.
const DefaultMinInterval = 100 * time.Millisecond

// Gate is a process-wide pacing gate.
type Gate struct {
	minInterval time.Duration

	mu           sync.Mutex
	next         time.Time
	blockedUntil time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate returns a gate that spaces calls by at least minInterval.
func NewGate(minInterval time.Duration) *Gate {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Gate{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepWithContext,
	}
}

// MinInterval returns the configured spacing.
func (g *Gate) MinInterval() time.Duration {
	return g.minInterval
}

// Wait reserves the next call slot and blocks until it arrives or ctx ends.
// A cancelled waiter keeps its reservation; the slot simply goes unused.
func (g *Gate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	now := g.now()
	slot := now
	if g.next.After(slot) {
		slot = g.next
	}
	if g.blockedUntil.After(slot) {
		slot = g.blockedUntil
	}
	g.next = slot.Add(g.minInterval)
	g.mu.Unlock()

	delay := slot.Sub(now)
	metrics.ObserveGateWait(delay)
	if delay <= 0 {
		return nil
	}
	return g.sleep(ctx, delay)
}

// Backoff extends the shared blocked-until deadline by d from now.
// A shorter hint never shortens an existing deadline.
func (g *Gate) Backoff(d time.Duration) {
	if d <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	until := g.now().Add(d)
	if until.After(g.blockedUntil) {
		g.blockedUntil = until
	}
}

// BlockedUntil reports the current backoff deadline (zero if never set).
func (g *Gate) BlockedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedUntil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
