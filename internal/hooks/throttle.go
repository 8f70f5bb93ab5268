package hooks

import "time"

// Clock supplies the current time. Nil means time.Now. Injectable so
// throttled hooks are deterministic under test.
type Clock func() time.Time

// Throttle is a per-hook wall-clock rate limiter.
//
// Lossy: invocations arriving sooner than Period after the last fire are
// skipped, never queued or caught up. A zero Period allows every
// invocation.
type Throttle struct {
	period time.Duration
	clock  Clock
	last   time.Time
}

// NewThrottle returns a throttle with the given minimum period between
// fires. clock may be nil.
func NewThrottle(period time.Duration, clock Clock) Throttle {
	if clock == nil {
		clock = time.Now
	}
	return Throttle{period: period, clock: clock}
}

// Allow reports whether enough wall-clock time has passed since the last
// fire, and records the fire time when it has. Not safe for concurrent
// use; throttled hooks fire on the render goroutine only.
func (t *Throttle) Allow() bool {
	now := t.clock()
	if !t.last.IsZero() && now.Sub(t.last) < t.period {
		return false
	}
	t.last = now
	return true
}

// Now returns the throttle's current clock reading.
func (t *Throttle) Now() time.Time { return t.clock() }
