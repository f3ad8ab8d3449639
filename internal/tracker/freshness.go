package tracker

import "time"

// DefaultFreshnessWindow tolerates ordinary network and database
// propagation latency while rejecting replayed stale fixes.
const DefaultFreshnessWindow = 30 * time.Second

// FreshnessGate rejects fixes whose reported timestamp is too old,
// preventing a reconnect replaying cached data from snapping a marker
// backward.
type FreshnessGate struct {
	window time.Duration
	clock  Clock
}

// NewFreshnessGate creates a gate with the given window. A zero window
// falls back to the default; a nil clock uses the system clock.
func NewFreshnessGate(window time.Duration, clock Clock) *FreshnessGate {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if clock == nil {
		clock = SystemClock
	}
	return &FreshnessGate{window: window, clock: clock}
}

// Window returns the configured freshness window.
func (g *FreshnessGate) Window() time.Duration {
	return g.window
}

// IsFresh reports whether the fix timestamp is strictly inside the window.
func (g *FreshnessGate) IsFresh(observedAt time.Time) bool {
	return g.clock.Now().Sub(observedAt) < g.window
}
