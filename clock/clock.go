// Package clock provides the tick-accumulation timer used for TCP
// retransmission timeout tracking and ARP cache ageing. Components never
// read a wall clock themselves; callers advance a Timer by an elapsed
// millisecond count and ask whether it has expired.
package clock

// Timer accumulates elapsed milliseconds against a reload value and reports
// expiry once the accumulated time reaches it. It does not run on its own;
// callers drive it with Tick. The zero value is inactive and not loaded;
// call Reload before Start.
type Timer struct {
	elapsedMs uint64
	reloadMs  uint64
	active    bool
}

// NewTimer returns a Timer reloaded to initialMs but not yet started.
func NewTimer(initialMs uint64) *Timer {
	return &Timer{reloadMs: initialMs}
}

// Start marks the timer active, beginning accumulation from zero elapsed.
func (t *Timer) Start() {
	t.active = true
	t.elapsedMs = 0
}

// Stop marks the timer inactive; Tick is a no-op until Start is called again.
func (t *Timer) Stop() { t.active = false }

// IsActive reports whether the timer is currently running.
func (t *Timer) IsActive() bool { return t.active }

// Reload sets the expiry threshold and clears accumulated elapsed time
// without changing the active flag.
func (t *Timer) Reload(ms uint64) {
	t.reloadMs = ms
	t.elapsedMs = 0
}

// Tick advances the timer by elapsedMs if active and returns the timer
// itself so callers can chain Tick(ms).Expired().
func (t *Timer) Tick(elapsedMs uint64) *Timer {
	if t.active {
		t.elapsedMs += elapsedMs
	}
	return t
}

// Expired reports whether the accumulated elapsed time has reached the
// reload threshold.
func (t *Timer) Expired() bool {
	return t.active && t.elapsedMs >= t.reloadMs
}

// ExponentialBackoff doubles the reload threshold, used after a
// retransmission timeout fires while the peer's advertised window is
// nonzero.
func (t *Timer) ExponentialBackoff() { t.reloadMs *= 2 }

// Reset restarts accumulation from zero without changing the reload
// threshold, leaving the active flag untouched.
func (t *Timer) Reset() { t.elapsedMs = 0 }
