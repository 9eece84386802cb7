package autoscaler

import (
	"sync"
	"time"
)

// IdleTracker last-traffic bookkeeping shared by the poll loop and the wake signal handler
type IdleTracker struct {
	mu             sync.RWMutex
	lastTrafficAt  time.Time
	wokenByTraffic bool
}

// NewIdleTracker creates a tracker with no traffic recorded
func NewIdleTracker() *IdleTracker {
	return &IdleTracker{}
}

// RecordTraffic records traffic observed at `at`; the timestamp never moves backwards
func (t *IdleTracker) RecordTraffic(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at.After(t.lastTrafficAt) {
		t.lastTrafficAt = at
	}
}

// MarkWokenByTraffic flags that workloads are awake because of traffic
func (t *IdleTracker) MarkWokenByTraffic() {
	t.mu.Lock()
	t.wokenByTraffic = true
	t.mu.Unlock()
}

// ClearWoken hands the workloads back to the schedule without forgetting traffic
func (t *IdleTracker) ClearWoken() {
	t.mu.Lock()
	t.wokenByTraffic = false
	t.mu.Unlock()
}

// ElapsedIdle time since the last recorded traffic; ok=false when none was recorded
func (t *IdleTracker) ElapsedIdle(now time.Time) (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastTrafficAt.IsZero() {
		return 0, false
	}
	elapsed := now.Sub(t.lastTrafficAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, true
}

// Reset clears traffic and woken flag
func (t *IdleTracker) Reset() {
	t.mu.Lock()
	t.lastTrafficAt = time.Time{}
	t.wokenByTraffic = false
	t.mu.Unlock()
}

// ResetIfIdleSince resets only if no traffic newer than `since` was recorded.
// Returns false when newer traffic arrived after the decision snapshot was taken.
func (t *IdleTracker) ResetIfIdleSince(since time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastTrafficAt.After(since) {
		return false
	}
	t.lastTrafficAt = time.Time{}
	t.wokenByTraffic = false
	return true
}

// Snapshot copies the current state
func (t *IdleTracker) Snapshot() IdleState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return IdleState{
		LastTrafficAt:  t.lastTrafficAt,
		WokenByTraffic: t.wokenByTraffic,
	}
}
