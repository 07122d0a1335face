package session

import (
	"sync"
	"time"
)

// DeadlineTimer drives the auto-submit deadline of one session. Remaining
// time is recomputed from the absolute deadline on every tick, never
// decremented, so tab suspension or clock adjustments cannot make it fire
// away from true wall-clock expiry. fire runs exactly once.
type DeadlineTimer struct {
	deadline time.Time
	interval time.Duration
	now      func() time.Time
	fire     func()

	fireOnce sync.Once
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDeadlineTimer creates a timer that calls fire when now reaches
// deadline. now may be nil for wall clock.
func NewDeadlineTimer(deadline time.Time, interval time.Duration, now func() time.Time, fire func()) *DeadlineTimer {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &DeadlineTimer{
		deadline: deadline,
		interval: interval,
		now:      now,
		fire:     fire,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Remaining returns the time left until the deadline, clamped at zero.
func (t *DeadlineTimer) Remaining() time.Duration {
	r := t.deadline.Sub(t.now())
	if r < 0 {
		return 0
	}
	return r
}

// Start begins ticking in a goroutine. The first check happens
// immediately: a session resumed after its deadline force-submits at once
// instead of waiting a full interval.
func (t *DeadlineTimer) Start() {
	go func() {
		defer close(t.done)

		if t.tick() {
			return
		}
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				if t.tick() {
					return
				}
			}
		}
	}()
}

// tick reports whether the timer is finished, either expired and fired
// or stopped. The stop check keeps a concurrent Stop from losing the
// select race against an already-due tick.
func (t *DeadlineTimer) tick() bool {
	select {
	case <-t.stop:
		return true
	default:
	}
	if t.Remaining() > 0 {
		return false
	}
	t.fireOnce.Do(t.fire)
	return true
}

// Stop halts ticking without firing. A stopped timer never fires late
// after its session is gone. Safe to call more than once.
func (t *DeadlineTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
