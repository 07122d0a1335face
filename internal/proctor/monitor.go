package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zookocamp/proctor-backend/internal/model"
)

// Platform is the capability surface the monitor needs from whatever
// runtime hosts the exam view. In production it is the WebSocket bridge
// to the student's browser; tests use an in-memory stub.
//
// Attach registers a signal handler and returns the function that removes
// it. The handler's return value tells the platform whether to suppress
// the default action for the signal it just delivered.
type Platform interface {
	Attach(handler func(Signal) bool) (detach func())
	RequestEnforcedView() error
	ReleaseEnforcedView() error
}

// Reporter forwards violation records for durable storage. Delivery is
// best-effort telemetry: errors are logged and dropped, never surfaced
// to the session.
type Reporter interface {
	Report(ctx context.Context, rec model.ViolationRecord) error
}

// Monitor observes platform signals while armed and converts them into a
// normalized violation stream. One monitor belongs to exactly one session
// and dies with it; its counter starts at zero on every arm cycle.
type Monitor struct {
	platform Platform
	reporter Reporter
	sink     func(model.ViolationRecord, int)
	now      func() time.Time
	log      zerolog.Logger

	mu     sync.Mutex
	armed  bool
	count  int
	detach func()
}

// NewMonitor creates a monitor bound to one platform. sink receives every
// detected violation together with the running count; it may be nil.
func NewMonitor(platform Platform, reporter Reporter, sink func(model.ViolationRecord, int), log zerolog.Logger) *Monitor {
	return &Monitor{
		platform: platform,
		reporter: reporter,
		sink:     sink,
		now:      time.Now,
		log:      log.With().Str("component", "violation_monitor").Logger(),
	}
}

// Arm attaches the platform listener and requests the enforced viewing
// state. A denied enforced-view request is swallowed: the monitor keeps
// operating on the signals it can still observe. Arming an armed monitor
// is a no-op.
func (m *Monitor) Arm() {
	m.mu.Lock()
	if m.armed {
		m.mu.Unlock()
		return
	}
	m.armed = true
	m.count = 0
	m.detach = m.platform.Attach(m.handle)
	m.mu.Unlock()

	if err := m.platform.RequestEnforcedView(); err != nil {
		m.log.Debug().Err(err).Msg("Enforced view request denied")
	}
}

// Disarm removes the platform listener and releases the enforced viewing
// state. Every listener added by Arm is removed here; repeated arm/disarm
// cycles leave nothing attached. Disarming a disarmed monitor is a no-op.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	m.armed = false
	detach := m.detach
	m.detach = nil
	m.mu.Unlock()

	if detach != nil {
		detach()
	}
	if err := m.platform.ReleaseEnforcedView(); err != nil {
		m.log.Debug().Err(err).Msg("Enforced view release failed")
	}
}

// Armed reports whether the monitor is currently observing signals.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Count returns the number of violations detected in the current arm cycle.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// handle is the attached platform listener. It returns whether the
// platform must suppress the default action for the delivered signal.
func (m *Monitor) handle(s Signal) bool {
	vtype, suppress, ok := Normalize(s)
	if !ok {
		return false
	}

	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return false
	}
	m.count++
	count := m.count
	rec := model.ViolationRecord{
		Type:       vtype,
		Details:    s.Details,
		OccurredAt: m.now(),
	}
	m.mu.Unlock()

	// A fullscreen breach gets a best-effort re-entry attempt.
	if vtype == model.ViolationFullscreenExit {
		if err := m.platform.RequestEnforcedView(); err != nil {
			m.log.Debug().Err(err).Msg("Enforced view re-request denied")
		}
	}

	if m.sink != nil {
		m.sink(rec, count)
	}
	if m.reporter != nil {
		if err := m.reporter.Report(context.Background(), rec); err != nil {
			m.log.Warn().Err(err).Str("type", string(vtype)).Msg("Violation report dropped")
		}
	}

	return suppress
}
