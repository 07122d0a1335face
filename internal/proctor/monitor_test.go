package proctor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zookocamp/proctor-backend/internal/model"
)

// stubPlatform is an in-memory platform: tests push signals through it
// and observe the enforced-view requests the monitor issues.
type stubPlatform struct {
	handler  func(Signal) bool
	attached int
	detached int
	viewReqs int
	viewErr  error
	releases int
}

func (p *stubPlatform) Attach(handler func(Signal) bool) func() {
	p.handler = handler
	p.attached++
	return func() {
		p.handler = nil
		p.detached++
	}
}

func (p *stubPlatform) RequestEnforcedView() error {
	p.viewReqs++
	return p.viewErr
}

func (p *stubPlatform) ReleaseEnforcedView() error {
	p.releases++
	return nil
}

// push delivers a signal the way the real platform would and returns the
// suppression verdict. Unattached platforms drop the signal.
func (p *stubPlatform) push(s Signal) bool {
	if p.handler == nil {
		return false
	}
	return p.handler(s)
}

type recordingReporter struct {
	records []model.ViolationRecord
	err     error
}

func (r *recordingReporter) Report(_ context.Context, rec model.ViolationRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		kind     SignalKind
		want     model.ViolationType
		suppress bool
		ok       bool
	}{
		{SignalFullscreenExited, model.ViolationFullscreenExit, false, true},
		{SignalVisibilityHidden, model.ViolationTabSwitch, false, true},
		{SignalFocusLost, model.ViolationTabSwitch, false, true},
		{SignalCopy, model.ViolationCopyAttempt, true, true},
		{SignalRestrictedKey, model.ViolationCopyAttempt, true, true},
		{SignalPaste, model.ViolationPasteAttempt, true, true},
		{SignalContextMenu, model.ViolationRightClick, true, true},
		{SignalKind("resize"), "", false, false},
	}

	for _, tt := range tests {
		got, suppress, ok := Normalize(Signal{Kind: tt.kind})
		if got != tt.want || suppress != tt.suppress || ok != tt.ok {
			t.Errorf("Normalize(%s) = (%s, %v, %v), want (%s, %v, %v)",
				tt.kind, got, suppress, ok, tt.want, tt.suppress, tt.ok)
		}
	}
}

func TestMonitorCountsWhileArmed(t *testing.T) {
	platform := &stubPlatform{}
	reporter := &recordingReporter{}

	var sinkCounts []int
	m := NewMonitor(platform, reporter, func(_ model.ViolationRecord, count int) {
		sinkCounts = append(sinkCounts, count)
	}, zerolog.Nop())

	// Signals before arming are invisible: nothing is attached yet.
	if platform.push(Signal{Kind: SignalCopy}) {
		t.Error("unarmed platform suppressed a signal")
	}

	m.Arm()
	if !m.Armed() {
		t.Fatal("monitor not armed")
	}
	if platform.attached != 1 {
		t.Fatalf("attached: %d, want 1", platform.attached)
	}
	if platform.viewReqs != 1 {
		t.Fatalf("enforced view requests on arm: %d, want 1", platform.viewReqs)
	}

	platform.push(Signal{Kind: SignalVisibilityHidden})
	platform.push(Signal{Kind: SignalCopy})
	platform.push(Signal{Kind: SignalPaste})

	if m.Count() != 3 {
		t.Errorf("Count: %d, want 3", m.Count())
	}
	want := []int{1, 2, 3}
	if len(sinkCounts) != len(want) {
		t.Fatalf("sink calls: %d, want %d", len(sinkCounts), len(want))
	}
	for i, c := range want {
		if sinkCounts[i] != c {
			t.Errorf("sink count[%d]: %d, want %d (monotonic)", i, sinkCounts[i], c)
		}
	}
	if len(reporter.records) != 3 {
		t.Errorf("reported records: %d, want 3", len(reporter.records))
	}
	if reporter.records[0].Type != model.ViolationTabSwitch {
		t.Errorf("first record type: %s", reporter.records[0].Type)
	}
}

func TestMonitorSuppressionVerdicts(t *testing.T) {
	platform := &stubPlatform{}
	m := NewMonitor(platform, nil, nil, zerolog.Nop())
	m.Arm()

	if platform.push(Signal{Kind: SignalVisibilityHidden}) {
		t.Error("tab switch must not be suppressed")
	}
	if !platform.push(Signal{Kind: SignalCopy}) {
		t.Error("copy must be suppressed")
	}
	if !platform.push(Signal{Kind: SignalContextMenu}) {
		t.Error("context menu must be suppressed")
	}
	// Unknown kinds are dropped without counting.
	if platform.push(Signal{Kind: SignalKind("resize")}) {
		t.Error("unknown signal suppressed")
	}
	if m.Count() != 3 {
		t.Errorf("Count: %d, want 3", m.Count())
	}
}

func TestMonitorArmDisarmCycles(t *testing.T) {
	platform := &stubPlatform{}
	m := NewMonitor(platform, nil, nil, zerolog.Nop())

	m.Arm()
	m.Arm() // no-op while armed
	if platform.attached != 1 {
		t.Fatalf("attached after double arm: %d, want 1", platform.attached)
	}

	platform.push(Signal{Kind: SignalCopy})
	platform.push(Signal{Kind: SignalCopy})
	if m.Count() != 2 {
		t.Fatalf("Count: %d", m.Count())
	}

	m.Disarm()
	m.Disarm() // no-op while disarmed
	if platform.detached != 1 {
		t.Fatalf("detached: %d, want 1", platform.detached)
	}
	if platform.releases != 1 {
		t.Fatalf("view releases: %d, want 1", platform.releases)
	}
	if m.Armed() {
		t.Fatal("still armed after disarm")
	}

	// Signals while disarmed are invisible.
	platform.push(Signal{Kind: SignalCopy})
	if m.Count() != 2 {
		t.Errorf("Count changed while disarmed: %d", m.Count())
	}

	// A fresh cycle starts its count at zero and attaches exactly one
	// new listener.
	m.Arm()
	if platform.attached != 2 {
		t.Fatalf("attached after second arm: %d, want 2", platform.attached)
	}
	if m.Count() != 0 {
		t.Errorf("Count after re-arm: %d, want 0", m.Count())
	}
	platform.push(Signal{Kind: SignalPaste})
	if m.Count() != 1 {
		t.Errorf("Count in second cycle: %d, want 1", m.Count())
	}
}

func TestMonitorFullscreenReentry(t *testing.T) {
	platform := &stubPlatform{}
	m := NewMonitor(platform, nil, nil, zerolog.Nop())
	m.Arm()

	reqsAfterArm := platform.viewReqs
	platform.push(Signal{Kind: SignalFullscreenExited})

	if platform.viewReqs != reqsAfterArm+1 {
		t.Errorf("view requests after fullscreen exit: %d, want %d", platform.viewReqs, reqsAfterArm+1)
	}

	// A denied re-entry is swallowed and the violation still counts.
	platform.viewErr = errors.New("denied")
	platform.push(Signal{Kind: SignalFullscreenExited})
	if m.Count() != 2 {
		t.Errorf("Count after denied re-entry: %d, want 2", m.Count())
	}
}

func TestMonitorReporterFailureIsSwallowed(t *testing.T) {
	platform := &stubPlatform{}
	reporter := &recordingReporter{err: errors.New("queue down")}
	m := NewMonitor(platform, reporter, nil, zerolog.Nop())
	m.Arm()

	// The suppression verdict and the count are unaffected by the failed
	// report.
	if !platform.push(Signal{Kind: SignalCopy}) {
		t.Error("copy must be suppressed despite reporter failure")
	}
	if m.Count() != 1 {
		t.Errorf("Count: %d, want 1", m.Count())
	}
}
