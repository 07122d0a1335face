package model

import "time"

// ViolationType enumerates detectable academic-integrity violations.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationFullscreenExit ViolationType = "fullscreen_exit"
	ViolationCopyAttempt    ViolationType = "copy_attempt"
	ViolationPasteAttempt   ViolationType = "paste_attempt"
	ViolationRightClick     ViolationType = "right_click"
)

// ViolationRecord is one detected violation. Records are append-only
// telemetry: they are forwarded best-effort for durable storage and
// counted for in-session display, but never gate session flow.
type ViolationRecord struct {
	Type       ViolationType `json:"type"`
	Details    string        `json:"details,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// ReportViolationRequest is the REST payload for a violation report.
type ReportViolationRequest struct {
	Type    ViolationType `json:"type" binding:"required,oneof=tab_switch fullscreen_exit copy_attempt paste_attempt right_click"`
	Details string        `json:"details" binding:"omitempty,max=500"`
}

// ToRecord stamps the request as a record at the current time.
func (r ReportViolationRequest) ToRecord() ViolationRecord {
	return ViolationRecord{Type: r.Type, Details: r.Details, OccurredAt: time.Now()}
}
