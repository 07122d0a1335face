package proctor

import "github.com/zookocamp/proctor-backend/internal/model"

// SignalKind is a raw platform signal, before normalization. The set
// mirrors what a browser can observe: viewing-state changes, focus and
// visibility changes, and restricted input.
type SignalKind string

const (
	SignalFullscreenExited SignalKind = "fullscreen_exited"
	SignalVisibilityHidden SignalKind = "visibility_hidden"
	SignalFocusLost        SignalKind = "focus_lost"
	SignalCopy             SignalKind = "copy"
	SignalPaste            SignalKind = "paste"
	SignalContextMenu      SignalKind = "context_menu"
	SignalRestrictedKey    SignalKind = "restricted_key"
)

// Signal is one raw platform event delivered to the monitor. Details is
// free-form context (which key combination, which window state).
type Signal struct {
	Kind    SignalKind `json:"kind"`
	Details string     `json:"details,omitempty"`
}

// Normalize maps a raw signal to its violation type and whether the
// platform's default action for it must be suppressed. The second return
// is false for signals that carry no default action to block.
func Normalize(s Signal) (model.ViolationType, bool, bool) {
	switch s.Kind {
	case SignalFullscreenExited:
		return model.ViolationFullscreenExit, false, true
	case SignalVisibilityHidden, SignalFocusLost:
		return model.ViolationTabSwitch, false, true
	case SignalCopy, SignalRestrictedKey:
		return model.ViolationCopyAttempt, true, true
	case SignalPaste:
		return model.ViolationPasteAttempt, true, true
	case SignalContextMenu:
		return model.ViolationRightClick, true, true
	default:
		return "", false, false
	}
}
