package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zookocamp/proctor-backend/internal/middleware"
	"github.com/zookocamp/proctor-backend/internal/model"
	"github.com/zookocamp/proctor-backend/internal/proctor"
	"github.com/zookocamp/proctor-backend/internal/response"
	"github.com/zookocamp/proctor-backend/internal/service"
	"github.com/zookocamp/proctor-backend/internal/session"
	ws "github.com/zookocamp/proctor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the proctored session stream. Each connection owns one
// session state machine; the browser delivers raw platform signals and
// receives phase, violation and result events.
type WSHandler struct {
	attemptService   *service.AttemptService
	violationService *service.ViolationService
	sessionTick      time.Duration
	log              zerolog.Logger
	upgrader         websocket.Upgrader

	// active guards one live stream per exam and student.
	active sync.Map
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, violationService *service.ViolationService, sessionTick time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService:   attemptService,
		violationService: violationService,
		sessionTick:      sessionTick,
		log:              log.With().Str("component", "ws_handler").Logger(),
		upgrader:         buildUpgrader(allowedOrigins),
	}
}

// sessionBridge is the connection-scoped glue between the WebSocket and
// the session. It implements proctor.Platform: the browser is the
// runtime that observes signals and owns the fullscreen state, reached
// only through this connection.
type sessionBridge struct {
	conn *websocket.Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	handlerMu sync.Mutex
	handler   func(proctor.Signal) bool

	// pending carries the violation emitted while a signal is being
	// delivered. Signals are delivered synchronously from the read loop,
	// so no second delivery can overlap.
	pending *ws.ViolationEvent

	manualSubmit atomic.Bool
}

func (b *sessionBridge) write(v interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return ws.WriteTyped(b.conn, v)
}

func (b *sessionBridge) writeError(code response.ErrCode) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := ws.WriteError(b.conn, string(code), response.GetMessage(code)); err != nil {
		b.log.Debug().Err(err).Msg("Error write failed")
	}
}

// Attach registers the armed monitor's signal handler.
func (b *sessionBridge) Attach(handler func(proctor.Signal) bool) func() {
	b.handlerMu.Lock()
	b.handler = handler
	b.handlerMu.Unlock()
	return func() {
		b.handlerMu.Lock()
		b.handler = nil
		b.handlerMu.Unlock()
	}
}

// deliver routes one raw signal to the attached handler and returns
// whether the browser must suppress the default action.
func (b *sessionBridge) deliver(s proctor.Signal) bool {
	b.handlerMu.Lock()
	handler := b.handler
	b.handlerMu.Unlock()
	if handler == nil {
		return false
	}
	return handler(s)
}

// RequestEnforcedView asks the browser to enter fullscreen. The actual
// requestFullscreen call has to run in the client; all the server can do
// is send the instruction.
func (b *sessionBridge) RequestEnforcedView() error {
	return b.write(ws.EnforceViewEvent{Event: ws.EventEnforceView})
}

// ReleaseEnforcedView is a no-op server-side. The browser leaves
// fullscreen itself once the session ends.
func (b *sessionBridge) ReleaseEnforcedView() error {
	return nil
}

// SessionStream godoc
// WS /ws/v1/student/exams/:exam_id/session
// Upgrades to WebSocket and runs the proctored session for one attempt.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID := claims.UserID

	exam, attempt, err := h.attemptService.Start(c.Request.Context(), examID, studentID)
	if err != nil {
		status, code := MapServiceError(err)
		response.Fail(c, status, code)
		return
	}

	activeKey := examID.String() + ":" + strconv.Itoa(studentID)
	if _, loaded := h.active.LoadOrStore(activeKey, struct{}{}); loaded {
		response.Fail(c, http.StatusConflict, response.ErrSessionActiveOnExam)
		return
	}
	defer h.active.Delete(activeKey)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Str("attempt_id", attempt.ID.String()).
		Logger()

	bridge := &sessionBridge{conn: conn, log: wsLog}

	monitor := proctor.NewMonitor(
		bridge,
		h.violationService.ReporterFor(examID, studentID),
		func(rec model.ViolationRecord, count int) {
			bridge.pending = &ws.ViolationEvent{
				Event: ws.EventViolation,
				Type:  string(rec.Type),
				Count: count,
			}
		},
		wsLog,
	)

	// remaining reads the session clock; callbacks only fire once the
	// session exists and the student acknowledges.
	var sess *session.Session
	remaining := func() int64 {
		return int64(sess.Remaining() / time.Second)
	}

	sess, err = session.New(session.Config{
		Exam:         exam,
		Attempt:      attempt,
		StudentID:    studentID,
		Gateway:      h.attemptService,
		Monitor:      monitor,
		TickInterval: h.sessionTick,
		Logger:       wsLog,
		OnPhaseChange: func(p session.Phase) {
			// Submitted is announced through its own event.
			if p == session.PhaseSubmitted {
				return
			}
			if err := bridge.write(ws.PhaseEvent{
				Event:            ws.EventPhase,
				Phase:            string(p),
				RemainingSeconds: remaining(),
			}); err != nil {
				wsLog.Debug().Err(err).Msg("Phase write failed")
			}
		},
		OnSubmitted: func(res *model.AttemptResult) {
			if err := bridge.write(ws.SubmittedEvent{
				Event:             ws.EventSubmitted,
				AttemptID:         res.AttemptID.String(),
				Status:            string(res.Status),
				TotalScore:        res.TotalScore,
				Percentage:        res.Percentage,
				Passed:            res.Passed,
				NeedsManualReview: res.NeedsManualReview,
				Auto:              !bridge.manualSubmit.Load(),
			}); err != nil {
				wsLog.Debug().Err(err).Msg("Submitted write failed")
			}
		},
	})
	if err != nil {
		wsLog.Error().Err(err).Msg("Session setup failed")
		bridge.writeError(response.ErrInternal)
		return
	}
	defer sess.Close()

	wsLog.Info().Msg("Session stream opened")

	// Announce the initial phase so the client renders the notice screen.
	if err := bridge.write(ws.PhaseEvent{
		Event:            ws.EventPhase,
		Phase:            string(sess.Phase()),
		RemainingSeconds: remaining(),
	}); err != nil {
		return
	}

	h.readLoop(conn, bridge, sess, wsLog)
	wsLog.Info().Int("violations", sess.ViolationCount()).Msg("Session stream closed")
}

func (h *WSHandler) readLoop(conn *websocket.Conn, bridge *sessionBridge, sess *session.Session, wsLog zerolog.Logger) {
	for {
		_, data, err := readMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			bridge.writeError(response.ErrInvalidPayload)
			continue
		}

		switch envelope.Action {
		case ws.ActionAcknowledge:
			if err := sess.Acknowledge(); err != nil {
				bridge.writeError(mapSessionError(err))
			}

		case ws.ActionSignal:
			h.handleSignal(bridge, data)

		case ws.ActionAnswer:
			h.handleAnswer(bridge, sess, data)

		case ws.ActionReview:
			if err := sess.RequestSubmit(); err != nil {
				bridge.writeError(mapSessionError(err))
			}

		case ws.ActionCancel:
			if err := sess.CancelSubmit(); err != nil {
				bridge.writeError(mapSessionError(err))
			}

		case ws.ActionConfirm:
			bridge.manualSubmit.Store(true)
			if _, err := sess.ConfirmSubmit(context.Background()); err != nil {
				bridge.manualSubmit.Store(false)
				bridge.writeError(mapSessionError(err))
			}

		case ws.ActionPing:
			if err := bridge.write(ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}

		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			bridge.writeError(response.ErrInvalidPayload)
		}
	}
}

// handleSignal classifies one raw platform signal through the monitor and
// echoes the resulting violation, if any, with the suppression verdict.
func (h *WSHandler) handleSignal(bridge *sessionBridge, data []byte) {
	var req ws.SignalRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Kind == "" {
		bridge.writeError(response.ErrInvalidPayload)
		return
	}

	bridge.pending = nil
	suppress := bridge.deliver(proctor.Signal{
		Kind:    proctor.SignalKind(req.Kind),
		Details: req.Details,
	})

	if bridge.pending != nil {
		event := *bridge.pending
		event.Suppress = suppress
		bridge.pending = nil
		if err := bridge.write(event); err != nil {
			bridge.log.Debug().Err(err).Msg("Violation write failed")
		}
	}
}

func (h *WSHandler) handleAnswer(bridge *sessionBridge, sess *session.Session, data []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(data, &req); err != nil || req.QuestionID == "" || len(req.Answer) == 0 {
		bridge.writeError(response.ErrInvalidPayload)
		return
	}

	if err := sess.SetAnswer(req.QuestionID, req.Answer); err != nil {
		bridge.writeError(mapSessionError(err))
		return
	}

	// Mirror to the autosave pipeline so a resumed session sees the edit.
	h.attemptService.SaveAnswer(context.Background(), sess.Attempt(), req.QuestionID, req.Answer)
}

func mapSessionError(err error) response.ErrCode {
	switch {
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrNotAnswering):
		return response.ErrInvalidPayload
	case errors.Is(err, session.ErrUnknownQuestion):
		return response.ErrNotFound
	case errors.Is(err, session.ErrAlreadySubmitted):
		return response.ErrAttemptFinished
	case errors.Is(err, session.ErrSubmitInFlight):
		return response.ErrSubmitInProgress
	case errors.Is(err, session.ErrSessionClosed):
		return response.ErrSessionInvalidated
	case errors.Is(err, service.ErrAttemptFinished):
		return response.ErrAttemptFinished
	default:
		return response.ErrInternal
	}
}

func readMessage(conn *websocket.Conn) (int, []byte, error) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadMessage()
}
