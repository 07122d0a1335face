package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zookocamp/proctor-backend/internal/middleware"
	"github.com/zookocamp/proctor-backend/internal/model"
	"github.com/zookocamp/proctor-backend/internal/response"
	"github.com/zookocamp/proctor-backend/internal/service"
	"github.com/zookocamp/proctor-backend/internal/validator"
)

// ExamHandler handles the student-facing exam endpoints.
type ExamHandler struct {
	examService      *service.ExamService
	attemptService   *service.AttemptService
	violationService *service.ViolationService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, attemptService *service.AttemptService, violationService *service.ViolationService) *ExamHandler {
	return &ExamHandler{
		examService:      examService,
		attemptService:   attemptService,
		violationService: violationService,
	}
}

// ListExams godoc
// GET /api/v1/student/exams
// Lists published exams overlaid with the student's latest result.
func (h *ExamHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)

	exams, err := h.examService.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/start
// Starts a new attempt or resumes the open one. Returns the sanitized
// exam payload and the attempt's working state.
func (h *ExamHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, attempt, err := h.attemptService.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		status, code := MapServiceError(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, model.StartAttemptResponse{
		Exam:    service.ForStudent(exam, attempt.ID),
		Attempt: *attempt,
	})
}

// SubmitAttempt godoc
// POST /api/v1/student/exams/:exam_id/submit
// Finalizes the open attempt with the supplied answer snapshot. This is
// the REST fallback for clients whose session stream dropped at the end.
func (h *ExamHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), examID, claims.UserID, req.Answers)
	if err != nil {
		status, code := MapServiceError(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ReportViolation godoc
// POST /api/v1/student/exams/:exam_id/violations
// Records one violation outside the session stream. Fire-and-forget from
// the client's point of view; the write is only queued here.
func (h *ExamHandler) ReportViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReportViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rec := req.ToRecord()
	if err := h.violationService.Record(c.Request.Context(), examID, claims.UserID, rec); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{})
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/result
// Returns the graded result of the student's latest finished attempt.
func (h *ExamHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.attemptService.Result(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		status, code := MapServiceError(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, result)
}
