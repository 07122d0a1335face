package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zookocamp/proctor-backend/internal/response"
	"github.com/zookocamp/proctor-backend/internal/service"
)

// ReviewHandler handles the staff review endpoints.
type ReviewHandler struct {
	attemptService   *service.AttemptService
	violationService *service.ViolationService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(attemptService *service.AttemptService, violationService *service.ViolationService) *ReviewHandler {
	return &ReviewHandler{
		attemptService:   attemptService,
		violationService: violationService,
	}
}

// ListAttempts godoc
// GET /api/v1/staff/exams/:exam_id/attempts
// Lists all attempts for an exam with scores and violation counts.
func (h *ReviewHandler) ListAttempts(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempts, err := h.attemptService.ListByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// ListViolations godoc
// GET /api/v1/staff/exams/:exam_id/students/:student_id/violations
// Lists one student's persisted violations on an exam, oldest first.
func (h *ReviewHandler) ListViolations(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	violations, err := h.violationService.ListForStudent(c.Request.Context(), examID, studentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"violations": violations})
}
