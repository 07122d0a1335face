package handler

import (
	"errors"
	"net/http"

	"github.com/zookocamp/proctor-backend/internal/response"
	"github.com/zookocamp/proctor-backend/internal/service"
)

// MapServiceError translates service errors into an HTTP status and a
// typed error code.
func MapServiceError(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrExamNotOpen):
		return http.StatusForbidden, response.ErrExamNotOpen
	case errors.Is(err, service.ErrExamClosed):
		return http.StatusForbidden, response.ErrExamWindowClosed
	case errors.Is(err, service.ErrMaxAttemptsReached):
		return http.StatusForbidden, response.ErrMaxAttemptsReached
	case errors.Is(err, service.ErrNoOpenAttempt):
		return http.StatusNotFound, response.ErrNoOpenAttempt
	case errors.Is(err, service.ErrAttemptFinished):
		return http.StatusConflict, response.ErrAttemptFinished
	case errors.Is(err, service.ErrResultUnavailable):
		return http.StatusNotFound, response.ErrResultUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
