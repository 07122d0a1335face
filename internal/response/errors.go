package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrStaffAccessOnly   ErrCode = "STAFF_ACCESS_ONLY"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"

	// Exam and attempt
	ErrExamNotOpen         ErrCode = "EXAM_NOT_OPEN"
	ErrExamWindowClosed    ErrCode = "EXAM_WINDOW_CLOSED"
	ErrMaxAttemptsReached  ErrCode = "MAX_ATTEMPTS_REACHED"
	ErrNoOpenAttempt       ErrCode = "NO_OPEN_ATTEMPT"
	ErrAttemptFinished     ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrResultUnavailable   ErrCode = "RESULT_UNAVAILABLE"
	ErrSubmitInProgress    ErrCode = "SUBMIT_IN_PROGRESS"
	ErrSessionActiveOnExam ErrCode = "SESSION_ALREADY_ACTIVE"

	// Rate limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrStaffAccessOnly:
		return "This resource is restricted to staff."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."

	case ErrExamNotOpen:
		return "This exam is not open yet."
	case ErrExamWindowClosed:
		return "The exam window has closed."
	case ErrMaxAttemptsReached:
		return "You have used all allowed attempts for this exam."
	case ErrNoOpenAttempt:
		return "You have no attempt in progress for this exam."
	case ErrAttemptFinished:
		return "This attempt has already been submitted."
	case ErrResultUnavailable:
		return "Results are not available for this exam."
	case ErrSubmitInProgress:
		return "A submission is already in progress."
	case ErrSessionActiveOnExam:
		return "An exam session is already active on another connection."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
