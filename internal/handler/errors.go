package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/naka-gawa/github-activity/internal/domain"
)

const (
	codeValidation = "VALIDATION_ERROR"
	codeInternal   = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	ErrorCode string    `json:"error_code"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`

	// Set for RATE_LIMIT_EXCEEDED.
	ResetTime         *time.Time `json:"reset_time,omitempty"`
	RemainingRequests *int       `json:"remaining_requests,omitempty"`

	// Set for VALIDATION_ERROR.
	Violations map[string]string `json:"violations,omitempty"`
}

func newErrorResponse(c *gin.Context, status int, code, message string) ErrorResponse {
	return ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     http.StatusText(status),
		ErrorCode: code,
		Message:   message,
		Path:      c.Request.URL.Path,
	}
}

// writeError renders err. Classified failures keep their status and code;
// anything else is an internal error whose details are not exposed.
func writeError(c *gin.Context, err error) {
	connectorErr, ok := domain.AsConnectorError(err)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			newErrorResponse(c, http.StatusInternalServerError, codeInternal, "An unexpected error occurred"))
		return
	}

	status := connectorErr.Status
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	body := newErrorResponse(c, status, connectorErr.Code(), connectorErr.Message)
	if connectorErr.Kind == domain.KindRateLimitExceeded {
		resetAt := connectorErr.ResetAt
		remaining := connectorErr.Remaining
		body.ResetTime = &resetAt
		body.RemainingRequests = &remaining
	}
	c.AbortWithStatusJSON(status, body)
}

func writeValidationError(c *gin.Context, violations map[string]string) {
	body := newErrorResponse(c, http.StatusBadRequest, codeValidation, "Invalid input parameters")
	body.Violations = violations
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}
