package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/credsync/internal/httputil"
	"github.com/persistorai/credsync/internal/metrics"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeValidationError = "validation_error"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeInvariant       = "invariant_violation"
	ErrCodeCancelled       = "cancelled"
)

// respondError counts the error and writes the standard JSON error body.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondBindError maps a JSON binding failure to 413 or 400.
func respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")

		return
	}

	respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
}
