package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/persistorai/credsync/internal/httputil"
	"github.com/persistorai/credsync/internal/metrics"
)

// respondError counts the failure and writes the shared JSON error body.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}
