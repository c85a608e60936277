// Package middleware provides the gin middleware chain for the credsync API.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OwnerIDKey is the gin context key holding the authenticated owner ID.
const OwnerIDKey = "owner_id"

// authTimingFloor is the minimum time a rejected request takes, so valid and
// invalid keys cannot be told apart by latency.
const authTimingFloor = 50 * time.Millisecond

// OwnerLookup resolves an API key to an owner ID.
type OwnerLookup interface {
	GetOwnerByAPIKey(ctx context.Context, apiKey string) (string, error)
}

func truncateKey(key string) string {
	if len(key) > 6 {
		return key[:6] + "..."
	}
	return key
}

func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// Auth authenticates requests by bearer API key and stores the owner ID
// under OwnerIDKey. A nil guard disables lockout tracking.
func Auth(lookup OwnerLookup, log *logrus.Logger, guard *AuthGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		apiKey := ExtractBearerToken(c)
		if apiKey == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			enforceTimingFloor(start)

			return
		}

		ownerID, err := lookup.GetOwnerByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			log.WithFields(logrus.Fields{
				"client_ip":  c.ClientIP(),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(RequestIDKey),
				"key_prefix": truncateKey(apiKey),
			}).Warn("authentication failed: invalid api key")

			guard.RecordFailure(apiKey)
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid api key")
			enforceTimingFloor(start)

			return
		}

		guard.Reset(apiKey)

		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// ExtractBearerToken returns the API key from the Authorization header, or "".
func ExtractBearerToken(c *gin.Context) string {
	key, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(key)
}
