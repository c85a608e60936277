package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "request_id"

	// ClientRequestIDKey holds the sanitized client-supplied ID, if any.
	ClientRequestIDKey = "client_request_id"

	// RequestIDHeader carries the request ID on requests and responses.
	RequestIDHeader = "X-Request-ID"

	maxClientRequestIDLen = 128
)

// CleanClientRequestID returns raw if it is safe to log: at most 128 bytes
// of letters, digits, '-', '_', '.' or ':'. Anything else is rejected so
// a header cannot inject fields into structured logs.
func CleanClientRequestID(raw string) (string, bool) {
	if raw == "" || len(raw) > maxClientRequestIDLen {
		return "", false
	}

	for i := range len(raw) {
		switch ch := raw[i]; {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return "", false
		}
	}

	return raw, true
}

// RequestID gives every request a server-generated UUID and echoes it in
// the response. A valid client X-Request-ID is kept under
// ClientRequestIDKey for correlation only.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		raw := c.GetHeader(RequestIDHeader)
		if clientID, ok := CleanClientRequestID(raw); ok {
			c.Set(ClientRequestIDKey, clientID)
			log.WithFields(logrus.Fields{
				RequestIDKey:       id,
				ClientRequestIDKey: clientID,
			}).Debug("client request ID mapped to server ID")
		} else if raw != "" {
			log.WithField(RequestIDKey, id).Debug("ignoring malformed client request ID")
		}

		c.Next()
	}
}
