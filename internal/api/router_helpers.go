package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/middleware"
	"github.com/persistorai/credsync/internal/ws"
)

// getOwnerID returns the authenticated owner ID, or writes a 400 and
// returns "" when it is not a UUID.
func getOwnerID(c *gin.Context) string {
	id := c.GetString(middleware.OwnerIDKey)

	if _, err := uuid.Parse(id); err != nil {
		respondError(c, 400, ErrCodeInvalidRequest, "invalid owner id")

		return ""
	}

	return id
}

func wsHandler(appCtx context.Context, log *logrus.Logger, hub *ws.Hub, originPatterns []string, lookup ws.OwnerValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := getOwnerID(c)
		if ownerID == "" {
			return
		}

		apiKey := middleware.ExtractBearerToken(c)

		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns:       originPatterns,
			CompressionMode:      websocket.CompressionContextTakeover,
			CompressionThreshold: 128,
		})
		if err != nil {
			log.WithError(err).Error("websocket accept failed")

			return
		}

		client := ws.NewClient(hub, conn, lookup, ownerID, apiKey)
		hub.Register(client)

		// Cancel when either the server shuts down or the request ends.
		wsCtx, wsCancel := context.WithCancel(appCtx)
		stop := context.AfterFunc(c.Request.Context(), wsCancel)
		defer stop()

		go client.WritePump(wsCtx)
		client.ReadPump(wsCtx)
		wsCancel()
	}
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid := c.GetString(middleware.RequestIDKey); rid != "" {
			fields["request_id"] = rid
		}
		if oid := c.GetString(middleware.OwnerIDKey); oid != "" {
			fields["owner_id"] = oid
		}
		log.WithFields(fields).Info("request")
	}
}

// maxListLimit caps list endpoint page sizes.
const maxListLimit = 500

func parseLimit(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fallback
	}

	return min(v, maxListLimit)
}

func parseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id must be a positive integer")
	}

	return id, nil
}
