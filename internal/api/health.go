// Package api provides the HTTP handlers and router for credsync.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// HealthDB is the database surface the health endpoints need.
type HealthDB interface {
	HealthCheck(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db            HealthDB
	hub           ClientCounter
	log           *logrus.Logger
	version       string
	schemaVersion int
	startTime     time.Time
}

// NewHealthHandler creates a HealthHandler. schemaVersion is the migration
// version this binary expects; db and hub may be nil.
func NewHealthHandler(db HealthDB, hub ClientCounter, log *logrus.Logger, version string, schemaVersion int) *HealthHandler {
	return &HealthHandler{
		db:            db,
		hub:           hub,
		log:           log,
		version:       version,
		schemaVersion: schemaVersion,
		startTime:     time.Now(),
	}
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	WSClients     int     `json:"ws_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type readinessResponse struct {
	Status        string            `json:"status"`
	SchemaVersion int               `json:"schema_version"`
	Checks        map[string]string `json:"checks"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.db == nil {
		resp.Database = "not_configured"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	}

	if h.hub != nil {
		resp.WSClients = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. It fails until the database is
// reachable and migrated to the version this binary embeds.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{"database": "ok", "schema": "ok"}
	status, code := "ready", http.StatusOK

	notReady := func(check, value string) {
		checks[check] = value
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	switch {
	case h.db == nil:
		notReady("database", "not_configured")
		checks["schema"] = "unknown"
	case h.db.HealthCheck(ctx) != nil:
		h.log.Error("readiness: database health check failed")
		notReady("database", "error")
		checks["schema"] = "unknown"
	default:
		if err := h.checkSchema(ctx); err != nil {
			h.log.WithError(err).Error("readiness: schema check failed")
			notReady("schema", "error")
		}
	}

	c.JSON(code, readinessResponse{Status: status, SchemaVersion: h.schemaVersion, Checks: checks})
}

func (h *HealthHandler) checkSchema(ctx context.Context) error {
	var applied int64
	if err := h.db.QueryRow(ctx, "SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version").Scan(&applied); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if applied < int64(h.schemaVersion) {
		return fmt.Errorf("schema at version %d, binary expects %d", applied, h.schemaVersion)
	}

	return nil
}
