package client

import "github.com/persistorai/credsync/internal/models"

// Wire types shared with the server.
type (
	IncomingRecord = models.IncomingRecord
	SavedRecord    = models.SavedRecord
	PlanReport     = models.PlanReport
	ApplyResult    = models.ApplyResult
	ImportRun      = models.ImportRun
)

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	WSClients     int     `json:"ws_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadyResponse is returned by the readiness endpoint.
type ReadyResponse struct {
	Status        string            `json:"status"`
	SchemaVersion int               `json:"schema_version"`
	Checks        map[string]string `json:"checks"`
}
