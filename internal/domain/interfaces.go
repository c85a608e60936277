// Package domain defines the service interfaces consumed by the HTTP layer.
// Consumers should depend on these interfaces rather than re-declaring
// equivalent ones.
package domain

import (
	"context"

	"github.com/persistorai/credsync/internal/models"
)

// ImportService reconciles an incoming export against saved credentials.
type ImportService interface {
	Plan(ctx context.Context, ownerID string, records []models.IncomingRecord) (*models.PlanReport, error)
	Apply(ctx context.Context, ownerID string, records []models.IncomingRecord, opts models.ApplyOptions) (*models.ApplyResult, error)
	ListRuns(ctx context.Context, ownerID string, limit int) ([]models.ImportRun, error)
}

// CredentialService exposes saved credentials.
type CredentialService interface {
	ListCredentials(ctx context.Context, ownerID string) ([]models.SavedRecord, error)
	SetIgnored(ctx context.Context, ownerID string, id int64, ignored bool) error
}
