package api_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/credsync/internal/models"
)

// mockImportService implements domain.ImportService for testing.
type mockImportService struct {
	planFn  func(ctx context.Context, ownerID string, records []models.IncomingRecord) (*models.PlanReport, error)
	applyFn func(ctx context.Context, ownerID string, records []models.IncomingRecord, opts models.ApplyOptions) (*models.ApplyResult, error)
	runsFn  func(ctx context.Context, ownerID string, limit int) ([]models.ImportRun, error)
}

func (m *mockImportService) Plan(ctx context.Context, ownerID string, records []models.IncomingRecord) (*models.PlanReport, error) {
	return m.planFn(ctx, ownerID, records)
}

func (m *mockImportService) Apply(ctx context.Context, ownerID string, records []models.IncomingRecord, opts models.ApplyOptions) (*models.ApplyResult, error) {
	return m.applyFn(ctx, ownerID, records, opts)
}

func (m *mockImportService) ListRuns(ctx context.Context, ownerID string, limit int) ([]models.ImportRun, error) {
	return m.runsFn(ctx, ownerID, limit)
}

// mockCredentialService implements domain.CredentialService for testing.
type mockCredentialService struct {
	listFn      func(ctx context.Context, ownerID string) ([]models.SavedRecord, error)
	setIgnoreFn func(ctx context.Context, ownerID string, id int64, ignored bool) error
}

func (m *mockCredentialService) ListCredentials(ctx context.Context, ownerID string) ([]models.SavedRecord, error) {
	return m.listFn(ctx, ownerID)
}

func (m *mockCredentialService) SetIgnored(ctx context.Context, ownerID string, id int64, ignored bool) error {
	return m.setIgnoreFn(ctx, ownerID, id, ignored)
}

// mockHealthDB implements api.HealthDB for testing.
type mockHealthDB struct {
	pingErr error
	version int64
}

func (m *mockHealthDB) HealthCheck(context.Context) error { return m.pingErr }

func (m *mockHealthDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return mockRow{val: m.version}
}

type mockRow struct {
	val int64
}

func (r mockRow) Scan(dest ...any) error {
	p, ok := dest[0].(*int64)
	if !ok {
		return errors.New("unexpected scan target")
	}
	*p = r.val

	return nil
}

// mockOwnerLookup accepts a single key.
type mockOwnerLookup struct{}

func (mockOwnerLookup) GetOwnerByAPIKey(_ context.Context, apiKey string) (string, error) {
	if apiKey == "good-key" {
		return testOwnerID, nil
	}

	return "", models.ErrOwnerNotFound
}
