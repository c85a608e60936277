package service

import (
	"context"
	"sync"

	"github.com/persistorai/credsync/internal/models"
)

// mockCredentialStore records calls and returns configured responses.
type mockCredentialStore struct {
	mu    sync.Mutex
	calls []string

	saved   []models.SavedRecord
	listErr error

	applyChanges func(ctx context.Context, ownerID string, batch models.ChangeBatch) (models.ApplyResult, error)
	setIgnored   func(ctx context.Context, ownerID string, id int64, ignored bool) error
}

func (m *mockCredentialStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockCredentialStore) called(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (m *mockCredentialStore) ListSaved(_ context.Context, _ string) ([]models.SavedRecord, error) {
	m.record("ListSaved")
	return m.saved, m.listErr
}

func (m *mockCredentialStore) ApplyChanges(ctx context.Context, ownerID string, batch models.ChangeBatch) (models.ApplyResult, error) {
	m.record("ApplyChanges")
	return m.applyChanges(ctx, ownerID, batch)
}

func (m *mockCredentialStore) SetIgnored(ctx context.Context, ownerID string, id int64, ignored bool) error {
	m.record("SetIgnored")
	return m.setIgnored(ctx, ownerID, id, ignored)
}

// mockNotifier captures published event types.
type mockNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *mockNotifier) Publish(_, eventType string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

func (m *mockNotifier) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e == eventType {
			n++
		}
	}
	return n
}

// mockRuns implements RunLister, RunEnqueuer and RunRecorder.
type mockRuns struct {
	mu       sync.Mutex
	enqueued []*models.ImportRun
	recorded []*models.ImportRun
	err      error
}

func (m *mockRuns) Enqueue(run *models.ImportRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, run)
}

func (m *mockRuns) RecordRun(_ context.Context, run *models.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, run)
	return m.err
}

func (m *mockRuns) ListRuns(_ context.Context, ownerID string, limit int) ([]models.ImportRun, error) {
	runs := []models.ImportRun{{ID: "r1", OwnerID: ownerID}, {ID: "r2", OwnerID: ownerID}}
	return runs[:min(limit, len(runs))], m.err
}

func (m *mockRuns) getRecorded() []*models.ImportRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.ImportRun(nil), m.recorded...)
}
