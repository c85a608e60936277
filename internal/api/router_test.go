package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/persistorai/credsync/internal/api"
	"github.com/persistorai/credsync/internal/models"
)

func newFullRouter(t *testing.T) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return api.NewRouter(ctx, &api.RouterDeps{
		Log: testLogger(),
		Imports: &mockImportService{
			runsFn: func(context.Context, string, int) ([]models.ImportRun, error) { return nil, nil },
		},
		Credentials: &mockCredentialService{},
		OwnerLookup: mockOwnerLookup{},
		CORSOrigins: []string{"http://localhost:3002"},
		Version:     "test",
	})
}

func TestRouter_HealthIsPublic(t *testing.T) {
	w := doRequest(newFullRouter(t), http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	r := newFullRouter(t)

	if w := doRequest(r, http.MethodGet, "/api/v1/imports/runs", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/runs", http.NoBody)
	req.Header.Set("Authorization", "Bearer good-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("good key: status = %d, want 200", w.Code)
	}
}
