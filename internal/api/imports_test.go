package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/persistorai/credsync/internal/api"
	"github.com/persistorai/credsync/internal/models"
	"github.com/persistorai/credsync/internal/reconcile"
)

const twoRecords = `{"records":[
	{"name":"GitHub","url":"https://github.com","username":"alice","password":"pw"},
	{"name":"Bank","url":"https://bank.example","username":"bob","password":"pw2"}
]}`

func importRouter(svc *mockImportService) http.Handler {
	h := api.NewImportHandler(svc, testLogger())
	r := newTestRouter()
	r.POST("/imports/plan", h.Plan)
	r.POST("/imports/apply", h.Apply)
	r.GET("/imports/runs", h.Runs)

	return r
}

func TestImportHandler_Plan(t *testing.T) {
	var gotOwner string
	var gotRecords int
	svc := &mockImportService{
		planFn: func(_ context.Context, ownerID string, records []models.IncomingRecord) (*models.PlanReport, error) {
			gotOwner, gotRecords = ownerID, len(records)
			return &models.PlanReport{RunID: "run-1", Stats: models.PlanStats{ToAdd: 2}}, nil
		},
	}

	w := doRequest(importRouter(svc), http.MethodPost, "/imports/plan", twoRecords)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var report models.PlanReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if report.RunID != "run-1" || report.Stats.ToAdd != 2 {
		t.Errorf("report = %+v", report)
	}
	if gotOwner != testOwnerID || gotRecords != 2 {
		t.Errorf("service got owner %q with %d records", gotOwner, gotRecords)
	}
}

func TestImportHandler_PlanRejectsBadInput(t *testing.T) {
	svc := &mockImportService{
		planFn: func(context.Context, string, []models.IncomingRecord) (*models.PlanReport, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	r := importRouter(svc)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed json", `{"records":`, http.StatusBadRequest},
		{"no records", `{"records":[]}`, http.StatusBadRequest},
		{"empty record", `{"records":[{}]}`, http.StatusBadRequest},
		{"field too long", fmt.Sprintf(`{"records":[{"name":%q}]}`, strings.Repeat("x", models.MaxNameLen+1)), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doRequest(r, http.MethodPost, "/imports/plan", tt.body); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestImportHandler_PlanErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invariant", fmt.Errorf("reconciling: %w", &reconcile.InvariantError{Pass: "conflicts", Err: reconcile.ErrUpdateDeleteOverlap}), http.StatusInternalServerError, "invariant_violation"},
		{"cancelled", fmt.Errorf("hash pass: %w", context.Canceled), http.StatusServiceUnavailable, "cancelled"},
		{"store", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockImportService{
				planFn: func(context.Context, string, []models.IncomingRecord) (*models.PlanReport, error) {
					return nil, tt.err
				},
			}

			w := doRequest(importRouter(svc), http.MethodPost, "/imports/plan", twoRecords)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want code %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestImportHandler_ApplyDryRunFlag(t *testing.T) {
	var gotOpts models.ApplyOptions
	svc := &mockImportService{
		applyFn: func(_ context.Context, _ string, _ []models.IncomingRecord, opts models.ApplyOptions) (*models.ApplyResult, error) {
			gotOpts = opts
			return &models.ApplyResult{RunID: "run-2", DryRun: opts.DryRun, Inserted: 2}, nil
		},
	}
	r := importRouter(svc)

	w := doRequest(r, http.MethodPost, "/imports/apply?dry_run=true", twoRecords)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !gotOpts.DryRun {
		t.Error("dry_run=true was not passed to the service")
	}

	var res models.ApplyResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !res.DryRun || res.Inserted != 2 {
		t.Errorf("result = %+v", res)
	}

	if w := doRequest(r, http.MethodPost, "/imports/apply?dry_run=maybe", twoRecords); w.Code != http.StatusBadRequest {
		t.Errorf("bad dry_run: status = %d, want 400", w.Code)
	}
}

func TestImportHandler_Runs(t *testing.T) {
	var gotLimit int
	svc := &mockImportService{
		runsFn: func(_ context.Context, _ string, limit int) ([]models.ImportRun, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	r := importRouter(svc)

	w := doRequest(r, http.MethodGet, "/imports/runs?limit=5000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotLimit != 500 {
		t.Errorf("limit = %d, want clamped 500", gotLimit)
	}
	if !strings.Contains(w.Body.String(), `"runs":[]`) {
		t.Errorf("body = %s, want empty runs array", w.Body.String())
	}
}
