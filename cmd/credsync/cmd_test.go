package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/persistorai/credsync/client"
)

// executeArgs runs the given root command with args and returns any error.
// It suppresses cobra's usage/error output so test output stays clean.
func executeArgs(t *testing.T, root *cobra.Command, args ...string) error {
	t.Helper()
	root.SetOut(&strings.Builder{})
	root.SetErr(&strings.Builder{})
	root.SetArgs(args)
	_, err := root.ExecuteC()
	return err
}

// newTestRoot builds the real command tree against a test server. The
// client setup hook is stubbed so apiClient points at srv.
func newTestRoot(t *testing.T, routes map[string]http.HandlerFunc) *cobra.Command {
	t.Helper()
	resetFlags(t)

	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	prev := apiClient
	apiClient = client.New(srv.URL, client.WithAPIKey("test-key"), client.WithRetries(0, 0))
	t.Cleanup(func() { apiClient = prev })

	root := newRootCmd()
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {}
	return root
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleCSV = "name,url,username,password\ngithub,https://github.com,octo,pw1\nbank,https://bank.example,me,hunter2\n"

func TestArgsValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"plan without file", []string{"plan"}},
		{"plan with two files", []string{"plan", "a.csv", "b.csv"}},
		{"apply without file", []string{"apply"}},
		{"saved ignore without id", []string{"saved", "ignore"}},
		{"saved ignore non-numeric id", []string{"saved", "ignore", "abc"}},
		{"saved ignore zero id", []string{"saved", "ignore", "0"}},
		{"saved list extra arg", []string{"saved", "list", "x"}},
		{"runs extra arg", []string{"runs", "x"}},
		{"plan missing file", []string{"plan", "/does/not/exist.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newTestRoot(t, nil)
			if err := executeArgs(t, root, tt.args...); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}
}

func TestPlanCommand(t *testing.T) {
	var received []client.IncomingRecord
	root := newTestRoot(t, map[string]http.HandlerFunc{
		"POST /api/v1/imports/plan": func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Records []client.IncomingRecord `json:"records"`
			}
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			received = req.Records
			jsonResponse(w, 200, client.PlanReport{RunID: "run-9"})
		},
	})
	path := writeCSV(t, sampleCSV)

	got := captureStdout(t, func() {
		if err := executeArgs(t, root, "plan", path, "--format", "quiet"); err != nil {
			t.Errorf("plan: %v", err)
		}
	})

	if strings.TrimSpace(got) != "run-9" {
		t.Errorf("quiet output = %q, want run id", got)
	}
	if len(received) != 2 || received[1].Password != "hunter2" {
		t.Errorf("server received %+v", received)
	}
}

func TestPlanRows(t *testing.T) {
	report := &client.PlanReport{}
	err := json.Unmarshal([]byte(`{
		"to_add": [{"name":"new","url":"https://new.example","username":"u"}],
		"to_update": [{"incoming":{"name":"github"},"target":{"id":4,"name":"github"},"changed_fields":["url"],"password_changed":true}],
		"to_delete": [{"id":9,"name":"old"}],
		"conflicts": [{"incoming":{"name":"bank"},"candidates":[{"target":{"id":2}},{"target":{"id":3}}]}]
	}`), report)
	if err != nil {
		t.Fatal(err)
	}

	_, rows := planRows(report)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}

	want := [][2]string{{"add", ""}, {"update", "url,password"}, {"delete", ""}, {"conflict", "candidates 2,3"}}
	for i, w := range want {
		if rows[i][0] != w[0] || rows[i][5] != w[1] {
			t.Errorf("row %d = %v, want action %q detail %q", i, rows[i], w[0], w[1])
		}
	}
}

func TestApplyCommandDryRun(t *testing.T) {
	root := newTestRoot(t, map[string]http.HandlerFunc{
		"POST /api/v1/imports/apply": func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, 200, client.ApplyResult{
				RunID:    "run-1",
				Inserted: 2,
				DryRun:   r.URL.Query().Get("dry_run") == "true",
			})
		},
	})
	path := writeCSV(t, sampleCSV)

	got := captureStdout(t, func() {
		if err := executeArgs(t, root, "apply", path, "--dry-run"); err != nil {
			t.Errorf("apply: %v", err)
		}
	})

	var res client.ApplyResult
	if err := json.Unmarshal([]byte(got), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, got)
	}
	if !res.DryRun || res.Inserted != 2 {
		t.Errorf("got %+v", res)
	}
}

func TestApplyCommandServerError(t *testing.T) {
	root := newTestRoot(t, map[string]http.HandlerFunc{
		"POST /api/v1/imports/apply": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 500, map[string]string{"code": "invariant_violation", "message": "partitions overlap"})
		},
	})
	path := writeCSV(t, sampleCSV)

	err := executeArgs(t, root, "apply", path)
	if !client.IsInvariantViolation(err) {
		t.Errorf("got %v, want invariant violation", err)
	}
}

func TestSavedCommands(t *testing.T) {
	var ignored *bool
	root := newTestRoot(t, map[string]http.HandlerFunc{
		"GET /api/v1/credentials": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"credentials": []client.SavedRecord{
				{ID: 1, Name: "github"}, {ID: 2, Name: "bank", Ignored: true},
			}})
		},
		"PUT /api/v1/credentials/2/ignored": func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Ignored bool `json:"ignored"`
			}
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			ignored = &req.Ignored
			jsonResponse(w, 200, req)
		},
	})

	got := captureStdout(t, func() {
		if err := executeArgs(t, root, "saved", "list", "--format", "table"); err != nil {
			t.Errorf("saved list: %v", err)
		}
	})
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 || !strings.Contains(lines[3], "bank") || !strings.Contains(lines[3], "true") {
		t.Errorf("table output:\n%s", got)
	}

	captureStdout(t, func() {
		if err := executeArgs(t, root, "saved", "ignore", "2", "--undo"); err != nil {
			t.Errorf("saved ignore: %v", err)
		}
	})
	if ignored == nil || *ignored {
		t.Errorf("--undo should send ignored=false, got %v", ignored)
	}
}

func TestRunsCommand(t *testing.T) {
	var limit string
	root := newTestRoot(t, map[string]http.HandlerFunc{
		"GET /api/v1/imports/runs": func(w http.ResponseWriter, r *http.Request) {
			limit = r.URL.Query().Get("limit")
			jsonResponse(w, 200, map[string]any{"runs": []client.ImportRun{{ID: "r2"}, {ID: "r1"}}})
		},
	})

	got := captureStdout(t, func() {
		if err := executeArgs(t, root, "runs", "--limit", "2", "--format", "quiet"); err != nil {
			t.Errorf("runs: %v", err)
		}
	})

	if limit != "2" {
		t.Errorf("limit = %q, want 2", limit)
	}
	if got != "r2\nr1\n" {
		t.Errorf("output = %q", got)
	}
}

func TestDoctorChecks(t *testing.T) {
	newTestRoot(t, map[string]http.HandlerFunc{
		"GET /api/v1/health": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, client.HealthResponse{Status: "ok", Version: "0.3.0"})
		},
		"GET /api/v1/ready": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, client.ReadyResponse{Status: "ready", SchemaVersion: 2})
		},
		"GET /api/v1/credentials": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 401, map[string]string{"code": "unauthorized", "message": "invalid API key"})
		},
	})
	isolate(t)
	flagKey = "bad-key"

	results := doctorChecks(t.Context())

	byName := make(map[string]checkResult)
	for _, r := range results {
		byName[r.Name] = r
	}
	if byName["Config file"].Passed {
		t.Error("config file check should fail without a config")
	}
	if !byName["Server reachable"].Passed || byName["Server reachable"].Detail != "v0.3.0" {
		t.Errorf("server check = %+v", byName["Server reachable"])
	}
	if !byName["Database schema"].Passed {
		t.Errorf("schema check = %+v", byName["Database schema"])
	}
	if auth := byName["Authentication"]; auth.Passed || !strings.Contains(auth.Hint, "rejected") {
		t.Errorf("auth check = %+v", auth)
	}
}
