package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/persistorai/credsync/internal/models"
)

// ImportService calls the import endpoints.
type ImportService struct {
	c *Client
}

// Plan reconciles records against the saved credentials without writing.
func (s *ImportService) Plan(ctx context.Context, records []IncomingRecord) (*PlanReport, error) {
	var report PlanReport
	if err := s.c.post(ctx, "/api/v1/imports/plan", models.ImportRequest{Records: records}, &report); err != nil {
		return nil, fmt.Errorf("plan import: %w", err)
	}
	return &report, nil
}

// Apply reconciles records and writes every non-conflicting change unless
// dryRun is set.
func (s *ImportService) Apply(ctx context.Context, records []IncomingRecord, dryRun bool) (*ApplyResult, error) {
	path := "/api/v1/imports/apply"
	if dryRun {
		path += "?dry_run=true"
	}

	var res ApplyResult
	if err := s.c.post(ctx, path, models.ImportRequest{Records: records}, &res); err != nil {
		return nil, fmt.Errorf("apply import: %w", err)
	}
	return &res, nil
}

// Runs returns the most recent import runs, newest first.
func (s *ImportService) Runs(ctx context.Context, limit int) ([]ImportRun, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Runs []ImportRun `json:"runs"`
	}
	if err := s.c.get(ctx, "/api/v1/imports/runs", params, &resp); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return resp.Runs, nil
}
