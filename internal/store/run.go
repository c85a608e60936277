package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/credsync/internal/models"
)

// RunStore keeps a history of applied imports.
type RunStore struct {
	Base
}

// NewRunStore creates a new RunStore.
func NewRunStore(base Base) *RunStore {
	return &RunStore{Base: base}
}

// RecordRun inserts one import run.
func (s *RunStore) RecordRun(ctx context.Context, run *models.ImportRun) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := validOwner(run.OwnerID); err != nil {
		return err
	}

	err := s.Pool.QueryRow(ctx,
		`INSERT INTO import_runs (id, owner_id, dry_run, inserted, updated, deleted, unchanged, conflicts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		run.ID, run.OwnerID, run.DryRun, run.Inserted, run.Updated, run.Deleted, run.Unchanged, run.Conflicts,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting import run: %w", err)
	}

	return nil
}

// ListRuns returns the owner's most recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, ownerID string, limit int) ([]models.ImportRun, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only, rollback is cleanup.

	rows, err := tx.Query(ctx,
		`SELECT id, owner_id, dry_run, inserted, updated, deleted, unchanged, conflicts, created_at
		   FROM import_runs
		  WHERE owner_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		ownerID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying import runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.ImportRun])
	if err != nil {
		return nil, fmt.Errorf("scanning import runs: %w", err)
	}

	return runs, nil
}
