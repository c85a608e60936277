package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/models"
)

// CredentialStore persists saved credentials with encrypted payloads.
type CredentialStore struct {
	Base
}

// NewCredentialStore creates a new CredentialStore.
func NewCredentialStore(base Base) *CredentialStore {
	return &CredentialStore{Base: base}
}

const credentialColumns = `id, content_hash, payload, ignored, created_at, updated_at`

// ListSaved returns every saved credential of the owner, ignored ones
// included, ordered by ID, with payloads decrypted.
func (s *CredentialStore) ListSaved(ctx context.Context, ownerID string) ([]models.SavedRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only, rollback is cleanup.

	rows, err := tx.Query(ctx,
		"SELECT "+credentialColumns+" FROM imported_credentials WHERE owner_id = $1 ORDER BY id",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var out []models.SavedRecord

	for rows.Next() {
		var (
			rec     models.SavedRecord
			payload string
		)

		if err := rows.Scan(&rec.ID, &rec.ContentHash, &payload, &rec.Ignored, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}

		if err := s.openRecord(ctx, ownerID, payload, &rec); err != nil {
			return nil, err
		}

		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}

	return out, nil
}

// SetIgnored flips the ignored flag of one credential.
func (s *CredentialStore) SetIgnored(ctx context.Context, ownerID string, id int64, ignored bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := validOwner(ownerID); err != nil {
		return err
	}

	tag, err := s.Pool.Exec(ctx,
		"UPDATE imported_credentials SET ignored = $3, updated_at = now() WHERE owner_id = $1 AND id = $2",
		ownerID, id, ignored,
	)
	if err != nil {
		return fmt.Errorf("updating ignored flag: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrRecordNotFound
	}

	return nil
}

// ApplyChanges writes a change batch in one transaction: deletes, then
// updates, then inserts. Only the row counts of the result are filled.
// Ignored rows are never touched. An update whose target vanished aborts
// the whole batch with ErrRecordNotFound.
func (s *CredentialStore) ApplyChanges(ctx context.Context, ownerID string, batch models.ChangeBatch) (models.ApplyResult, error) {
	var res models.ApplyResult

	if batch.Empty() {
		return res, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	updates, err := s.sealUpdates(ctx, ownerID, batch.Updates)
	if err != nil {
		return res, err
	}

	inserts, err := s.sealInserts(ctx, ownerID, batch.Inserts)
	if err != nil {
		return res, err
	}

	tx, err := s.beginTx(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("apply changes: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if len(batch.Deletes) > 0 {
		tag, err := tx.Exec(ctx,
			"DELETE FROM imported_credentials WHERE owner_id = $1 AND id = ANY($2) AND NOT ignored",
			ownerID, batch.Deletes,
		)
		if err != nil {
			return res, fmt.Errorf("deleting credentials: %w", err)
		}
		res.Deleted = int(tag.RowsAffected())
	}

	if len(updates) > 0 {
		n, err := execUpdates(ctx, tx, ownerID, batch.Updates, updates)
		if err != nil {
			return res, err
		}
		res.Updated = n
	}

	if len(inserts) > 0 {
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"imported_credentials"},
			[]string{"owner_id", "content_hash", "payload"},
			pgx.CopyFromRows(inserts),
		)
		if err != nil {
			return res, fmt.Errorf("inserting credentials: %w", err)
		}
		res.Inserted = int(n)
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("committing changes: %w", err)
	}

	s.Log.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"deleted":  res.Deleted,
		"updated":  res.Updated,
		"inserted": res.Inserted,
	}).Info("credential changes applied")

	return res, nil
}

type sealedUpdate struct {
	hash    string
	payload string
}

func (s *CredentialStore) sealUpdates(ctx context.Context, ownerID string, ups []models.CredentialUpdate) ([]sealedUpdate, error) {
	out := make([]sealedUpdate, 0, len(ups))
	for _, u := range ups {
		payload, err := s.sealRecord(ctx, ownerID, u.Record)
		if err != nil {
			return nil, err
		}
		out = append(out, sealedUpdate{hash: u.Record.Hash(), payload: payload})
	}

	return out, nil
}

func (s *CredentialStore) sealInserts(ctx context.Context, ownerID string, recs []models.IncomingRecord) ([][]any, error) {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		payload, err := s.sealRecord(ctx, ownerID, r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{ownerID, r.Hash(), payload})
	}

	return rows, nil
}

func execUpdates(ctx context.Context, tx pgx.Tx, ownerID string, ups []models.CredentialUpdate, sealed []sealedUpdate) (int, error) {
	batch := &pgx.Batch{}
	for i, u := range ups {
		batch.Queue(
			`UPDATE imported_credentials
			    SET content_hash = $3, payload = $4, updated_at = now()
			  WHERE owner_id = $1 AND id = $2 AND NOT ignored`,
			ownerID, u.ID, sealed[i].hash, sealed[i].payload,
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	updated := 0
	for _, u := range ups {
		tag, err := br.Exec()
		if err != nil {
			return 0, fmt.Errorf("updating credential %d: %w", u.ID, err)
		}

		if tag.RowsAffected() == 0 {
			return 0, fmt.Errorf("updating credential %d: %w", u.ID, models.ErrRecordNotFound)
		}

		updated++
	}

	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing update batch: %w", err)
	}

	return updated, nil
}

// Count returns the number of saved credentials for the owner.
func (s *CredentialStore) Count(ctx context.Context, ownerID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := validOwner(ownerID); err != nil {
		return 0, err
	}

	var n int
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM imported_credentials WHERE owner_id = $1", ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting credentials: %w", err)
	}

	return n, nil
}
