package models

import (
	"fmt"
	"time"
)

// MaxImportRecords caps the number of records accepted in one import request.
const MaxImportRecords = 50000

// ImportRequest is the payload for planning or applying an import.
type ImportRequest struct {
	Records []IncomingRecord `json:"records"`
}

// Validate checks the record count and each record's field limits.
func (r *ImportRequest) Validate() error {
	if len(r.Records) == 0 {
		return ErrNoRecords
	}

	if len(r.Records) > MaxImportRecords {
		return fmt.Errorf("%w: %d exceeds %d", ErrTooManyRecords, len(r.Records), MaxImportRecords)
	}

	for i, rec := range r.Records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	return nil
}

// RecordSummary is a password-free view of a credential used in reports.
type RecordSummary struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username"`
}

// SummarizeIncoming strips the secret fields from an incoming record.
func SummarizeIncoming(r IncomingRecord) RecordSummary {
	return RecordSummary{Name: r.Name, URL: r.URL, Username: r.Username}
}

// SavedSummary is a password-free view of a saved credential.
type SavedSummary struct {
	ID int64 `json:"id"`
	RecordSummary
}

// SummarizeSaved strips the secret fields from a saved record.
func SummarizeSaved(s SavedRecord) SavedSummary {
	return SavedSummary{
		ID:            s.ID,
		RecordSummary: RecordSummary{Name: s.Name, URL: s.URL, Username: s.Username},
	}
}

// UpdateEntry reports one saved record that will be rewritten from an incoming record.
type UpdateEntry struct {
	Incoming        RecordSummary `json:"incoming"`
	Target          SavedSummary  `json:"target"`
	Score           float64       `json:"score"`
	ChangedFields   []string      `json:"changed_fields"`
	PasswordChanged bool          `json:"password_changed"`
}

// ConflictCandidate is one saved record an ambiguous incoming record maps to.
type ConflictCandidate struct {
	Target SavedSummary `json:"target"`
	Score  float64      `json:"score"`
}

// ConflictEntry groups the candidate saved records of one incoming record.
type ConflictEntry struct {
	Incoming   RecordSummary       `json:"incoming"`
	Candidates []ConflictCandidate `json:"candidates"`
}

// PassReport summarises a single matching pass.
type PassReport struct {
	Pass              string        `json:"pass"`
	PairsAdded        int           `json:"pairs_added"`
	UnmatchedIncoming int           `json:"unmatched_incoming"`
	UnmatchedSaved    int           `json:"unmatched_saved"`
	Duration          time.Duration `json:"duration_ns"`
	Skipped           bool          `json:"skipped,omitempty"`
}

// PlanStats holds the partition sizes of a plan.
type PlanStats struct {
	Incoming  int `json:"incoming"`
	Saved     int `json:"saved"`
	Ignored   int `json:"ignored"`
	ToAdd     int `json:"to_add"`
	ToUpdate  int `json:"to_update"`
	Unchanged int `json:"unchanged"`
	ToDelete  int `json:"to_delete"`
	Conflicts int `json:"conflicts"`
	// Suppressed counts incoming records identical to an ignored saved
	// record. They are neither added nor reported as conflicts.
	Suppressed int `json:"suppressed"`
}

// PlanReport is the reconciliation outcome returned to callers. It never
// contains passwords or notes.
type PlanReport struct {
	RunID     string          `json:"run_id"`
	OwnerID   string          `json:"owner_id"`
	PlannedAt time.Time       `json:"planned_at"`
	Stats     PlanStats       `json:"stats"`
	ToAdd     []RecordSummary `json:"to_add"`
	ToUpdate  []UpdateEntry   `json:"to_update"`
	ToDelete  []SavedSummary  `json:"to_delete"`
	Conflicts []ConflictEntry `json:"conflicts"`
	Passes    []PassReport    `json:"passes"`
}

// CredentialUpdate rewrites saved record ID with the content of Record.
type CredentialUpdate struct {
	ID     int64
	Record IncomingRecord
}

// ChangeBatch is the ordered write set handed to the persistence layer:
// deletes, then updates, then inserts.
type ChangeBatch struct {
	Deletes []int64
	Updates []CredentialUpdate
	Inserts []IncomingRecord
}

// Empty reports whether the batch has nothing to write.
func (b ChangeBatch) Empty() bool {
	return len(b.Deletes) == 0 && len(b.Updates) == 0 && len(b.Inserts) == 0
}

// ApplyOptions controls how a change set is applied.
type ApplyOptions struct {
	DryRun bool `json:"dry_run"`
}

// ApplyResult summarises the outcome of applying a change set.
type ApplyResult struct {
	RunID      string `json:"run_id"`
	Deleted    int    `json:"deleted"`
	Updated    int    `json:"updated"`
	Inserted   int    `json:"inserted"`
	Unchanged  int    `json:"unchanged"`
	Conflicts  int    `json:"conflicts"`
	Suppressed int    `json:"suppressed"`
	DryRun     bool   `json:"dry_run"`
}

// SetIgnoredRequest toggles the ignored flag on a saved credential.
type SetIgnoredRequest struct {
	Ignored bool `json:"ignored"`
}
