// Package service provides business logic between API handlers and data stores.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/domain"
	"github.com/persistorai/credsync/internal/metrics"
	"github.com/persistorai/credsync/internal/models"
	"github.com/persistorai/credsync/internal/reconcile"
	"github.com/persistorai/credsync/internal/ws"
)

// Compile-time check: *ImportService must satisfy domain.ImportService.
var _ domain.ImportService = (*ImportService)(nil)

// CredentialStore is the persistence the import service reconciles against.
type CredentialStore interface {
	ListSaved(ctx context.Context, ownerID string) ([]models.SavedRecord, error)
	ApplyChanges(ctx context.Context, ownerID string, batch models.ChangeBatch) (models.ApplyResult, error)
}

// RunLister reads import history.
type RunLister interface {
	ListRuns(ctx context.Context, ownerID string, limit int) ([]models.ImportRun, error)
}

// RunEnqueuer queues an import run for recording.
type RunEnqueuer interface {
	Enqueue(run *models.ImportRun)
}

// Notifier pushes events to an owner's connected clients.
type Notifier interface {
	Publish(ownerID, eventType string, payload any)
}

// ImportService plans and applies credential imports.
type ImportService struct {
	store     CredentialStore
	runs      RunLister
	runWorker RunEnqueuer
	notifier  Notifier
	engine    *reconcile.Engine
	log       *logrus.Logger
}

// NewImportService creates an ImportService. runWorker and notifier may be nil.
func NewImportService(
	store CredentialStore,
	runs RunLister,
	runWorker RunEnqueuer,
	notifier Notifier,
	engine *reconcile.Engine,
	log *logrus.Logger,
) *ImportService {
	return &ImportService{
		store:     store,
		runs:      runs,
		runWorker: runWorker,
		notifier:  notifier,
		engine:    engine,
		log:       log,
	}
}

// plan is one engine run together with its partitions.
type plan struct {
	runID string
	cs    *reconcile.ChangeSet
	parts reconcile.Partitions
}

func (s *ImportService) publish(ownerID, eventType string, payload any) {
	if s.notifier != nil {
		s.notifier.Publish(ownerID, eventType, payload)
	}
}

// reconcile loads the owner's saved records and runs the engine against them.
func (s *ImportService) reconcile(ctx context.Context, ownerID string, records []models.IncomingRecord) (*plan, error) {
	saved, err := s.store.ListSaved(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading saved credentials: %w", err)
	}

	runID := uuid.New().String()
	onProgress := func(msg string) {
		s.publish(ownerID, ws.EventImportProgress, ws.ProgressData{RunID: runID, Message: msg})
	}

	cs, err := s.engine.Run(ctx, records, saved, onProgress)
	if err == nil {
		var parts reconcile.Partitions
		if parts, err = cs.Partition(); err == nil {
			parts = parts.SuppressIgnored(cs.Ignored())
			s.observe(cs, parts)

			return &plan{runID: runID, cs: cs, parts: parts}, nil
		}
	}

	s.publish(ownerID, ws.EventImportFailed, ws.ProgressData{RunID: runID, Message: err.Error()})

	if reconcile.IsInvariant(err) {
		metrics.ErrorsTotal.WithLabelValues("invariant").Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"owner_id": ownerID,
			"run_id":   runID,
		}).Error("reconciliation invariant violated")
	}

	return nil, fmt.Errorf("reconciling: %w", err)
}

func (s *ImportService) observe(cs *reconcile.ChangeSet, parts reconcile.Partitions) {
	for _, st := range cs.PassStats() {
		metrics.ObservePass(st.Pass, st.Added, st.Duration)
	}

	metrics.SetPartitions(len(parts.ToAdd), len(parts.ToUpdate), len(parts.Unchanged), len(parts.ToDelete), len(parts.Conflicts))
}

// Plan reconciles records against the owner's saved credentials without
// writing anything.
func (s *ImportService) Plan(ctx context.Context, ownerID string, records []models.IncomingRecord) (*models.PlanReport, error) {
	p, err := s.reconcile(ctx, ownerID, records)
	if err != nil {
		return nil, err
	}

	report := buildReport(ownerID, p)
	s.publish(ownerID, ws.EventImportPlanned, report.Stats)

	s.log.WithFields(logrus.Fields{
		"owner_id":   ownerID,
		"run_id":     p.runID,
		"to_add":     report.Stats.ToAdd,
		"to_update":  report.Stats.ToUpdate,
		"to_delete":  report.Stats.ToDelete,
		"conflicts":  report.Stats.Conflicts,
		"suppressed": report.Stats.Suppressed,
	}).Info("import planned")

	return report, nil
}

// Apply re-plans against the current store and writes the non-conflicting
// partitions. Conflicts are reported but never written.
func (s *ImportService) Apply(
	ctx context.Context, ownerID string, records []models.IncomingRecord, opts models.ApplyOptions,
) (*models.ApplyResult, error) {
	p, err := s.reconcile(ctx, ownerID, records)
	if err != nil {
		return nil, err
	}

	batch := p.parts.Batch()

	var res models.ApplyResult
	switch {
	case opts.DryRun:
		res = models.ApplyResult{
			Deleted:  len(batch.Deletes),
			Updated:  len(batch.Updates),
			Inserted: len(batch.Inserts),
		}
	case batch.Empty():
	default:
		if res, err = s.store.ApplyChanges(ctx, ownerID, batch); err != nil {
			return nil, fmt.Errorf("applying changes: %w", err)
		}
	}

	res.RunID = p.runID
	res.Unchanged = len(p.parts.Unchanged)
	res.Conflicts = len(p.parts.Conflicts)
	res.Suppressed = len(p.parts.Suppressed)
	res.DryRun = opts.DryRun

	if s.runWorker != nil {
		s.runWorker.Enqueue(&models.ImportRun{
			ID:        res.RunID,
			OwnerID:   ownerID,
			DryRun:    res.DryRun,
			Inserted:  res.Inserted,
			Updated:   res.Updated,
			Deleted:   res.Deleted,
			Unchanged: res.Unchanged,
			Conflicts: res.Conflicts,
		})
	}

	s.publish(ownerID, ws.EventImportApplied, res)

	s.log.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"run_id":   res.RunID,
		"dry_run":  res.DryRun,
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"deleted":  res.Deleted,
	}).Info("import applied")

	return &res, nil
}

// ListRuns returns the owner's recent import runs.
func (s *ImportService) ListRuns(ctx context.Context, ownerID string, limit int) ([]models.ImportRun, error) {
	return s.runs.ListRuns(ctx, ownerID, limit)
}

func buildReport(ownerID string, p *plan) *models.PlanReport {
	stats := p.parts.Stats()
	stats.Incoming = len(p.cs.Incoming())
	stats.Saved = len(p.cs.Saved())
	stats.Ignored = len(p.cs.Ignored())

	report := &models.PlanReport{
		RunID:     p.runID,
		OwnerID:   ownerID,
		PlannedAt: time.Now().UTC(),
		Stats:     stats,
		ToAdd:     make([]models.RecordSummary, 0, len(p.parts.ToAdd)),
		ToUpdate:  make([]models.UpdateEntry, 0, len(p.parts.ToUpdate)),
		ToDelete:  make([]models.SavedSummary, 0, len(p.parts.ToDelete)),
		Conflicts: make([]models.ConflictEntry, 0, len(p.parts.Conflicts)),
	}

	for _, r := range p.parts.ToAdd {
		report.ToAdd = append(report.ToAdd, models.SummarizeIncoming(r))
	}

	for _, u := range p.parts.ToUpdate {
		report.ToUpdate = append(report.ToUpdate, updateEntry(u))
	}

	for _, d := range p.parts.ToDelete {
		report.ToDelete = append(report.ToDelete, models.SummarizeSaved(d))
	}

	for _, g := range p.parts.Conflicts {
		entry := models.ConflictEntry{
			Incoming:   models.SummarizeIncoming(g.Incoming),
			Candidates: make([]models.ConflictCandidate, 0, len(g.Candidates)),
		}
		for _, c := range g.Candidates {
			entry.Candidates = append(entry.Candidates, models.ConflictCandidate{
				Target: models.SummarizeSaved(c.Saved),
				Score:  c.Score,
			})
		}
		report.Conflicts = append(report.Conflicts, entry)
	}

	for _, st := range p.cs.PassStats() {
		report.Passes = append(report.Passes, models.PassReport{
			Pass:              st.Pass,
			PairsAdded:        st.Added,
			UnmatchedIncoming: st.UnmatchedIncoming,
			UnmatchedSaved:    st.UnmatchedSaved,
			Duration:          st.Duration,
			Skipped:           st.Skipped,
		})
	}

	return report
}

func updateEntry(u reconcile.Update) models.UpdateEntry {
	entry := models.UpdateEntry{
		Incoming: models.SummarizeIncoming(u.Incoming),
		Target:   models.SummarizeSaved(u.Target),
		Score:    u.Score,
	}

	for _, f := range u.ChangedFields() {
		if f == models.FieldPassword {
			entry.PasswordChanged = true
			continue
		}
		entry.ChangedFields = append(entry.ChangedFields, f.String())
	}

	return entry
}
