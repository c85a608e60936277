package reconcile

import (
	"context"
	"fmt"

	"github.com/persistorai/credsync/internal/models"
)

// Engine runs the four matching passes in order with a fixed configuration.
type Engine struct {
	config  ScoringConfig
	workers int
}

// NewEngine validates cfg and returns an engine. workers bounds the
// concurrency of the one-field pass; values below 1 mean 1.
func NewEngine(cfg ScoringConfig, workers int) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{config: cfg, workers: max(workers, 1)}, nil
}

// Config returns the engine's scoring configuration.
func (e *Engine) Config() ScoringConfig { return e.config }

// Run reconciles incoming against saved. On cancellation or error the
// partially built change set is returned along with the error; it must not
// be applied.
func (e *Engine) Run(
	ctx context.Context,
	incoming []models.IncomingRecord,
	saved []models.SavedRecord,
	onProgress ProgressFunc,
	seeds ...Pair,
) (*ChangeSet, error) {
	prog := newProgress(onProgress)
	defer prog.close()

	cs, err := NewChangeSet(incoming, saved, seeds...)
	if err != nil {
		return nil, err
	}

	prog.report("matching %d incoming against %d saved records", len(cs.incoming), len(cs.saved))

	steps := []struct {
		name string
		run  func() (*ChangeSet, error)
	}{
		{PassHash, func() (*ChangeSet, error) { return cs.MatchByHash(ctx) }},
		{PassOneField, func() (*ChangeSet, error) { return cs.MatchOneFieldChanges(ctx, e.workers) }},
		{PassSimilarity, func() (*ChangeSet, error) { return cs.MatchBySimilarity(ctx, e.config) }},
		{PassConflicts, func() (*ChangeSet, error) { return cs.ResolveConflicts() }},
	}

	for _, step := range steps {
		prog.report("%s pass started", step.name)

		if _, err := step.run(); err != nil {
			return cs, fmt.Errorf("%s pass: %w", step.name, err)
		}

		if n := len(cs.stats); n > 0 {
			st := cs.stats[n-1]
			prog.report("%s pass done: %d pairs, %d incoming and %d saved unmatched",
				step.name, st.Added, st.UnmatchedIncoming, st.UnmatchedSaved)
		}
	}

	return cs, nil
}
