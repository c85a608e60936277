package reconcile

import (
	"context"
	"time"

	"github.com/persistorai/credsync/internal/models"
)

// MatchBySimilarity pairs remaining unmatched records that share an exact,
// non-empty username and score at or above the configured threshold. In
// exact mode without a pattern the pass records nothing.
func (cs *ChangeSet) MatchBySimilarity(ctx context.Context, cfg ScoringConfig) (*ChangeSet, error) {
	if err := cs.require(PassSimilarity, StageOneField); err != nil {
		return cs, err
	}

	if err := cfg.Validate(); err != nil {
		return cs, err
	}

	started := time.Now()
	stat := PassStat{Pass: PassSimilarity}

	var (
		accept    func(in models.IncomingRecord, saved models.SavedRecord) (float64, bool)
		threshold float64
	)

	switch m := cfg.Mode.(type) {
	case FuzzyMode:
		threshold = m.Threshold
		accept = func(in models.IncomingRecord, saved models.SavedRecord) (float64, bool) {
			score := cfg.Score(in, saved)
			return score, score >= m.Threshold
		}
	case ExactMode:
		if m.Pattern == nil {
			stat.Skipped = true
			cs.stage = StageSimilarity
			cs.record(stat, started)
			return cs, nil
		}
		threshold = 1
		accept = func(in models.IncomingRecord, saved models.SavedRecord) (float64, bool) {
			a, okA := m.extractKey(in.Name)
			b, okB := m.extractKey(saved.Name)
			return 1, okA && okB && a == b
		}
	}

	byUser := make(map[string][]int)
	for _, j := range cs.unmatchedSaved() {
		if u := cs.saved[j].Username; u != "" {
			byUser[u] = append(byUser[u], j)
		}
	}

	for _, i := range cs.unmatchedIncoming() {
		if err := ctx.Err(); err != nil {
			return cs, err
		}

		in := cs.incoming[i]
		if in.Username == "" {
			continue
		}

		for _, j := range byUser[in.Username] {
			score, ok := accept(in, cs.saved[j])
			if !ok {
				continue
			}

			added, err := cs.add(PassSimilarity, threshold, i, j, score, false)
			if err != nil {
				return cs, err
			}
			if added {
				stat.Added++
			}
		}
	}

	cs.stage = StageSimilarity
	cs.record(stat, started)

	return cs, nil
}
