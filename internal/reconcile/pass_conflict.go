package reconcile

import (
	"fmt"
	"time"
)

// ResolveConflicts marks every pair whose incoming record has two or more
// distinct saved candidates, or whose saved record is claimed by two or more
// incoming records, as conflicting. It then verifies that no saved record is
// both updated and deleted.
func (cs *ChangeSet) ResolveConflicts() (*ChangeSet, error) {
	if err := cs.require(PassConflicts, StageSimilarity); err != nil {
		return cs, err
	}

	started := time.Now()
	stat := PassStat{Pass: PassConflicts}

	for k := range cs.pairs {
		p := &cs.pairs[k]
		p.conflicting = cs.inCount[p.in] > 1 || cs.savCount[p.saved] > 1
		if p.conflicting {
			stat.Added++
		}
	}

	if err := cs.checkUpdateDelete(); err != nil {
		return cs, err
	}

	cs.stage = StageResolved
	cs.record(stat, started)

	return cs, nil
}

// checkUpdateDelete cross-checks the pairs that will become updates
// against the saved records that will become deletes. The two are derived
// independently (pairs versus per-record match counts), so any drift
// between them surfaces here instead of as a destructive write.
func (cs *ChangeSet) checkUpdateDelete() error {
	conflicted := make([]bool, len(cs.incoming))
	for _, p := range cs.pairs {
		if p.conflicting {
			conflicted[p.in] = true
		}
	}

	unmatched := make(map[int]struct{})
	for _, j := range cs.unmatchedSaved() {
		unmatched[j] = struct{}{}
	}

	for _, p := range cs.pairs {
		if conflicted[p.in] || p.hashMatch {
			continue
		}
		if _, ok := unmatched[p.saved]; ok {
			return &InvariantError{
				Pass:   PassConflicts,
				Err:    ErrUpdateDeleteOverlap,
				Detail: fmt.Sprintf("saved record %d", cs.saved[p.saved].ID),
			}
		}
	}

	return nil
}
