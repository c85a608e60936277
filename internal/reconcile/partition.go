package reconcile

import (
	"fmt"
	"slices"

	"github.com/persistorai/credsync/internal/models"
)

// Update pairs an incoming record with the saved record it replaces.
type Update struct {
	Incoming models.IncomingRecord
	Target   models.SavedRecord
	Score    float64
}

// ConflictGroup is an incoming record whose match is ambiguous, together with
// every saved record it was paired with.
type ConflictGroup struct {
	Incoming   models.IncomingRecord
	Candidates []models.ScoredMatch
}

// SavedConflict is a saved record claimed by more than one incoming record.
type SavedConflict struct {
	Saved     models.SavedRecord
	Claimants []models.IncomingRecord
}

// Partitions is the final, disjoint view of a resolved change set. Every
// incoming record lands in exactly one of ToAdd, ToUpdate, Unchanged or
// Conflicts (or Suppressed, after SuppressIgnored). Every non-ignored saved
// record is either a target of some pair or in ToDelete.
type Partitions struct {
	ToAdd          []models.IncomingRecord
	ToUpdate       []Update
	Unchanged      []Update
	ToDelete       []models.SavedRecord
	Conflicts      []ConflictGroup
	SavedConflicts []SavedConflict
	// Suppressed holds ToAdd records removed by SuppressIgnored.
	Suppressed []models.IncomingRecord
}

// Partition derives the add, update, delete and conflict sets. It requires
// ResolveConflicts to have run.
func (cs *ChangeSet) Partition() (Partitions, error) {
	if cs.stage != StageResolved {
		return Partitions{}, fmt.Errorf("%w: partition needs stage %s, change set is at %s", ErrPassOrder, StageResolved, cs.stage)
	}

	var out Partitions

	conflicted := make([]bool, len(cs.incoming))
	for _, p := range cs.pairs {
		if p.conflicting {
			conflicted[p.in] = true
		}
	}

	for _, p := range cs.pairs {
		if conflicted[p.in] {
			continue
		}
		u := Update{Incoming: cs.incoming[p.in], Target: cs.saved[p.saved], Score: p.score}
		if p.hashMatch {
			out.Unchanged = append(out.Unchanged, u)
		} else {
			out.ToUpdate = append(out.ToUpdate, u)
		}
	}

	out.ToAdd = cs.UnmatchedIncoming()
	out.ToDelete = cs.UnmatchedSaved()

	cands := make(map[int][]models.ScoredMatch)
	for _, p := range cs.pairs {
		if conflicted[p.in] {
			cands[p.in] = append(cands[p.in], cs.toPair(p).Match)
		}
	}

	for i, in := range cs.incoming {
		if !conflicted[i] {
			continue
		}
		sortCandidates(cands[i])
		out.Conflicts = append(out.Conflicts, ConflictGroup{Incoming: in, Candidates: cands[i]})
	}

	for _, g := range cs.ClaimantsBySaved() {
		if len(g.Claimants) > 1 {
			out.SavedConflicts = append(out.SavedConflicts, SavedConflict(g))
		}
	}

	if err := out.checkDisjoint(); err != nil {
		return Partitions{}, err
	}

	return out, nil
}

func (p Partitions) checkDisjoint() error {
	deleted := make(map[int64]struct{}, len(p.ToDelete))
	for _, s := range p.ToDelete {
		deleted[s.ID] = struct{}{}
	}

	for _, u := range p.ToUpdate {
		if _, ok := deleted[u.Target.ID]; ok {
			return &InvariantError{
				Pass:   PassConflicts,
				Err:    ErrUpdateDeleteOverlap,
				Detail: fmt.Sprintf("saved record %d", u.Target.ID),
			}
		}
	}

	return nil
}

// SuppressIgnored returns a copy of p in which every ToAdd record whose
// content hash equals an ignored saved record's hash is moved to
// Suppressed. Matching never considers ignored records, so without this an
// import would re-insert a credential the owner chose to skip.
func (p Partitions) SuppressIgnored(ignored []models.SavedRecord) Partitions {
	if len(ignored) == 0 || len(p.ToAdd) == 0 {
		return p
	}

	hashes := make(map[string]struct{}, len(ignored))
	for _, s := range ignored {
		h := s.ContentHash
		if h == "" {
			h = models.ContentHash(s.Name, s.URL, s.Username, s.Password, s.Note)
		}
		hashes[h] = struct{}{}
	}

	out := p
	out.ToAdd = nil
	out.Suppressed = slices.Clone(p.Suppressed)

	for _, r := range p.ToAdd {
		if _, skip := hashes[r.Hash()]; skip {
			out.Suppressed = append(out.Suppressed, r)
			continue
		}
		out.ToAdd = append(out.ToAdd, r)
	}

	return out
}

// Stats returns the partition sizes.
func (p Partitions) Stats() models.PlanStats {
	return models.PlanStats{
		ToAdd:      len(p.ToAdd),
		ToUpdate:   len(p.ToUpdate),
		Unchanged:  len(p.Unchanged),
		ToDelete:   len(p.ToDelete),
		Conflicts:  len(p.Conflicts),
		Suppressed: len(p.Suppressed),
	}
}

// Batch converts the non-conflicting partitions into an ordered write set.
// Conflicts are never included.
func (p Partitions) Batch() models.ChangeBatch {
	var b models.ChangeBatch
	for _, s := range p.ToDelete {
		b.Deletes = append(b.Deletes, s.ID)
	}
	for _, u := range p.ToUpdate {
		b.Updates = append(b.Updates, models.CredentialUpdate{ID: u.Target.ID, Record: u.Incoming})
	}
	b.Inserts = append(b.Inserts, p.ToAdd...)

	return b
}

// ChangedFields lists the fields whose canonical values differ between an
// update's incoming record and its target.
func (u Update) ChangedFields() []models.Field {
	var out []models.Field
	for _, f := range models.Fields {
		if models.Canonical(u.Incoming.Value(f)) != models.Canonical(u.Target.Value(f)) {
			out = append(out, f)
		}
	}

	return out
}
