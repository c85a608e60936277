// Package reconcile matches an incoming credential export against previously
// saved credentials and partitions the result into add, update, delete and
// conflict sets.
package reconcile

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/persistorai/credsync/internal/models"
)

// Stage records which passes have completed on a ChangeSet.
type Stage int

// Pass stages in execution order.
const (
	StageNew Stage = iota
	StageHashed
	StageOneField
	StageSimilarity
	StageResolved
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageHashed:
		return "hashed"
	case StageOneField:
		return "one_field"
	case StageSimilarity:
		return "similarity"
	case StageResolved:
		return "resolved"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Pass names used in stats, progress messages and errors.
const (
	PassSeed       = "seed"
	PassHash       = "hash"
	PassOneField   = "one_field"
	PassSimilarity = "similarity"
	PassConflicts  = "conflicts"
)

// Pair is one candidate correspondence between an incoming and a saved record.
type Pair struct {
	Incoming models.IncomingRecord
	Match    models.ScoredMatch
}

// PassStat summarises a single pass run.
type PassStat struct {
	Pass              string
	Added             int
	UnmatchedIncoming int
	UnmatchedSaved    int
	Duration          time.Duration
	Skipped           bool
}

// CandidateGroup lists every saved record matched to one incoming record.
type CandidateGroup struct {
	Incoming   models.IncomingRecord
	Candidates []models.ScoredMatch
}

// ClaimGroup lists every incoming record matched to one saved record.
type ClaimGroup struct {
	Saved     models.SavedRecord
	Claimants []models.IncomingRecord
}

type pairKey struct {
	in    int
	saved int
}

type pair struct {
	in          int
	saved       int
	score       float64
	hashMatch   bool
	conflicting bool
}

// ChangeSet accumulates candidate pairs across passes. It owns deduplicated
// copies of both input sides; records are referenced internally by index.
type ChangeSet struct {
	incoming []models.IncomingRecord
	saved    []models.SavedRecord

	pairs    []pair
	seen     map[pairKey]struct{}
	inCount  []int
	savCount []int

	stage Stage
	stats []PassStat
}

// NewChangeSet builds an empty accumulator. Duplicate incoming records
// collapse to one; saved records are keyed by ID and later duplicates are
// dropped. Seeds are recorded as exact hash matches and must hash-equal.
func NewChangeSet(incoming []models.IncomingRecord, saved []models.SavedRecord, seeds ...Pair) (*ChangeSet, error) {
	cs := &ChangeSet{seen: make(map[pairKey]struct{})}

	inIdx := make(map[models.IncomingRecord]int, len(incoming))
	for _, r := range incoming {
		if _, ok := inIdx[r]; ok {
			continue
		}
		inIdx[r] = len(cs.incoming)
		cs.incoming = append(cs.incoming, r)
	}

	savIdx := make(map[int64]int, len(saved))
	for _, s := range saved {
		if _, ok := savIdx[s.ID]; ok {
			continue
		}
		if s.ContentHash == "" {
			s.ContentHash = models.ContentHash(s.Name, s.URL, s.Username, s.Password, s.Note)
		}
		savIdx[s.ID] = len(cs.saved)
		cs.saved = append(cs.saved, s)
	}

	cs.inCount = make([]int, len(cs.incoming))
	cs.savCount = make([]int, len(cs.saved))

	for _, seed := range seeds {
		i, ok := inIdx[seed.Incoming]
		if !ok {
			return nil, &InvariantError{Pass: PassSeed, Err: ErrSeedMismatch, Detail: "seed incoming record not in input"}
		}

		j, ok := savIdx[seed.Match.Saved.ID]
		if !ok || cs.saved[j].Ignored {
			return nil, &InvariantError{
				Pass:   PassSeed,
				Err:    ErrSeedMismatch,
				Detail: fmt.Sprintf("seed saved record %d not in input or ignored", seed.Match.Saved.ID),
			}
		}

		if cs.incoming[i].Hash() != cs.saved[j].ContentHash {
			return nil, &InvariantError{
				Pass:   PassSeed,
				Err:    ErrSeedMismatch,
				Detail: fmt.Sprintf("saved record %d", seed.Match.Saved.ID),
			}
		}

		if _, err := cs.add(PassSeed, 1, i, j, 1, true); err != nil {
			return nil, err
		}
	}

	return cs, nil
}

// add records a pair after checking it against the pass threshold. It
// reports whether the pair was new.
func (cs *ChangeSet) add(pass string, threshold float64, in, saved int, score float64, hashMatch bool) (bool, error) {
	if math.IsNaN(score) || score < threshold || score > 1 {
		return false, &InvariantError{
			Pass:   pass,
			Err:    ErrBelowThreshold,
			Detail: fmt.Sprintf("score %v against threshold %v for saved record %d", score, threshold, cs.saved[saved].ID),
		}
	}

	key := pairKey{in: in, saved: saved}
	if _, dup := cs.seen[key]; dup {
		return false, nil
	}

	cs.seen[key] = struct{}{}
	cs.pairs = append(cs.pairs, pair{in: in, saved: saved, score: score, hashMatch: hashMatch})
	cs.inCount[in]++
	cs.savCount[saved]++

	return true, nil
}

func (cs *ChangeSet) require(pass string, want Stage) error {
	if cs.stage != want {
		return fmt.Errorf("%w: %s pass needs stage %s, change set is at %s", ErrPassOrder, pass, want, cs.stage)
	}

	return nil
}

func (cs *ChangeSet) record(stat PassStat, started time.Time) {
	stat.Duration = time.Since(started)
	stat.UnmatchedIncoming = len(cs.unmatchedIncoming())
	stat.UnmatchedSaved = len(cs.unmatchedSaved())
	cs.stats = append(cs.stats, stat)
}

func (cs *ChangeSet) unmatchedIncoming() []int {
	var out []int
	for i, n := range cs.inCount {
		if n == 0 {
			out = append(out, i)
		}
	}

	return out
}

func (cs *ChangeSet) unmatchedSaved() []int {
	var out []int
	for j, n := range cs.savCount {
		if n == 0 && !cs.saved[j].Ignored {
			out = append(out, j)
		}
	}

	return out
}

func (cs *ChangeSet) toPair(p pair) Pair {
	return Pair{
		Incoming: cs.incoming[p.in],
		Match:    models.ScoredMatch{Saved: cs.saved[p.saved], Score: p.score, HashMatch: p.hashMatch},
	}
}

// Stage returns the last completed stage.
func (cs *ChangeSet) Stage() Stage { return cs.stage }

// Incoming returns the deduplicated incoming records in input order.
func (cs *ChangeSet) Incoming() []models.IncomingRecord { return slices.Clone(cs.incoming) }

// Saved returns the deduplicated saved records in input order, ignored ones included.
func (cs *ChangeSet) Saved() []models.SavedRecord { return slices.Clone(cs.saved) }

// Matches returns every recorded pair in insertion order.
func (cs *ChangeSet) Matches() []Pair {
	out := make([]Pair, 0, len(cs.pairs))
	for _, p := range cs.pairs {
		out = append(out, cs.toPair(p))
	}

	return out
}

// UnmatchedIncoming returns incoming records that appear in no pair.
func (cs *ChangeSet) UnmatchedIncoming() []models.IncomingRecord {
	idx := cs.unmatchedIncoming()
	out := make([]models.IncomingRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, cs.incoming[i])
	}

	return out
}

// UnmatchedSaved returns non-ignored saved records that appear in no pair.
func (cs *ChangeSet) UnmatchedSaved() []models.SavedRecord {
	idx := cs.unmatchedSaved()
	out := make([]models.SavedRecord, 0, len(idx))
	for _, j := range idx {
		out = append(out, cs.saved[j])
	}

	return out
}

// Ignored returns saved records excluded from matching by the user.
func (cs *ChangeSet) Ignored() []models.SavedRecord {
	var out []models.SavedRecord
	for _, s := range cs.saved {
		if s.Ignored {
			out = append(out, s)
		}
	}

	return out
}

// CandidatesByIncoming groups pairs by incoming record. Only incoming records
// with at least one match are returned, in input order; candidates are sorted
// by descending score, then saved ID.
func (cs *ChangeSet) CandidatesByIncoming() []CandidateGroup {
	groups := make(map[int][]models.ScoredMatch)
	for _, p := range cs.pairs {
		groups[p.in] = append(groups[p.in], cs.toPair(p).Match)
	}

	out := make([]CandidateGroup, 0, len(groups))
	for i := range cs.incoming {
		cands, ok := groups[i]
		if !ok {
			continue
		}
		sortCandidates(cands)
		out = append(out, CandidateGroup{Incoming: cs.incoming[i], Candidates: cands})
	}

	return out
}

// ClaimantsBySaved groups pairs by saved record, in saved input order.
func (cs *ChangeSet) ClaimantsBySaved() []ClaimGroup {
	groups := make(map[int][]models.IncomingRecord)
	for _, p := range cs.pairs {
		groups[p.saved] = append(groups[p.saved], cs.incoming[p.in])
	}

	out := make([]ClaimGroup, 0, len(groups))
	for j := range cs.saved {
		claims, ok := groups[j]
		if !ok {
			continue
		}
		out = append(out, ClaimGroup{Saved: cs.saved[j], Claimants: claims})
	}

	return out
}

// IsConflicting reports whether the pair between in and the saved record
// savedID was marked conflicting by ResolveConflicts. It is false for
// unknown pairs and before conflicts are resolved.
func (cs *ChangeSet) IsConflicting(in models.IncomingRecord, savedID int64) bool {
	for _, p := range cs.pairs {
		if cs.incoming[p.in] == in && cs.saved[p.saved].ID == savedID {
			return p.conflicting
		}
	}

	return false
}

// PassStats returns per-pass statistics in execution order.
func (cs *ChangeSet) PassStats() []PassStat { return slices.Clone(cs.stats) }

func sortCandidates(c []models.ScoredMatch) {
	slices.SortStableFunc(c, func(a, b models.ScoredMatch) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Saved.ID, b.Saved.ID)
	})
}
