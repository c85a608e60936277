package reconcile_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/persistorai/credsync/internal/models"
	"github.com/persistorai/credsync/internal/reconcile"
)

func TestEngine_ExactDuplicate(t *testing.T) {
	in := rec("Bank", "bank.com", "a", "x", "")
	sv := saved(1, rec("bank", "BANK.com ", "a", "x", ""))

	cs, parts := runAll(t, []models.IncomingRecord{in}, []models.SavedRecord{sv})

	m := cs.Matches()
	if len(m) != 1 || !m[0].Match.HashMatch {
		t.Fatalf("Matches = %+v, want one hash match", m)
	}

	if len(parts.ToUpdate) != 0 {
		t.Errorf("ToUpdate = %+v, want empty", parts.ToUpdate)
	}

	if len(parts.Unchanged) != 1 || parts.Unchanged[0].Target.ID != 1 {
		t.Errorf("Unchanged = %+v, want saved 1", parts.Unchanged)
	}

	if len(parts.ToAdd)+len(parts.ToDelete)+len(parts.Conflicts) != 0 {
		t.Errorf("unexpected partitions: %+v", parts)
	}
}

func TestEngine_PasswordRotation(t *testing.T) {
	in := rec("Bank", "bank.com", "a", "y", "")
	sv := saved(1, rec("Bank", "bank.com", "a", "x", ""))

	_, parts := runAll(t, []models.IncomingRecord{in}, []models.SavedRecord{sv})

	if len(parts.ToUpdate) != 1 {
		t.Fatalf("len(ToUpdate) = %d, want 1", len(parts.ToUpdate))
	}

	u := parts.ToUpdate[0]
	if u.Target.ID != 1 || u.Incoming != in {
		t.Errorf("update = %+v", u)
	}

	if got := u.ChangedFields(); !slices.Equal(got, []models.Field{models.FieldPassword}) {
		t.Errorf("ChangedFields = %v, want [password]", got)
	}

	if len(parts.Unchanged) != 0 || len(parts.ToDelete) != 0 {
		t.Errorf("unexpected partitions: %+v", parts)
	}
}

func TestEngine_AmbiguousName(t *testing.T) {
	in := rec("My Bank", "https://bank.com", "alice", "new", "n1")
	savedRecs := []models.SavedRecord{
		saved(1, rec("My Bank 1", "https://login.bank.com", "alice", "old", "")),
		saved(2, rec("My Bank 2", "https://www.bank.com", "alice", "old2", "")),
	}

	cs, parts := runAll(t, []models.IncomingRecord{in}, savedRecs)

	if len(parts.ToUpdate) != 0 {
		t.Errorf("ToUpdate = %+v, want empty", parts.ToUpdate)
	}

	if len(parts.Conflicts) != 1 {
		t.Fatalf("len(Conflicts) = %d, want 1", len(parts.Conflicts))
	}

	var ids []int64
	for _, c := range parts.Conflicts[0].Candidates {
		ids = append(ids, c.Saved.ID)
		if c.HashMatch {
			t.Error("similarity candidate marked as hash match")
		}
	}
	slices.Sort(ids)

	if !slices.Equal(ids, []int64{1, 2}) {
		t.Errorf("candidate IDs = %v, want [1 2]", ids)
	}

	if !cs.IsConflicting(in, 1) || !cs.IsConflicting(in, 2) {
		t.Error("both pairs should be conflicting")
	}

	if len(parts.ToDelete) != 0 {
		t.Errorf("conflict candidates scheduled for delete: %v", savedIDs(parts.ToDelete))
	}
}

func TestEngine_PureAddition(t *testing.T) {
	in := rec("New Site", "new.com", "carol", "p", "")
	sv := saved(1, rec("Bank", "bank.com", "alice", "x", ""))

	cs, parts := runAll(t, []models.IncomingRecord{in}, []models.SavedRecord{sv})

	if len(cs.Matches()) != 0 {
		t.Errorf("Matches = %+v, want none", cs.Matches())
	}

	if len(parts.ToAdd) != 1 || parts.ToAdd[0] != in {
		t.Errorf("ToAdd = %+v, want the incoming record", parts.ToAdd)
	}
}

func TestEngine_PureDeletion(t *testing.T) {
	sv := saved(1, rec("Bank", "bank.com", "alice", "x", ""))

	_, parts := runAll(t, nil, []models.SavedRecord{sv})

	if got := savedIDs(parts.ToDelete); !slices.Equal(got, []int64{1}) {
		t.Errorf("ToDelete = %v, want [1]", got)
	}
}

func TestEngine_EmptyInputs(t *testing.T) {
	cs, parts := runAll(t, nil, nil)

	if cs.Stage() != reconcile.StageResolved {
		t.Errorf("Stage = %s, want resolved", cs.Stage())
	}

	if !parts.Batch().Empty() {
		t.Errorf("Batch = %+v, want empty", parts.Batch())
	}
}

func TestEngine_HashIdempotence(t *testing.T) {
	incoming := []models.IncomingRecord{
		rec("Bank", "bank.com", "a", "x", ""),
		rec("Mail", "mail.com", "b", "y", "note"),
	}

	var savedRecs []models.SavedRecord
	for i, r := range incoming {
		savedRecs = append(savedRecs, saved(int64(i+1), r))
	}

	_, parts := runAll(t, incoming, savedRecs)

	if len(parts.Unchanged) != 2 {
		t.Errorf("len(Unchanged) = %d, want 2", len(parts.Unchanged))
	}

	if !parts.Batch().Empty() {
		t.Errorf("re-importing saved content produced writes: %+v", parts.Batch())
	}
}

func TestEngine_Batch(t *testing.T) {
	incoming := []models.IncomingRecord{
		rec("Bank", "bank.com", "a", "y", ""),
		rec("New", "new.com", "n", "p", ""),
	}
	savedRecs := []models.SavedRecord{
		saved(1, rec("Bank", "bank.com", "a", "x", "")),
		saved(2, rec("Gone", "gone.com", "g", "p", "")),
	}

	_, parts := runAll(t, incoming, savedRecs)
	b := parts.Batch()

	if !slices.Equal(b.Deletes, []int64{2}) {
		t.Errorf("Deletes = %v, want [2]", b.Deletes)
	}

	if len(b.Updates) != 1 || b.Updates[0].ID != 1 || b.Updates[0].Record != incoming[0] {
		t.Errorf("Updates = %+v", b.Updates)
	}

	if len(b.Inserts) != 1 || b.Inserts[0] != incoming[1] {
		t.Errorf("Inserts = %+v", b.Inserts)
	}

	stats := parts.Stats()
	if stats.ToAdd != 1 || stats.ToUpdate != 1 || stats.ToDelete != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestEngine_Cancelled(t *testing.T) {
	eng, err := reconcile.NewEngine(reconcile.DefaultScoringConfig(), 4)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cs, err := eng.Run(ctx,
		[]models.IncomingRecord{rec("Bank", "bank.com", "a", "x", "")},
		[]models.SavedRecord{saved(1, rec("Bank", "bank.com", "a", "x", ""))},
		nil,
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	if cs == nil {
		t.Fatal("expected partial change set")
	}

	if cs.Stage() != reconcile.StageNew {
		t.Errorf("Stage = %s, want new", cs.Stage())
	}

	if _, err := cs.Partition(); !errors.Is(err, reconcile.ErrPassOrder) {
		t.Errorf("Partition on partial set: err = %v, want ErrPassOrder", err)
	}
}

func TestEngine_CancelledDuringOneField(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	a := rec("Bank", "bank.com", "a", "y", "")
	cs, err := reconcile.NewChangeSet([]models.IncomingRecord{a}, []models.SavedRecord{saved(1, rec("Bank", "bank.com", "a", "x", ""))})
	if err != nil {
		t.Fatalf("NewChangeSet: %v", err)
	}

	if _, err := cs.MatchByHash(ctx); err != nil {
		t.Fatalf("MatchByHash: %v", err)
	}

	cancel()

	if _, err := cs.MatchOneFieldChanges(ctx, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	if cs.Stage() != reconcile.StageHashed {
		t.Errorf("Stage = %s, want hashed", cs.Stage())
	}
}

func TestEngine_Progress(t *testing.T) {
	eng, err := reconcile.NewEngine(reconcile.DefaultScoringConfig(), 1)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var (
		mu   sync.Mutex
		msgs []string
	)

	_, err = eng.Run(context.Background(),
		[]models.IncomingRecord{rec("Bank", "bank.com", "a", "x", "")},
		nil,
		func(stage string) {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, stage)
		},
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(msgs) == 0 {
		t.Fatal("no progress messages delivered")
	}

	if msgs[0] != "matching 1 incoming against 0 saved records" {
		t.Errorf("first message = %q", msgs[0])
	}
}

func TestEngine_SlowProgressDoesNotBlock(t *testing.T) {
	eng, err := reconcile.NewEngine(reconcile.DefaultScoringConfig(), 1)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	release := make(chan struct{})
	first := make(chan struct{})
	var once sync.Once

	done := make(chan error, 1)
	go func() {
		_, err := eng.Run(context.Background(), nil, nil, func(string) {
			once.Do(func() { close(first) })
			<-release
		})
		done <- err
	}()

	<-first
	// The callback is stuck; passes keep going and only the final drain waits.
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	_, err := reconcile.NewEngine(reconcile.ScoringConfig{Mode: reconcile.FuzzyMode{Threshold: 2}, NameWeight: 1}, 1)
	if !errors.Is(err, reconcile.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
