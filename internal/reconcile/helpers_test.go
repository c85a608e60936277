package reconcile_test

import (
	"context"
	"math"
	"testing"

	"github.com/persistorai/credsync/internal/models"
	"github.com/persistorai/credsync/internal/reconcile"
)

func rec(name, url, user, pass, note string) models.IncomingRecord {
	return models.IncomingRecord{Name: name, URL: url, Username: user, Password: pass, Note: note}
}

func saved(id int64, r models.IncomingRecord) models.SavedRecord {
	return models.NewSavedRecord(id, r)
}

func ignored(id int64, r models.IncomingRecord) models.SavedRecord {
	s := models.NewSavedRecord(id, r)
	s.Ignored = true
	return s
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// runAll drives every pass with the default config and returns the partitions.
func runAll(t *testing.T, incoming []models.IncomingRecord, savedRecs []models.SavedRecord) (*reconcile.ChangeSet, reconcile.Partitions) {
	t.Helper()

	eng, err := reconcile.NewEngine(reconcile.DefaultScoringConfig(), 2)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cs, err := eng.Run(context.Background(), incoming, savedRecs, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	parts, err := cs.Partition()
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}

	return cs, parts
}

func savedIDs(recs []models.SavedRecord) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
