package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/persistorai/credsync/internal/models"
)

func TestRunWorker_RecordsRun(t *testing.T) {
	runs := &mockRuns{}
	w := NewRunWorker(runs, testLogger(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Enqueue(&models.ImportRun{ID: "r1", OwnerID: testOwner, Inserted: 3})

	deadline := time.Now().Add(2 * time.Second)
	for len(runs.getRecorded()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	got := runs.getRecorded()
	if len(got) != 1 || got[0].ID != "r1" || got[0].Inserted != 3 {
		t.Errorf("recorded = %+v", got)
	}
}

func TestRunWorker_DropsWhenFull(t *testing.T) {
	w := NewRunWorker(&mockRuns{}, testLogger(), 2)

	w.Enqueue(&models.ImportRun{ID: "a"})
	w.Enqueue(&models.ImportRun{ID: "b"})

	done := make(chan struct{})
	go func() {
		w.Enqueue(&models.ImportRun{ID: "c"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked when queue was full")
	}

	if len(w.jobs) != 2 {
		t.Errorf("queue len = %d, want 2", len(w.jobs))
	}
}

func TestRunWorker_DrainsOnCancel(t *testing.T) {
	runs := &mockRuns{}
	w := NewRunWorker(runs, testLogger(), 100)

	for i := range 5 {
		w.Enqueue(&models.ImportRun{ID: fmt.Sprintf("run-%d", i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run didn't return after cancel")
	}

	if got := len(runs.getRecorded()); got != 5 {
		t.Errorf("recorded %d runs, want 5", got)
	}
}

func TestRunWorker_RecordErrorIsLogged(t *testing.T) {
	runs := &mockRuns{err: fmt.Errorf("insert failed")}
	w := NewRunWorker(runs, testLogger(), 1)

	w.process(&models.ImportRun{ID: "r1"})

	if len(runs.getRecorded()) != 1 {
		t.Error("process should still call the recorder")
	}
}
