package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/metrics"
	"github.com/persistorai/credsync/internal/models"
)

const (
	defaultRunQueueSize = 256
	runRecordTimeout    = 10 * time.Second
)

// RunRecorder persists an import run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.ImportRun) error
}

// RunWorker records import runs off the request path via a single goroutine.
type RunWorker struct {
	recorder RunRecorder
	log      *logrus.Logger
	jobs     chan *models.ImportRun
}

// NewRunWorker creates a RunWorker with the given queue capacity.
func NewRunWorker(recorder RunRecorder, log *logrus.Logger, queueSize int) *RunWorker {
	if queueSize <= 0 {
		queueSize = defaultRunQueueSize
	}

	return &RunWorker{
		recorder: recorder,
		log:      log,
		jobs:     make(chan *models.ImportRun, queueSize),
	}
}

// Enqueue adds a run. Non-blocking; drops the run if the queue is full.
func (w *RunWorker) Enqueue(run *models.ImportRun) {
	select {
	case w.jobs <- run:
	default:
		metrics.ErrorsTotal.WithLabelValues("run_dropped").Inc()
		w.log.WithField("run_id", run.ID).Warn("run queue full, dropping entry")
	}
}

// Run records runs until ctx is cancelled, then drains what is queued.
func (w *RunWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case run := <-w.jobs:
			w.process(run)
		}
	}
}

func (w *RunWorker) drain() {
	for {
		select {
		case run := <-w.jobs:
			w.process(run)
		default:
			return
		}
	}
}

func (w *RunWorker) process(run *models.ImportRun) {
	ctx, cancel := context.WithTimeout(context.Background(), runRecordTimeout)
	defer cancel()

	if err := w.recorder.RecordRun(ctx, run); err != nil {
		w.log.WithError(err).WithFields(logrus.Fields{
			"run_id":   run.ID,
			"owner_id": run.OwnerID,
		}).Warn("recording import run failed")
	}
}
