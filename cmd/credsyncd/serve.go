package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/credsync/internal/api"
	"github.com/persistorai/credsync/internal/config"
	"github.com/persistorai/credsync/internal/crypto"
	"github.com/persistorai/credsync/internal/db"
	"github.com/persistorai/credsync/internal/metrics"
	"github.com/persistorai/credsync/internal/reconcile"
	"github.com/persistorai/credsync/internal/service"
	"github.com/persistorai/credsync/internal/store"
	"github.com/persistorai/credsync/internal/ws"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	// Plans over large exports take a while; writes carry the whole report.
	writeTimeout = 5 * time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx)
		},
	}
}

func newOwnerStore(e *env) *store.OwnerStore {
	return store.NewOwnerStore(e.pool)
}

func newEngine(m config.MatchConfig) (*reconcile.Engine, error) {
	scoring, err := reconcile.NewScoringConfig(m.MinScore, m.ExactPattern, m.NameWeight, m.DomainWeight)
	if err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}

	return reconcile.NewEngine(scoring, m.Workers)
}

func serve(ctx context.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.pool.Close()

	log := e.log

	keys, err := newKeyProvider(e.cfg)
	if err != nil {
		return fmt.Errorf("key provider: %w", err)
	}

	engine, err := newEngine(e.cfg.Match)
	if err != nil {
		return err
	}

	base := store.Base{Pool: e.pool, Log: log, Crypto: crypto.NewService(keys)}
	owners := newOwnerStore(e)
	creds := store.NewCredentialStore(base)
	runs := store.NewRunStore(base)

	hub := ws.NewHub(log)
	runWorker := service.NewRunWorker(runs, log, 0)

	imports := service.NewImportService(creds, runs, runWorker, hub, engine, log)
	credentials := service.NewCredentialService(creds, log)

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:           log,
		DB:            e.pool,
		Hub:           hub,
		Imports:       imports,
		Credentials:   credentials,
		OwnerLookup:   owners,
		CORSOrigins:   e.cfg.CORSOrigins,
		Version:       config.Version,
		SchemaVersion: db.SchemaVersion(),
	})

	srv := &http.Server{
		Addr:              e.cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	metrics.RegisterPoolGauges(metrics.PoolGauges{
		Acquired: func() int32 { return e.pool.Stats().Acquired },
		Idle:     func() int32 { return e.pool.Stats().Idle },
		Max:      func() int32 { return e.pool.Stats().Max },
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              e.cfg.MetricsAddr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(workerCtx)
	}()

	runsDone := make(chan struct{})
	go func() {
		defer close(runsDone)
		runWorker.Run(workerCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listen(srv, log, "api") })
	g.Go(func() error { return listen(metricsSrv, log, "metrics") })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		hub.Shutdown()
		<-hubDone

		err := errors.Join(srv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))

		// Runs are recorded after the last request has finished.
		stopWorkers()
		<-runsDone

		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown complete")

	return nil
}

func listen(srv *http.Server, log *logrus.Logger, name string) error {
	log.WithFields(logrus.Fields{"listener": name, "addr": srv.Addr}).Info("listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener: %w", name, err)
	}

	return nil
}
