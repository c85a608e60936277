// Package db applies the embedded schema migrations with goose.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/dbpool"
)

// MigrationState describes one embedded migration and whether the database
// has it.
type MigrationState struct {
	Version   int64
	File      string
	Applied   bool
	AppliedAt time.Time
}

// withProvider opens a short-lived *sql.DB over the pool's connection string
// and hands fn a goose provider bound to it.
func withProvider(pool *dbpool.Pool, fsys fs.FS, fn func(*goose.Provider) error) error {
	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return fmt.Errorf("opening sql.DB for migrations: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	return fn(provider)
}

// RunMigrations applies all pending goose migrations found in fsys.
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) error {
	return withProvider(pool, fsys, func(p *goose.Provider) error {
		results, err := p.Up(ctx)
		if err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}

		for _, r := range results {
			if r.Error != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
			}

			log.WithFields(logrus.Fields{
				"version":  r.Source.Version,
				"file":     r.Source.Path,
				"duration": r.Duration,
			}).Info("migration applied")
		}

		if len(results) == 0 {
			log.Debug("schema up to date")
		}

		return nil
	})
}

// MigrationStatus lists every embedded migration in version order without
// applying anything.
func MigrationStatus(ctx context.Context, pool *dbpool.Pool, fsys fs.FS) ([]MigrationState, error) {
	var states []MigrationState

	err := withProvider(pool, fsys, func(p *goose.Provider) error {
		status, err := p.Status(ctx)
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}

		states = make([]MigrationState, 0, len(status))
		for _, st := range status {
			states = append(states, MigrationState{
				Version:   st.Source.Version,
				File:      st.Source.Path,
				Applied:   st.State == goose.StateApplied,
				AppliedAt: st.AppliedAt,
			})
		}

		return nil
	})

	return states, err
}
