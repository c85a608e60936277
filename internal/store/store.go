// Package store persists owners, saved credentials and import runs.
//
// Each store owns one table and embeds shared helpers (pool, crypto, logger)
// via Base. Every query is scoped by owner_id.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/crypto"
	"github.com/persistorai/credsync/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for all stores.
type Base struct {
	Pool   *dbpool.Pool
	Log    *logrus.Logger
	Crypto *crypto.Service
}

// withTimeout bounds a store call by defaultQueryTimeout unless the caller's
// deadline is sooner.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

func validOwner(ownerID string) error {
	if _, err := uuid.Parse(ownerID); err != nil {
		return fmt.Errorf("owner ID %q is not a UUID: %w", ownerID, err)
	}

	return nil
}

// begin opens a transaction for ownerID in the given access mode. The
// owner ID is checked first so a malformed value never reaches SQL.
func (b *Base) begin(ctx context.Context, ownerID string, mode pgx.TxAccessMode) (pgx.Tx, error) {
	if err := validOwner(ownerID); err != nil {
		return nil, err
	}

	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: mode})
	if err != nil {
		return nil, fmt.Errorf("beginning %s transaction: %w", mode, err)
	}

	return tx, nil
}

func (b *Base) beginTx(ctx context.Context, ownerID string) (pgx.Tx, error) {
	return b.begin(ctx, ownerID, pgx.ReadWrite)
}

func (b *Base) beginReadTx(ctx context.Context, ownerID string) (pgx.Tx, error) {
	return b.begin(ctx, ownerID, pgx.ReadOnly)
}
