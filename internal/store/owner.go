package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/credsync/internal/dbpool"
	"github.com/persistorai/credsync/internal/models"
)

const apiKeyPrefix = "cs_"

// OwnerStore handles owner creation and API key lookups.
type OwnerStore struct {
	Pool *dbpool.Pool
}

// NewOwnerStore creates a new OwnerStore.
func NewOwnerStore(pool *dbpool.Pool) *OwnerStore {
	return &OwnerStore{Pool: pool}
}

func hashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// CreateOwner inserts an owner with a freshly generated API key. Only the
// key's hash is stored; the plaintext key is returned once.
func (s *OwnerStore) CreateOwner(ctx context.Context, name string) (*models.Owner, string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generating API key: %w", err)
	}

	apiKey := apiKeyPrefix + hex.EncodeToString(raw)
	owner := &models.Owner{ID: uuid.New().String(), Name: name}

	err := s.Pool.QueryRow(ctx,
		"INSERT INTO owners (id, name, api_key_hash) VALUES ($1, $2, $3) RETURNING created_at",
		owner.ID, name, hashAPIKey(apiKey),
	).Scan(&owner.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("inserting owner: %w", err)
	}

	return owner, apiKey, nil
}

// GetOwnerByAPIKey looks up an owner ID by API key hash.
func (s *OwnerStore) GetOwnerByAPIKey(ctx context.Context, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var ownerID string

	err := s.Pool.QueryRow(ctx, "SELECT id FROM owners WHERE api_key_hash = $1", hashAPIKey(apiKey)).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrOwnerNotFound
	}

	if err != nil {
		return "", fmt.Errorf("looking up owner by API key: %w", err)
	}

	return ownerID, nil
}
