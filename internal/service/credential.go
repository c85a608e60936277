package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/credsync/internal/domain"
	"github.com/persistorai/credsync/internal/models"
)

// Compile-time check: *CredentialService must satisfy domain.CredentialService.
var _ domain.CredentialService = (*CredentialService)(nil)

// SavedStore lists and flags saved credentials.
type SavedStore interface {
	ListSaved(ctx context.Context, ownerID string) ([]models.SavedRecord, error)
	SetIgnored(ctx context.Context, ownerID string, id int64, ignored bool) error
}

// CredentialService exposes an owner's saved credentials.
type CredentialService struct {
	store SavedStore
	log   *logrus.Logger
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(store SavedStore, log *logrus.Logger) *CredentialService {
	return &CredentialService{store: store, log: log}
}

// ListCredentials returns the owner's saved credentials with passwords removed.
func (s *CredentialService) ListCredentials(ctx context.Context, ownerID string) ([]models.SavedRecord, error) {
	recs, err := s.store.ListSaved(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]models.SavedRecord, len(recs))
	for i, r := range recs {
		out[i] = r.Redacted()
	}

	return out, nil
}

// SetIgnored marks a saved credential as ignored (or not). Ignored records
// never match and are never deleted by an import.
func (s *CredentialService) SetIgnored(ctx context.Context, ownerID string, id int64, ignored bool) error {
	if err := s.store.SetIgnored(ctx, ownerID, id, ignored); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"id":       id,
		"ignored":  ignored,
	}).Info("credential ignore flag changed")

	return nil
}
