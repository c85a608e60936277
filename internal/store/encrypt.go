package store

import (
	"context"
	"fmt"

	"github.com/persistorai/credsync/internal/models"
)

// sealRecord encrypts the five credential fields into the payload column.
func (b *Base) sealRecord(ctx context.Context, ownerID string, r models.IncomingRecord) (string, error) {
	payload, err := b.Crypto.SealJSON(ctx, ownerID, r)
	if err != nil {
		return "", fmt.Errorf("encrypting credential: %w", err)
	}

	return payload, nil
}

// openRecord decrypts a payload column back into the credential fields of s.
func (b *Base) openRecord(ctx context.Context, ownerID, payload string, s *models.SavedRecord) error {
	var r models.IncomingRecord
	if err := b.Crypto.OpenJSON(ctx, ownerID, payload, &r); err != nil {
		return fmt.Errorf("decrypting credential %d: %w", s.ID, err)
	}

	s.Name = r.Name
	s.URL = r.URL
	s.Username = r.Username
	s.Password = r.Password
	s.Note = r.Note

	return nil
}
