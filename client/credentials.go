package client

import (
	"context"
	"fmt"

	"github.com/persistorai/credsync/internal/models"
)

// CredentialService calls the saved credential endpoints.
type CredentialService struct {
	c *Client
}

// List returns the saved credentials. Passwords are never included.
func (s *CredentialService) List(ctx context.Context) ([]SavedRecord, error) {
	var resp struct {
		Credentials []SavedRecord `json:"credentials"`
	}
	if err := s.c.get(ctx, "/api/v1/credentials", nil, &resp); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return resp.Credentials, nil
}

// SetIgnored marks a saved credential as ignored, or clears the mark.
func (s *CredentialService) SetIgnored(ctx context.Context, id int64, ignored bool) error {
	path := fmt.Sprintf("/api/v1/credentials/%d/ignored", id)
	if err := s.c.put(ctx, path, models.SetIgnoredRequest{Ignored: ignored}, nil); err != nil {
		return fmt.Errorf("set ignored: %w", err)
	}
	return nil
}
