// Package crypto seals credential payloads with per-owner AES-256-GCM keys.
package crypto

import "context"

// KeyProvider returns AES-256 encryption keys for owners.
type KeyProvider interface {
	// GetKey returns the 32-byte AES-256 key for the given owner.
	GetKey(ctx context.Context, ownerID string) ([]byte, error)
}

const keySize = 32
