package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const derivationInfo = "credsync owner key v1:"

// StaticProvider derives a distinct key for every owner from one master key
// using HKDF-SHA256. Suited to single-node deployments without Vault.
type StaticProvider struct {
	master []byte
	cache  *keyCache
}

// NewStaticProvider creates a StaticProvider from a hex-encoded 32-byte master key.
func NewStaticProvider(hexKey string) (*StaticProvider, error) {
	master, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/static: invalid hex key: %w", err)
	}

	if len(master) != keySize {
		return nil, fmt.Errorf("crypto/static: key must be %d bytes, got %d", keySize, len(master))
	}

	return &StaticProvider{master: master, cache: newKeyCache(0)}, nil
}

// GetKey returns the derived key for ownerID.
func (p *StaticProvider) GetKey(ctx context.Context, ownerID string) ([]byte, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("crypto/static: owner ID is required")
	}

	return p.cache.get(ctx, ownerID, p.derive)
}

func (p *StaticProvider) derive(_ context.Context, ownerID string) ([]byte, error) {
	r := hkdf.New(sha256.New, p.master, nil, []byte(derivationInfo+ownerID))

	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("crypto/static: derive key: %w", err)
	}

	return key, nil
}
