package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// Service seals and opens payloads bound to an owner. The owner ID is used
// as additional data, so a ciphertext cannot be replayed under another owner.
type Service struct {
	keys KeyProvider
}

// NewService creates an encryption service backed by the given key provider.
func NewService(keys KeyProvider) *Service {
	return &Service{keys: keys}
}

func (s *Service) aead(ctx context.Context, ownerID string) (cipher.AEAD, error) {
	key, err := s.keys.GetKey(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("crypto: get key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}

	return gcm, nil
}

// Encrypt seals plaintext and returns base64 of nonce followed by ciphertext.
func (s *Service) Encrypt(ctx context.Context, ownerID string, plaintext []byte) (string, error) {
	gcm, err := s.aead(ctx, ownerID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}

	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, []byte(ownerID))), nil
}

// Decrypt reverses Encrypt.
func (s *Service) Decrypt(ctx context.Context, ownerID, ciphertext string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: base64 decode: %w", err)
	}

	gcm, err := s.aead(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: ciphertext too short")
	}

	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, []byte(ownerID))
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt failed: %w", err)
	}

	return plaintext, nil
}

// SealJSON marshals v and encrypts the result.
func (s *Service) SealJSON(ctx context.Context, ownerID string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("crypto: marshal payload: %w", err)
	}

	return s.Encrypt(ctx, ownerID, raw)
}

// OpenJSON decrypts ciphertext and unmarshals it into v.
func (s *Service) OpenJSON(ctx context.Context, ownerID, ciphertext string, v any) error {
	raw, err := s.Decrypt(ctx, ownerID, ciphertext)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("crypto: unmarshal payload: %w", err)
	}

	return nil
}
