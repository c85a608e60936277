package crypto

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/credsync/internal/config"
)

const (
	vaultKeyTTL      = 15 * time.Minute
	vaultBodyLimit   = 1 << 20
	vaultKeyBasePath = "/v1/secret/data/credsync/owner-keys/"
)

// VaultProvider reads owner keys from a HashiCorp Vault KV v2 mount.
type VaultProvider struct {
	addr   string
	token  config.Secret
	client *http.Client
	cache  *keyCache
}

// NewVaultProvider creates a VaultProvider for the given address and token.
func NewVaultProvider(addr, token string) *VaultProvider {
	return &VaultProvider{
		addr:  strings.TrimRight(addr, "/"),
		token: config.Secret(token),
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		cache: newKeyCache(vaultKeyTTL),
	}
}

// GetKey returns the owner's key, fetching from Vault when the cached copy
// is missing or older than vaultKeyTTL.
func (p *VaultProvider) GetKey(ctx context.Context, ownerID string) ([]byte, error) {
	return p.cache.get(ctx, ownerID, p.fetch)
}

func (p *VaultProvider) fetch(ctx context.Context, ownerID string) ([]byte, error) {
	// Owner IDs are UUIDs; anything else could escape the key path.
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, fmt.Errorf("crypto/vault: invalid owner ID %q", ownerID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.addr+vaultKeyBasePath+url.PathEscape(ownerID), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("crypto/vault: create request: %w", err)
	}

	req.Header.Set("X-Vault-Token", p.token.Value())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crypto/vault: request failed: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, vaultBodyLimit)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, body)
		return nil, fmt.Errorf("crypto/vault: no key stored for owner %s", ownerID)
	default:
		msg, _ := io.ReadAll(body)
		return nil, fmt.Errorf("crypto/vault: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload struct {
		Data struct {
			Data struct {
				Key string `json:"encryption_key"`
			} `json:"data"`
		} `json:"data"`
	}

	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("crypto/vault: decode response: %w", err)
	}

	if payload.Data.Data.Key == "" {
		return nil, fmt.Errorf("crypto/vault: encryption_key missing for owner %s", ownerID)
	}

	key, err := base64.StdEncoding.DecodeString(payload.Data.Data.Key)
	if err != nil {
		return nil, fmt.Errorf("crypto/vault: decode key: %w", err)
	}

	return key, nil
}
