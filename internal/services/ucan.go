/**
 * @description
 * UCAN Token Service.
 * Proxies capability delegation for third-party storage: fetches a root token
 * from the storage provider once per process, then issues short-lived derived
 * tokens scoped to the service DID.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: UCANs are JWTs; signing uses EdDSA
 *
 * @notes
 * - The cached root token is per-process state with lazy-init-once semantics.
 *   A fresh instance re-fetches; that is safe and expected.
 */

package services

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/polydocs/backend/internal/config"
)

// derivedTokenLifetime bounds how long an issued delegation is usable.
const derivedTokenLifetime = 100 * time.Second

// UCANService issues delegated storage tokens.
type UCANService struct {
	cfg    config.StorageConfig
	client *http.Client

	mu        sync.Mutex
	rootToken string
}

// NewUCANService creates the service over the storage configuration.
func NewUCANService(cfg config.StorageConfig) *UCANService {
	return &UCANService{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Token returns a freshly signed delegation token and the issuer DID.
func (s *UCANService) Token(ctx context.Context) (token string, did string, err error) {
	root, err := s.ensureRootToken(ctx)
	if err != nil {
		return "", "", err
	}

	capabilities, err := scopedCapabilities(root, s.cfg.ServiceDID)
	if err != nil {
		return "", "", err
	}

	key, err := s.signingKey()
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.cfg.DID,
		"aud": s.cfg.ServiceDID,
		"att": capabilities,
		"prf": []string{root},
		"nbf": now.Unix(),
		"exp": now.Add(derivedTokenLifetime).Unix(),
		"ucv": "0.8.1",
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign delegation token: %w", err)
	}
	return signed, s.cfg.DID, nil
}

// ensureRootToken returns the cached root token, fetching it on first use.
func (s *UCANService) ensureRootToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rootToken != "" {
		return s.rootToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch root token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("root token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode root token response: %w", err)
	}
	if body.Value == "" {
		return "", fmt.Errorf("root token endpoint returned an empty token")
	}

	s.rootToken = body.Value
	return s.rootToken, nil
}

// signingKey decodes the configured Ed25519 key (raw 64-byte key or 32-byte seed).
func (s *UCANService) signingKey() (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s.cfg.DIDPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("DID_PRIVATE_KEY is not valid base64: %w", err)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("DID_PRIVATE_KEY must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// scopedCapabilities extracts the root token's capabilities and scopes each
// resource under the service DID. The root token is opaque to us beyond its
// claims; its signature is validated by the storage provider, not here.
func scopedCapabilities(root, serviceDID string) ([]map[string]interface{}, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(root, claims); err != nil {
		return nil, fmt.Errorf("failed to parse root token: %w", err)
	}

	att, ok := claims["att"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("root token has no capabilities")
	}

	capabilities := make([]map[string]interface{}, 0, len(att))
	for _, entry := range att {
		capability, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		scoped := make(map[string]interface{}, len(capability))
		for k, v := range capability {
			scoped[k] = v
		}
		if with, ok := scoped["with"].(string); ok {
			scoped["with"] = with + "/" + serviceDID
		}
		capabilities = append(capabilities, scoped)
	}
	if len(capabilities) == 0 {
		return nil, fmt.Errorf("root token has no usable capabilities")
	}
	return capabilities, nil
}
