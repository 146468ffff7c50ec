package services

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/polydocs/backend/internal/config"
)

const testServiceDID = "did:key:z6MkserviceServiceServiceService"

func mintRootToken(t *testing.T) string {
	t.Helper()

	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("failed to generate root key: %v", err)
	}
	claims := jwt.MapClaims{
		"iss": "did:key:z6Mkprovider",
		"att": []map[string]interface{}{
			{"with": "storage://did:key:z6Mkroot", "can": "upload/*"},
		},
	}
	root, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign root token: %v", err)
	}
	return root
}

func newUCANFixture(t *testing.T) (*UCANService, *atomic.Int64, ed25519.PublicKey) {
	t.Helper()

	root := mintRootToken(t)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"value":%q}`, root)
	}))
	t.Cleanup(srv.Close)

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("failed to generate DID key: %v", err)
	}

	svc := NewUCANService(config.StorageConfig{
		TokenURL:      srv.URL,
		APIKey:        "test-api-key",
		ServiceDID:    testServiceDID,
		DID:           "did:key:z6Mkbackend",
		DIDPrivateKey: base64.StdEncoding.EncodeToString(priv),
	})
	return svc, &hits, pub
}

func TestTokenIssuesScopedDelegation(t *testing.T) {
	svc, _, pub := newUCANFixture(t)

	token, did, err := svc.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if did != "did:key:z6Mkbackend" {
		t.Fatalf("did = %q, want the issuer DID", did)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(jwt.WithValidMethods([]string{"EdDSA"})).ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	})
	if err != nil {
		t.Fatalf("derived token does not verify: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("derived token invalid")
	}

	if claims["aud"] != testServiceDID {
		t.Fatalf("aud = %v, want service DID", claims["aud"])
	}
	if claims["ucv"] != "0.8.1" {
		t.Fatalf("ucv = %v, want 0.8.1", claims["ucv"])
	}

	att, ok := claims["att"].([]interface{})
	if !ok || len(att) != 1 {
		t.Fatalf("att = %v, want one capability", claims["att"])
	}
	capability := att[0].(map[string]interface{})
	want := "storage://did:key:z6Mkroot/" + testServiceDID
	if capability["with"] != want {
		t.Fatalf("with = %v, want %q", capability["with"], want)
	}

	prf, ok := claims["prf"].([]interface{})
	if !ok || len(prf) != 1 {
		t.Fatalf("prf = %v, want the root token as proof", claims["prf"])
	}
}

func TestTokenCachesRootToken(t *testing.T) {
	svc, hits, _ := newUCANFixture(t)

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Token(context.Background()); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("root token fetched %d times, want 1", hits.Load())
	}
}

func TestTokenSurfacesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	svc := NewUCANService(config.StorageConfig{TokenURL: srv.URL, APIKey: "bad"})
	if _, _, err := svc.Token(context.Background()); err == nil {
		t.Fatal("expected error when the provider rejects the API key")
	}
}

func TestSigningKeyAcceptsSeed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	svc := NewUCANService(config.StorageConfig{DIDPrivateKey: base64.StdEncoding.EncodeToString(seed)})
	key, err := svc.signingKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		t.Fatalf("key length = %d, want %d", len(key), ed25519.PrivateKeySize)
	}

	svc = NewUCANService(config.StorageConfig{DIDPrivateKey: base64.StdEncoding.EncodeToString(seed[:16])})
	if _, err := svc.signingKey(); err == nil {
		t.Fatal("expected error for a 16-byte key")
	}
}
