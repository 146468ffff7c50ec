package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polydocs/backend/internal/config"
)

func TestNormalizeChainID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "137", want: "137"},
		{in: "0x89", want: "137"},
		{in: "0x13881", want: "80001"},
		{in: " 80001 ", want: "80001"},
		{in: "0X89", want: "137"},
		{in: "abc", wantErr: true},
		{in: "0xzz", wantErr: true},
		{in: "", wantErr: true},
		{in: "-1", wantErr: true},
	}

	for _, tc := range cases {
		got, err := NormalizeChainID(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeChainID(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeChainID(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeChainID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveUnknownChain(t *testing.T) {
	resolver := NewChainResolver(&config.Config{Chains: map[string]config.ChainConfig{}})

	if _, err := resolver.Resolve(context.Background(), "137"); !errors.Is(err, ErrUnknownChain) {
		t.Fatalf("got %v, want ErrUnknownChain", err)
	}
	if _, err := resolver.Resolve(context.Background(), "not-a-chain"); !errors.Is(err, ErrUnknownChain) {
		t.Fatalf("malformed id: got %v, want ErrUnknownChain", err)
	}
}

func TestResolveBuildsSession(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	resolver := NewChainResolver(&config.Config{Chains: map[string]config.ChainConfig{
		"1337": {
			RPCURL:     "http://localhost:8545", // http clients dial lazily
			PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
		},
	}})

	session, err := resolver.Resolve(context.Background(), "0x539")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	if session.ID != "1337" {
		t.Fatalf("session.ID = %q, want 1337", session.ID)
	}
	if session.ChainID.Int64() != 1337 {
		t.Fatalf("session.ChainID = %s, want 1337", session.ChainID)
	}
	if session.TxOpts().From != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatal("transactor not keyed to the configured signer")
	}

	// TxOpts must return independent copies.
	a, b := session.TxOpts(), session.TxOpts()
	a.GasLimit = 1
	if b.GasLimit == 1 {
		t.Fatal("TxOpts copies share state")
	}
}

func TestResolveRejectsBadSigningKey(t *testing.T) {
	resolver := NewChainResolver(&config.Config{Chains: map[string]config.ChainConfig{
		"1337": {RPCURL: "http://localhost:8545", PrivateKey: "0xnothex"},
	}})

	if _, err := resolver.Resolve(context.Background(), "1337"); err == nil {
		t.Fatal("expected error for malformed signing key")
	}
}
