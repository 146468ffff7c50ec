package config

import (
	"testing"
	"time"
)

func TestLoadChainsSeedsPolygonNetworks(t *testing.T) {
	t.Setenv("ALCHEMY_POLYGON_KEY", "https://polygon.example/v2/abc")
	t.Setenv("METASIGNER_POLYGON_PRIVATE_KEY", " \"0xdeadbeef\" ")
	t.Setenv("ALCHEMY_MUMBAI_KEY", "https://mumbai.example/v2/abc")
	t.Setenv("METASIGNER_MUMBAI_PRIVATE_KEY", "0xfeedface")

	chains := loadChains()

	polygon, ok := chains["137"]
	if !ok {
		t.Fatal("chain 137 not seeded")
	}
	if polygon.RPCURL != "https://polygon.example/v2/abc" {
		t.Fatalf("137 RPCURL = %q", polygon.RPCURL)
	}
	if polygon.PrivateKey != "0xdeadbeef" {
		t.Fatalf("137 PrivateKey = %q, want quotes and whitespace stripped", polygon.PrivateKey)
	}

	mumbai, ok := chains["80001"]
	if !ok {
		t.Fatal("chain 80001 not seeded")
	}
	if mumbai.PrivateKey != "0xfeedface" {
		t.Fatalf("80001 PrivateKey = %q", mumbai.PrivateKey)
	}
}

func TestLoadChainsDiscoversPairs(t *testing.T) {
	t.Setenv("CHAIN_1337_RPC_URL", "http://localhost:8545")
	t.Setenv("CHAIN_1337_PRIVATE_KEY", "0xabc123")

	chains := loadChains()

	local, ok := chains["1337"]
	if !ok {
		t.Fatal("chain 1337 not discovered")
	}
	if local.RPCURL != "http://localhost:8545" || local.PrivateKey != "0xabc123" {
		t.Fatalf("unexpected chain config: %+v", local)
	}
}

func TestLoadChainsPairOverridesSeed(t *testing.T) {
	t.Setenv("ALCHEMY_POLYGON_KEY", "https://polygon.example/v2/abc")
	t.Setenv("METASIGNER_POLYGON_PRIVATE_KEY", "0xseeded")
	t.Setenv("CHAIN_137_RPC_URL", "https://polygon.other/v2/xyz")
	t.Setenv("CHAIN_137_PRIVATE_KEY", "0xoverride")

	chains := loadChains()

	polygon := chains["137"]
	if polygon.RPCURL != "https://polygon.other/v2/xyz" || polygon.PrivateKey != "0xoverride" {
		t.Fatalf("CHAIN_137_* pair did not take precedence: %+v", polygon)
	}
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Env: "test"}}
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
	cfg.DB.URL = "postgres://localhost/polydocs"
	if err := validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_CONFIRM_TIMEOUT", "90s")
	if got := getEnvAsDuration("TEST_CONFIRM_TIMEOUT", time.Minute); got != 90*time.Second {
		t.Fatalf("got %v, want 90s", got)
	}
	t.Setenv("TEST_CONFIRM_TIMEOUT", "not-a-duration")
	if got := getEnvAsDuration("TEST_CONFIRM_TIMEOUT", time.Minute); got != time.Minute {
		t.Fatalf("got %v, want the fallback", got)
	}
	if got := getEnvAsDuration("TEST_CONFIRM_TIMEOUT_UNSET", time.Minute); got != time.Minute {
		t.Fatalf("got %v, want the fallback", got)
	}
}
