/**
 * @description
 * Configuration loader for the Polydocs Backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 *
 * @notes
 * - Fails fast if critical variables (Database URL) are missing.
 * - Polygon and Mumbai are seeded from METASIGNER_* / ALCHEMY_* variables; further
 *   chains come from CHAIN_<id>_RPC_URL / CHAIN_<id>_PRIVATE_KEY pairs, so
 *   adding a network is a deploy-time change, not a code change.
 */

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/polydocs/backend/internal/logger"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	Chains  map[string]ChainConfig
	Storage StorageConfig
	Deploy  DeployConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// ChainConfig holds the signing key and RPC endpoint for one network,
// keyed by decimal chain id in Config.Chains.
type ChainConfig struct {
	PrivateKey string
	RPCURL     string
}

// StorageConfig holds the delegated-storage (UCAN) issuance settings
type StorageConfig struct {
	TokenURL      string // root token endpoint of the storage provider
	APIKey        string
	ServiceDID    string // DID of the storage service (audience)
	DID           string // our issuer DID
	DIDPrivateKey string // base64-encoded Ed25519 key
}

// DeployConfig holds deployment orchestration settings
type DeployConfig struct {
	ArtifactPath   string // hardhat artifact JSON with the compiled contract
	QueueKey       string
	StatusChannel  string
	ConfirmTimeout time.Duration
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod might inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Chains: loadChains(),
		Storage: StorageConfig{
			TokenURL:      getEnv("STORAGE_UCAN_TOKEN_URL", "https://api.nft.storage/ucan/token"),
			APIKey:        sanitizeCredential(getEnv("NFTSTORAGE_API_KEY", "")),
			ServiceDID:    getEnv("STORAGE_SERVICE_DID", "did:key:z6MknjRbVGkfWK1x5gyJZb6D4LjMj1EsitFzcSccS3sAaviQ"),
			DID:           getEnv("DID", ""),
			DIDPrivateKey: sanitizeCredential(getEnv("DID_PRIVATE_KEY", "")),
		},
		Deploy: DeployConfig{
			ArtifactPath:   getEnv("CONTRACT_ARTIFACT_PATH", ""),
			QueueKey:       getEnv("DEPLOY_QUEUE_KEY", ""),
			StatusChannel:  getEnv("DEPLOY_STATUS_CHANNEL", ""),
			ConfirmTimeout: getEnvAsDuration("DEPLOY_CONFIRM_TIMEOUT", 5*time.Minute),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadChains builds the network map. Polygon mainnet (137) and Mumbai (80001)
// are seeded from their dedicated variables; any network can be added via a
// CHAIN_<id>_RPC_URL + CHAIN_<id>_PRIVATE_KEY pair, which takes precedence.
func loadChains() map[string]ChainConfig {
	chains := make(map[string]ChainConfig)

	if url := getEnv("ALCHEMY_POLYGON_KEY", ""); url != "" {
		chains["137"] = ChainConfig{
			RPCURL:     url,
			PrivateKey: sanitizeCredential(getEnv("METASIGNER_POLYGON_PRIVATE_KEY", "")),
		}
	}
	if url := getEnv("ALCHEMY_MUMBAI_KEY", ""); url != "" {
		chains["80001"] = ChainConfig{
			RPCURL:     url,
			PrivateKey: sanitizeCredential(getEnv("METASIGNER_MUMBAI_PRIVATE_KEY", "")),
		}
	}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "CHAIN_") || !strings.HasSuffix(key, "_RPC_URL") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(key, "CHAIN_"), "_RPC_URL")
		if id == "" || value == "" {
			continue
		}
		chains[id] = ChainConfig{
			RPCURL:     value,
			PrivateKey: sanitizeCredential(getEnv("CHAIN_"+id+"_PRIVATE_KEY", "")),
		}
	}
	return chains
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.Chains) == 0 && cfg.Server.Env != "test" {
		// Deployment endpoints will reject every chain id without this.
		logger.Error("Warning: no chain RPC variables found. Contract deployment will fail.")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

// Helper to get env var as a duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
