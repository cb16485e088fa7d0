package embedding

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDimension is the vector width used when none is configured.
	DefaultDimension = 384

	// DefaultBatchSize is the recommended chunk size for callers embedding
	// large text collections.
	DefaultBatchSize = 50

	defaultCacheTTL = 24 * time.Hour
	defaultModel    = "text-embedding-3-small"

	envEndpoint  = "EMBEDDING_SERVICE_ENDPOINT"
	envAPIKey    = "EMBEDDING_SERVICE_API_KEY"
	envDimension = "EMBEDDING_DIMENSION"
)

// Config holds embedding generator configuration. Remote generation is active
// only when both Endpoint and APIKey are set; otherwise every vector comes
// from the deterministic local algorithm.
type Config struct {
	Endpoint  string `toml:"endpoint"`
	APIKey    string `toml:"api_key"`
	Provider  string `toml:"provider"` // http or openai
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
	CacheTTL  string `toml:"cache_ttl"`
}

// ApplyEnv overrides configuration from environment variables. Environment
// values win over file values so deployments can switch the remote service
// without editing config.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv(envEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(envAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(envDimension); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dimension = n
		}
	}
}

// Validate checks the configuration and fills defaults.
func (cfg *Config) Validate() error {
	if cfg.Provider == "" {
		cfg.Provider = "http"
	}
	switch strings.ToLower(cfg.Provider) {
	case "http", "openai":
		// valid
	default:
		return fmt.Errorf("invalid provider: %s, must be http or openai", cfg.Provider)
	}

	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Dimension < 0 {
		return fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}

	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	if cfg.CacheTTL == "" {
		cfg.CacheTTL = defaultCacheTTL.String()
	}
	if _, err := time.ParseDuration(cfg.CacheTTL); err != nil {
		return fmt.Errorf("cache_ttl is invalid: %v", err)
	}

	return nil
}

// remoteEnabled reports whether the remote service should be used at all.
func (cfg Config) remoteEnabled() bool {
	return cfg.Endpoint != "" && cfg.APIKey != ""
}

func (cfg Config) cacheTTL() time.Duration {
	ttl, err := time.ParseDuration(cfg.CacheTTL)
	if err != nil {
		return defaultCacheTTL
	}
	return ttl
}
