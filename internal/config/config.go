package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the searchd service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig holds Postgres connection settings for the listings catalog.
type CatalogConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// VectorConfig holds vector store (Redis / RediSearch) settings.
type VectorConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	IndexName        string   `yaml:"index_name"`
	Dimensions       int      `yaml:"dimensions"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	QueryTimeoutMS   int      `yaml:"query_timeout_ms"`
}

// EmbeddingConfig holds embedding provider settings. Providers are tried in
// order; the first healthy one serves a request.
type EmbeddingConfig struct {
	Providers    []ProviderConfig `yaml:"providers"`
	BatchSize    int              `yaml:"batch_size"`
	MaxTextLen   int              `yaml:"max_text_len"`
	BatchDelayMS int              `yaml:"batch_delay_ms"`
	TimeoutMS    int              `yaml:"timeout_ms"`
	Retries      int              `yaml:"retries"`
}

// ProviderConfig holds one embedding provider's settings.
type ProviderConfig struct {
	Name       string `yaml:"name"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// SearchConfig holds ranking and caching knobs. The fusion constants default
// to the values the ranking was tuned with; they are configuration, not code.
type SearchConfig struct {
	MinSimilarity  float64 `yaml:"min_similarity"`
	RRFK           int     `yaml:"rrf_k"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	LexicalWeight  float64 `yaml:"lexical_weight"`
	OverlapBoost   float64 `yaml:"overlap_boost"`
	CacheTTLSec    int     `yaml:"cache_ttl_sec"`
	CacheCapacity  int     `yaml:"cache_capacity"`
	MaxQueryLen    int     `yaml:"max_query_len"`
	DefaultLimit   int     `yaml:"default_limit"`
	MaxLimit       int     `yaml:"max_limit"`
	BranchTimeout  int     `yaml:"branch_timeout_ms"`
}

// AuthConfig holds admin API keys and the webhook signing secret.
type AuthConfig struct {
	AdminAPIKeys  []string `yaml:"admin_api_keys"`
	WebhookSecret string   `yaml:"webhook_secret"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from config/<env>.yaml.
func Load(env string) (Config, error) {
	path := filepath.Join("config", fmt.Sprintf("%s.yaml", env))

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Catalog.MaxOpenConns <= 0 {
		c.Catalog.MaxOpenConns = 10
	}
	if c.Catalog.MaxIdleConns <= 0 {
		c.Catalog.MaxIdleConns = 2
	}
	if c.Vector.KeyPrefix == "" {
		c.Vector.KeyPrefix = "searchd:listing:"
	}
	if c.Vector.IndexName == "" {
		c.Vector.IndexName = "searchd:listings:idx"
	}
	if c.Vector.Dimensions <= 0 {
		c.Vector.Dimensions = 1536
	}
	if c.Vector.ReadinessTimeout <= 0 {
		c.Vector.ReadinessTimeout = 10
	}
	if c.Vector.QueryTimeoutMS <= 0 {
		c.Vector.QueryTimeoutMS = 2000
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 20
	}
	if c.Embedding.MaxTextLen <= 0 {
		c.Embedding.MaxTextLen = 8000
	}
	if c.Embedding.TimeoutMS <= 0 {
		c.Embedding.TimeoutMS = 5000
	}
	if c.Embedding.Retries <= 0 {
		c.Embedding.Retries = 3
	}
	if c.Search.MinSimilarity <= 0 {
		c.Search.MinSimilarity = 0.3
	}
	if c.Search.RRFK <= 0 {
		c.Search.RRFK = 60
	}
	if c.Search.SemanticWeight <= 0 {
		c.Search.SemanticWeight = 1.2
	}
	if c.Search.LexicalWeight <= 0 {
		c.Search.LexicalWeight = 1.0
	}
	if c.Search.OverlapBoost <= 0 {
		c.Search.OverlapBoost = 1.5
	}
	if c.Search.CacheTTLSec <= 0 {
		c.Search.CacheTTLSec = 60
	}
	if c.Search.CacheCapacity <= 0 {
		c.Search.CacheCapacity = 1024
	}
	if c.Search.MaxQueryLen <= 0 {
		c.Search.MaxQueryLen = 500
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.BranchTimeout <= 0 {
		c.Search.BranchTimeout = 5000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Catalog.DSN == "" {
		return fmt.Errorf("catalog.dsn is required")
	}
	if len(c.Vector.Addrs) == 0 {
		return fmt.Errorf("vector.addrs is required")
	}
	if len(c.Embedding.Providers) == 0 {
		return fmt.Errorf("embedding.providers must list at least one provider")
	}
	for i, p := range c.Embedding.Providers {
		if p.Name == "" {
			return fmt.Errorf("embedding.providers[%d].name is required", i)
		}
		if p.Model == "" {
			return fmt.Errorf("embedding.providers[%d].model is required", i)
		}
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
