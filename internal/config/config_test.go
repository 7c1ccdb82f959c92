package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Config{}
	cfg.HTTP.Port = 8080
	cfg.Catalog.DSN = "postgres://localhost/test"
	cfg.Vector.Addrs = []string{"localhost:6379"}
	cfg.Embedding.Providers = []ProviderConfig{{Name: "openai", Model: "text-embedding-3-small"}}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, 0.3, cfg.Search.MinSimilarity)
	assert.Equal(t, 60, cfg.Search.RRFK)
	assert.Equal(t, 1.2, cfg.Search.SemanticWeight)
	assert.Equal(t, 1.0, cfg.Search.LexicalWeight)
	assert.Equal(t, 1.5, cfg.Search.OverlapBoost)
	assert.Equal(t, 60, cfg.Search.CacheTTLSec)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 20, cfg.Embedding.BatchSize)
	assert.Equal(t, 1536, cfg.Vector.Dimensions)
	assert.Equal(t, "searchd:listing:", cfg.Vector.KeyPrefix)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Search.RRFK = 10
	cfg.Search.CacheTTLSec = 5
	cfg.ApplyDefaults()

	assert.Equal(t, 10, cfg.Search.RRFK)
	assert.Equal(t, 5, cfg.Search.CacheTTLSec)
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"missing dsn", func(c *Config) { c.Catalog.DSN = "" }, "catalog.dsn"},
		{"missing vector addrs", func(c *Config) { c.Vector.Addrs = nil }, "vector.addrs"},
		{"no providers", func(c *Config) { c.Embedding.Providers = nil }, "providers"},
		{"provider missing name", func(c *Config) { c.Embedding.Providers[0].Name = "" }, "name"},
		{"provider missing model", func(c *Config) { c.Embedding.Providers[0].Model = "" }, "model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SEARCHD_TEST_SECRET", "s3cret")

	in := []byte("secret: ${SEARCHD_TEST_SECRET}\nfallback: ${SEARCHD_TEST_UNSET:-default-val}\nempty: ${SEARCHD_TEST_UNSET}\n")
	got := string(expandEnvVars(in))

	assert.Contains(t, got, "secret: s3cret")
	assert.Contains(t, got, "fallback: default-val")
	assert.Contains(t, got, "empty: \n")
}
