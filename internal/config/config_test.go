package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreDriverMemory)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SPLITTER_PROVIDER", SplitterLocal)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, 50000, cfg.MaxScriptLength)
	assert.Equal(t, 500, cfg.MaxBlockLength)
	assert.Equal(t, 10, cfg.MaxCandidatesPerBlock)
	assert.Equal(t, 5, cfg.DefaultMaxKeywords)
	assert.Equal(t, 1, cfg.MatchConcurrency)
	assert.Equal(t, 168, cfg.JWTTTLHours)
	assert.False(t, cfg.AsyncEnabled())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			StoreDriver:           StoreDriverPostgres,
			DatabaseURL:           "postgres://localhost/photoscript",
			JWTSecret:             "secret",
			SplitterProvider:      SplitterOpenAI,
			OpenAIKey:             "sk-test",
			DefaultMaxKeywords:    5,
			MaxCandidatesPerBlock: 10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "memory store needs no url", mutate: func(c *Config) { c.StoreDriver = StoreDriverMemory; c.DatabaseURL = "" }},
		{name: "unknown store", mutate: func(c *Config) { c.StoreDriver = "sqlite" }, wantErr: "STORE_DRIVER"},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "openai without key", mutate: func(c *Config) { c.OpenAIKey = "" }, wantErr: "OPENAI_API_KEY"},
		{name: "gemini without key", mutate: func(c *Config) { c.SplitterProvider = SplitterGemini }, wantErr: "GEMINI_API_KEY"},
		{name: "local splitter needs no key", mutate: func(c *Config) { c.SplitterProvider = SplitterLocal; c.OpenAIKey = "" }},
		{name: "keywords out of range", mutate: func(c *Config) { c.DefaultMaxKeywords = 11 }, wantErr: "DEFAULT_MAX_KEYWORDS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateClampsConcurrency(t *testing.T) {
	c := &Config{
		StoreDriver:           StoreDriverMemory,
		JWTSecret:             "secret",
		SplitterProvider:      SplitterLocal,
		DefaultMaxKeywords:    5,
		MaxCandidatesPerBlock: 10,
		MatchConcurrency:      0,
		WorkerConcurrency:     -3,
	}
	require.NoError(t, c.Validate())
	assert.Equal(t, 1, c.MatchConcurrency)
	assert.Equal(t, 1, c.WorkerConcurrency)
}
