package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_API_KEY", "key")
	t.Setenv("CMS_BASE_URL", "https://cms.example.com")
	t.Setenv("TARGET_LANGUAGES", "fr,de")
}

func TestNewFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash-lite", cfg.LLM.PrimaryModel)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.FallbackModel)
	assert.Equal(t, 50, cfg.LLM.BatchSize)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"reports"}, cfg.Pipeline.ContentTypes)
	assert.Equal(t, []string{"fr", "de"}, cfg.Pipeline.Languages)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.Equal(t, "@every 1h", cfg.Pipeline.SweepCron)
	assert.Equal(t, "data/jobs.db", cfg.Storage.DBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestNewFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONTENT_TYPES", "reports, articles")
	t.Setenv("JOB_CONCURRENCY", "5")
	t.Setenv("TRANSLATE_BATCH_SIZE", "10")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"reports", "articles"}, cfg.Pipeline.ContentTypes)
	assert.Equal(t, 5, cfg.Pipeline.Concurrency)
	assert.Equal(t, 10, cfg.LLM.BatchSize)
}

func TestNewFromEnvRequiresAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("CMS_BASE_URL", "https://cms.example.com")
	t.Setenv("TARGET_LANGUAGES", "fr")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.ErrorContains(t, err, "LLM_API_KEY")
}

func TestNewFromEnvRejectsBadLanguage(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_LANGUAGES", "not-a-real-tag-$$")

	_, err := NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnvOptions(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewFromEnv(func(c *Config) {
		c.Pipeline.PageSize = 99
	})
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Pipeline.PageSize)
}
