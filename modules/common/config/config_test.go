package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "veo-3.0-generate-preview", cfg.VeoModel)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 8*time.Second, cfg.ProgressInterval)
	assert.Equal(t, 8*time.Second, cfg.ThumbnailOffset)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, StorageSupabase, cfg.StorageBackend)
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("VEO_POLL_INTERVAL", "2s")
	t.Setenv("HISTORY_LIMIT", "5")
	t.Setenv("REDIS_USE_TLS", "false")
	t.Setenv("STORAGE_BACKEND", StorageMemory)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.HistoryLimit)
	assert.False(t, cfg.RedisUseTLS)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	setRequired(t)
	t.Setenv("VEO_PROGRESS_INTERVAL", "soon")
	t.Setenv("HISTORY_LIMIT", "many")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8*time.Second, cfg.ProgressInterval)
	assert.Equal(t, 20, cfg.HistoryLimit)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("missing supabase", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "")
		t.Setenv("SUPABASE_SERVICE_KEY", "")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "SUPABASE_URL")
	})

	t.Run("minio without credentials", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORAGE_BACKEND", StorageMinio)
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "MINIO_ENDPOINT")
	})

	t.Run("unknown backend", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORAGE_BACKEND", "tape")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "unknown STORAGE_BACKEND")
	})
}
