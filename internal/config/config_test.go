package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("fills judge and rate limit defaults", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, cfg.normalize())
		assert.Equal(t, 10*time.Second, cfg.Judge.Timeout)
		assert.Equal(t, 200, cfg.Progression.SweepBatchSize)
		assert.Equal(t, 600, cfg.RateLimit.MaxRequests)
		assert.Equal(t, 1, cfg.RateLimit.WindowMinutes)
		assert.Equal(t, 50, cfg.Redis.PoolSize)
		assert.Equal(t, 5, cfg.Redis.DialTimeoutSeconds)
	})

	t.Run("rejects short secret in release mode", func(t *testing.T) {
		cfg := &Config{Server: ServerConfig{Mode: "release"}, JWT: JWTConfig{Secret: "short"}}
		assert.Error(t, cfg.normalize())
	})

	t.Run("rejects sweep hour out of range", func(t *testing.T) {
		cfg := &Config{Progression: ProgressionConfig{SweepHour: 24}}
		assert.Error(t, cfg.normalize())
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		cfg := &Config{Progression: ProgressionConfig{Timezone: "Mars/Olympus_Mons"}}
		assert.Error(t, cfg.normalize())
	})
}

func TestProgressionConfig(t *testing.T) {
	p := ProgressionConfig{Timezone: "UTC", RecommendationCacheTTL: 90}
	assert.Equal(t, "UTC", p.Location().String())
	assert.Equal(t, 90*time.Second, p.CacheTTL())

	assert.Equal(t, time.Local, ProgressionConfig{}.Location())
	assert.Equal(t, time.Local, ProgressionConfig{Timezone: "not/a-zone"}.Location())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	content := `server:
  port: "9090"
  mode: debug
jwt:
  secret: test-secret
storage:
  type: local
  local_path: ` + uploads + `
progression:
  timezone: UTC
  sweep_hour: 3
judge:
  timeout_seconds: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, 3, cfg.Progression.SweepHour)
	assert.Equal(t, 4*time.Second, cfg.Judge.Timeout)
	// 未配置的项取默认值
	assert.Equal(t, 300, cfg.Progression.RecommendationCacheTTL)
	assert.Equal(t, "progression.events", cfg.RabbitMQ.Exchange)
	assert.Equal(t, "logs/app.log", cfg.Log.File)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
	assert.Equal(t, 50, cfg.Redis.PoolSize)
	assert.Equal(t, 5, cfg.Redis.DialTimeoutSeconds)
	assert.DirExists(t, uploads)
}
