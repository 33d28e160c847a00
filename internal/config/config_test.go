package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "hitster-guesses", cfg.Kafka.Topic)
	assert.Equal(t, "Round ", cfg.Game.AutoRoundPrefix)
	assert.Equal(t, 30*time.Second, cfg.Game.AutoRoundDelay)
	assert.Equal(t, time.Second, cfg.Scheduler.Interval)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.False(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_ExpandsEnvAndKeepsValues(t *testing.T) {
	t.Setenv("HITSTER_ADMIN_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9090
postgres:
  enabled: true
  host: db
  database: hitster
redis:
  enabled: true
  cache_ttl: 1m
game:
  auto_round_prefix: "Song "
  auto_round_delay: 45s
  admin_password: ${HITSTER_ADMIN_PASSWORD}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, "postgres://:@db:5432/hitster?sslmode=disable", cfg.Postgres.ConnectionString())
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "Song ", cfg.Game.AutoRoundPrefix)
	assert.Equal(t, 45*time.Second, cfg.Game.AutoRoundDelay)
	assert.Equal(t, "s3cret", cfg.Game.AdminPassword)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
