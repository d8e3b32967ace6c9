package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
port: "9090"
log_level: debug
store:
  backend: redis
  redis:
    addr: redis:6379
    prefix: clinic
board:
  tick_interval: 500ms
auth:
  token_ttl: 8h
status_presets:
  - name: 대기
    timer_type: countup
    color: "#9e9e9e"
  - name: 시술중
    timer_type: countdown
    target_time: 1800
    color: "#e53935"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roomboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, time.Second, cfg.Board.TickInterval)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.StatusPresets)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ROOMBOARD_CONFIG", writeConfig(t, sampleYAML))
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "7070")
	t.Setenv("TICK_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "clinic", cfg.Store.RedisPrefix)
	assert.Equal(t, 2*time.Second, cfg.Board.TickInterval)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL)
	require.Len(t, cfg.StatusPresets, 2)
	assert.Equal(t, StatusPreset{Name: "시술중", TimerType: "countdown", TargetTime: 1800, Color: "#e53935"}, cfg.StatusPresets[1])
}

func TestLoadRejectsBadSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_BACKEND", "etcd")
	_, err = Load()
	assert.ErrorContains(t, err, "etcd")

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TICK_INTERVAL", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "TICK_INTERVAL")

	t.Setenv("TICK_INTERVAL", "")
	t.Setenv("ROOMBOARD_CONFIG", writeConfig(t, "board: [not a map"))
	_, err = Load()
	assert.ErrorContains(t, err, "failed to parse config")
}
