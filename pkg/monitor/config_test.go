package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "8080", cfg.Http.Port)
	assert.Equal(t, 30*time.Second, cfg.Monitor.ExpiryDelay)
	assert.Equal(t, 500, cfg.Monitor.RecentLogLines)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
  token: secret
monitor:
  processName: other-bot
  logFile: /var/log/bot.log
  expiryDelay: 1m
`), 0o600))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "9090", cfg.Http.Port)
	assert.Equal(t, "secret", cfg.Http.Token)
	assert.Equal(t, "other-bot", cfg.Monitor.ProcessName)
	assert.Equal(t, "/var/log/bot.log", cfg.Monitor.LogFile)
	assert.Equal(t, time.Minute, cfg.Monitor.ExpiryDelay)

	// untouched keys keep their defaults
	assert.Equal(t, time.Second, cfg.Monitor.SampleInterval)
	assert.Equal(t, 500, cfg.Monitor.RecentLogLines)
}

func TestConfig_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("monitor:\n  processName: from-file\n"), 0o600))

	t.Setenv("BOTMON_MONITOR__PROCESSNAME", "from-env")
	t.Setenv("BOTMON_HTTP__PORT", "7000")

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "from-env", cfg.Monitor.ProcessName)
	assert.Equal(t, "7000", cfg.Http.Port)
}

func TestConfig_MissingFile(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestConfig_WriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := NewConfig()
	cfg.Http.Token = "abc"
	cfg.Monitor.ExpiryDelay = 45 * time.Second
	require.NoError(t, cfg.WriteFile(path))

	loaded := NewConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg, loaded)
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewConfig()
	cfg.Monitor.SampleInterval = 0
	assert.Error(t, cfg.Validate())
}
