package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "frontend.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(BackendURLEnv, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "http://backend:4000", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "frontend-service", cfg.Upstream.Source)
	assert.False(t, cfg.RateLimit.On())
}

func TestEnvironmentOverridesBackendURL(t *testing.T) {
	t.Setenv(BackendURLEnv, "http://localhost:4000")

	path := writeConfig(t, `
upstream:
  base_url: http://from-file:4000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", cfg.Upstream.BaseURL)
}

func TestFileValuesLoad(t *testing.T) {
	t.Setenv(BackendURLEnv, "")

	path := writeConfig(t, `
server:
  addr: 127.0.0.1:3100
upstream:
  timeout: 2s
logging:
  level: debug
  development: true
rate_limit:
  enabled: true
call_log:
  path: /tmp/calls.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:3100", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.True(t, cfg.RateLimit.On())
	assert.Equal(t, "/tmp/calls.log", cfg.CallLog.Path)
	// untouched sections keep their defaults
	assert.Equal(t, "public", cfg.Server.PublicDir)
	assert.Equal(t, 50, cfg.RateLimit.Capacity)
}

func TestInvalidYAMLFails(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidationReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Upstream.BaseURL = "ftp://backend"
	cfg.Logging.Level = "loud"
	cfg.Server.Addr = "3000"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme must be http or https")
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "server.addr")
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}
