package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.90, cfg.Admission.GoroutineThreshold)
	assert.Equal(t, 0.95, cfg.Admission.DBPoolThreshold)
	assert.Equal(t, 0.85, cfg.Admission.MemoryThreshold)
	assert.Equal(t, 60, cfg.Admission.RetryAfterBase)
	assert.Equal(t, 300, cfg.Admission.RetryAfterMax)
	assert.Equal(t, 30*time.Second, cfg.Venue.Timeout)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9999
venue:
  base_url: https://venue.example.com
  timeout: 5s
admission:
  memory_threshold: 0.75
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "https://venue.example.com", cfg.Venue.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Venue.Timeout)
	assert.Equal(t, 0.75, cfg.Admission.MemoryThreshold)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.95, cfg.Admission.DBPoolThreshold)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	writeAndLoad := func(content string) error {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := LoadConfig(path)
		return err
	}

	assert.Error(t, writeAndLoad("server:\n  port: -1\n"))
	assert.Error(t, writeAndLoad("admission:\n  memory_threshold: 1.5\n"))
	assert.Error(t, writeAndLoad("admission:\n  retry_after_base: 120\n  retry_after_max: 60\n"))
}
