package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/lookout/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadDefaults tests the built-in defaults
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lookout", cfg.ApplicationID)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, time.Hour, cfg.DiscardEventsAfter)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat)
	assert.True(t, cfg.Nightly.Restart)
	assert.True(t, cfg.Nightly.Reload)
	assert.Equal(t, 10*time.Second, cfg.Nightly.MaxJitter)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Nil(t, cfg.LogConfig().File)
}

// TestLoadFileAndEnv tests file values and environment overrides
func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "lookout.yaml", `
application_id: ops-board
listen_addr: ":9090"
rate_limit: 2.5
discard_events_after: 15m
nightly:
  restart: false
  max_jitter: 3s
log:
  level: debug
  file:
    path: /var/log/lookout.log
    compress: true
`)
	t.Setenv("LOOKOUT_LISTEN_ADDR", ":7070")
	t.Setenv("LOOKOUT_NIGHTLY_RELOAD", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ops-board", cfg.ApplicationID)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 15*time.Minute, cfg.DiscardEventsAfter)
	assert.False(t, cfg.Nightly.Restart)
	assert.False(t, cfg.Nightly.Reload)
	assert.Equal(t, 3*time.Second, cfg.Nightly.MaxJitter)

	lc := cfg.LogConfig()
	assert.Equal(t, log.DebugLevel, lc.Level)
	require.NotNil(t, lc.File)
	assert.Equal(t, "/var/log/lookout.log", lc.File.Path)
	assert.Equal(t, log.DefaultMaxBackups, lc.File.MaxBackups)
	assert.True(t, lc.File.Compress)
}

// TestLoadEnvFile tests loading variables from a dotenv file
func TestLoadEnvFile(t *testing.T) {
	env := writeFile(t, "test.env", "LOOKOUT_APPLICATION_ID=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("LOOKOUT_APPLICATION_ID") })

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.ApplicationID)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

// TestLoadInvalid tests validation failures
func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative rate", "rate_limit: -1\n"},
		{"zero lifetime", "discard_events_after: 0s\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"empty addr", "listen_addr: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "lookout.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestParseResources tests multi-document resource files
func TestParseResources(t *testing.T) {
	res, err := ParseResources([]byte(`
apiVersion: lookout/v1
kind: Source
metadata:
  name: cpu
spec:
  name: CPU load
  kind: redis
  frequency: 30s
  enabled: true
  properties:
    url: redis://localhost:6379/0
    section: cpu
    field: used_cpu_sys
---
kind: Source
spec:
  kind: clock
---
kind: Dashboard
metadata:
  name: ops
spec:
  title: Operations
  widgets:
    - name: CPU
      source: cpu
---
`))
	require.NoError(t, err)

	require.Len(t, res.Sources, 2)
	cpu := res.Sources[0]
	assert.Equal(t, "cpu", cpu.ID)
	assert.Equal(t, "CPU load", cpu.Name)
	assert.Equal(t, 30*time.Second, cpu.Frequency)
	assert.True(t, cpu.Enabled)
	assert.Equal(t, "used_cpu_sys", cpu.Property("field", ""))
	assert.Len(t, res.Sources[1].ID, 36)

	require.Len(t, res.Dashboards, 1)
	assert.Equal(t, "ops", res.Dashboards[0].ID)
	assert.Equal(t, []string{"cpu"}, res.Dashboards[0].EventIDs())
}

// TestParseResourcesErrors tests rejected documents
func TestParseResourcesErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", "kind: Volume\nspec: {}\n"},
		{"source without kind", "kind: Source\nmetadata:\n  name: x\nspec:\n  name: X\n"},
		{"dashboard without id", "kind: Dashboard\nspec:\n  title: T\n"},
		{"bad yaml", "kind: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResources([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
