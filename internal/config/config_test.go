package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 65, cfg.Scoring.ReturnIntervalSeconds)
	assert.Equal(t, 10.0, cfg.Scoring.CapPoints)
	assert.Equal(t, 5.0, cfg.Scoring.HoldBonusPoints)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, time.Hour, cfg.Database.MaxConnLifetime)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "ctfround", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)

	opts := cfg.TrackerOptions()
	assert.Equal(t, ctf.TeamBlue, opts.ReferenceTeam)
	assert.Equal(t, 65, opts.ReturnInterval)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
scoring:
  reference_team: red
  return_interval_seconds: 45
  map_return_intervals:
    Shutdown2: 30
archive:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Archive.Enabled)

	opts := cfg.TrackerOptions()
	assert.Equal(t, ctf.TeamRed, opts.ReferenceTeam)
	assert.Equal(t, 45, opts.ReturnInterval)
	assert.Equal(t, 30, opts.MapReturnIntervals["shutdown2"], "viper lowercases keys")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CTFROUND_DATABASE_URL", "postgres://example/db")
	t.Setenv("CTFROUND_DATABASE_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "postgres://example/db", cfg.Database.URL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "scoring:\n  reference_team: purple\n"))
	assert.ErrorContains(t, err, "reference_team")

	_, err = Load(writeConfig(t, "scoring:\n  return_interval_seconds: 0\n"))
	assert.ErrorContains(t, err, "return_interval_seconds")

	_, err = Load(writeConfig(t, "logging:\n  level: loud\n"))
	assert.ErrorContains(t, err, "logging level")

	_, err = Load(writeConfig(t, "database:\n  enabled: true\n"))
	assert.ErrorContains(t, err, "database.url")

	_, err = Load(writeConfig(t, "tracing:\n  sample_ratio: 2\n"))
	assert.ErrorContains(t, err, "sample_ratio")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "logging: [unclosed\n"))
	assert.ErrorContains(t, err, "failed to read config file")
}
