package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaults(t *testing.T) {
	t.Setenv("ENV", "does-not-exist")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDurationDefaults(t *testing.T) {
	var zero Config

	assert.Equal(t, 24*time.Hour, zero.Upload.SessionTTL())
	assert.Equal(t, 500*time.Millisecond, zero.Assembler.RetryBaseDelay())
	assert.Equal(t, 10*time.Second, zero.Assembler.RetryMaxDelay())
	assert.Equal(t, time.Hour, zero.Reaper.Interval())
	assert.Equal(t, 30*time.Second, zero.Reaper.InitialDelay())
	assert.Equal(t, 7*24*time.Hour, zero.Reaper.Retention())
	assert.Equal(t, 6*time.Hour, zero.Reaper.ScratchMaxAge())
	assert.Equal(t, 30*time.Minute, zero.Reaper.StalledAssembly())

	cfg := DefaultConfig()
	cfg.Upload.SessionTTLSeconds = 90
	cfg.Reaper.RetentionSeconds = 60
	assert.Equal(t, 90*time.Second, cfg.Upload.SessionTTL())
	assert.Equal(t, time.Minute, cfg.Reaper.Retention())
}
