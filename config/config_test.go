package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "openai", cfg.ModelProvider)
	assert.Equal(t, 10, cfg.MaxRounds)
	assert.Equal(t, 100, cfg.CoOccurWindow)
	assert.Equal(t, 50, cfg.KeywordWindow)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "charmine.yaml")
	doc := "listen-addr: \":9090\"\nmax-rounds: 4\nco-occur-window: 80\nmodel-provider: mock\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.MaxRounds)
	assert.Equal(t, 80, cfg.CoOccurWindow)
	assert.Equal(t, "mock", cfg.ModelProvider)
	// Untouched keys keep their defaults.
	assert.Equal(t, 50, cfg.KeywordWindow)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "charmine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max-rounds: 4\n"), 0o644))

	t.Setenv("CHARMINE_MAX_ROUNDS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxRounds)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
