package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:37778", cfg.ListenAddr())
	assert.Empty(t, cfg.Database.Path)
	assert.Empty(t, cfg.Decay.Path)
}

func TestParseDefaultsMatchDefault(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"STRATA_BIND":         "0.0.0.0",
		"STRATA_PORT":         "9000",
		"STRATA_DB":           "/tmp/strata.db",
		"STRATA_DECAY_CONFIG": "/etc/strata/decay.yaml",
		"LOG_LEVEL":           "debug",
		"LOG_FORMAT":          "json",
	}})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
	assert.Equal(t, "/tmp/strata.db", cfg.Database.Path)
	assert.Equal(t, "/etc/strata/decay.yaml", cfg.Decay.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParseRejectsBadPort(t *testing.T) {
	_, err := parse(env.Options{Environment: map[string]string{"STRATA_PORT": "70000"}})
	assert.Error(t, err)

	_, err = parse(env.Options{Environment: map[string]string{"STRATA_PORT": "http"}})
	assert.Error(t, err)
}

func TestLoadReadsDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STRATA_PORT=4242\n"), 0o644))
	t.Setenv("STRATA_PORT", "")
	os.Unsetenv("STRATA_PORT")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.Server.Port)
}

func TestLoadMissingDotenv(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
