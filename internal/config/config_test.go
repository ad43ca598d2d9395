package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Fit.MinSamples)
	assert.Nil(t, cfg.Log.Mode)

	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[fit]
min-samples = 20

[advisor]
max-rounds = 500
practice-iterations = 50

[service]
deferred = true

[log]
mode = "quiet"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Fit.MinSamples)
	assert.Equal(t, 20, *cfg.Fit.MinSamples)
	assert.Equal(t, 500, *cfg.Advisor.MaxRounds)
	assert.Equal(t, 50, *cfg.Advisor.PracticeIterations)
	assert.True(t, *cfg.Service.Deferred)
	assert.Nil(t, cfg.Service.Precompute)
	assert.Equal(t, "quiet", *cfg.Log.Mode)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "[fit]\nmin-sample = 3\n",
		"min samples":    "[fit]\nmin-samples = 0\n",
		"max rounds":     "[advisor]\nmax-rounds = -1\n",
		"iterations":     "[advisor]\npractice-iterations = 0\n",
		"malformed toml": "[fit\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("GRIND_DB", "")
	assert.Equal(t, filepath.Join("/cfg", "grind", "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join("/data", "grind", "grind.db"), DefaultDBPath())

	t.Setenv("GRIND_DB", "/tmp/other.db")
	assert.Equal(t, "/tmp/other.db", DefaultDBPath())
}
