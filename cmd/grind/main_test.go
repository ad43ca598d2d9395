package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/grind/internal/config"
	"github.com/verte-zerg/grind/internal/model"
)

func TestParseSegments(t *testing.T) {
	segments, err := parseSegments([]string{"tower=42.5", " keep = 90 "})
	require.NoError(t, err)
	assert.Equal(t, []model.Segment{
		{ID: "tower", Duration: 42.5},
		{ID: "keep", Duration: 90},
	}, segments)

	for _, bad := range []string{"tower", "=3", "tower=0", "tower=-2", "tower=abc", "tower=NaN"} {
		_, err := parseSegments([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseOutcomes(t *testing.T) {
	outcomes, err := parseOutcomes([]string{"ok", "FAIL", "ssf", "10"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true, false, true, false}, outcomes)

	_, err = parseOutcomes([]string{"sx"})
	assert.Error(t, err)
	_, err = parseOutcomes([]string{""})
	assert.Error(t, err)
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644))
	_, err := config.LoadConfig(path)
	require.NoError(t, err)

	var lines []string
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		if strings.HasPrefix(line, "# ") && strings.Contains(line, "=") {
			line = strings.TrimPrefix(line, "# ")
			if i := strings.Index(line, "#"); i >= 0 {
				line = line[:i]
			}
		} else if strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Fit.MinSamples)
	assert.Equal(t, 15, *cfg.Fit.MinSamples)
	require.NotNil(t, cfg.Log.Mode)
	assert.Equal(t, defaultLogMode, *cfg.Log.Mode)
}

func TestEndToEnd(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GRIND_DB", filepath.Join(t.TempDir(), "grind.db"))

	run := func(args ...string) string {
		t.Helper()
		globalRun = ""
		segmentRef = ""
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute(), out.String())
		return out.String()
	}

	assert.Contains(t, run("run", "new", "any%"), "Created run any%")
	assert.Contains(t, run("segments", "a=10", "b=10"), "Run any% has 2 segments.")
	assert.Contains(t, run("record", "--segment", "a", strings.Repeat("s", 20)), "Recorded 20 attempts on a")
	out := run("record", "--min-samples", "5", "--segment", "b", strings.Repeat("f", 20))
	assert.Contains(t, out, "Practice b")

	out = run("models", "--run", "any%")
	assert.Contains(t, out, "insufficient-data")
	assert.Contains(t, run("forecast", "--trials", "50", "--seed", "3"), "Monte Carlo (grind)")
	assert.Contains(t, run("runs"), "any%")
	assert.Contains(t, run("clear", "--segment", "b"), "Cleared attempts of b")
	assert.Contains(t, run("curve", "--segment", "a"), "Segment a (20 attempts")
}
