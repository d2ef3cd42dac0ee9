package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600), "write config")
	return path
}

func TestResolveConfig_Defaults(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)

	assert.Equal(t, SourceDefault, resolved.DBPath.Source)
	assert.Equal(t, SourceDefault, resolved.MinScore.Source)

	ex, err := resolved.ExtractConfig()
	require.NoError(t, err)
	assert.True(t, ex.Flexible)
	assert.Equal(t, 200, ex.MaxValueLength)
	assert.Equal(t, 10, ex.MinPhoneDigits)
	assert.InDelta(t, 0.7, ex.FlexibleConfidence, 1e-9)

	mc, err := resolved.MatchConfig()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, mc.MinScore, 1e-9)
	assert.InDelta(t, 0.4, mc.KeywordWeight, 1e-9, "weights stay at defaults")

	workers, err := resolved.WorkerCount()
	require.NoError(t, err)
	assert.Equal(t, 4, workers)

	level, err := resolved.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	cfgPath := writeConfig(t, `db_path: ~/.slotfill/from-config.db
patterns_file: /etc/slotfill/patterns.yaml
log_level: info
workers: 8
extract:
  flexible: false
  max_value_length: 120
match:
  min_score: 0.25
`)

	t.Setenv("SLOTFILL_DB", "~/from-env.db")
	t.Setenv("SLOTFILL_MIN_SCORE", "0.3")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath:  cfgPath,
		CLIDBPath:   "/tmp/from-cli.db",
		CLILogLevel: "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, SourceCLI, resolved.DBPath.Source)
	assert.Equal(t, "/tmp/from-cli.db", resolved.DBPath.Value)
	assert.Equal(t, SourceConfig, resolved.PatternsFile.Source)
	assert.Equal(t, SourceEnv, resolved.MinScore.Source)
	assert.Equal(t, "SLOTFILL_MIN_SCORE", resolved.MinScore.From)
	assert.Equal(t, SourceCLI, resolved.LogLevel.Source)
	assert.Equal(t, SourceConfig, resolved.Workers.Source)

	ex, err := resolved.ExtractConfig()
	require.NoError(t, err)
	assert.False(t, ex.Flexible)
	assert.Equal(t, 120, ex.MaxValueLength)

	mc, err := resolved.MatchConfig()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, mc.MinScore, 1e-9)

	level, err := resolved.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestResolveConfig_NoFlexibleFlag(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath:    filepath.Join(t.TempDir(), "none.yaml"),
		CLINoFlexible: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "--no-flexible", resolved.Flexible.From)

	ex, err := resolved.ExtractConfig()
	require.NoError(t, err)
	assert.False(t, ex.Flexible)
}

func TestResolveConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		opts ResolveOptions
		env  map[string]string
	}{
		{name: "min score above one", opts: ResolveOptions{CLIMinScore: "1.5"}},
		{name: "min score not a number", env: map[string]string{"SLOTFILL_MIN_SCORE": "high"}},
		{name: "zero workers", opts: ResolveOptions{CLIWorkers: "0"}},
		{name: "unknown log level", opts: ResolveOptions{CLILogLevel: "loud"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			tc.opts.ConfigPath = filepath.Join(t.TempDir(), "none.yaml")
			_, err := ResolveConfig(tc.opts)
			assert.Error(t, err)
		})
	}
}

func TestResolveConfig_Retention(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)
	rc, err := resolved.Retention()
	require.NoError(t, err)
	assert.False(t, rc.Enabled())

	cfgPath := writeConfig(t, "retention:\n  max_age_days: 90\n  keep_per_profile: 500\n")
	resolved, err = ResolveConfig(ResolveOptions{ConfigPath: cfgPath})
	require.NoError(t, err)
	rc, err = resolved.Retention()
	require.NoError(t, err)
	assert.Equal(t, RetentionConfig{MaxAgeDays: 90, KeepPerProfile: 500}, rc)
	assert.True(t, rc.Enabled())
	assert.Equal(t, SourceConfig, resolved.RetentionMaxAgeDays.Source)

	cfgPath = writeConfig(t, "retention:\n  max_age_days: -1\n")
	_, err = ResolveConfig(ResolveOptions{ConfigPath: cfgPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 or greater")
}

func TestResolveConfig_BadYAML(t *testing.T) {
	cfgPath := writeConfig(t, "workers: [unclosed\n")
	_, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath})
	assert.Error(t, err)
}

func TestExpandUserPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.db"), expandUserPath("~/x.db"))
	assert.Equal(t, "/abs/x.db", expandUserPath("/abs/x.db"))
}
