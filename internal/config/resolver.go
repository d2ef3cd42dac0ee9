package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/slotfill/internal/extract"
	"github.com/hurttlocker/slotfill/internal/match"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath    string
	CLIDBPath     string
	CLIPatterns   string
	CLILogLevel   string
	CLIMinScore   string
	CLIWorkers    string
	CLINoFlexible bool
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath       ResolvedValue `json:"db_path"`
	PatternsFile ResolvedValue `json:"patterns_file"`
	LogLevel     ResolvedValue `json:"log_level"`
	Workers      ResolvedValue `json:"workers"`

	Flexible           ResolvedValue `json:"flexible"`
	FlexibleConfidence ResolvedValue `json:"flexible_confidence"`
	MaxValueLength     ResolvedValue `json:"max_value_length"`
	MinPhoneDigits     ResolvedValue `json:"min_phone_digits"`

	MinScore ResolvedValue `json:"min_score"`

	RetentionMaxAgeDays     ResolvedValue `json:"retention_max_age_days"`
	RetentionKeepPerProfile ResolvedValue `json:"retention_keep_per_profile"`
}

// RetentionConfig bounds how much feedback history is kept. Zero disables
// a limit.
type RetentionConfig struct {
	MaxAgeDays     int `json:"max_age_days"`
	KeepPerProfile int `json:"keep_per_profile"`
}

// Enabled reports whether any limit is set.
func (c RetentionConfig) Enabled() bool {
	return c.MaxAgeDays > 0 || c.KeepPerProfile > 0
}

type fileConfig struct {
	DBPath       string `yaml:"db_path"`
	PatternsFile string `yaml:"patterns_file"`
	LogLevel     string `yaml:"log_level"`
	Workers      *int   `yaml:"workers"`
	Extract      struct {
		Flexible           *bool    `yaml:"flexible"`
		FlexibleConfidence *float64 `yaml:"flexible_confidence"`
		MaxValueLength     *int     `yaml:"max_value_length"`
		MinPhoneDigits     *int     `yaml:"min_phone_digits"`
	} `yaml:"extract"`
	Match struct {
		MinScore *float64 `yaml:"min_score"`
	} `yaml:"match"`
	Retention struct {
		MaxAgeDays     *int `yaml:"max_age_days"`
		KeepPerProfile *int `yaml:"keep_per_profile"`
	} `yaml:"retention"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".slotfill", "config.yaml")
}

func DefaultPatternsPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".slotfill", "patterns.yaml")
}

// ResolveConfig layers built-in defaults, the YAML file, environment and CLI
// flags, later sources winning, and records where each value came from.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	ex := extract.DefaultConfig()
	mc := match.DefaultConfig()
	applyDefault(&out.DBPath, "~/.slotfill/slotfill.db")
	applyDefault(&out.PatternsFile, DefaultPatternsPath())
	applyDefault(&out.LogLevel, "warn")
	applyDefault(&out.Workers, "4")
	applyDefault(&out.Flexible, strconv.FormatBool(ex.Flexible))
	applyDefault(&out.FlexibleConfidence, formatFloat(ex.FlexibleConfidence))
	applyDefault(&out.MaxValueLength, strconv.Itoa(ex.MaxValueLength))
	applyDefault(&out.MinPhoneDigits, strconv.Itoa(ex.MinPhoneDigits))
	applyDefault(&out.MinScore, formatFloat(mc.MinScore))
	applyDefault(&out.RetentionMaxAgeDays, "0")
	applyDefault(&out.RetentionKeepPerProfile, "0")

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.PatternsFile, cfg.PatternsFile, SourceConfig, path)
		apply(&out.LogLevel, cfg.LogLevel, SourceConfig, path)
		if cfg.Workers != nil {
			apply(&out.Workers, strconv.Itoa(*cfg.Workers), SourceConfig, path)
		}
		if cfg.Extract.Flexible != nil {
			apply(&out.Flexible, strconv.FormatBool(*cfg.Extract.Flexible), SourceConfig, path)
		}
		if cfg.Extract.FlexibleConfidence != nil {
			apply(&out.FlexibleConfidence, formatFloat(*cfg.Extract.FlexibleConfidence), SourceConfig, path)
		}
		if cfg.Extract.MaxValueLength != nil {
			apply(&out.MaxValueLength, strconv.Itoa(*cfg.Extract.MaxValueLength), SourceConfig, path)
		}
		if cfg.Extract.MinPhoneDigits != nil {
			apply(&out.MinPhoneDigits, strconv.Itoa(*cfg.Extract.MinPhoneDigits), SourceConfig, path)
		}
		if cfg.Match.MinScore != nil {
			apply(&out.MinScore, formatFloat(*cfg.Match.MinScore), SourceConfig, path)
		}
		if cfg.Retention.MaxAgeDays != nil {
			apply(&out.RetentionMaxAgeDays, strconv.Itoa(*cfg.Retention.MaxAgeDays), SourceConfig, path)
		}
		if cfg.Retention.KeepPerProfile != nil {
			apply(&out.RetentionKeepPerProfile, strconv.Itoa(*cfg.Retention.KeepPerProfile), SourceConfig, path)
		}
	}

	applyEnv(&out.DBPath, "SLOTFILL_DB")
	applyEnv(&out.PatternsFile, "SLOTFILL_PATTERNS")
	applyEnv(&out.LogLevel, "SLOTFILL_LOG_LEVEL")
	applyEnv(&out.MinScore, "SLOTFILL_MIN_SCORE")
	applyEnv(&out.Workers, "SLOTFILL_WORKERS")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.PatternsFile, opts.CLIPatterns, SourceCLI, "--patterns")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")
	apply(&out.MinScore, opts.CLIMinScore, SourceCLI, "--min-score")
	apply(&out.Workers, opts.CLIWorkers, SourceCLI, "--workers")
	if opts.CLINoFlexible {
		apply(&out.Flexible, "false", SourceCLI, "--no-flexible")
	}

	out.DBPath.Value = expandUserPath(out.DBPath.Value)
	out.PatternsFile.Value = expandUserPath(out.PatternsFile.Value)

	if err := out.validate(); err != nil {
		return out, err
	}
	return out, nil
}

func (r ResolvedConfig) validate() error {
	if _, err := r.ExtractConfig(); err != nil {
		return err
	}
	if _, err := r.MatchConfig(); err != nil {
		return err
	}
	if _, err := r.WorkerCount(); err != nil {
		return err
	}
	if _, err := r.Level(); err != nil {
		return err
	}
	if _, err := r.Retention(); err != nil {
		return err
	}
	return nil
}

// ExtractConfig builds the extractor settings.
func (r ResolvedConfig) ExtractConfig() (extract.Config, error) {
	cfg := extract.DefaultConfig()
	var err error
	if cfg.Flexible, err = parseBool(r.Flexible); err != nil {
		return cfg, err
	}
	if cfg.FlexibleConfidence, err = parseUnit(r.FlexibleConfidence); err != nil {
		return cfg, err
	}
	if cfg.MaxValueLength, err = parsePositive(r.MaxValueLength); err != nil {
		return cfg, err
	}
	if cfg.MinPhoneDigits, err = parsePositive(r.MinPhoneDigits); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MatchConfig builds the matcher settings. Only the threshold is
// configurable; the scoring weights stay at their defaults.
func (r ResolvedConfig) MatchConfig() (match.Config, error) {
	cfg := match.DefaultConfig()
	var err error
	if cfg.MinScore, err = parseUnit(r.MinScore); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WorkerCount returns the per-request matching concurrency.
func (r ResolvedConfig) WorkerCount() (int, error) {
	return parsePositive(r.Workers)
}

// Retention returns the feedback retention limits.
func (r ResolvedConfig) Retention() (RetentionConfig, error) {
	var cfg RetentionConfig
	var err error
	if cfg.MaxAgeDays, err = parseNonNegative(r.RetentionMaxAgeDays); err != nil {
		return cfg, err
	}
	if cfg.KeepPerProfile, err = parseNonNegative(r.RetentionKeepPerProfile); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Level maps the log level name onto slog.
func (r ResolvedConfig) Level() (slog.Level, error) {
	switch strings.ToLower(r.LogLevel.Value) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelWarn, invalid(r.LogLevel, "log level", "one of debug, info, warn, error")
}

func parseBool(v ResolvedValue) (bool, error) {
	b, err := strconv.ParseBool(v.Value)
	if err != nil {
		return false, invalid(v, "boolean", "true or false")
	}
	return b, nil
}

func parseUnit(v ResolvedValue) (float64, error) {
	f, err := strconv.ParseFloat(v.Value, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, invalid(v, "number", "between 0 and 1")
	}
	return f, nil
}

func parsePositive(v ResolvedValue) (int, error) {
	n, err := strconv.Atoi(v.Value)
	if err != nil || n <= 0 {
		return 0, invalid(v, "integer", "greater than 0")
	}
	return n, nil
}

func parseNonNegative(v ResolvedValue) (int, error) {
	n, err := strconv.Atoi(v.Value)
	if err != nil || n < 0 {
		return 0, invalid(v, "integer", "0 or greater")
	}
	return n, nil
}

func invalid(v ResolvedValue, kind, want string) error {
	return fmt.Errorf("invalid %s %q from %s %s: must be %s", kind, v.Value, v.Source, v.From, want)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func applyDefault(dst *ResolvedValue, v string) {
	*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
