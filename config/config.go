// Package config loads the workpool configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jirevwe/workpool/pool"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the file configuration of a workpool server.
type Config struct {
	Name            string        `yaml:"name"`
	Workers         int           `yaml:"workers"`
	LockOSThread    bool          `yaml:"lock_os_thread"`
	PanicPolicy     string        `yaml:"panic_policy"`
	ShutdownTimeout Duration      `yaml:"shutdown_timeout"`
	Log             LogConfig     `yaml:"log"`
	Journal         JournalConfig `yaml:"journal"`
	Metrics         MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Buffer  int    `yaml:"buffer"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Duration is a time.Duration written as "30s" in the file.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used for every key the file leaves out.
func Default() *Config {
	return &Config{
		Name:            "workpool",
		Workers:         runtime.NumCPU(),
		PanicPolicy:     pool.PanicTerminate.String(),
		ShutdownTimeout: Duration(30 * time.Second),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Journal: JournalConfig{
			Path:   "workpool.db",
			Buffer: 1024,
		},
		Metrics: MetricsConfig{
			Namespace: "workpool",
		},
	}
}

// Load reads a YAML (or JSON) file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes data on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}

	if _, ok := pool.ParsePanicPolicy(c.PanicPolicy); !ok {
		return fmt.Errorf("%w: unknown panic_policy %q", ErrInvalidConfig, c.PanicPolicy)
	}

	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: shutdown_timeout must not be negative", ErrInvalidConfig)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			return fmt.Errorf("%w: journal.path is required when the journal is enabled", ErrInvalidConfig)
		}
		if c.Journal.Buffer <= 0 {
			return fmt.Errorf("%w: journal.buffer must be positive", ErrInvalidConfig)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("%w: metrics.namespace is required when metrics are enabled", ErrInvalidConfig)
	}

	return nil
}

// Policy returns the configured panic policy. It assumes Validate passed.
func (c *Config) Policy() pool.PanicPolicy {
	p, _ := pool.ParsePanicPolicy(c.PanicPolicy)
	return p
}

// NewLogger builds the slog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, s)
	}
}
