// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("config: invalid value")

// defaultEnvFile is loaded when ENV_FILE is not set.
const defaultEnvFile = ".env"

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int    `env:"PORT, default=8080" json:"port"`
	MetricsAddr string `env:"METRICS_ADDR" json:"metrics_addr,omitempty"`

	// Worker settings
	Workers         int           `env:"WORKERS, default=0" json:"workers"` // 0 = physical cores
	FFmpegPath      string        `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath     string        `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	PipelineTimeout time.Duration `env:"PIPELINE_TIMEOUT, default=0s" json:"pipeline_timeout"` // 0 = unbounded
	RandomSeed      uint64        `env:"RANDOM_SEED, default=0" json:"random_seed"`            // 0 = nondeterministic

	// Sampling defaults
	DefaultPrefix    string `env:"DEFAULT_PREFIX" json:"default_prefix"`
	DefaultHeight    int    `env:"DEFAULT_HEIGHT, default=180" json:"default_height"`
	DefaultSamples   int    `env:"DEFAULT_SAMPLES, default=10" json:"default_samples"`
	DefaultTargetDir string `env:"DEFAULT_TARGET_DIR, default=." json:"default_target_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Variables from the file named by ENV_FILE (default ".env") are loaded
// first without overriding the environment; a missing file is ignored.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that every value is within range.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("%w: WORKERS must not be negative, got %d", ErrInvalidConfig, c.Workers)
	case c.DefaultHeight <= 0:
		return fmt.Errorf("%w: DEFAULT_HEIGHT must be positive, got %d", ErrInvalidConfig, c.DefaultHeight)
	case c.DefaultSamples <= 0:
		return fmt.Errorf("%w: DEFAULT_SAMPLES must be positive, got %d", ErrInvalidConfig, c.DefaultSamples)
	case c.PipelineTimeout < 0:
		return fmt.Errorf("%w: PIPELINE_TIMEOUT must not be negative, got %s", ErrInvalidConfig, c.PipelineTimeout)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// Logs go to stderr. When LogFormat is "json", it outputs JSON logs;
// otherwise human-readable text.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MetricsAddr: %s, Workers: %d, FFmpegPath: %s, FFprobePath: %s, PipelineTimeout: %s, RandomSeed: %d, DefaultHeight: %d, DefaultSamples: %d, DefaultTargetDir: %s, S3Bucket: %s, S3Region: %s, S3Prefix: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MetricsAddr,
		c.Workers,
		c.FFmpegPath,
		c.FFprobePath,
		c.PipelineTimeout,
		c.RandomSeed,
		c.DefaultHeight,
		c.DefaultSamples,
		c.DefaultTargetDir,
		c.S3Bucket,
		c.S3Region,
		c.S3Prefix,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
