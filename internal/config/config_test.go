package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points ENV_FILE at a file that does not exist.
func noEnvFile(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	noEnvFile(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Zero(t, cfg.Workers)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Zero(t, cfg.PipelineTimeout)
	assert.Zero(t, cfg.RandomSeed)
	assert.Empty(t, cfg.DefaultPrefix)
	assert.Equal(t, 180, cfg.DefaultHeight)
	assert.Equal(t, 10, cfg.DefaultSamples)
	assert.Equal(t, ".", cfg.DefaultTargetDir)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_CustomValues(t *testing.T) {
	noEnvFile(t)
	t.Setenv("PORT", "3000")
	t.Setenv("METRICS_ADDR", ":9090")
	t.Setenv("WORKERS", "8")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("FFPROBE_PATH", "/opt/ffmpeg/bin/ffprobe")
	t.Setenv("PIPELINE_TIMEOUT", "30s")
	t.Setenv("RANDOM_SEED", "1234")
	t.Setenv("DEFAULT_PREFIX", "thumb")
	t.Setenv("DEFAULT_HEIGHT", "240")
	t.Setenv("DEFAULT_SAMPLES", "5")
	t.Setenv("DEFAULT_TARGET_DIR", "/srv/out")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_PREFIX", "frames")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/opt/ffmpeg/bin/ffprobe", cfg.FFprobePath)
	assert.Equal(t, 30*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, uint64(1234), cfg.RandomSeed)
	assert.Equal(t, "thumb", cfg.DefaultPrefix)
	assert.Equal(t, 240, cfg.DefaultHeight)
	assert.Equal(t, 5, cfg.DefaultSamples)
	assert.Equal(t, "/srv/out", cfg.DefaultTargetDir)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "frames", cfg.S3Prefix)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sampler.env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_SAMPLES=7\nVIDEO_SAMPLER_TEST_ONLY=from-file\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	// The environment wins over the file.
	t.Setenv("DEFAULT_SAMPLES", "3")
	t.Cleanup(func() { _ = os.Unsetenv("VIDEO_SAMPLER_TEST_ONLY") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.DefaultSamples)
	assert.Equal(t, "from-file", os.Getenv("VIDEO_SAMPLER_TEST_ONLY"))
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port", "PORT", "not-a-number"},
		{"workers", "WORKERS", "many"},
		{"timeout", "PIPELINE_TIMEOUT", "soon"},
		{"seed", "RANDOM_SEED", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noEnvFile(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{DefaultHeight: 180, DefaultSamples: 10, LogFormat: "text"}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
		cfg := valid()
		cfg.LogFormat = "JSON"
		assert.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"zero height", func(c *Config) { c.DefaultHeight = 0 }},
		{"zero samples", func(c *Config) { c.DefaultSamples = 0 }},
		{"negative timeout", func(c *Config) { c.PipelineTimeout = -time.Second }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		Workers:            4,
		PipelineTimeout:    5 * time.Second,
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "access-key",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "Workers: 4")
	assert.Contains(t, str, "PipelineTimeout: 5s")
	assert.Contains(t, str, "bucket")

	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "access-key")
}

func TestConfig_NewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			cfg := &Config{LogFormat: format, LogLevel: "warn"}

			logger := cfg.NewLogger()
			require.NotNil(t, logger)
			assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
			assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
