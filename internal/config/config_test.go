package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 256, cfg.Analyser.FFTSize)
	assert.Equal(t, 64, cfg.Display.BarCount)
	assert.Equal(t, "Sample Artist - Sample Track.mp3", cfg.Library.SeedName)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 100 }},
		{"buffer", func(c *Config) { c.Audio.BufferMillis = 0 }},
		{"resample quality", func(c *Config) { c.Audio.ResampleQuality = 0 }},
		{"volume", func(c *Config) { c.Audio.InitialVolume = 1.5 }},
		{"fft not power of two", func(c *Config) { c.Analyser.FFTSize = 300 }},
		{"fft too small", func(c *Config) { c.Analyser.FFTSize = 16 }},
		{"smoothing", func(c *Config) { c.Analyser.Smoothing = 1 }},
		{"decibels", func(c *Config) { c.Analyser.MinDecibels = 0 }},
		{"refresh rate", func(c *Config) { c.Display.RefreshRate = 0 }},
		{"bar count", func(c *Config) { c.Display.BarCount = 0 }},
		{"formats", func(c *Config) { c.Library.SupportedFormats = nil }},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Audio, cfg.Audio)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Velvet Player Configuration")
	assert.Contains(t, string(data), "[analyser]")
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.Audio.InitialVolume = 0.4
	cfg.Analyser.FFTSize = 512
	cfg.Library.WatchDir = "/srv/music"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.4, loaded.Audio.InitialVolume)
	assert.Equal(t, 512, loaded.Analyser.FFTSize)
	assert.Equal(t, "/srv/music", loaded.Library.WatchDir)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[analyser]\nfft_size = 100\n"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "invalid configuration")

	require.NoError(t, os.WriteFile(path, []byte("not toml ==="), 0644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvWatchDir, "/tmp/incoming")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/incoming", cfg.Library.WatchDir)
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/velvet.toml")
	assert.Equal(t, "/etc/velvet.toml", Path())
}

func TestDefaultFormatsHaveDecoders(t *testing.T) {
	cfg := DefaultConfig()
	assert.ElementsMatch(t, []string{".mp3", ".wav", ".ogg", ".flac"}, cfg.Library.SupportedFormats)
	assert.NotContains(t, cfg.Library.SupportedFormats, ".m4a")
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "velvet.log")
	logger, err := LoggingConfig{Level: "warn", Format: "json", File: logFile}.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger.Warn("hello")
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	_, err = LoggingConfig{Level: "loud"}.NewLogger()
	assert.Error(t, err)
}
