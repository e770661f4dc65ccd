package config

import (
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment variables that override the configuration file
const (
	EnvConfigPath = "VELVET_CONFIG"
	EnvLogLevel   = "VELVET_LOG_LEVEL"
	EnvWatchDir   = "VELVET_WATCH_DIR"
)

// DefaultPath is used when VELVET_CONFIG is not set
const DefaultPath = "./config.toml"

// Config represents the application configuration
type Config struct {
	Audio    AudioConfig    `toml:"audio"`
	Analyser AnalyserConfig `toml:"analyser"`
	Display  DisplayConfig  `toml:"display"`
	Library  LibraryConfig  `toml:"library"`
	Logging  LoggingConfig  `toml:"logging"`
}

// AudioConfig contains output device configuration
type AudioConfig struct {
	SampleRate      int     `toml:"sample_rate"`
	BufferMillis    int     `toml:"buffer_millis"`
	ResampleQuality int     `toml:"resample_quality"`
	InitialVolume   float64 `toml:"initial_volume"`
}

// AnalyserConfig contains spectrum analyser configuration
type AnalyserConfig struct {
	FFTSize     int     `toml:"fft_size"`
	Smoothing   float64 `toml:"smoothing"`
	MinDecibels float64 `toml:"min_decibels"`
	MaxDecibels float64 `toml:"max_decibels"`
}

// DisplayConfig contains visualizer configuration
type DisplayConfig struct {
	RefreshRate int `toml:"refresh_rate"`
	BarCount    int `toml:"bar_count"`
}

// LibraryConfig contains playlist source configuration
type LibraryConfig struct {
	SupportedFormats  []string `toml:"supported_formats"`
	SeedPath          string   `toml:"seed_path"`
	SeedName          string   `toml:"seed_name"`
	WatchDir          string   `toml:"watch_dir"`
	OpenDialogOnStart bool     `toml:"open_dialog_on_start"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:      44100,
			BufferMillis:    100,
			ResampleQuality: 4,
			InitialVolume:   1.0,
		},
		Analyser: AnalyserConfig{
			FFTSize:     256,
			Smoothing:   0.8,
			MinDecibels: -100,
			MaxDecibels: -30,
		},
		Display: DisplayConfig{
			RefreshRate: 60,
			BarCount:    64,
		},
		Library: LibraryConfig{
			SupportedFormats: []string{".mp3", ".wav", ".ogg", ".flac"},
			SeedPath:         "",
			SeedName:         "Sample Artist - Sample Track.mp3",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// Path returns the configuration file path, honoring VELVET_CONFIG.
// A .env file in the working directory is loaded first if present.
func Path() string {
	_ = godotenv.Load()
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig loads configuration from a TOML file, creating it with
// defaults when it does not exist, then applies environment overrides
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvWatchDir); v != "" {
		c.Library.WatchDir = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Velvet Player Configuration
# Audio output, spectrum analyser and visualizer settings.
# Environment overrides: VELVET_CONFIG, VELVET_LOG_LEVEL, VELVET_WATCH_DIR.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("audio sample rate out of range: %d", c.Audio.SampleRate)
	}
	if c.Audio.BufferMillis < 1 {
		return fmt.Errorf("audio buffer must be at least 1ms")
	}
	if c.Audio.ResampleQuality < 1 || c.Audio.ResampleQuality > 64 {
		return fmt.Errorf("resample quality must be between 1 and 64")
	}
	if c.Audio.InitialVolume < 0 || c.Audio.InitialVolume > 1 {
		return fmt.Errorf("initial volume must be between 0 and 1")
	}

	n := c.Analyser.FFTSize
	if n < 32 || n > 32768 || bits.OnesCount(uint(n)) != 1 {
		return fmt.Errorf("fft size must be a power of two between 32 and 32768: %d", n)
	}
	if c.Analyser.Smoothing < 0 || c.Analyser.Smoothing >= 1 {
		return fmt.Errorf("analyser smoothing must be in [0, 1)")
	}
	if c.Analyser.MinDecibels >= c.Analyser.MaxDecibels {
		return fmt.Errorf("analyser min decibels must be below max decibels")
	}

	if c.Display.RefreshRate < 1 || c.Display.RefreshRate > 240 {
		return fmt.Errorf("display refresh rate must be between 1 and 240")
	}
	if c.Display.BarCount < 1 {
		return fmt.Errorf("display bar count must be at least 1")
	}

	if len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// NewLogger builds the application logger
func (l LoggingConfig) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if l.File != "" {
		f, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
	}

	return logger, nil
}
