// Package config loads server settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"grouping-server-go/grouping"
)

// ErrInvalidConfig is returned when the configuration is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvConfigFile names the environment variable holding the YAML file path.
const EnvConfigFile = "GROUPING_CONFIG"

// Config holds everything the server needs at startup.
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Redis    RedisConfig      `yaml:"redis"`
	Grouping grouping.Options `yaml:"grouping"`

	// ArtifactTTL is how long a grouping run stays downloadable.
	ArtifactTTL time.Duration `yaml:"artifact_ttl"`
	// SeedDemo adds a demo class when the store holds no classes.
	SeedDemo bool   `yaml:"seed_demo"`
	LogLevel string `yaml:"log_level"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	GinMode string `yaml:"gin_mode"`
	// MaxUploadBytes caps multipart roster uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			GinMode:        "release",
			MaxUploadBytes: 8 << 20,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
			DB:   8,
		},
		Grouping:    grouping.DefaultOptions(),
		ArtifactTTL: time.Hour,
		SeedDemo:    true,
		LogLevel:    "info",
	}
}

// Load builds the configuration. path may be empty, in which case
// GROUPING_CONFIG is consulted; a missing file is an error only when a path
// was given.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.GinMode = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REDIS_DB must be an integer, got %q", ErrInvalidConfig, v)
		}
		cfg.Redis.DB = db
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// Validate checks configuration constraints.
func (cfg Config) Validate() error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("%w: server address is required", ErrInvalidConfig)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max upload size must be > 0, got %d", ErrInvalidConfig, cfg.Server.MaxUploadBytes)
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis address is required", ErrInvalidConfig)
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("%w: redis db must be >= 0, got %d", ErrInvalidConfig, cfg.Redis.DB)
	}
	if cfg.ArtifactTTL <= 0 {
		return fmt.Errorf("%w: artifact TTL must be > 0, got %v", ErrInvalidConfig, cfg.ArtifactTTL)
	}
	if err := cfg.Grouping.Validate(); err != nil {
		return fmt.Errorf("%w: default grouping options: %w", ErrInvalidConfig, err)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
	return level, nil
}

// NewLogger returns a text logger writing to stderr at the configured level.
func (cfg Config) NewLogger() *slog.Logger {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
