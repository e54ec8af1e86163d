// Package config loads the server configuration.
//
// Values are resolved in three layers: built-in defaults, an optional TOML
// file named by CONFIG_FILE, then environment variables (a .env file in the
// working directory is loaded first when present).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds every configurable value of the server.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	JWT       JWTConfig       `toml:"jwt"`
	Redis     RedisConfig     `toml:"redis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// ServerConfig, HTTP listener settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DatabaseConfig, SQLite settings.
type DatabaseConfig struct {
	Path string `toml:"path"` // e.g. ./data/parley.db
}

// JWTConfig, identity claim signing settings.
type JWTConfig struct {
	Secret      string `toml:"secret"` // keep out of version control
	ExpiryHours int    `toml:"expiry_hours"`
}

// RedisConfig, optional presence mirror. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// RateLimitConfig, token bucket settings for login and message sends.
type RateLimitConfig struct {
	LoginPerMinute    float64 `toml:"login_per_minute"`
	LoginBurst        int     `toml:"login_burst"`
	MessagesPerSecond float64 `toml:"messages_per_second"`
	MessageBurst      int     `toml:"message_burst"`
}

// LogConfig, zap logger settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json or console
	File   string `toml:"file"`   // optional JSON log file
}

// MetricsConfig, Prometheus settings.
type MetricsConfig struct {
	Enabled  bool          `toml:"enabled"`
	Interval time.Duration `toml:"-"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9090,
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
			},
		},
		Database: DatabaseConfig{Path: "./data/parley.db"},
		JWT:      JWTConfig{ExpiryHours: 24 * 7},
		RateLimit: RateLimitConfig{
			LoginPerMinute:    10,
			LoginBurst:        5,
			MessagesPerSecond: 1,
			MessageBurst:      5,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Interval: 30 * time.Second},
	}
}

// Load builds the Config from defaults, CONFIG_FILE and the environment.
func Load() (*Config, error) {
	// .env is a development convenience; missing file is fine.
	_ = godotenv.Load()

	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.JWT.ExpiryHours <= 0 {
		return nil, fmt.Errorf("JWT expiry must be positive, got %d", cfg.JWT.ExpiryHours)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	if c.Server.Port, err = getEnvInt("SERVER_PORT", c.Server.Port); err != nil {
		return err
	}
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Database.Path = getEnv("DATABASE_PATH", c.Database.Path)

	c.JWT.Secret = getEnv("JWT_SECRET", c.JWT.Secret)
	if c.JWT.ExpiryHours, err = getEnvInt("JWT_EXPIRY_HOURS", c.JWT.ExpiryHours); err != nil {
		return err
	}

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}

	if c.RateLimit.LoginPerMinute, err = getEnvFloat("RATE_LOGIN_PER_MINUTE", c.RateLimit.LoginPerMinute); err != nil {
		return err
	}
	if c.RateLimit.LoginBurst, err = getEnvInt("RATE_LOGIN_BURST", c.RateLimit.LoginBurst); err != nil {
		return err
	}
	if c.RateLimit.MessagesPerSecond, err = getEnvFloat("RATE_MESSAGES_PER_SECOND", c.RateLimit.MessagesPerSecond); err != nil {
		return err
	}
	if c.RateLimit.MessageBurst, err = getEnvInt("RATE_MESSAGE_BURST", c.RateLimit.MessageBurst); err != nil {
		return err
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)

	if v := getEnv("METRICS_ENABLED", ""); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED: %w", err)
		}
		c.Metrics.Enabled = enabled
	}
	if v := getEnv("METRICS_INTERVAL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_INTERVAL: %w", err)
		}
		c.Metrics.Interval = d
	}

	return nil
}

// Addr returns the listen address, e.g. "0.0.0.0:9090".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TokenTTL returns the identity claim lifetime.
func (c *JWTConfig) TokenTTL() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

// getEnv reads an environment variable, falling back when unset.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
