// Package config provides runtime configuration values for the service.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "CATALOG"

// Config holds configuration knobs for the HTTP server and the change feed.
type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`

	Seed          bool          `mapstructure:"seed"`
	FeedBuffer    int           `mapstructure:"feed_buffer"`
	FeedHeartbeat time.Duration `mapstructure:"feed_heartbeat"`

	JWTSecret            string `mapstructure:"jwt_secret"`
	MetricsToken         string `mapstructure:"metrics_token"`
	SubscribeLimitPerMin int    `mapstructure:"subscribe_limit_per_min"`
}

var (
	ErrFeedBuffer      = errors.New("feed_buffer must be positive")
	ErrFeedHeartbeat   = errors.New("feed_heartbeat must be positive")
	ErrShutdownTimeout = errors.New("shutdown_timeout must be positive")
	ErrJWTSecret       = errors.New("jwt_secret must be at least 32 chars when set")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("seed", true)
	v.SetDefault("feed_buffer", 64)
	v.SetDefault("feed_heartbeat", 15*time.Second)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("metrics_token", "")
	v.SetDefault("subscribe_limit_per_min", 60)
}

// Load reads CATALOG_* environment variables on top of the defaults. When
// CATALOG_CONFIG names a file, its values sit between the two.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.FeedBuffer <= 0 {
		return ErrFeedBuffer
	}
	if c.FeedHeartbeat <= 0 {
		return ErrFeedHeartbeat
	}
	if c.ShutdownTimeout <= 0 {
		return ErrShutdownTimeout
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return ErrJWTSecret
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}
