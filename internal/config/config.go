// Package config loads process configuration for cmd/ratelimitd via viper,
// with optional .env loading via godotenv, grounded in the reference
// service's core/config.py Settings and the ambient stack of the
// rate-limiter-domain example manifests (viper + godotenv + cobra + zap).
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the process-wide settings, matching Settings in
// core/config.py plus the fields a Go HTTP service additionally needs
// (listen address, key prefix, fail-open policy).
type Config struct {
	AppName     string `mapstructure:"app_name"`
	Environment string `mapstructure:"environment"`
	RedisURL    string `mapstructure:"redis_url"`
	ListenAddr  string `mapstructure:"listen_addr"`
	KeyPrefix   string `mapstructure:"key_prefix"`
	FailOpen    bool   `mapstructure:"fail_open"`
}

// Load reads configuration from the environment variables APP_NAME,
// ENVIRONMENT, REDIS_URL, LISTEN_ADDR, KEY_PREFIX and FAIL_OPEN, optionally
// seeded from a .env file in the working directory if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_name", "Distributed Rate Limiter")
	v.SetDefault("environment", "dev")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("key_prefix", "ratelimit")
	v.SetDefault("fail_open", false)

	for _, key := range []string{"app_name", "environment", "redis_url", "listen_addr", "key_prefix", "fail_open"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
