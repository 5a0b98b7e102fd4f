package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds process-wide settings. Loaded once in main and passed down;
// nothing in internal/ reads the environment directly.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Database   struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Auth struct {
		Secret   string        `mapstructure:"secret"`
		TokenTTL time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`
	RateLimit struct {
		Burst     int `mapstructure:"burst"`
		PerSecond int `mapstructure:"per_second"`
	} `mapstructure:"rate_limit"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// Load reads config.yaml (working directory or parent) with environment
// overrides and validates the required fields.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.per_second", 10)
	v.SetDefault("max_body_bytes", int64(1<<20))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("listen_addr", "SALA_LISTEN_ADDR")
	_ = v.BindEnv("database.dsn", "SALA_PG_DSN")
	_ = v.BindEnv("auth.secret", "SALA_AUTH_SECRET")

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return Config{}, errors.New("config: auth.secret/SALA_AUTH_SECRET is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return Config{}, errors.New("config: database.dsn/SALA_PG_DSN is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return Config{}, errors.New("config: auth.token_ttl must be positive")
	}
	return c, nil
}
