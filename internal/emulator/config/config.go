// Package config loads emulator settings from environment variables.
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v6"
)

// AuthConfig holds token issuing and password hashing settings.
type AuthConfig struct {
	// JWTSecret signs access tokens. The default is fine for local
	// development; anything reachable from outside localhost should set it.
	JWTSecret string `env:"EMULATOR_JWT_SECRET" envDefault:"local-dev-secret-change-me"`

	JWTIssuer string `env:"EMULATOR_JWT_ISSUER" envDefault:"linkvault-emulator"`

	AccessTokenTTL  time.Duration `env:"EMULATOR_ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"EMULATOR_REFRESH_TOKEN_TTL" envDefault:"720h"`

	BcryptCost int `env:"EMULATOR_BCRYPT_COST" envDefault:"10"`
}

// RedisConfig holds connection settings for the backing store.
type RedisConfig struct {
	Addr     string `env:"EMULATOR_REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"EMULATOR_REDIS_PASSWORD"`
	DB       int    `env:"EMULATOR_REDIS_DB" envDefault:"0"`

	ConnectTimeout time.Duration `env:"EMULATOR_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Config holds all configuration for the emulator process.
type Config struct {
	// ListenAddr matches the Supabase CLI's local API port by default so
	// client configs carry over unchanged.
	ListenAddr string `env:"EMULATOR_LISTEN_ADDR" envDefault:":54321"`

	// AnonKey is the publishable key clients must present on every request.
	AnonKey string `env:"EMULATOR_ANON_KEY" envDefault:"dev-anon-key"`

	LogLevel  string `env:"EMULATOR_LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"EMULATOR_LOG_PRETTY" envDefault:"true"`

	Auth  AuthConfig
	Redis RedisConfig
}

// LoadConfig loads configuration from environment variables and applies defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load emulator configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, errors.New("failed to load emulator auth configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, errors.New("failed to load emulator redis configuration from environment: " + err.Error())
	}

	if cfg.AnonKey == "" {
		return nil, errors.New("EMULATOR_ANON_KEY must not be empty")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("EMULATOR_JWT_SECRET must not be empty")
	}
	if cfg.Auth.AccessTokenTTL <= 0 {
		return nil, errors.New("EMULATOR_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.Auth.RefreshTokenTTL <= 0 {
		return nil, errors.New("EMULATOR_REFRESH_TOKEN_TTL must be positive")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return nil, errors.New("EMULATOR_BCRYPT_COST must be between 4 and 31")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("EMULATOR_REDIS_ADDR must not be empty")
	}

	return cfg, nil
}
