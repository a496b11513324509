// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the complete server configuration.
type Config struct {
	Service   Service   `envPrefix:"SERVICE_"`
	Logging   Logging   `envPrefix:"LOG_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Sessions  Sessions  `envPrefix:"SESSION_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Password  Password  `envPrefix:"PASSWORD_"`
	Mail      Mail      `envPrefix:"MAIL_"`
	Tracing   Tracing   `envPrefix:"TRACING_"`
	Profiling Profiling `envPrefix:"PROFILING_"`
	Shutdown  Shutdown  `envPrefix:"SHUTDOWN_"`
}

type Service struct {
	Name    string `env:"NAME" envDefault:"idstore"`
	Version string `env:"VERSION" envDefault:"dev"`
	Env     string `env:"ENV" envDefault:"production"`
	Port    string `env:"PORT" envDefault:"51000"`
}

type Logging struct {
	Level   string `env:"LEVEL" envDefault:"info"`
	Console bool   `env:"CONSOLE" envDefault:"false"`
}

type Database struct {
	URL string `env:"URL"`
}

type Redis struct {
	// Addr enables Redis-backed rate limiting when set; empty means the
	// in-memory limiters are used.
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
}

type Sessions struct {
	UserTimeout  time.Duration `env:"USER_TIMEOUT" envDefault:"30m"`
	AdminTimeout time.Duration `env:"ADMIN_TIMEOUT" envDefault:"30m"`
}

type RateLimit struct {
	LoginTTL             time.Duration `env:"LOGIN_TTL" envDefault:"5s"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"10m"`
	EmailVerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"10m"`
}

type Password struct {
	MinLength int `env:"MIN_LENGTH" envDefault:"8"`
}

type Mail struct {
	SMTPHost           string        `env:"SMTP_HOST"`
	SMTPPort           int           `env:"SMTP_PORT" envDefault:"25"`
	From               string        `env:"FROM" envDefault:"no-reply@idstore.example.com"`
	VerificationExpiry time.Duration `env:"VERIFICATION_EXPIRY" envDefault:"48h"`
	ResetExpiry        time.Duration `env:"RESET_EXPIRY" envDefault:"1h"`
}

type Tracing struct {
	Enabled    bool    `env:"ENABLED" envDefault:"false"`
	Endpoint   string  `env:"ENDPOINT" envDefault:"http://localhost:4318"`
	SampleRate float64 `env:"SAMPLE_RATE" envDefault:"1.0"`
}

type Profiling struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Endpoint string `env:"ENDPOINT" envDefault:"http://localhost:4040"`
}

type Shutdown struct {
	Timeout             time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ReadinessDrainDelay time.Duration `env:"READINESS_DRAIN_DELAY" envDefault:"5s"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for configuration that would prevent startup.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Sessions.UserTimeout <= 0 || c.Sessions.AdminTimeout <= 0 {
		return errors.New("session timeouts must be positive")
	}
	if c.Password.MinLength < 1 {
		return errors.New("PASSWORD_MIN_LENGTH must be at least 1")
	}
	return nil
}
