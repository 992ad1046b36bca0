// Package config provides application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/robalobadob/sitepick/internal/game"
)

// Config holds all application configuration, read from the environment.
type Config struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	Port         string `env:"PORT" envDefault:"5175"`
	DBPath       string `env:"DB_PATH" envDefault:"./data/sitepick.db"`
	ListingsFile string `env:"LISTINGS_FILE"` // empty → embedded dataset
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"sitepick_token"`
	SecureCookies  bool   `env:"SECURE_COOKIES" envDefault:"false"`

	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	LossDelay        time.Duration `env:"LOSS_DELAY" envDefault:"500ms"`
	FeedbackDuration time.Duration `env:"FEEDBACK_DURATION" envDefault:"1500ms"`
	AdvanceDelay     time.Duration `env:"ADVANCE_DELAY" envDefault:"1800ms"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that fields are set and mutually consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.CookieName == "" {
		return fmt.Errorf("COOKIE_NAME cannot be empty")
	}
	if c.JWTExpiresDays <= 0 {
		return fmt.Errorf("JWT_EXPIRES_DAYS must be > 0")
	}
	if c.IsProduction() && c.JWTSecret == "dev_secret_change_me" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if err := c.Timing().Validate(); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether APP_ENV=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// CookiesSecure reports whether cookies are marked Secure (and
// SameSite=None). SECURE_COOKIES turns it on outside production;
// production always has it.
func (c *Config) CookiesSecure() bool { return c.SecureCookies || c.IsProduction() }

// Timing returns the game delays.
func (c *Config) Timing() game.Timing {
	return game.Timing{
		LossDelay:        c.LossDelay,
		FeedbackDuration: c.FeedbackDuration,
		AdvanceDelay:     c.AdvanceDelay,
	}
}

// TokenTTL is the lifetime of auth tokens and cookies.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiresDays) * 24 * time.Hour
}
