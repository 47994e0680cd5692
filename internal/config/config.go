// Package config loads the service configuration from the environment and an
// optional config file.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	OIDC      OIDCConfig      `mapstructure:"oidc"`
	Mail      MailConfig      `mapstructure:"mail" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig selects the storage backend. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains session and e-mail verification settings.
type AuthConfig struct {
	SessionTTL         time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	VerificationSecret string        `mapstructure:"verification_secret" validate:"required,min=32"`
	VerificationTTL    time.Duration `mapstructure:"verification_ttl" validate:"gt=0"`
	ResendCooldown     time.Duration `mapstructure:"resend_cooldown" validate:"gt=0"`
	BaseURL            string        `mapstructure:"base_url" validate:"required,url"`
	// ForwardAuth trusts the Remote-User header set by a reverse proxy.
	ForwardAuth bool `mapstructure:"forward_auth"`
}

// OIDCConfig enables single sign-on through an OpenID Connect provider.
type OIDCConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	IssuerURL    string `mapstructure:"issuer_url" validate:"required_if=Enabled true,omitempty,url"`
	ClientID     string `mapstructure:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string `mapstructure:"client_secret" validate:"required_if=Enabled true"`
	RedirectURL  string `mapstructure:"redirect_url" validate:"required_if=Enabled true,omitempty,url"`
}

// MailConfig selects how verification e-mails are delivered.
type MailConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=log ses"`
	From   string `mapstructure:"from" validate:"required_if=Driver ses,omitempty,email"`
	Region string `mapstructure:"region"`
}

// RateLimitConfig bounds unauthenticated auth endpoints per client IP.
type RateLimitConfig struct {
	AuthPerMinute int `mapstructure:"auth_per_minute" validate:"gte=0"`
}
