package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CYCLE_SERVER_ADDR.
const EnvPrefix = "CYCLE"

var defaults = map[string]any{
	"server.addr":               ":8080",
	"server.log_level":          "info",
	"database.url":              "",
	"auth.session_ttl":          "720h",
	"auth.verification_secret":  "",
	"auth.verification_ttl":     "24h",
	"auth.resend_cooldown":      "30s",
	"auth.base_url":             "http://localhost:8080",
	"auth.forward_auth":         false,
	"oidc.enabled":              false,
	"oidc.issuer_url":           "",
	"oidc.client_id":            "",
	"oidc.client_secret":        "",
	"oidc.redirect_url":         "",
	"mail.driver":               "log",
	"mail.from":                 "",
	"mail.region":               "",
	"ratelimit.auth_per_minute": 10,
}

// Load reads configuration from a .env file, an optional YAML file and the
// environment, in increasing order of precedence. An empty configPath looks
// for config.yaml in the working directory.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
