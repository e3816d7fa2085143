// Package config loads account and server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration indicates required settings are missing or invalid.
var ErrConfiguration = errors.New("invalid configuration")

// KeyringService is the keyring service name holding account passwords.
const KeyringService = "mail-mcp"

// IMAP holds mailbox server settings.
type IMAP struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	TLS         bool          `mapstructure:"tls"`
	TLSVerify   bool          `mapstructure:"tls_verify"`
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
}

// SMTP holds relay settings. An empty Host means delivery is not configured.
type SMTP struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Secure    bool   `mapstructure:"secure"`
	TLSVerify bool   `mapstructure:"tls_verify"`
}

// Config is built once at startup and shared read-only afterwards.
type Config struct {
	IMAP IMAP   `mapstructure:"imap"`
	SMTP SMTP   `mapstructure:"smtp"`
	From string `mapstructure:"from"`
}

// SecretStore looks up secrets that were not provided in the environment.
type SecretStore interface {
	Get(key string) (string, error)
}

// LoadEnvFile loads variables from path into the process environment.
// An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("godotenv.Load failed: %w", err)
	}
	return nil
}

// NewViper returns a viper instance bound to the supported environment variables.
func NewViper() *viper.Viper {
	v := viper.New()

	bindings := map[string]string{
		"imap.host":         "IMAP_HOST",
		"imap.port":         "IMAP_PORT",
		"imap.user":         "EMAIL_USER",
		"imap.password":     "EMAIL_PASSWORD",
		"imap.tls":          "IMAP_TLS",
		"imap.tls_verify":   "IMAP_TLS_VERIFY",
		"imap.auth_timeout": "IMAP_AUTH_TIMEOUT",
		"smtp.host":         "SMTP_HOST",
		"smtp.port":         "SMTP_PORT",
		"smtp.user":         "SMTP_USER",
		"smtp.password":     "SMTP_PASSWORD",
		"smtp.secure":       "SMTP_SECURE",
		"smtp.tls_verify":   "SMTP_TLS_VERIFY",
		"smtp.enabled":      "SMTP_ENABLED",
		"from":              "EMAIL_FROM",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.tls_verify", true)
	v.SetDefault("imap.auth_timeout", 10*time.Second)
	v.SetDefault("smtp.enabled", true)

	return v
}

// Load builds a Config from v, reading the optional config file first.
// secrets may be nil; it is only consulted when no password is set.
func Load(v *viper.Viper, configFile string, secrets SecretStore) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("v.ReadInConfig failed: %w", err)
		}
	}

	if err := normalizeAuthTimeout(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("v.Unmarshal failed: %w", err)
	}

	if cfg.IMAP.Password == "" && secrets != nil && cfg.IMAP.User != "" {
		password, err := secrets.Get(cfg.IMAP.User)
		if err == nil {
			cfg.IMAP.Password = password
		}
	}

	var missing []string
	if cfg.IMAP.User == "" {
		missing = append(missing, "EMAIL_USER")
	}
	if cfg.IMAP.Password == "" {
		missing = append(missing, "EMAIL_PASSWORD")
	}
	if cfg.IMAP.Host == "" {
		missing = append(missing, "IMAP_HOST")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s must be set", ErrConfiguration, strings.Join(missing, ", "))
	}

	applySMTPDefaults(cfg, v.GetBool("smtp.enabled"), v.IsSet("smtp.secure"))
	if cfg.SMTP.Host != "" && !v.IsSet("smtp.tls_verify") {
		cfg.SMTP.TLSVerify = cfg.IMAP.TLSVerify
	}

	if cfg.From == "" {
		cfg.From = cfg.IMAP.User
	}

	return cfg, nil
}

func applySMTPDefaults(cfg *Config, enabled, secureSet bool) {
	if !enabled {
		cfg.SMTP = SMTP{}
		return
	}

	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = cfg.IMAP.Host
	}
	if cfg.SMTP.User == "" {
		cfg.SMTP.User = cfg.IMAP.User
	}
	if cfg.SMTP.Password == "" {
		cfg.SMTP.Password = cfg.IMAP.Password
	}

	switch {
	case cfg.SMTP.Port == 0 && (cfg.SMTP.Secure || !secureSet):
		cfg.SMTP.Port = 465
		cfg.SMTP.Secure = true
	case cfg.SMTP.Port == 0:
		cfg.SMTP.Port = 587
	case !secureSet:
		cfg.SMTP.Secure = cfg.SMTP.Port == 465
	}
}

// normalizeAuthTimeout accepts a bare integer as milliseconds besides Go
// duration strings such as "10s".
func normalizeAuthTimeout(v *viper.Viper) error {
	raw := strings.TrimSpace(v.GetString("imap.auth_timeout"))
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	if ms < 0 {
		return fmt.Errorf("%w: IMAP_AUTH_TIMEOUT must not be negative", ErrConfiguration)
	}
	v.Set("imap.auth_timeout", time.Duration(ms)*time.Millisecond)
	return nil
}
