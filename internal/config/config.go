// Package config handles loading and validation of gravityctl configuration.
//
// Connection settings come from the environment with the GRAVITYCTL_ prefix
// and can be overridden per playbook. The password supports the _FILE
// suffix pattern for Docker secrets.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Defaults applied when neither the environment nor the playbook sets a
// value.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the resolved gravityctl configuration.
type Config struct {
	// URL is the base URL of the Pi-hole instance, e.g.
	// "http://pihole.lan".
	URL string

	// Password is the Pi-hole admin or application password. It is never
	// included in logs or task results.
	Password string

	// TLSSkipVerify disables certificate verification for self-signed
	// appliance certificates.
	TLSSkipVerify bool

	// Timeout bounds each API request.
	Timeout time.Duration

	// LogLevel is debug, info, warn, or error.
	LogLevel string

	// LogFormat is text or json.
	LogFormat string
}

// Load reads configuration from GRAVITYCTL_* environment variables.
// Nothing is required at this stage; the playbook may supply the
// connection settings instead.
func Load() (*Config, error) {
	cfg := &Config{
		URL:           getEnv("GRAVITYCTL_URL"),
		Password:      getEnvWithFileFallback("GRAVITYCTL_", "PASSWORD"),
		TLSSkipVerify: parseBool(getEnv("GRAVITYCTL_TLS_SKIP_VERIFY"), false),
		Timeout:       parseDuration(getEnv("GRAVITYCTL_TIMEOUT"), DefaultTimeout),
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
	}

	if v := getEnv("GRAVITYCTL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("GRAVITYCTL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings that are set; unset connection settings
// are allowed because the playbook may provide them.
func (c *Config) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("invalid GRAVITYCTL_URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid GRAVITYCTL_URL: scheme must be http or https, got %q", u.Scheme)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}

	return nil
}

// RequireConnection fails unless both URL and password are resolved, from
// the environment or from the playbook.
func (c *Config) RequireConnection() error {
	if c.URL == "" {
		return fmt.Errorf("no Pi-hole URL configured: set GRAVITYCTL_URL or the playbook url field")
	}
	if c.Password == "" {
		return fmt.Errorf("no Pi-hole password configured: set GRAVITYCTL_PASSWORD, GRAVITYCTL_PASSWORD_FILE, or the playbook password field")
	}
	return nil
}
