package exporter

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the exporter configuration, loaded from a TOML file.
type Config struct {
	// Listen is the address the exporter binds, e.g. ":9617".
	Listen string `toml:"listen"`

	// URL is the Pi-hole base URL to scrape.
	URL string `toml:"url"`

	// Password authenticates against the Pi-hole API. PasswordFile reads
	// it from a file instead; the file wins when both are set.
	Password     string `toml:"password"`
	PasswordFile string `toml:"password_file"`

	// TLSSkipVerify disables certificate verification.
	TLSSkipVerify bool `toml:"tls_skip_verify"`

	// ScrapeTimeout bounds one stats fetch, e.g. "10s".
	ScrapeTimeout duration `toml:"scrape_timeout"`
}

// duration wraps time.Duration for TOML string decoding ("10s", "1m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Exporter defaults.
const (
	DefaultListen        = ":9617"
	DefaultScrapeTimeout = 10 * time.Second
)

// LoadConfig reads and validates a TOML exporter configuration.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing exporter config: %w", err)
	}

	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.ScrapeTimeout.Duration <= 0 {
		cfg.ScrapeTimeout.Duration = DefaultScrapeTimeout
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("exporter config: url is required")
	}
	if cfg.PasswordFile != "" {
		content, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("reading password file: %w", err)
		}
		cfg.Password = strings.TrimSpace(string(content))
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("exporter config: password or password_file is required")
	}

	return &cfg, nil
}
