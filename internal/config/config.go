// Package config loads trustfetch settings from an optional TOML file and
// TRUSTFETCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/pelletier/go-toml"

	"github.com/princespaghetti/trustfetch/internal/fetcher"
	"github.com/princespaghetti/trustfetch/internal/trust"
)

// EnvPrefix is the prefix of environment variables that override the file.
const EnvPrefix = "trustfetch"

// FileName is the name of the config file inside the store directory.
const FileName = "config.toml"

// MaxConcurrency caps the number of parallel downloads.
const MaxConcurrency = 64

// Config holds the settings derived from config.toml and the environment.
type Config struct {
	UserAgent      string  `toml:"user_agent" split_words:"true"`
	TimeoutSeconds int     `toml:"timeout_seconds" split_words:"true"`
	Concurrency    int     `toml:"concurrency"`
	MozillaURL     string  `toml:"mozilla_url" split_words:"true"`
	Logging        Logging `toml:"logging" envconfig:"logging"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultPath returns ~/.certs/config.toml for the given home directory.
func DefaultPath(home string) string {
	return filepath.Join(home, trust.DefaultBundleDir, FileName)
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.setDefaults()
	return cfg
}

// Load reads TOML from r and applies environment overrides and defaults.
// Environment variables take precedence over the file.
func Load(r io.Reader) (Config, error) {
	var cfg Config

	if err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("load toml: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("envconfig: %w", err)
	}

	cfg.setDefaults()

	return cfg, nil
}

// LoadFile loads the config file at path. A missing file is not an error;
// the environment and defaults still apply.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Load(strings.NewReader(""))
	}
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.UserAgent == "" {
		cfg.UserAgent = fetcher.DefaultUserAgent
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = int(trust.DefaultTimeout / time.Second)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = fetcher.DefaultConcurrency
	}
	if cfg.MozillaURL == "" {
		cfg.MozillaURL = fetcher.DefaultMozillaBundleURL
	}
}

// Validate checks the configuration for sanity.
func (cfg *Config) Validate() error {
	for _, run := range []func() error{
		cfg.validateTimeout,
		cfg.validateConcurrency,
		cfg.validateMozillaURL,
		cfg.validateLogging,
	} {
		if err := run(); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *Config) validateTimeout() error {
	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", cfg.TimeoutSeconds)
	}
	return nil
}

func (cfg *Config) validateConcurrency() error {
	if cfg.Concurrency < 1 || cfg.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d, got %d", MaxConcurrency, cfg.Concurrency)
	}
	return nil
}

func (cfg *Config) validateMozillaURL() error {
	u, err := url.Parse(cfg.MozillaURL)
	if err != nil {
		return fmt.Errorf("mozilla_url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("mozilla_url must be an http(s) URL, got %q", cfg.MozillaURL)
	}
	return nil
}

func (cfg *Config) validateLogging() error {
	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}

	if cfg.Logging.Level != "" {
		if _, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	return nil
}

// Timeout returns the request timeout as a duration.
func (cfg *Config) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}
