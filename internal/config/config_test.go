package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princespaghetti/trustfetch/internal/fetcher"
	"github.com/princespaghetti/trustfetch/internal/testhelper"
)

func TestLoad(t *testing.T) {
	tmpFile := strings.NewReader(`
user_agent = "corp-agent/2.0"
timeout_seconds = 15
concurrency = 8
mozilla_url = "https://mirror.corp.example/cacert.pem"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, Config{
		UserAgent:      "corp-agent/2.0",
		TimeoutSeconds: 15,
		Concurrency:    8,
		MozillaURL:     "https://mirror.corp.example/cacert.pem",
		Logging:        Logging{Level: "debug", Format: "json"},
	}, cfg)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, fetcher.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 60, cfg.TimeoutSeconds)
	assert.Equal(t, fetcher.DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, fetcher.DefaultMozillaBundleURL, cfg.MozillaURL)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRUSTFETCH_USER_AGENT", "from-env")
	t.Setenv("TRUSTFETCH_TIMEOUT_SECONDS", "5")
	t.Setenv("TRUSTFETCH_LOGGING_LEVEL", "info")

	cfg, err := Load(strings.NewReader(`
user_agent = "from-file"
timeout_seconds = 30
concurrency = 2
`))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.UserAgent)
	assert.Equal(t, 5, cfg.TimeoutSeconds)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader("timeout_seconds = "))
	assert.Error(t, err)

	t.Setenv("TRUSTFETCH_CONCURRENCY", "many")
	_, err = Load(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "envconfig")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFile(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := testhelper.WriteFile(t, dir, FileName, []byte("concurrency = 3\n"))
	cfg, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Concurrency)

	bad := testhelper.WriteFile(t, dir, "bad.toml", []byte("[logging\n"))
	_, err = LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "negative timeout", modify: func(c *Config) { c.TimeoutSeconds = -1 }, wantErr: "timeout_seconds"},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, wantErr: "concurrency"},
		{name: "too much concurrency", modify: func(c *Config) { c.Concurrency = MaxConcurrency + 1 }, wantErr: "concurrency"},
		{name: "ftp mozilla url", modify: func(c *Config) { c.MozillaURL = "ftp://example.com/cacert.pem" }, wantErr: "mozilla_url"},
		{name: "unknown log format", modify: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "json log format", modify: func(c *Config) { c.Logging.Format = "json" }},
		{name: "unknown log level", modify: func(c *Config) { c.Logging.Level = "chatty" }, wantErr: "logging.level"},
		{name: "empty log level", modify: func(c *Config) { c.Logging.Level = "" }},
		{name: "debug log level", modify: func(c *Config) { c.Logging.Level = "DEBUG" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/home/dev", ".certs", "config.toml"), DefaultPath("/home/dev"))
}
