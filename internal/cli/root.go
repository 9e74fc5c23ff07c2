// Package cli provides the command-line interface for trustfetch.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/certstore"
	"github.com/princespaghetti/trustfetch/internal/config"
	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
	"github.com/princespaghetti/trustfetch/internal/fetcher"
	"github.com/princespaghetti/trustfetch/internal/log"
	"github.com/princespaghetti/trustfetch/internal/trust"
)

// Version information (will be set by build flags in production).
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before every command runs.
	cfg = config.Default()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "trustfetch",
	Short: "Download files over HTTPS with the right CA bundle",
	Long: `trustfetch downloads files over HTTPS, verifying servers against the CA
bundle your environment selects.

The bundle is chosen the same way on every call:
  1. $SSL_CERT_FILE, if it is set
  2. otherwise ~/.certs/ca-bundle.crt
  3. if the chosen file does not exist, the system trust store

trustfetch also manages ~/.certs: a combined bundle made of a base bundle
plus your own certificates (corporate proxies, internal CAs).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		Info("trustfetch version %s", Version)
		Info("  commit: %s", GitCommit)
		Info("  built:  %s", BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.certs/config.toml)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

// setup wires output, loads configuration and configures logging.
func setup(cmd *cobra.Command, args []string) error {
	stdout = cmd.OutOrStdout()
	stderr = cmd.ErrOrStderr()

	loaded, err := loadConfig()
	if err != nil {
		return fail(tferrors.ExitConfigError, err, "")
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if logFormat != "" {
		loaded.Logging.Format = logFormat
	}
	if err := loaded.Validate(); err != nil {
		return fail(tferrors.ExitConfigError, fmt.Errorf("invalid configuration: %w", err), "")
	}
	if err := log.Configure(loaded.Logging.Format, loaded.Logging.Level); err != nil {
		return fail(tferrors.ExitConfigError, err, "")
	}

	cfg = loaded
	return nil
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.Load(strings.NewReader(""))
		}
		path = config.DefaultPath(home)
	} else if _, err := os.Stat(path); err != nil {
		return config.Config{}, fmt.Errorf("config file: %w", err)
	}
	return config.LoadFile(path)
}

// openStore returns the default store, mapping failures to a config error.
func openStore() (*certstore.Store, error) {
	store, err := certstore.NewStore("")
	if err != nil {
		return nil, fail(tferrors.ExitConfigError, fmt.Errorf("failed to open store: %w", err), "")
	}
	return store, nil
}

// openInitializedStore is openStore for commands that need an initialized store.
func openInitializedStore() (*certstore.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	if !store.IsInitialized() {
		return nil, errNotInitialized()
	}
	return store, nil
}

// resolvedFetcher is a fetcher whose client verifies servers against the
// resolved CA bundle.
type resolvedFetcher struct {
	*fetcher.Fetcher
	Resolution trust.Resolution
}

// newResolvedFetcher resolves the CA bundle for this process and builds a
// fetcher on top of it.
func newResolvedFetcher() (*resolvedFetcher, error) {
	resolution := trust.NewResolver().ResolveProcess()

	client, err := trust.NewHTTPClient(resolution.Verify, trust.ClientOptions{Timeout: cfg.Timeout()})
	if err != nil {
		return nil, fail(tferrors.ExitCertError, fmt.Errorf("load CA bundle %s: %w", resolution.Verify, err),
			"Check $SSL_CERT_FILE or run 'trustfetch doctor'")
	}

	return &resolvedFetcher{
		Fetcher:    fetcher.NewFetcher(client, cfg.UserAgent),
		Resolution: resolution,
	}, nil
}

// Execute runs the root command and exits with the mapped exit code on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}

	Error("%v", err)
	var ee *exitError
	if errors.As(err, &ee) && ee.hint != "" {
		_, _ = fmt.Fprintln(stderr, ee.hint)
	}
	os.Exit(exitCode(err))
}
