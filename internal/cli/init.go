package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/certstore"
	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
	"github.com/princespaghetti/trustfetch/internal/fetcher"
	"github.com/princespaghetti/trustfetch/internal/shell"
)

var (
	initForce   bool
	initFrom    string
	initMozilla bool
	initURL     string
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the certificate store",
	Long: `Initialize the certificate store at ~/.certs.

The base bundle is taken from, in order of preference:
  --from <file>   a local PEM bundle
  --mozilla       the Mozilla bundle downloaded from curl.se (or --url)
  (default)       the operating system's CA bundle

The following structure is created:
  ~/.certs/
    ca-bundle.crt      # combined bundle (base + user certificates)
    bundles/base.pem   # base bundle
    user/              # user-added certificates
    metadata.json      # store metadata
    env.sh             # shell environment file

Once ca-bundle.crt exists, downloads use it whenever $SSL_CERT_FILE is unset.

A ca-bundle.crt that already exists but was not created by trustfetch is
imported as the user certificate 'existing', so nothing it trusted is lost.

Use --force to reinitialize an existing store. User certificates are kept.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force initialization even if store already exists")
	initCmd.Flags().StringVar(&initFrom, "from", "", "Initialize from a local PEM bundle")
	initCmd.Flags().BoolVar(&initMozilla, "mozilla", false, "Download the Mozilla CA bundle")
	initCmd.Flags().StringVar(&initURL, "url", "", "URL of the Mozilla bundle (default from config)")
	initCmd.MarkFlagsMutuallyExclusive("from", "mozilla")
}

func runInit(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if store.IsInitialized() && !initForce {
		return fail(tferrors.ExitConfigError,
			fmt.Errorf("certificate store already initialized at %s", store.BasePath()),
			"Use --force to reinitialize")
	}

	ctx := cmd.Context()

	base, source, err := loadBaseBundle(ctx)
	if err != nil {
		return err
	}

	Info("Initializing certificate store at %s...", store.BasePath())
	if store.UnmanagedBundle() {
		Warning("%s was not created by trustfetch; its certificates are kept as user certificate '%s'",
			store.BundlePath(), certstore.ImportedBundleName)
	}

	if err := store.Init(ctx, base, source, initForce); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	if version := fetcher.BundleVersion(base); version != "" {
		err := store.UpdateMetadata(ctx, func(md *certstore.Metadata) error {
			md.BaseBundle.Version = version
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to record bundle version: %w", err)
		}
	}

	envPath := shell.EnvFilePath(store.BasePath())
	if err := shell.GenerateEnvFile(store.BasePath(), store.BundlePath()); err != nil {
		return fmt.Errorf("failed to generate env.sh: %w", err)
	}

	md, err := store.GetMetadata()
	if err != nil {
		return err
	}

	Success("Certificate store initialized")
	FieldIndented("Base bundle", fmt.Sprintf("%s (%d certificates)", source, md.BaseBundle.CertCount), 2)
	FieldIndented("Bundle", store.BundlePath(), 2)
	FieldIndented("Env file", envPath, 2)
	EmptyLine()
	Info("Next steps:")
	Info("  1. Add corporate certificates (if needed):")
	Info("     trustfetch cert add /path/to/cert.pem --name corporate")
	Info("  2. Point other tools at the bundle:")
	shell.PrintSetupInstructions(stdout, envPath)

	return nil
}

// loadBaseBundle returns the base bundle selected by the init flags and a
// description of where it came from.
func loadBaseBundle(ctx context.Context) ([]byte, string, error) {
	switch {
	case initFrom != "":
		data, err := os.ReadFile(initFrom)
		if err != nil {
			return nil, "", fail(tferrors.ExitConfigError, fmt.Errorf("failed to read bundle: %w", err), "")
		}
		return data, initFrom, nil

	case initMozilla:
		url := initURL
		if url == "" {
			url = cfg.MozillaURL
		}
		Info("Downloading Mozilla CA bundle from %s...", url)

		data, _, err := downloadMozillaBundle(ctx, url, 0)
		if err != nil {
			return nil, "", err
		}
		return data, url, nil

	default:
		path, err := certstore.FindSystemBundle()
		if err != nil {
			return nil, "", fail(tferrors.ExitConfigError, err,
				"Use --from <file> or --mozilla to choose a base bundle")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read system bundle: %w", err)
		}
		return data, path, nil
	}
}

// downloadMozillaBundle fetches and verifies a Mozilla bundle through the
// resolved CA bundle. currentCount is the size of the bundle being replaced.
func downloadMozillaBundle(ctx context.Context, url string, currentCount int) ([]byte, *fetcher.BundleVerificationResult, error) {
	f, err := newResolvedFetcher()
	if err != nil {
		return nil, nil, err
	}

	data, err := f.FetchMozillaBundle(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download bundle: %w", err)
	}

	result, err := fetcher.VerifyBundle(data, currentCount)
	if err != nil {
		return nil, nil, fail(tferrors.ExitCertError, fmt.Errorf("bundle verification failed: %w", err), "")
	}
	return data, result, nil
}
