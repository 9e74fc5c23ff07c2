package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/certstore"
	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
)

var (
	bundleJSON bool
	bundleURL  string
	bundleYes  bool
)

// bundleCmd represents the bundle command.
var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Base CA bundle management commands",
	Long: `Manage the base CA bundle the combined bundle is built from.

Commands:
  info   - Display information about the base bundle
  update - Download the Mozilla CA bundle and make it the base bundle

Examples:
  trustfetch bundle info
  trustfetch bundle info --json
  trustfetch bundle update
  trustfetch bundle update --url https://mirror.corp.example/cacert.pem`,
}

// bundleInfoCmd represents the bundle info command.
var bundleInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display base bundle information",
	Args:  cobra.NoArgs,
	RunE:  runBundleInfo,
}

// bundleUpdateCmd represents the bundle update command.
var bundleUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the Mozilla CA bundle and use it as the base bundle",
	Long: `Download the Mozilla CA bundle and replace the base bundle with it.

The download is verified against the resolved CA bundle, like every other
trustfetch download. The new bundle is:
  1. Checked for valid PEM data and a minimum certificate count
  2. Compared with the current base bundle (a drop of more than 20% asks
     for confirmation unless --yes is given)
  3. Written atomically, after which the combined bundle is rebuilt

Examples:
  trustfetch bundle update
  trustfetch bundle update --url https://mirror.corp.example/cacert.pem --yes`,
	Args: cobra.NoArgs,
	RunE: runBundleUpdate,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.AddCommand(bundleInfoCmd)
	bundleCmd.AddCommand(bundleUpdateCmd)

	bundleInfoCmd.Flags().BoolVar(&bundleJSON, "json", false, "Output in JSON format")

	bundleUpdateCmd.Flags().StringVar(&bundleURL, "url", "", "URL to download the bundle from (default from config)")
	bundleUpdateCmd.Flags().BoolVarP(&bundleYes, "yes", "y", false, "Do not ask for confirmation")
}

// BundleInfoOutput represents the output of the bundle info command.
type BundleInfoOutput struct {
	Source    string    `json:"source"`
	Version   string    `json:"version,omitempty"`
	CertCount int       `json:"cert_count"`
	SHA256    string    `json:"sha256"`
	Generated time.Time `json:"generated"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
	FilePath  string    `json:"file_path"`
}

func runBundleInfo(cmd *cobra.Command, args []string) error {
	store, err := openInitializedStore()
	if err != nil {
		return err
	}

	output, err := gatherBundleInfo(store)
	if err != nil {
		return err
	}

	if bundleJSON {
		return JSON(output)
	}

	Header("Base CA Bundle")
	Field("Source", output.Source)
	if output.Version != "" {
		Field("Version", output.Version)
	}
	Field("Certificates", fmt.Sprintf("%d", output.CertCount))
	if output.SizeBytes > 0 {
		Field("Size", FormatBytes(output.SizeBytes))
	}
	Field("Generated", FormatTime(output.Generated))
	Field("File Path", output.FilePath)
	Field("SHA256", output.SHA256)
	return nil
}

func gatherBundleInfo(store *certstore.Store) (BundleInfoOutput, error) {
	metadata, err := store.GetMetadata()
	if err != nil {
		return BundleInfoOutput{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	output := BundleInfoOutput{
		Source:    metadata.BaseBundle.Source,
		Version:   metadata.BaseBundle.Version,
		CertCount: metadata.BaseBundle.CertCount,
		SHA256:    metadata.BaseBundle.SHA256,
		Generated: metadata.BaseBundle.Generated,
		FilePath:  store.BaseBundlePath(),
	}
	if info, err := os.Stat(output.FilePath); err == nil {
		output.SizeBytes = info.Size()
	}
	return output, nil
}

func runBundleUpdate(cmd *cobra.Command, args []string) error {
	store, err := openInitializedStore()
	if err != nil {
		return err
	}

	metadata, err := store.GetMetadata()
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	currentCount := metadata.BaseBundle.CertCount

	url := bundleURL
	if url == "" {
		url = cfg.MozillaURL
	}

	Info("Downloading Mozilla CA bundle from %s...", url)

	ctx := cmd.Context()
	data, result, err := downloadMozillaBundle(ctx, url, currentCount)
	if err != nil {
		return err
	}

	if result.Warning != "" {
		Warning("%s", result.Warning)
		if !bundleYes && !ConfirmPrompt(cmd.InOrStdin(), "Replace the base bundle anyway?") {
			return fail(tferrors.ExitCertError, fmt.Errorf("bundle update aborted"), "")
		}
	}

	version := ""
	if result.HasBundleDate {
		version = result.BundleDate.Format("2006-01-02")
	}

	err = store.ReplaceBase(ctx, data, certstore.BundleInfo{Source: url, Version: version})
	if err != nil {
		return fmt.Errorf("failed to replace base bundle: %w", err)
	}

	Success("Bundle updated")
	FieldIndented("Downloaded from", url, 2)
	if result.HasBundleDate {
		FieldIndented("Mozilla date", result.BundleDate.Format("January 2, 2006"), 2)
	}
	FieldIndented("Certificates", formatCountChange(result.CertCount, currentCount), 2)
	return nil
}

func formatCountChange(count, previous int) string {
	if previous <= 0 {
		return fmt.Sprintf("%d", count)
	}
	switch diff := count - previous; {
	case diff > 0:
		return fmt.Sprintf("%d (+%d from previous)", count, diff)
	case diff < 0:
		return fmt.Sprintf("%d (%d from previous)", count, diff)
	default:
		return fmt.Sprintf("%d (no change)", count)
	}
}
