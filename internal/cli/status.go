package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/certstore"
	"github.com/princespaghetti/trustfetch/internal/shell"
	"github.com/princespaghetti/trustfetch/internal/trust"
)

var statusJSON bool

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display certificate store and trust resolution status",
	Long: `Display information about the certificate store and the CA bundle downloads
would use, without making network connections.

Examples:
  trustfetch status
  trustfetch status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
}

// StatusOutput represents the structured output of the status command.
type StatusOutput struct {
	Trust          TrustStatus          `json:"trust"`
	StoreLocation  string               `json:"store_location"`
	Initialized    bool                 `json:"initialized"`
	UserCerts      UserCertsStatus      `json:"user_certificates"`
	CombinedBundle CombinedBundleStatus `json:"combined_bundle"`
	BaseBundle     BaseBundleStatus     `json:"base_bundle"`
	EnvFile        EnvFileStatus        `json:"env_file"`
}

// TrustStatus is the resolved verification setting.
type TrustStatus struct {
	trust.Resolution
	// UsesStore is true when downloads verify against the store's combined bundle.
	UsesStore bool `json:"uses_store"`
}

// UserCertsStatus represents user certificate information.
type UserCertsStatus struct {
	Count int                      `json:"count"`
	Certs []certstore.UserCertInfo `json:"certs,omitempty"`
}

// CombinedBundleStatus represents combined bundle information.
type CombinedBundleStatus struct {
	Path      string    `json:"path"`
	CertCount int       `json:"cert_count"`
	Generated time.Time `json:"generated"`
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	Sources   []string  `json:"sources"`
}

// BaseBundleStatus represents base bundle information.
type BaseBundleStatus struct {
	Source    string    `json:"source"`
	Version   string    `json:"version,omitempty"`
	CertCount int       `json:"cert_count"`
	Generated time.Time `json:"generated"`
}

// EnvFileStatus represents environment file information.
type EnvFileStatus struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	status := gatherStatus(store, trust.NewResolver().ResolveProcess())

	if statusJSON {
		return JSON(status)
	}
	printStatusHuman(status)
	return nil
}

// gatherStatus collects status information from the store and a resolution.
func gatherStatus(store *certstore.Store, resolution trust.Resolution) StatusOutput {
	status := StatusOutput{
		Trust: TrustStatus{
			Resolution: resolution,
			UsesStore:  resolution.Verify.Path == store.BundlePath(),
		},
		StoreLocation: store.BasePath(),
		Initialized:   store.IsInitialized(),
	}

	if !status.Initialized {
		return status
	}

	if userCerts, err := store.ListCerts(); err == nil {
		status.UserCerts.Count = len(userCerts)
		status.UserCerts.Certs = userCerts
	}

	if metadata, err := store.GetMetadata(); err == nil {
		bundlePath := store.BundlePath()
		status.CombinedBundle = CombinedBundleStatus{
			Path:      bundlePath,
			CertCount: metadata.CombinedBundle.CertCount,
			Generated: metadata.CombinedBundle.Generated,
			SHA256:    metadata.CombinedBundle.SHA256,
			Sources:   metadata.CombinedBundle.Sources,
		}
		if info, err := os.Stat(bundlePath); err == nil {
			status.CombinedBundle.SizeBytes = info.Size()
		}

		status.BaseBundle = BaseBundleStatus{
			Source:    metadata.BaseBundle.Source,
			Version:   metadata.BaseBundle.Version,
			CertCount: metadata.BaseBundle.CertCount,
			Generated: metadata.BaseBundle.Generated,
		}
	}

	envPath := shell.EnvFilePath(store.BasePath())
	_, err := os.Stat(envPath)
	status.EnvFile = EnvFileStatus{
		Exists: err == nil,
		Path:   envPath,
	}

	return status
}

// printStatusHuman prints the status in a human-readable format.
func printStatusHuman(status StatusOutput) {
	Header("trustfetch Status")

	Subheader("Trust Resolution")
	Field("Verify", status.Trust.Verify.String())
	Field("Source", strings.TrimPrefix(describeSource(status.Trust.Resolution), "source: "))
	EmptyLine()

	Subheader("Certificate Store")
	Field("Location", status.StoreLocation)
	Field("Initialized", fmt.Sprintf("%v", status.Initialized))
	EmptyLine()

	if !status.Initialized {
		Info("Store is not initialized. Run 'trustfetch init' to initialize.")
		return
	}

	Subheader("User Certificates")
	Field("Count", fmt.Sprintf("%d", status.UserCerts.Count))
	for _, cert := range status.UserCerts.Certs {
		Info("  - %s", cert.Name)
		FieldIndented("Subject", cert.Subject, 4)
		FieldIndented("Expires", cert.Expires.Format(timeLayout), 4)
	}
	EmptyLine()

	Subheader("Combined Bundle")
	Field("Path", status.CombinedBundle.Path)
	Field("Certificates", fmt.Sprintf("%d", status.CombinedBundle.CertCount))
	if len(status.CombinedBundle.Sources) > 0 {
		Field("Sources", strings.Join(status.CombinedBundle.Sources, ", "))
	}
	if status.CombinedBundle.SizeBytes > 0 {
		Field("Size", FormatBytes(status.CombinedBundle.SizeBytes))
	}
	Field("Generated", FormatTime(status.CombinedBundle.Generated))
	EmptyLine()

	Subheader("Base Bundle")
	Field("Source", status.BaseBundle.Source)
	if status.BaseBundle.Version != "" {
		Field("Version", status.BaseBundle.Version)
	}
	Field("Certificates", fmt.Sprintf("%d", status.BaseBundle.CertCount))
	Field("Generated", FormatTime(status.BaseBundle.Generated))
	EmptyLine()

	Subheader("Environment File")
	Field("Path", status.EnvFile.Path)
	Field("Exists", fmt.Sprintf("%v", status.EnvFile.Exists))
	if !status.EnvFile.Exists {
		Warning("env.sh not found. Run 'trustfetch env' to regenerate it.")
	}
	if !status.Trust.UsesStore {
		EmptyLine()
		Info("Note: downloads are not using the store bundle (%s).", status.Trust.Verify)
	}
}
