package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/certstore"
	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
)

var (
	certName    string
	certForce   bool
	certStdin   bool
	certJSON    bool
	certExpired bool
)

// certCmd represents the cert command group.
var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Certificate management commands",
	Long: `Manage user certificates in the certificate store.

User certificates are appended to the base bundle to form ~/.certs/ca-bundle.crt.`,
}

// certAddCmd represents the cert add command.
var certAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Add a certificate to the store",
	Long: `Add a certificate to the user certificate store.

The certificate will be validated before being added. By default, expired
certificates are rejected. Use --force to add expired certificates. Adding a
certificate under an existing name replaces it.

Use --stdin to read the certificate from standard input instead of a file.

Examples:
  trustfetch cert add /path/to/cert.pem --name corporate
  trustfetch cert add proxy-cert.pem --name proxy --force
  curl https://internal.corp.example/ca.crt | trustfetch cert add --stdin --name internal`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCertAdd,
}

// certListCmd represents the cert list command.
var certListCmd = &cobra.Command{
	Use:   "list",
	Short: "List certificates in the store",
	Long: `List all user certificates in the certificate store.

Examples:
  trustfetch cert list
  trustfetch cert list --json
  trustfetch cert list --expired`,
	Args: cobra.NoArgs,
	RunE: runCertList,
}

// certRemoveCmd represents the cert remove command.
var certRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a certificate from the store",
	Long: `Remove a user certificate by name and rebuild the combined bundle.

Examples:
  trustfetch cert remove corporate`,
	Args: cobra.ExactArgs(1),
	RunE: runCertRemove,
}

// certInspectCmd represents the cert inspect command.
var certInspectCmd = &cobra.Command{
	Use:   "inspect <name>",
	Short: "Show detailed information about a certificate",
	Long: `Display the subject, expiration date, fingerprint and path of a user certificate.

Examples:
  trustfetch cert inspect corporate
  trustfetch cert inspect proxy --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCertInspect,
}

func init() {
	rootCmd.AddCommand(certCmd)

	certCmd.AddCommand(certAddCmd)
	certCmd.AddCommand(certListCmd)
	certCmd.AddCommand(certRemoveCmd)
	certCmd.AddCommand(certInspectCmd)

	certAddCmd.Flags().StringVar(&certName, "name", "", "Certificate name (required)")
	certAddCmd.Flags().BoolVar(&certForce, "force", false, "Force add even if expired")
	certAddCmd.Flags().BoolVar(&certStdin, "stdin", false, "Read certificate from stdin")
	_ = certAddCmd.MarkFlagRequired("name")

	certListCmd.Flags().BoolVar(&certJSON, "json", false, "Output in JSON format")
	certListCmd.Flags().BoolVar(&certExpired, "expired", false, "Show only expired certificates")

	certInspectCmd.Flags().BoolVar(&certJSON, "json", false, "Output in JSON format")
}

func runCertAdd(cmd *cobra.Command, args []string) error {
	data, from, err := readCertInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	store, err := openInitializedStore()
	if err != nil {
		return err
	}

	Info("Adding certificate '%s' from %s...", certName, from)

	if err := store.AddCertData(cmd.Context(), data, certName, certForce); err != nil {
		switch {
		case tferrors.IsError(err, tferrors.ErrCertExpired):
			return fail(tferrors.ExitCertError, err, "Use --force to add expired certificates")
		case tferrors.IsError(err, tferrors.ErrInvalidName):
			return fail(tferrors.ExitConfigError, err, "")
		}
		return fmt.Errorf("failed to add certificate: %w", err)
	}

	info, err := store.GetCertInfo(certName)
	if err != nil {
		// Added but unreadable; still a success.
		Success("Certificate '%s' added", certName)
		return nil
	}

	Success("Certificate '%s' added", certName)
	FieldIndented("Subject", info.Subject, 2)
	FieldIndented("Fingerprint", info.Fingerprint, 2)
	FieldIndented("Expires", info.Expires.Format(timeLayout), 2)
	FieldIndented("Path", info.Path, 2)
	EmptyLine()
	Info("Combined bundle rebuilt: %s", store.BundlePath())
	return nil
}

// readCertInput returns the certificate bytes from stdin or the path argument.
func readCertInput(in io.Reader, args []string) ([]byte, string, error) {
	if certStdin {
		if len(args) > 0 {
			return nil, "", fail(tferrors.ExitConfigError, fmt.Errorf("cannot specify both --stdin and a file path"), "")
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		if len(data) == 0 {
			return nil, "", fail(tferrors.ExitConfigError, fmt.Errorf("no certificate data provided on stdin"), "")
		}
		return data, "stdin", nil
	}

	if len(args) == 0 {
		return nil, "", fail(tferrors.ExitConfigError, fmt.Errorf("certificate path required"),
			"Usage: trustfetch cert add <path> --name <name>\n   or: trustfetch cert add --stdin --name <name>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("failed to read certificate: %w", err)
	}
	return data, args[0], nil
}

func runCertList(cmd *cobra.Command, args []string) error {
	store, err := openInitializedStore()
	if err != nil {
		return err
	}

	certs, err := store.ListCerts()
	if err != nil {
		return fmt.Errorf("failed to list certificates: %w", err)
	}

	now := time.Now()
	if certExpired {
		filtered := []certstore.UserCertInfo{}
		for _, cert := range certs {
			if cert.Expired(now) {
				filtered = append(filtered, cert)
			}
		}
		certs = filtered
	}

	if certJSON {
		return JSON(certs)
	}

	if len(certs) == 0 {
		if certExpired {
			Info("No expired certificates found")
		} else {
			Info("No user certificates in store")
			EmptyLine()
			Info("Add certificates with: trustfetch cert add <path> --name <name>")
		}
		return nil
	}

	Info("User Certificates (%d)", len(certs))
	EmptyLine()

	table := NewTable("NAME", "SUBJECT", "EXPIRES", "STATUS")
	for _, cert := range certs {
		status := "Valid"
		if cert.Expired(now) {
			status = "EXPIRED"
		}
		table.AddRow(cert.Name, TruncateString(cert.Subject, 40), cert.Expires.Format("2006-01-02 15:04"), status)
	}
	table.Print()

	return nil
}

func runCertRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := openInitializedStore()
	if err != nil {
		return err
	}

	if err := store.RemoveCert(cmd.Context(), name); err != nil {
		if tferrors.IsError(err, tferrors.ErrCertNotFound) {
			return fail(tferrors.ExitCertError, fmt.Errorf("certificate '%s' not found", name),
				"Use 'trustfetch cert list' to see available certificates")
		}
		return fmt.Errorf("failed to remove certificate: %w", err)
	}

	Success("Certificate '%s' removed", name)
	Info("Combined bundle rebuilt: %s", store.BundlePath())
	return nil
}

func runCertInspect(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := openInitializedStore()
	if err != nil {
		return err
	}

	info, err := store.GetCertInfo(name)
	if err != nil {
		if tferrors.IsError(err, tferrors.ErrCertNotFound) {
			return fail(tferrors.ExitCertError, fmt.Errorf("certificate '%s' not found", name),
				"Use 'trustfetch cert list' to see available certificates")
		}
		return fmt.Errorf("failed to get certificate info: %w", err)
	}

	if certJSON {
		return JSON(info)
	}

	Header("Certificate: " + info.Name)
	Field("Subject", info.Subject)
	Field("Fingerprint", info.Fingerprint)
	Field("Expires", info.Expires.Format(timeLayout))
	Field("Added", FormatTime(info.Added))
	Field("Path", store.UserCertPath(info.Name))

	EmptyLine()
	if info.Expired(time.Now()) {
		Field("Status", red("EXPIRED"))
	} else {
		days := int(time.Until(info.Expires).Hours() / 24)
		Field("Status", green(fmt.Sprintf("Valid (%d days until expiry)", days)))
	}

	return nil
}
