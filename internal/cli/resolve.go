package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/trust"
)

var resolveJSON bool

// resolveCmd represents the resolve command.
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the CA bundle downloads will verify against",
	Long: `Print the verification setting trustfetch will use: the path of a CA
bundle, or "true" when the system trust store is used.

The source is printed to stderr so the value can be captured directly:

  export SSL_CERT_FILE="$(trustfetch resolve)"

Examples:
  trustfetch resolve
  trustfetch resolve --json`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Output in JSON format")
}

func runResolve(cmd *cobra.Command, args []string) error {
	resolution := trust.NewResolver().ResolveProcess()

	if resolveJSON {
		return JSON(resolution)
	}

	_, _ = fmt.Fprintln(stdout, resolution.Verify.String())
	_, _ = fmt.Fprintln(stderr, gray(describeSource(resolution)))
	return nil
}

// describeSource explains where a resolution came from.
func describeSource(r trust.Resolution) string {
	switch r.Source {
	case trust.SourceEnv:
		return "source: $" + trust.EnvCertFile
	case trust.SourceDefault:
		return "source: default bundle " + r.Candidate
	default:
		if r.Candidate != "" {
			return fmt.Sprintf("source: system trust store (%s does not exist)", r.Candidate)
		}
		return "source: system trust store"
	}
}
