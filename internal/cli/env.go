package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/shell"
)

// envCmd represents the env command.
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Generate or regenerate the environment configuration file",
	Long: `Generate or regenerate ~/.certs/env.sh, which points common tools at the
combined certificate bundle.

The env.sh file sets the following environment variables:
  - SSL_CERT_FILE (Python, Ruby, Go, curl, wget)
  - REQUESTS_CA_BUNDLE (Python requests)
  - NODE_EXTRA_CA_CERTS (Node.js, npm, yarn, pnpm)
  - CURL_CA_BUNDLE (curl, libcurl)
  - AWS_CA_BUNDLE (AWS CLI, boto3)
  - GIT_SSL_CAINFO (git)

To activate, add this to your shell config:
  source ~/.certs/env.sh`,
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func init() {
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	store, err := openInitializedStore()
	if err != nil {
		return err
	}

	envPath := shell.EnvFilePath(store.BasePath())
	if err := shell.GenerateEnvFile(store.BasePath(), store.BundlePath()); err != nil {
		return fmt.Errorf("failed to generate env.sh: %w", err)
	}

	Success("Environment file regenerated: %s", envPath)
	shell.PrintSetupInstructions(stdout, envPath)
	return nil
}
