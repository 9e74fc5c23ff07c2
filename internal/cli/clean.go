package cli

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/certstore"
)

var (
	cleanFull  bool
	cleanForce bool
)

// cleanCmd represents the clean command.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up temporary files or remove the entire store",
	Long: `Clean up temporary files left by interrupted writes, or remove the store.

By default, removes only temporary files (*.tmp, *.lock) under ~/.certs.

Use --full to remove the certificate store (requires confirmation). Only files
trustfetch created are removed; anything else under ~/.certs is kept.
Afterwards downloads fall back to the system trust store unless
$SSL_CERT_FILE is set.

Examples:
  trustfetch clean                # Remove temp files only
  trustfetch clean --full         # Remove entire store (with confirmation)
  trustfetch clean --full --force # Remove entire store (no confirmation)`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanFull, "full", false, "Remove entire certificate store")
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "Skip confirmation prompts")
}

func runClean(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if cleanFull {
		return runFullCleanup(cmd.InOrStdin(), store)
	}
	return runTempCleanup(store.BasePath())
}

// findTempFiles returns every *.tmp and *.lock file below basePath.
func findTempFiles(basePath string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == basePath {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext == ".tmp" || ext == ".lock" {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

func runTempCleanup(basePath string) error {
	Info("Cleaning temporary files...")

	files, err := findTempFiles(basePath)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", basePath, err)
	}

	if len(files) == 0 {
		Success("No temporary files found")
		return nil
	}

	removed := 0
	for _, file := range files {
		if err := os.Remove(file); err != nil {
			Warning("Failed to remove %s: %v", file, err)
			continue
		}
		removed++
		Info("  Removed: %s", strings.TrimPrefix(file, basePath+string(filepath.Separator)))
	}

	Success("Removed %d temporary file(s)", removed)
	return nil
}

func runFullCleanup(in io.Reader, store *certstore.Store) error {
	basePath := store.BasePath()
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		Info("Certificate store does not exist")
		return nil
	}
	if !store.IsInitialized() {
		Info("No trustfetch store at %s; nothing removed", basePath)
		return nil
	}

	if !cleanForce {
		Warning("This will permanently delete the entire certificate store!")
		Field("Location", basePath)
		EmptyLine()
		Info("This will remove:")
		PrintList([]string{
			"All user certificates",
			"Base bundle",
			"Combined bundle (ca-bundle.crt)",
			"Metadata",
			"Environment file (env.sh)",
		})
		EmptyLine()
		_, _ = fmt.Fprint(stdout, "Are you sure you want to continue? Type 'yes' to confirm: ")

		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("error reading input: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			EmptyLine()
			Info("Aborted. Certificate store was not removed.")
			return nil
		}
	}

	if err := store.Destroy(); err != nil {
		return fmt.Errorf("failed to remove store: %w", err)
	}

	Success("Certificate store removed: %s", basePath)
	Info("To recreate the store, run: trustfetch init")
	return nil
}
