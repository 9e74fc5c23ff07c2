package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/princespaghetti/trustfetch/internal/certstore"
	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
	"github.com/princespaghetti/trustfetch/internal/fetcher"
	"github.com/princespaghetti/trustfetch/internal/shell"
	"github.com/princespaghetti/trustfetch/internal/trust"
)

var (
	doctorVerbose bool
	doctorJSON    bool
)

// Check statuses.
const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

// doctorCmd represents the doctor command.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostics on trust resolution and the certificate store",
	Long: `Run diagnostics to identify problems with certificate verification.

Checks performed:
  - The resolved CA bundle loads and contains certificates
  - Store directory structure exists
  - Metadata file is valid JSON with correct schema
  - Base bundle exists and matches its recorded hash
  - Combined bundle exists and matches its recorded hash
  - User certificates exist and are not expired
  - env.sh exists and exports the expected variables
  - File permissions allow read access

Examples:
  trustfetch doctor
  trustfetch doctor --verbose
  trustfetch doctor --json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorVerbose, "verbose", false, "Show detailed diagnostic information")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output in JSON format")
}

// CheckResult represents the result of a single diagnostic check.
type CheckResult struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"` // "pass", "warn", "fail"
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (r *CheckResult) warn(issue string) {
	if r.Status != statusFail {
		r.Status = statusWarn
	}
	r.Issues = append(r.Issues, issue)
}

func (r *CheckResult) fail(issue string) {
	r.Status = statusFail
	r.Issues = append(r.Issues, issue)
}

// DoctorOutput represents the complete diagnostic output.
type DoctorOutput struct {
	Checks      []CheckResult `json:"checks"`
	Summary     Summary       `json:"summary"`
	OverallPass bool          `json:"overall_pass"`
}

// Summary contains counts of check results.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Failures int `json:"failures"`
}

var errDiagnosticsFailed = errors.New("diagnostics found problems")

func runDoctor(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	env, err := trust.LoadEnv()
	if err != nil {
		return fail(tferrors.ExitConfigError, err, "")
	}

	output := runChecks(cmd.Context(), store, env)

	if doctorJSON {
		if err := JSON(output); err != nil {
			return err
		}
	} else {
		printDoctorOutput(output)
	}

	if !output.OverallPass {
		return fail(tferrors.ExitGeneralError, errDiagnosticsFailed, "")
	}
	return nil
}

// runChecks runs every diagnostic that applies to the store's state.
func runChecks(ctx context.Context, store *certstore.Store, env trust.Env) DoctorOutput {
	results := []CheckResult{checkTrustResolution(store, env)}

	if store.IsInitialized() {
		results = append(results,
			checkStoreStructure(store),
			checkMetadata(store),
			checkBaseBundle(store),
			checkCombinedBundle(store),
			checkUserCertificates(ctx, store),
			checkEnvFile(store),
			checkFilePermissions(store),
		)
	} else {
		results = append(results, CheckResult{
			Name:        "Certificate store",
			Status:      statusWarn,
			Issues:      []string{fmt.Sprintf("Store not initialized at %s", store.BasePath())},
			Suggestions: []string{"Run 'trustfetch init' to create ~/.certs/ca-bundle.crt"},
		})
	}

	output := DoctorOutput{
		Checks:      results,
		Summary:     Summary{Total: len(results)},
		OverallPass: true,
	}
	for _, result := range results {
		switch result.Status {
		case statusPass:
			output.Summary.Passed++
		case statusWarn:
			output.Summary.Warnings++
		case statusFail:
			output.Summary.Failures++
			output.OverallPass = false
		}
	}
	return output
}

func printDoctorOutput(output DoctorOutput) {
	Header("trustfetch Diagnostics")

	for _, check := range output.Checks {
		Info("%s %s", StatusIcon(check.Status), check.Name)

		if doctorVerbose || check.Status != statusPass {
			for _, issue := range check.Issues {
				Info("  - %s", issue)
			}
		}
		if check.Status != statusPass {
			for _, suggestion := range check.Suggestions {
				Info("  → %s", suggestion)
			}
		}
		EmptyLine()
	}

	Subheader("Summary")
	Field("Total checks", fmt.Sprintf("%d", output.Summary.Total))
	Field("Passed", fmt.Sprintf("%d", output.Summary.Passed))
	if output.Summary.Warnings > 0 {
		Field("Warnings", fmt.Sprintf("%d", output.Summary.Warnings))
	}
	if output.Summary.Failures > 0 {
		Field("Failures", fmt.Sprintf("%d", output.Summary.Failures))
	}
	EmptyLine()

	switch {
	case !output.OverallPass:
		Info("Status: %s", red("FAIL"))
	case output.Summary.Warnings > 0:
		Info("Status: %s", yellow("PASS (with warnings)"))
	default:
		Info("Status: %s", green("PASS"))
	}
}

// checkTrustResolution verifies that the bundle downloads would use loads.
func checkTrustResolution(store *certstore.Store, env trust.Env) CheckResult {
	result := CheckResult{
		Name:   "Trust resolution",
		Status: statusPass,
	}

	resolution := trust.NewResolver().Resolve(env)
	result.Issues = append(result.Issues, fmt.Sprintf("Resolved to %s (%s)", resolution.Verify, describeSource(resolution)))

	if resolution.Verify.UseSystemRoots() {
		if strings.TrimSpace(env.CertFile) != "" {
			result.warn(fmt.Sprintf("$%s points to %s, which does not exist; the system trust store is used", trust.EnvCertFile, env.CertFile))
			result.Suggestions = append(result.Suggestions, fmt.Sprintf("Fix or unset $%s", trust.EnvCertFile))
		} else if store.IsInitialized() {
			result.warn(fmt.Sprintf("Store is initialized but %s is missing", store.BundlePath()))
			result.Suggestions = append(result.Suggestions, "Run 'trustfetch init --force' to rebuild the bundle")
		}
		return result
	}

	if _, err := trust.LoadCertPool(resolution.Verify.Path); err != nil {
		result.fail(fmt.Sprintf("Cannot load %s: %v", resolution.Verify.Path, err))
		result.Suggestions = append(result.Suggestions, "Every HTTPS download will fail until the bundle contains PEM certificates")
		return result
	}

	if resolution.Source == trust.SourceEnv && store.IsInitialized() && resolution.Verify.Path != store.BundlePath() {
		result.warn(fmt.Sprintf("$%s overrides the store bundle %s", trust.EnvCertFile, store.BundlePath()))
		result.Suggestions = append(result.Suggestions, "Source ~/.certs/env.sh to use the store bundle")
	}

	return result
}

// checkStoreStructure verifies the store directory structure exists.
func checkStoreStructure(store *certstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Store directory structure",
		Status: statusPass,
	}

	requiredDirs := []string{
		store.BasePath(),
		filepath.Join(store.BasePath(), "user"),
		filepath.Dir(store.BaseBundlePath()),
	}

	for _, dir := range requiredDirs {
		info, err := os.Stat(dir)
		switch {
		case os.IsNotExist(err):
			result.fail(fmt.Sprintf("Directory does not exist: %s", dir))
		case err != nil:
			result.fail(fmt.Sprintf("Cannot access directory: %s (%v)", dir, err))
		case !info.IsDir():
			result.fail(fmt.Sprintf("Path exists but is not a directory: %s", dir))
		}
	}

	if result.Status == statusFail {
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch init --force' to recreate the store structure")
	}

	return result
}

// checkMetadata verifies the metadata file is valid.
func checkMetadata(store *certstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Metadata integrity",
		Status: statusPass,
	}

	metadata, err := store.GetMetadata()
	if err != nil {
		result.fail(fmt.Sprintf("Cannot read metadata: %v", err))
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch init --force' to recreate metadata")
		return result
	}

	if metadata.BaseBundle.SHA256 == "" {
		result.fail("Base bundle info missing from metadata")
	}
	if metadata.CombinedBundle.SHA256 == "" {
		result.fail("Combined bundle info missing from metadata")
	}

	if result.Status == statusFail {
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch init --force'")
	}

	return result
}

// checkBaseBundle verifies the base bundle exists and matches metadata.
func checkBaseBundle(store *certstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Base CA bundle",
		Status: statusPass,
	}

	data, err := os.ReadFile(store.BaseBundlePath())
	if err != nil {
		result.fail(fmt.Sprintf("Cannot read base bundle: %v", err))
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch init --force' or 'trustfetch bundle update'")
		return result
	}

	certCount := fetcher.CountCertificates(data)
	if certCount == 0 {
		result.fail("No valid certificates found in base bundle")
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch init --force' or 'trustfetch bundle update'")
		return result
	}

	if certCount < fetcher.MinCertCount {
		result.warn(fmt.Sprintf("Base bundle has only %d certificates (public bundles have %d+)", certCount, fetcher.MinCertCount))
		result.Suggestions = append(result.Suggestions, "Public sites may fail to verify; consider 'trustfetch bundle update'")
	}

	if metadata, err := store.GetMetadata(); err == nil && fetcher.ComputeSHA256(data) != metadata.BaseBundle.SHA256 {
		result.fail("Base bundle SHA256 hash mismatch")
		result.Suggestions = append(result.Suggestions,
			"Bundle file has been modified outside of trustfetch",
			"Run 'trustfetch bundle update' or 'trustfetch init --force' to restore")
	}

	return result
}

// checkCombinedBundle verifies the combined bundle exists and matches metadata.
func checkCombinedBundle(store *certstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Combined certificate bundle",
		Status: statusPass,
	}

	data, err := os.ReadFile(store.BundlePath())
	if err != nil {
		result.fail(fmt.Sprintf("Cannot read combined bundle: %v", err))
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch init --force' to recreate")
		return result
	}

	if fetcher.CountCertificates(data) == 0 {
		result.fail("No valid certificates found in combined bundle")
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch init --force' to recreate the bundle")
		return result
	}

	if metadata, err := store.GetMetadata(); err == nil && fetcher.ComputeSHA256(data) != metadata.CombinedBundle.SHA256 {
		result.fail("Combined bundle SHA256 hash mismatch")
		result.Suggestions = append(result.Suggestions,
			"Bundle file has been modified outside of trustfetch",
			"Remove and re-add a user certificate, or run 'trustfetch init --force'")
	}

	return result
}

// checkUserCertificates verifies user certificates exist and are valid.
func checkUserCertificates(ctx context.Context, store *certstore.Store) CheckResult {
	result := CheckResult{
		Name:   "User certificates",
		Status: statusPass,
	}

	certs, err := store.ListCerts()
	if err != nil {
		result.warn(fmt.Sprintf("Cannot list certificates: %v", err))
		return result
	}

	if len(certs) == 0 {
		result.Issues = append(result.Issues, "No user certificates in store")
		return result
	}

	now := time.Now()
	expiredCount, missingCount := 0, 0

	for _, cert := range certs {
		if ctx.Err() != nil {
			result.warn("Check interrupted")
			return result
		}

		if _, err := os.Stat(store.UserCertPath(cert.Name)); os.IsNotExist(err) {
			result.fail(fmt.Sprintf("Certificate file missing: %s", cert.Name))
			missingCount++
			continue
		}

		if cert.Expired(now) {
			result.warn(fmt.Sprintf("Certificate expired: %s (expired %s)", cert.Name, cert.Expires.Format("2006-01-02")))
			expiredCount++
		}
	}

	if missingCount > 0 {
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Remove missing certificates or restore files (%d missing)", missingCount))
	}
	if expiredCount > 0 {
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Remove or update expired certificates (%d expired)", expiredCount))
	}

	return result
}

// checkEnvFile verifies the env.sh file exists and contains correct variables.
func checkEnvFile(store *certstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Environment file (env.sh)",
		Status: statusPass,
	}

	data, err := os.ReadFile(shell.EnvFilePath(store.BasePath()))
	if os.IsNotExist(err) {
		result.warn("env.sh file does not exist")
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch env' to generate env.sh")
		return result
	} else if err != nil {
		result.fail(fmt.Sprintf("Cannot read env.sh: %v", err))
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch env' to regenerate env.sh")
		return result
	}

	content := string(data)

	var missing []string
	for _, v := range shell.Variables {
		if !strings.Contains(content, "export "+v.Name+"=") {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		result.warn(fmt.Sprintf("env.sh is missing %d required variables", len(missing)))
		if doctorVerbose {
			result.Issues = append(result.Issues, fmt.Sprintf("Missing: %s", strings.Join(missing, ", ")))
		}
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch env' to regenerate env.sh")
	}

	if !strings.Contains(content, shell.Quote(filepath.ToSlash(store.BundlePath()))) {
		result.warn("env.sh does not point to the combined bundle")
		result.Suggestions = append(result.Suggestions, "Run 'trustfetch env' to regenerate env.sh")
	}

	return result
}

// checkFilePermissions verifies files are readable.
func checkFilePermissions(store *certstore.Store) CheckResult {
	result := CheckResult{
		Name:   "File permissions",
		Status: statusPass,
	}

	files := []string{
		filepath.Join(store.BasePath(), "metadata.json"),
		store.BaseBundlePath(),
		store.BundlePath(),
	}

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			// Missing files are reported by other checks.
			continue
		}
		if info.Mode().Perm()&0400 == 0 {
			result.fail(fmt.Sprintf("File is not readable: %s", file))
		}
	}

	if result.Status == statusFail {
		result.Suggestions = append(result.Suggestions, "Fix file permissions: chmod 644 <file>")
	}

	return result
}
