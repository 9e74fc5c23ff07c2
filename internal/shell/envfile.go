// Package shell writes the env.sh file that points common developer tools at
// the managed CA bundle.
package shell

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// EnvFileName is the name of the generated shell file inside the store directory.
const EnvFileName = "env.sh"

// Variable is an environment variable exported by env.sh and the tools that read it.
type Variable struct {
	Name  string
	Tools string
}

// Variables lists what env.sh exports, in file order.
var Variables = []Variable{
	{Name: "SSL_CERT_FILE", Tools: "Python, Ruby, Go, curl, wget"},
	{Name: "REQUESTS_CA_BUNDLE", Tools: "Python requests"},
	{Name: "NODE_EXTRA_CA_CERTS", Tools: "Node.js, npm, yarn, pnpm"},
	{Name: "CURL_CA_BUNDLE", Tools: "curl, libcurl"},
	{Name: "AWS_CA_BUNDLE", Tools: "AWS CLI, boto3"},
	{Name: "GIT_SSL_CAINFO", Tools: "git"},
}

var envTemplate = template.Must(template.New("env.sh").Funcs(template.FuncMap{"quote": Quote}).Parse(`# Generated by trustfetch. Do not edit; run 'trustfetch env' to regenerate.
# Source this file from your shell profile:
#   source {{quote .EnvPath}}
{{range .Variables}}
# {{.Tools}}
export {{.Name}}={{quote $.BundlePath}}
{{end}}`))

// Quote returns s as a single-quoted POSIX shell word. Nothing inside it is
// expanded when the shell reads it.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// EnvFilePath returns the path of env.sh inside baseDir.
func EnvFilePath(baseDir string) string {
	return filepath.Join(baseDir, EnvFileName)
}

// GenerateEnvFile writes baseDir/env.sh exporting every variable in
// Variables as bundlePath. Backslashes in bundlePath are converted to
// forward slashes and paths are single-quoted. baseDir must already exist.
func GenerateEnvFile(baseDir, bundlePath string) error {
	envPath := EnvFilePath(baseDir)
	for _, p := range []string{envPath, bundlePath} {
		if strings.ContainsAny(p, "\n\r") {
			return fmt.Errorf("path %q contains a line break", p)
		}
	}

	var buf bytes.Buffer
	err := envTemplate.Execute(&buf, struct {
		EnvPath    string
		BundlePath string
		Variables  []Variable
	}{
		EnvPath:    toShellPath(envPath),
		BundlePath: toShellPath(bundlePath),
		Variables:  Variables,
	})
	if err != nil {
		return fmt.Errorf("render env.sh: %w", err)
	}

	tempPath := envPath + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write env.sh: %w", err)
	}
	if err := os.Rename(tempPath, envPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename env.sh: %w", err)
	}

	return nil
}

// PrintSetupInstructions tells the user how to source env.sh.
func PrintSetupInstructions(w io.Writer, envPath string) {
	shellPath := toShellPath(envPath)
	_, _ = fmt.Fprintf(w, "\nTo use the managed bundle in every shell, add this line to ~/.bashrc or ~/.zshrc:\n\n")
	_, _ = fmt.Fprintf(w, "  source %s\n\n", Quote(shellPath))
	_, _ = fmt.Fprintf(w, "Then start a new shell or run the same command in the current one.\n")
}

func toShellPath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
