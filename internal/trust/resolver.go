// Package trust decides which CA bundle an HTTPS client should trust and
// builds clients that honor that decision.
package trust

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/princespaghetti/trustfetch/internal/log"
)

const (
	// EnvCertFile names the environment variable holding a custom CA bundle path.
	EnvCertFile = "SSL_CERT_FILE"

	// DefaultBundleDir is the directory below the home directory holding the
	// default CA bundle.
	DefaultBundleDir = ".certs"

	// DefaultBundleName is the file name of the default CA bundle.
	DefaultBundleName = "ca-bundle.crt"
)

// DefaultBundlePath returns <home>/.certs/ca-bundle.crt, or "" when home is unknown.
func DefaultBundlePath(home string) string {
	if home == "" {
		return ""
	}
	return filepath.Join(home, DefaultBundleDir, DefaultBundleName)
}

// Verify is the verification value handed to an HTTPS client: either a CA
// bundle path or the system trust store. The zero value means the system
// trust store.
type Verify struct {
	Path string
}

// SystemRoots selects the default system trust store.
var SystemRoots = Verify{}

// UseSystemRoots reports whether v selects the system trust store.
func (v Verify) UseSystemRoots() bool {
	return v.Path == ""
}

// String returns the bundle path, or "true" for the system trust store.
func (v Verify) String() string {
	if v.UseSystemRoots() {
		return "true"
	}
	return v.Path
}

// MarshalJSON encodes v as a path string or the boolean true.
func (v Verify) MarshalJSON() ([]byte, error) {
	if v.UseSystemRoots() {
		return []byte("true"), nil
	}
	return json.Marshal(v.Path)
}

// UnmarshalJSON accepts a non-empty path string or the boolean true.
func (v *Verify) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if !b {
			return fmt.Errorf("verify value false is not supported")
		}
		*v = SystemRoots
		return nil
	}

	var path string
	if err := json.Unmarshal(data, &path); err != nil {
		return fmt.Errorf("verify value must be a path or true: %w", err)
	}
	if path == "" {
		return fmt.Errorf("verify path must not be empty")
	}
	*v = Verify{Path: path}
	return nil
}

// Source records where a resolved Verify value came from.
type Source string

const (
	SourceEnv     Source = "env"
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
)

// Resolution is the outcome of resolving a CA bundle.
type Resolution struct {
	Verify Verify `json:"verify"`
	Source Source `json:"source"`
	// Candidate is the path that was checked, if any.
	Candidate string `json:"candidate,omitempty"`
}

// Env holds the inputs of a resolution.
type Env struct {
	CertFile string `envconfig:"SSL_CERT_FILE"`
	HomeDir  string `ignored:"true"`
}

// LoadEnv reads SSL_CERT_FILE and the user's home directory from the process.
// A home directory that cannot be determined is left empty.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("envconfig: %w", err)
	}
	if home, err := os.UserHomeDir(); err == nil {
		env.HomeDir = home
	}
	return env, nil
}

// StatFunc reports file info for a path, like os.Stat.
type StatFunc func(path string) (fs.FileInfo, error)

// Resolver picks the CA bundle for HTTPS calls.
type Resolver struct {
	stat   StatFunc
	logger logrus.FieldLogger
}

// NewResolver creates a Resolver backed by the real filesystem.
func NewResolver() *Resolver {
	return &Resolver{
		stat:   os.Stat,
		logger: log.Default(),
	}
}

// WithStat returns a copy of r using stat for existence checks.
func (r *Resolver) WithStat(stat StatFunc) *Resolver {
	c := *r
	c.stat = stat
	return &c
}

// Resolve returns the CA bundle named by SSL_CERT_FILE, falling back to
// <home>/.certs/ca-bundle.crt when the variable is unset, and to the system
// trust store when the chosen candidate does not exist. It never fails.
func (r *Resolver) Resolve(env Env) Resolution {
	candidate, source := strings.TrimSpace(env.CertFile), SourceEnv
	if candidate == "" {
		candidate, source = DefaultBundlePath(env.HomeDir), SourceDefault
	}

	logger := r.logger.WithFields(logrus.Fields{
		"candidate": candidate,
		"source":    source,
	})

	if candidate == "" {
		logger.Debug("no ca bundle candidate, using system trust store")
		return Resolution{Verify: SystemRoots, Source: SourceSystem}
	}

	if _, err := r.stat(candidate); err != nil {
		logger.WithError(err).Debug("ca bundle candidate not usable, using system trust store")
		return Resolution{Verify: SystemRoots, Source: SourceSystem, Candidate: candidate}
	}

	logger.Debug("using ca bundle")
	return Resolution{Verify: Verify{Path: candidate}, Source: source, Candidate: candidate}
}

// ResolveProcess resolves against the current process environment. If the
// environment cannot be read, SSL_CERT_FILE is treated as unset.
func (r *Resolver) ResolveProcess() Resolution {
	env, err := LoadEnv()
	if err != nil {
		r.logger.WithError(err).Warn("reading environment failed, ignoring " + EnvCertFile)
		if home, herr := os.UserHomeDir(); herr == nil {
			env.HomeDir = home
		}
	}
	return r.Resolve(env)
}
