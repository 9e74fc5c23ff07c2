package trust

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
)

// DefaultTimeout bounds a whole request made by clients from NewHTTPClient.
const DefaultTimeout = 60 * time.Second

// ClientOptions tunes NewHTTPClient.
type ClientOptions struct {
	// Timeout is the overall request timeout. Zero means DefaultTimeout.
	Timeout time.Duration
}

// TLSConfig returns a client TLS configuration trusting the roots selected by v.
func TLSConfig(v Verify) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if v.UseSystemRoots() {
		return cfg, nil
	}

	pool, err := LoadCertPool(v.Path)
	if err != nil {
		return nil, err
	}
	// The bundle replaces the system roots rather than extending them.
	cfg.RootCAs = pool
	return cfg, nil
}

// NewHTTPClient builds an HTTP client that verifies servers against the
// roots selected by v. Proxy settings are taken from the environment.
func NewHTTPClient(v Verify, opts ClientOptions) (*http.Client, error) {
	tlsConfig, err := TLSConfig(v)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	transport.TLSHandshakeTimeout = 10 * time.Second

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// LoadCertPool reads the PEM certificates at path into a new pool. A
// directory is loaded by reading every regular file inside it; files without
// certificates are skipped.
func LoadCertPool(path string) (*x509.CertPool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &tferrors.Error{Op: "load ca bundle", Path: path, Err: err}
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, &tferrors.Error{Op: "read ca directory", Path: path, Err: err}
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	} else {
		files = []string{path}
	}

	pool := x509.NewCertPool()
	loaded := false
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, &tferrors.Error{Op: "load ca bundle", Path: file, Err: err}
		}
		if pool.AppendCertsFromPEM(data) {
			loaded = true
		}
	}

	if !loaded {
		return nil, &tferrors.Error{Op: "load ca bundle", Path: path, Err: tferrors.ErrNoCertificates}
	}
	return pool, nil
}
