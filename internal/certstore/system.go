package certstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// SystemBundleCandidates lists well-known locations of the operating
// system's CA bundle, in the order they are tried.
var SystemBundleCandidates = []string{
	"/etc/ssl/certs/ca-certificates.crt",                // Debian/Ubuntu/Gentoo etc.
	"/etc/pki/tls/certs/ca-bundle.crt",                  // Fedora/RHEL 6
	"/etc/ssl/ca-bundle.pem",                            // OpenSUSE
	"/etc/pki/tls/cacert.pem",                           // OpenELEC
	"/etc/pki/ca-trust/extracted/pem/tls-ca-bundle.pem", // CentOS/RHEL 7
	"/etc/ssl/cert.pem",                                 // Alpine Linux, macOS
	"/opt/homebrew/etc/openssl@3/cert.pem",              // Homebrew on Apple silicon
	"/usr/local/etc/openssl/cert.pem",                   // Homebrew on Intel
}

// ErrNoSystemBundle is returned when none of the candidates exist.
var ErrNoSystemBundle = errors.New("no system CA bundle found")

// FindSystemBundle returns the first existing file from SystemBundleCandidates.
func FindSystemBundle() (string, error) {
	return findBundle(SystemBundleCandidates, os.Stat)
}

func findBundle(candidates []string, stat func(string) (fs.FileInfo, error)) (string, error) {
	for _, candidate := range candidates {
		info, err := stat(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("unexpected error resolving system bundle: %w", err)
		}
		if info.IsDir() {
			continue
		}
		return candidate, nil
	}
	return "", ErrNoSystemBundle
}
