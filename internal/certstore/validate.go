package certstore

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"regexp"
	"time"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
)

var certNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// CertMetadata contains extracted certificate information
type CertMetadata struct {
	Subject     string
	Issuer      string
	Fingerprint string
	Expires     time.Time
}

// ValidateName checks that name is usable as a certificate file name.
func ValidateName(name string) error {
	if len(name) > 64 || !certNameRegex.MatchString(name) {
		return &tferrors.Error{
			Op:  "validate name",
			Err: fmt.Errorf("%w: %q (use letters, digits, '.', '_' or '-')", tferrors.ErrInvalidName, name),
		}
	}
	return nil
}

// ValidateCert validates a PEM-encoded certificate and extracts metadata.
// Only the first PEM block is inspected. Expired certificates are rejected
// unless force is set.
func ValidateCert(data []byte, force bool) (*x509.Certificate, *CertMetadata, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, &tferrors.Error{Op: "validate certificate", Err: tferrors.ErrInvalidPEM}
	}

	if block.Type != "CERTIFICATE" {
		return nil, nil, &tferrors.Error{
			Op:  "validate certificate",
			Err: fmt.Errorf("%w: block type %s (expected CERTIFICATE)", tferrors.ErrInvalidPEM, block.Type),
		}
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, &tferrors.Error{
			Op:  "parse certificate",
			Err: fmt.Errorf("invalid x509 certificate: %w", err),
		}
	}

	if !force && time.Now().After(cert.NotAfter) {
		return nil, nil, &tferrors.Error{Op: "validate certificate", Err: tferrors.ErrCertExpired}
	}

	return cert, &CertMetadata{
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		Fingerprint: Fingerprint(cert),
		Expires:     cert.NotAfter,
	}, nil
}

// Fingerprint returns "sha256:" followed by the hex SHA-256 of the DER certificate.
func Fingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// countCertificates counts the parseable certificates in a PEM bundle.
func countCertificates(pemData []byte) int {
	count := 0
	remaining := pemData

	for {
		block, rest := pem.Decode(remaining)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			if _, err := x509.ParseCertificate(block.Bytes); err == nil {
				count++
			}
		}
		remaining = rest
	}

	return count
}
