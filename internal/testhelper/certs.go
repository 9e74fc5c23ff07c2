// Package testhelper generates certificate material for tests.
package testhelper

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// CertOptions controls GenerateCert.
type CertOptions struct {
	CommonName string
	NotBefore  time.Time
	NotAfter   time.Time
}

// GenerateCert returns a self-signed CA certificate encoded as PEM. Zero
// times default to a certificate valid from an hour ago for one year.
func GenerateCert(t testing.TB, opts CertOptions) []byte {
	t.Helper()

	if opts.CommonName == "" {
		opts.CommonName = "Test CA"
	}
	if opts.NotBefore.IsZero() {
		opts.NotBefore = time.Now().Add(-time.Hour)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = time.Now().Add(365 * 24 * time.Hour)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: opts.CommonName, Organization: []string{"trustfetch tests"}},
		NotBefore:             opts.NotBefore,
		NotAfter:              opts.NotAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// GenerateExpiredCert returns a self-signed certificate that expired a day ago.
func GenerateExpiredCert(t testing.TB, commonName string) []byte {
	t.Helper()
	return GenerateCert(t, CertOptions{
		CommonName: commonName,
		NotBefore:  time.Now().Add(-48 * time.Hour),
		NotAfter:   time.Now().Add(-24 * time.Hour),
	})
}

// GenerateBundle concatenates n freshly generated certificates.
func GenerateBundle(t testing.TB, n int) []byte {
	t.Helper()

	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		buf.Write(GenerateCert(t, CertOptions{}))
	}
	return buf.Bytes()
}

// ServerCertPEM returns the PEM encoding of the certificate a httptest TLS
// server presents, suitable for use as a CA bundle.
func ServerCertPEM(srv *httptest.Server) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
}

// WriteFile writes data below dir and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
