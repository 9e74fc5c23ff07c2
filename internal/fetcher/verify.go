package fetcher

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"regexp"
	"time"
)

const (
	// MinCertCount is the minimum number of certificates expected in a valid Mozilla bundle.
	MinCertCount = 100

	// MaxDegradationPercent is the maximum allowed degradation in cert count (20%).
	MaxDegradationPercent = 20
)

// bundleDateRegex matches the curl.se header, e.g.
// "## Certificate data from Mozilla as of: Tue Sep  9 03:12:01 2025 GMT".
var bundleDateRegex = regexp.MustCompile(`Certificate data from Mozilla as of:\s+([A-Za-z]{3}\s+[A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+\d{4}\s+GMT)`)

// BundleVerificationResult contains the results of bundle verification.
type BundleVerificationResult struct {
	CertCount     int
	BundleDate    time.Time
	HasBundleDate bool
	IsValid       bool
	Warning       string
}

// VerifyBundle verifies that a downloaded Mozilla CA bundle is valid.
// It checks:
// - Contains >= MinCertCount parseable certificates
// - Warns if cert count dropped by more than MaxDegradationPercent from currentCertCount
func VerifyBundle(bundleData []byte, currentCertCount int) (*BundleVerificationResult, error) {
	result := &BundleVerificationResult{
		CertCount: CountCertificates(bundleData),
	}

	if result.CertCount < MinCertCount {
		return result, fmt.Errorf("bundle contains only %d certificates, expected at least %d", result.CertCount, MinCertCount)
	}

	result.BundleDate, result.HasBundleDate = ParseBundleDate(bundleData)

	if currentCertCount > 0 {
		degradation := float64(currentCertCount-result.CertCount) / float64(currentCertCount) * 100
		if degradation > MaxDegradationPercent {
			result.Warning = fmt.Sprintf("New bundle has %d fewer certificates (%.1f%% decrease). This may indicate a problem.",
				currentCertCount-result.CertCount, degradation)
		}
	}

	result.IsValid = true
	return result, nil
}

// CountCertificates counts the number of valid certificates in a PEM bundle.
// Non-CERTIFICATE blocks and unparseable certificates are skipped.
func CountCertificates(pemData []byte) int {
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

// ParseBundleDate extracts the Mozilla bundle date from the header comments
// in the first 1KB of the bundle.
func ParseBundleDate(bundleData []byte) (time.Time, bool) {
	header := bundleData
	if len(header) > 1024 {
		header = header[:1024]
	}

	matches := bundleDateRegex.FindSubmatch(header)
	if len(matches) < 2 {
		return time.Time{}, false
	}

	parsed, err := time.Parse("Mon Jan _2 15:04:05 2006 MST", string(matches[1]))
	if err != nil {
		return time.Time{}, false
	}

	return parsed, true
}

// BundleVersion returns the bundle date as YYYY-MM-DD, or "" when the header is absent.
func BundleVersion(bundleData []byte) string {
	if date, found := ParseBundleDate(bundleData); found {
		return date.Format("2006-01-02")
	}
	return ""
}

// ValidatePEMFormat checks if the data contains valid PEM blocks.
func ValidatePEMFormat(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty data")
	}

	// Mozilla bundles start with a comment header, so look past it.
	if !bytes.Contains(data, []byte("-----BEGIN")) {
		return fmt.Errorf("data does not appear to be in PEM format")
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return fmt.Errorf("failed to decode PEM data")
	}

	return nil
}

// ComputeSHA256 computes the SHA256 hash of data and returns it as a hex string.
func ComputeSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
