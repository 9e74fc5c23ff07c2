package certstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
)

// currentSchemaVersion is the current metadata schema version.
const currentSchemaVersion = "1"

// Metadata tracks the store state: the base bundle, the combined bundle
// written to ca-bundle.crt, and the user-added certificates.
type Metadata struct {
	Version        string         `json:"version"`
	CombinedBundle BundleInfo     `json:"combined_bundle"`
	BaseBundle     BundleInfo     `json:"base_bundle"`
	UserCerts      []UserCertInfo `json:"user_certs"`
}

// BundleInfo contains information about a certificate bundle.
type BundleInfo struct {
	Generated time.Time `json:"generated"`
	SHA256    string    `json:"sha256"`
	CertCount int       `json:"cert_count"`
	Sources   []string  `json:"sources,omitempty"`
	Version   string    `json:"version,omitempty"`
	Source    string    `json:"source,omitempty"`
}

// UserCertInfo contains information about a user-added certificate.
type UserCertInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Added       time.Time `json:"added"`
	Fingerprint string    `json:"fingerprint"`
	Subject     string    `json:"subject"`
	Expires     time.Time `json:"expires"`
}

// Expired reports whether the certificate is past its expiry at now.
func (c UserCertInfo) Expired(now time.Time) bool {
	return now.After(c.Expires)
}

// NewMetadata creates a new metadata instance with default values.
func NewMetadata() *Metadata {
	return &Metadata{
		Version:   currentSchemaVersion,
		UserCerts: []UserCertInfo{},
	}
}

// findUserCert returns the index of the named certificate, or -1.
func (m *Metadata) findUserCert(name string) int {
	for i, c := range m.UserCerts {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// upsertUserCert replaces the certificate with the same name or appends it.
func (m *Metadata) upsertUserCert(info UserCertInfo) {
	if i := m.findUserCert(info.Name); i >= 0 {
		m.UserCerts[i] = info
		return
	}
	m.UserCerts = append(m.UserCerts, info)
}

// readMetadata reads and parses the metadata.json file.
func (s *Store) readMetadata() (*Metadata, error) {
	data, err := s.fs.ReadFile(s.metadataPath())
	if err != nil {
		return nil, &tferrors.Error{Op: "read metadata", Path: s.metadataPath(), Err: err}
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &tferrors.Error{Op: "parse metadata", Path: s.metadataPath(), Err: err}
	}

	if m.Version != currentSchemaVersion {
		if err := migrateMetadata(&m); err != nil {
			return nil, fmt.Errorf("migrate metadata: %w", err)
		}
	}
	if m.UserCerts == nil {
		m.UserCerts = []UserCertInfo{}
	}

	return &m, nil
}

// writeMetadata writes the metadata to metadata.json using atomic rename.
func (s *Store) writeMetadata(m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &tferrors.Error{Op: "marshal metadata", Err: err}
	}

	return s.writeFileAtomic(s.metadataPath(), data, "metadata")
}

// UpdateMetadata reads the metadata, applies fn and writes the result back
// while holding the store lock. Nothing is written if fn fails.
func (s *Store) UpdateMetadata(ctx context.Context, fn func(*Metadata) error) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.updateMetadataLocked(fn)
}

func (s *Store) updateMetadataLocked(fn func(*Metadata) error) error {
	metadata, err := s.readMetadata()
	if err != nil {
		return err
	}

	if err := fn(metadata); err != nil {
		return err
	}

	return s.writeMetadata(metadata)
}

// lock acquires the store lock and returns its release function.
func (s *Store) lock(ctx context.Context) (func(), error) {
	lock := NewFileLock(s.metadataPath())
	if err := lock.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock metadata: %w", err)
	}
	return func() { _ = lock.Unlock() }, nil
}

// computeSHA256 computes the SHA256 hash of the given data.
func computeSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// migrateMetadata handles schema version migrations.
func migrateMetadata(m *Metadata) error {
	switch m.Version {
	case "", currentSchemaVersion:
		m.Version = currentSchemaVersion
		return nil
	default:
		return fmt.Errorf("unsupported metadata schema version %q", m.Version)
	}
}
