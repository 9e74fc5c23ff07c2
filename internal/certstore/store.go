package certstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
	"github.com/princespaghetti/trustfetch/internal/log"
	"github.com/princespaghetti/trustfetch/internal/trust"
)

// Store represents the certificate store and provides operations for managing certificates.
type Store struct {
	basePath string
	fs       FileSystem
	logger   logrus.FieldLogger
}

// NewStore creates a new Store instance with the given base path.
// If basePath is empty, it defaults to ~/.certs
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get user home directory: %w", err)
		}
		basePath = filepath.Join(home, trust.DefaultBundleDir)
	}

	return &Store{
		basePath: basePath,
		fs:       OSFileSystem{},
		logger:   log.Default().WithField("store", basePath),
	}, nil
}

// BasePath returns the base path of the store.
func (s *Store) BasePath() string {
	return s.basePath
}

// BundlePath returns the path to the combined certificate bundle. For the
// default store this is the path the trust resolver falls back to.
func (s *Store) BundlePath() string {
	return filepath.Join(s.basePath, trust.DefaultBundleName)
}

// BaseBundlePath returns the path to the base bundle the combined bundle is built from.
func (s *Store) BaseBundlePath() string {
	return filepath.Join(s.basePath, "bundles", "base.pem")
}

// UserCertPath returns the path a user certificate with the given name is stored at.
func (s *Store) UserCertPath(name string) string {
	return s.userCertPath(name)
}

// metadataPath returns the path to the metadata.json file.
func (s *Store) metadataPath() string {
	return filepath.Join(s.basePath, "metadata.json")
}

// IsInitialized returns true if the store has been initialized.
func (s *Store) IsInitialized() bool {
	_, err := s.fs.Stat(s.metadataPath())
	return err == nil
}

// Init creates the store layout, writes base as the base bundle and builds
// ca-bundle.crt from it. With force an existing store is reinitialized;
// certificates already in the user directory are kept and re-registered.
func (s *Store) Init(ctx context.Context, base []byte, source string, force bool) error {
	if !force && s.IsInitialized() {
		return &tferrors.Error{Op: "initialize store", Path: s.basePath, Err: tferrors.ErrStoreAlreadyInit}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	certCount := countCertificates(base)
	if certCount == 0 {
		return &tferrors.Error{Op: "initialize store", Path: source, Err: tferrors.ErrNoCertificates}
	}

	if err := s.createDirectories(); err != nil {
		return err
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.writeFileAtomic(s.BaseBundlePath(), base, "base bundle"); err != nil {
		return err
	}

	if !s.IsInitialized() {
		if err := s.importUnmanagedBundle(); err != nil {
			return err
		}
	}

	metadata := NewMetadata()
	metadata.BaseBundle = BundleInfo{
		Generated: time.Now(),
		SHA256:    computeSHA256(base),
		CertCount: certCount,
		Source:    source,
	}

	if err := s.registerExistingUserCerts(ctx, metadata); err != nil {
		return err
	}

	if err := s.rebuildBundle(ctx, metadata); err != nil {
		return err
	}

	if err := s.writeMetadata(metadata); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"source":     source,
		"cert_count": certCount,
		"user_certs": len(metadata.UserCerts),
	}).Info("certificate store initialized")

	return nil
}

// ImportedBundleName is the user certificate name a ca-bundle.crt found in an
// uninitialized store is imported under.
const ImportedBundleName = "existing"

// UnmanagedBundle reports whether ca-bundle.crt exists without store
// metadata, i.e. it was placed there by hand or by another tool.
func (s *Store) UnmanagedBundle() bool {
	if s.IsInitialized() {
		return false
	}
	info, err := s.fs.Stat(s.BundlePath())
	return err == nil && info.Mode().IsRegular()
}

// importUnmanagedBundle copies a hand-placed ca-bundle.crt into the user
// directory so the rebuilt bundle still trusts everything it trusted.
func (s *Store) importUnmanagedBundle() error {
	if !s.UnmanagedBundle() {
		return nil
	}

	data, err := s.fs.ReadFile(s.BundlePath())
	if err != nil {
		return &tferrors.Error{Op: "read existing bundle", Path: s.BundlePath(), Err: err}
	}
	if countCertificates(data) == 0 {
		s.logger.WithField("path", s.BundlePath()).Warn("existing bundle has no certificates, not importing")
		return nil
	}

	name := ImportedBundleName
	for i := 2; ; i++ {
		if _, err := s.fs.Stat(s.userCertPath(name)); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s-%d", ImportedBundleName, i)
	}

	if err := s.writeFileAtomic(s.userCertPath(name), data, "imported bundle"); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"path": s.BundlePath(),
		"name": name,
	}).Warn("imported existing bundle as user certificate")
	return nil
}

// registerExistingUserCerts adds metadata entries for certificate files
// already present in the user directory. Unparseable files are skipped.
func (s *Store) registerExistingUserCerts(ctx context.Context, metadata *Metadata) error {
	certs, err := s.readUserCerts(ctx)
	if err != nil {
		return err
	}

	for _, c := range certs {
		_, info, err := ValidateCert(c.data, true)
		if err != nil {
			s.logger.WithError(err).WithField("name", c.name).Warn("skipping unreadable user certificate")
			continue
		}
		metadata.upsertUserCert(UserCertInfo{
			Name:        c.name,
			Path:        "user/" + c.name + ".pem",
			Added:       time.Now(),
			Fingerprint: info.Fingerprint,
			Subject:     info.Subject,
			Expires:     info.Expires,
		})
	}

	return nil
}

// createDirectories creates the directory structure for the certificate store.
func (s *Store) createDirectories() error {
	dirs := []string{
		s.userDir(),
		filepath.Dir(s.BaseBundlePath()),
	}

	for _, dir := range dirs {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return &tferrors.Error{Op: "create directory", Path: dir, Err: err}
		}
	}

	return nil
}

// writeFileAtomic writes data to path through a temp file and rename.
func (s *Store) writeFileAtomic(path string, data []byte, what string) error {
	tempPath := path + ".tmp"
	if err := s.fs.WriteFile(tempPath, data, 0644); err != nil {
		return &tferrors.Error{Op: "write temp " + what, Path: tempPath, Err: err}
	}

	// Atomic rename (os.Rename is atomic on POSIX systems)
	if err := s.fs.Rename(tempPath, path); err != nil {
		_ = s.fs.Remove(tempPath)
		return &tferrors.Error{Op: "rename " + what, Path: path, Err: err}
	}

	return nil
}

// rebuildBundle writes base bundle + user certs to ca-bundle.crt and records
// the result in metadata.
func (s *Store) rebuildBundle(ctx context.Context, metadata *Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	base, err := s.fs.ReadFile(s.BaseBundlePath())
	if err != nil {
		return &tferrors.Error{Op: "read base bundle", Path: s.BaseBundlePath(), Err: err}
	}

	userCerts, err := s.readUserCerts(ctx)
	if err != nil {
		return err
	}

	parts := [][]byte{base}
	for _, c := range userCerts {
		parts = append(parts, c.data)
	}
	combined := concatPEM(parts...)

	if err := s.writeFileAtomic(s.BundlePath(), combined, "bundle"); err != nil {
		return err
	}

	sources := []string{"base"}
	if len(userCerts) > 0 {
		sources = append(sources, "user")
	}

	metadata.CombinedBundle = BundleInfo{
		Generated: time.Now(),
		SHA256:    computeSHA256(combined),
		CertCount: countCertificates(combined),
		Sources:   sources,
	}

	s.logger.WithField("cert_count", metadata.CombinedBundle.CertCount).Debug("combined bundle rebuilt")

	return nil
}

// RebuildBundle rebuilds ca-bundle.crt. It must be called from within an
// UpdateMetadata callback so the store lock is held.
func (s *Store) RebuildBundle(ctx context.Context, metadata *Metadata) error {
	return s.rebuildBundle(ctx, metadata)
}

// ReplaceBase swaps in a new base bundle and rebuilds ca-bundle.crt. The
// hash and count of info are computed from data.
func (s *Store) ReplaceBase(ctx context.Context, data []byte, info BundleInfo) error {
	if !s.IsInitialized() {
		return &tferrors.Error{Op: "replace base bundle", Err: tferrors.ErrStoreNotInit}
	}

	certCount := countCertificates(data)
	if certCount == 0 {
		return &tferrors.Error{Op: "replace base bundle", Path: info.Source, Err: tferrors.ErrNoCertificates}
	}

	return s.UpdateMetadata(ctx, func(md *Metadata) error {
		if err := s.writeFileAtomic(s.BaseBundlePath(), data, "base bundle"); err != nil {
			return err
		}

		info.SHA256 = computeSHA256(data)
		info.CertCount = certCount
		if info.Generated.IsZero() {
			info.Generated = time.Now()
		}
		md.BaseBundle = info

		return s.rebuildBundle(ctx, md)
	})
}

// AddCert adds the certificate file at certPath to the store under name.
// If force is true, expired certificates are allowed.
func (s *Store) AddCert(ctx context.Context, certPath, name string, force bool) error {
	if !s.IsInitialized() {
		return &tferrors.Error{Op: "add certificate", Err: tferrors.ErrStoreNotInit}
	}

	certData, err := s.fs.ReadFile(certPath)
	if err != nil {
		return &tferrors.Error{Op: "read certificate", Path: certPath, Err: err}
	}
	return s.AddCertData(ctx, certData, name, force)
}

// AddCertData validates certData and stores it under name, replacing any
// certificate with the same name, then rebuilds ca-bundle.crt.
func (s *Store) AddCertData(ctx context.Context, certData []byte, name string, force bool) error {
	if !s.IsInitialized() {
		return &tferrors.Error{Op: "add certificate", Err: tferrors.ErrStoreNotInit}
	}

	if err := ValidateName(name); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	_, certInfo, err := ValidateCert(certData, force)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	destPath := s.userCertPath(name)
	previous, readErr := s.fs.ReadFile(destPath)
	hadPrevious := readErr == nil

	if err := s.writeFileAtomic(destPath, certData, "certificate"); err != nil {
		return err
	}

	updateErr := s.updateMetadataLocked(func(md *Metadata) error {
		md.upsertUserCert(UserCertInfo{
			Name:        name,
			Path:        "user/" + name + ".pem",
			Added:       time.Now(),
			Fingerprint: certInfo.Fingerprint,
			Subject:     certInfo.Subject,
			Expires:     certInfo.Expires,
		})
		return s.rebuildBundle(ctx, md)
	})

	if updateErr != nil {
		// Rollback the certificate file
		if hadPrevious {
			_ = s.writeFileAtomic(destPath, previous, "certificate")
		} else {
			_ = s.fs.Remove(destPath)
		}
		return &tferrors.Error{Op: "add certificate", Path: name, Err: updateErr}
	}

	s.logger.WithFields(logrus.Fields{
		"name":        name,
		"fingerprint": certInfo.Fingerprint,
	}).Info("certificate added")

	return nil
}

// RemoveCert deletes the named certificate and rebuilds ca-bundle.crt.
func (s *Store) RemoveCert(ctx context.Context, name string) error {
	if !s.IsInitialized() {
		return &tferrors.Error{Op: "remove certificate", Err: tferrors.ErrStoreNotInit}
	}

	err := s.UpdateMetadata(ctx, func(md *Metadata) error {
		i := md.findUserCert(name)
		if i < 0 {
			return &tferrors.Error{Op: "remove certificate", Path: name, Err: tferrors.ErrCertNotFound}
		}

		certPath := s.userCertPath(name)
		previous, readErr := s.fs.ReadFile(certPath)

		if err := s.fs.Remove(certPath); err != nil && !os.IsNotExist(err) {
			return &tferrors.Error{Op: "remove certificate", Path: certPath, Err: err}
		}

		md.UserCerts = append(md.UserCerts[:i], md.UserCerts[i+1:]...)
		if err := s.rebuildBundle(ctx, md); err != nil {
			// Put the file back; metadata is not written when this callback fails.
			if readErr == nil {
				_ = s.writeFileAtomic(certPath, previous, "certificate")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithField("name", name).Info("certificate removed")
	return nil
}

// managedEntries are the paths below the store root that trustfetch creates.
var managedEntries = []string{
	trust.DefaultBundleName,
	trust.DefaultBundleName + ".tmp",
	"bundles",
	"user",
	"metadata.json",
	"metadata.json.tmp",
	"metadata.json.lock",
	"env.sh",
	"env.sh.tmp",
}

// Destroy removes everything the store created. Other files below the store
// root are left alone, and the root is removed only once it is empty.
// An uninitialized store is not touched.
func (s *Store) Destroy() error {
	if !s.IsInitialized() {
		return &tferrors.Error{Op: "remove store", Path: s.basePath, Err: tferrors.ErrStoreNotInit}
	}

	for _, entry := range managedEntries {
		path := filepath.Join(s.basePath, entry)
		if err := os.RemoveAll(path); err != nil {
			return &tferrors.Error{Op: "remove store", Path: path, Err: err}
		}
	}

	if err := s.fs.Remove(s.basePath); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).Debug("store directory kept")
	}
	return nil
}

// ListCerts returns the list of user certificates from metadata.
func (s *Store) ListCerts() ([]UserCertInfo, error) {
	metadata, err := s.GetMetadata()
	if err != nil {
		return nil, err
	}
	return metadata.UserCerts, nil
}

// GetCertInfo returns the metadata of the named user certificate.
func (s *Store) GetCertInfo(name string) (*UserCertInfo, error) {
	metadata, err := s.GetMetadata()
	if err != nil {
		return nil, err
	}

	i := metadata.findUserCert(name)
	if i < 0 {
		return nil, &tferrors.Error{Op: "get certificate", Path: name, Err: tferrors.ErrCertNotFound}
	}
	info := metadata.UserCerts[i]
	return &info, nil
}

// GetMetadata returns the current metadata from the store.
// Returns an error if the store is not initialized.
func (s *Store) GetMetadata() (*Metadata, error) {
	if !s.IsInitialized() {
		return nil, &tferrors.Error{Op: "get metadata", Err: tferrors.ErrStoreNotInit}
	}
	return s.readMetadata()
}
