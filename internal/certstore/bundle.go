package certstore

import (
	"context"
	"path/filepath"
	"strings"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
)

// userCert is a certificate file read from the user directory.
type userCert struct {
	name string
	data []byte
}

// readUserCerts reads all PEM files from the user directory in name order.
func (s *Store) readUserCerts(ctx context.Context) ([]userCert, error) {
	entries, err := s.fs.ReadDir(s.userDir())
	if err != nil {
		return nil, &tferrors.Error{Op: "read user certs directory", Path: s.userDir(), Err: err}
	}

	var certs []userCert
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pem") {
			continue
		}

		certPath := filepath.Join(s.userDir(), entry.Name())
		data, err := s.fs.ReadFile(certPath)
		if err != nil {
			return nil, &tferrors.Error{Op: "read user certificate", Path: certPath, Err: err}
		}

		certs = append(certs, userCert{
			name: strings.TrimSuffix(entry.Name(), ".pem"),
			data: data,
		})
	}

	return certs, nil
}

// concatPEM joins PEM blobs, making sure each one ends with a newline so
// that the next BEGIN line stays on its own line.
func concatPEM(parts ...[]byte) []byte {
	var size int
	for _, p := range parts {
		size += len(p) + 1
	}

	out := make([]byte, 0, size)
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		out = append(out, p...)
		if p[len(p)-1] != '\n' {
			out = append(out, '\n')
		}
	}
	return out
}

// userCertPath returns the full path for a user certificate by name
func (s *Store) userCertPath(name string) string {
	return filepath.Join(s.userDir(), name+".pem")
}

func (s *Store) userDir() string {
	return filepath.Join(s.basePath, "user")
}
