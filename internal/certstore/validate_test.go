package certstore

import (
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
	"github.com/princespaghetti/trustfetch/internal/testhelper"
)

func TestValidateCert(t *testing.T) {
	valid := testhelper.GenerateCert(t, testhelper.CertOptions{CommonName: "Corp Proxy CA"})
	expired := testhelper.GenerateExpiredCert(t, "Old Proxy CA")

	tests := []struct {
		name      string
		data      []byte
		force     bool
		wantErrIs error
		wantErr   string
	}{
		{name: "valid certificate", data: valid},
		{name: "valid certificate with force", data: valid, force: true},
		{name: "expired certificate", data: expired, wantErrIs: tferrors.ErrCertExpired},
		{name: "expired certificate with force", data: expired, force: true},
		{name: "not PEM", data: []byte("hello"), wantErrIs: tferrors.ErrInvalidPEM},
		{name: "empty", data: nil, wantErrIs: tferrors.ErrInvalidPEM},
		{
			name:      "private key block",
			data:      pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("key")}),
			wantErrIs: tferrors.ErrInvalidPEM,
		},
		{
			name:    "garbage certificate",
			data:    pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")}),
			wantErr: "invalid x509 certificate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, info, err := ValidateCert(tt.data, tt.force)
			if tt.wantErrIs != nil || tt.wantErr != "" {
				require.Error(t, err)
				if tt.wantErrIs != nil {
					assert.True(t, tferrors.IsError(err, tt.wantErrIs), "got %v", err)
				}
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, cert)
				assert.Nil(t, info)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cert)
			assert.Equal(t, cert.NotAfter, info.Expires)
			assert.Contains(t, info.Subject, "CN=")
			assert.True(t, strings.HasPrefix(info.Fingerprint, "sha256:"))
		})
	}
}

func TestValidateCert_Fingerprint(t *testing.T) {
	data := testhelper.GenerateCert(t, testhelper.CertOptions{})

	_, first, err := ValidateCert(data, false)
	require.NoError(t, err)
	_, second, err := ValidateCert(data, false)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Len(t, first.Fingerprint, len("sha256:")+64)

	block, _ := pem.Decode(data)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(cert), first.Fingerprint)

	_, other, err := ValidateCert(testhelper.GenerateCert(t, testhelper.CertOptions{}), false)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, other.Fingerprint)
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"corporate", "proxy-2024", "zscaler.root", "A_b"} {
		assert.NoError(t, ValidateName(name), name)
	}

	for _, name := range []string{"", "../evil", "a/b", ".hidden", "-dash", "with space", strings.Repeat("x", 65)} {
		err := ValidateName(name)
		assert.True(t, tferrors.IsError(err, tferrors.ErrInvalidName), "name %q: %v", name, err)
	}
}

func TestCountCertificates(t *testing.T) {
	a := testhelper.GenerateCert(t, testhelper.CertOptions{})
	b := testhelper.GenerateCert(t, testhelper.CertOptions{})

	assert.Equal(t, 0, countCertificates(nil))
	assert.Equal(t, 1, countCertificates(a))
	assert.Equal(t, 2, countCertificates(concatPEM(a, b)))
	assert.Equal(t, 1, countCertificates(concatPEM(
		a,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("key")}),
	)))
}

func TestConcatPEM(t *testing.T) {
	got := concatPEM([]byte("a"), nil, []byte("b\n"), []byte("c"))
	assert.Equal(t, "a\nb\nc\n", string(got))
}
