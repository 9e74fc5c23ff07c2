package cli

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
	"github.com/princespaghetti/trustfetch/internal/fetcher"
)

// exitError carries the process exit code for a failed command, plus an
// optional hint printed after the error.
type exitError struct {
	code int
	err  error
	hint string
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// fail wraps err with an explicit exit code.
func fail(code int, err error, hint string) error {
	return &exitError{code: code, err: err, hint: hint}
}

// errNotInitialized is returned by commands that need an initialized store.
func errNotInitialized() error {
	return fail(tferrors.ExitConfigError, tferrors.ErrStoreNotInit, "Run 'trustfetch init' first to initialize the store")
}

// exitCode maps err to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return tferrors.ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	if isCertError(err) {
		return tferrors.ExitCertError
	}
	if tferrors.IsError(err, tferrors.ErrStoreNotInit) {
		return tferrors.ExitConfigError
	}
	if isNetworkError(err) {
		return tferrors.ExitNetworkError
	}
	return tferrors.ExitGeneralError
}

func isCertError(err error) bool {
	for _, target := range []error{
		tferrors.ErrCertExpired,
		tferrors.ErrInvalidPEM,
		tferrors.ErrNoCertificates,
	} {
		if tferrors.IsError(err, target) {
			return true
		}
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		invalid          x509.CertificateInvalidError
		hostname         x509.HostnameError
		verification     *tls.CertificateVerificationError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname) ||
		errors.As(err, &verification)
}

func isNetworkError(err error) bool {
	var (
		statusErr *fetcher.StatusError
		urlErr    *url.Error
		netErr    net.Error
	)
	return errors.As(err, &statusErr) || errors.As(err, &urlErr) || errors.As(err, &netErr)
}
