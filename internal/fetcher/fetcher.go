// Package fetcher downloads files and CA bundles over HTTPS.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
	"github.com/princespaghetti/trustfetch/internal/log"
)

const (
	// DefaultMozillaBundleURL is the default URL for the Mozilla CA bundle.
	DefaultMozillaBundleURL = "https://curl.se/ca/cacert.pem"

	// DefaultUserAgent identifies trustfetch to servers.
	DefaultUserAgent = "trustfetch/1.0"
)

// HTTPClient is the part of *http.Client a Fetcher uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when a server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download failed with status %d: %s", e.StatusCode, e.Status)
}

// Fetcher downloads content with a configured HTTP client.
type Fetcher struct {
	client    HTTPClient
	userAgent string
	logger    logrus.FieldLogger
}

// NewFetcher creates a new Fetcher with the given HTTP client.
// If client is nil, uses http.DefaultClient. An empty userAgent uses DefaultUserAgent.
func NewFetcher(client HTTPClient, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		logger:    log.Default(),
	}
}

// open issues a GET for url and returns the response of a 200 answer.
// The caller must close the body.
func (f *Fetcher) open(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &tferrors.Error{Op: "create request", Path: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.logger.WithField("url", url).Debug("sending request")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &tferrors.Error{Op: "download", Path: url, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &tferrors.Error{
			Op:   "download",
			Path: url,
			Err:  &StatusError{StatusCode: resp.StatusCode, Status: resp.Status},
		}
	}

	return resp, nil
}

// Fetch downloads url into memory. An empty body is an error.
// The context can be used to cancel the download or set a timeout.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &tferrors.Error{Op: "read response", Path: url, Err: err}
	}

	if len(data) == 0 {
		return nil, &tferrors.Error{Op: "download", Path: url, Err: fmt.Errorf("response body is empty")}
	}

	return data, nil
}

// FetchMozillaBundle downloads the Mozilla CA bundle from the specified URL
// and checks that it looks like PEM data.
func (f *Fetcher) FetchMozillaBundle(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		url = DefaultMozillaBundleURL
	}

	data, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := ValidatePEMFormat(data); err != nil {
		return nil, &tferrors.Error{Op: "validate bundle", Path: url, Err: fmt.Errorf("%w: %v", tferrors.ErrInvalidPEM, err)}
	}

	return data, nil
}
