package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
)

// DefaultConcurrency is the number of parallel downloads used by DownloadAll
// when no limit is given.
const DefaultConcurrency = 4

// Result describes a completed download.
type Result struct {
	URL    string `json:"url"`
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// Job is a single download for DownloadAll.
type Job struct {
	URL  string
	Dest string
}

// Download streams url into dest. The body is written to dest + ".tmp" and
// renamed into place once complete, so dest never holds a partial file.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, &tferrors.Error{Op: "create directory", Path: filepath.Dir(dest), Err: err}
	}

	resp, err := f.open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	tempPath := dest + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, &tferrors.Error{Op: "create file", Path: tempPath, Err: err}
	}

	hash := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(file, hash), resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tempPath)
		return nil, &tferrors.Error{Op: "read response", Path: rawURL, Err: copyErr}
	}
	if closeErr != nil {
		_ = os.Remove(tempPath)
		return nil, &tferrors.Error{Op: "write file", Path: tempPath, Err: closeErr}
	}

	// Atomic rename (os.Rename is atomic on POSIX systems)
	if err := os.Rename(tempPath, dest); err != nil {
		_ = os.Remove(tempPath)
		return nil, &tferrors.Error{Op: "rename file", Path: dest, Err: err}
	}

	f.logger.WithField("url", rawURL).WithField("path", dest).WithField("bytes", n).Debug("download complete")

	return &Result{
		URL:    rawURL,
		Path:   dest,
		Bytes:  n,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// DownloadAll runs jobs with at most concurrency downloads in flight.
// Results are returned in job order. The first failure cancels the
// remaining downloads and is returned.
func (f *Fetcher) DownloadAll(ctx context.Context, jobs []Job, concurrency int) ([]*Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := f.Download(ctx, job.URL, job.Dest)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FileNameForURL derives a local file name from the last path element of rawURL.
func FileNameForURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", rawURL)
	}

	switch name := path.Base(u.Path); name {
	case "/", ".", "..", "":
		return "index.html", nil
	default:
		return name, nil
	}
}
