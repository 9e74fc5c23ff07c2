package fetcher

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princespaghetti/trustfetch/internal/testhelper"
	"github.com/princespaghetti/trustfetch/internal/trust"
)

func newNotebookServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "contents of %s", r.URL.Path)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// clientFor resolves a bundle containing the server certificate through
// SSL_CERT_FILE, the same way the CLI builds its client.
func clientFor(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	bundle := testhelper.WriteFile(t, t.TempDir(), "corp-ca.pem", testhelper.ServerCertPEM(srv))

	res := trust.NewResolver().Resolve(trust.Env{CertFile: bundle})
	require.Equal(t, bundle, res.Verify.Path)

	client, err := trust.NewHTTPClient(res.Verify, trust.ClientOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func TestDownload(t *testing.T) {
	srv := newNotebookServer(t)
	f := NewFetcher(clientFor(t, srv), "")
	dest := filepath.Join(t.TempDir(), "nested", "iris.csv")

	res, err := f.Download(context.Background(), srv.URL+"/data/iris.csv", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "contents of /data/iris.csv", string(data))
	assert.Equal(t, int64(len(data)), res.Bytes)
	assert.Equal(t, ComputeSHA256(data), res.SHA256)
	assert.Equal(t, dest, res.Path)

	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be gone")
}

func TestDownload_UntrustedServer(t *testing.T) {
	srv := newNotebookServer(t)
	client, err := trust.NewHTTPClient(trust.SystemRoots, trust.ClientOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "iris.csv")
	_, err = NewFetcher(client, "").Download(context.Background(), srv.URL+"/data/iris.csv", dest)
	require.Error(t, err)

	var unknownAuthority x509.UnknownAuthorityError
	assert.True(t, errors.As(err, &unknownAuthority), "got %v", err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownload_StatusError(t *testing.T) {
	srv := newNotebookServer(t)
	dest := filepath.Join(t.TempDir(), "missing")

	_, err := NewFetcher(clientFor(t, srv), "").Download(context.Background(), srv.URL+"/missing", dest)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadAll(t *testing.T) {
	srv := newNotebookServer(t)
	f := NewFetcher(clientFor(t, srv), "")
	dir := t.TempDir()

	var jobs []Job
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("part-%d.txt", i)
		jobs = append(jobs, Job{URL: srv.URL + "/data/" + name, Dest: filepath.Join(dir, name)})
	}

	results, err := f.DownloadAll(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	for i, res := range results {
		assert.Equal(t, jobs[i].URL, res.URL)
		data, err := os.ReadFile(jobs[i].Dest)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("contents of /data/part-%d.txt", i), string(data))
	}
}

func TestDownloadAll_ConcurrencyLimit(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	dir := t.TempDir()
	var jobs []Job
	for i := 0; i < 8; i++ {
		jobs = append(jobs, Job{URL: fmt.Sprintf("%s/%d", srv.URL, i), Dest: filepath.Join(dir, fmt.Sprint(i))})
	}

	_, err := NewFetcher(srv.Client(), "").DownloadAll(context.Background(), jobs, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(3))
}

func TestDownloadAll_FirstErrorWins(t *testing.T) {
	srv := newNotebookServer(t)
	dir := t.TempDir()
	jobs := []Job{
		{URL: srv.URL + "/data/a.txt", Dest: filepath.Join(dir, "a.txt")},
		{URL: srv.URL + "/missing", Dest: filepath.Join(dir, "missing")},
	}

	results, err := NewFetcher(clientFor(t, srv), "").DownloadAll(context.Background(), jobs, 0)
	require.Error(t, err)
	assert.Nil(t, results)

	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestFileNameForURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://example.com/data/iris.csv", want: "iris.csv"},
		{url: "https://example.com/data/iris.csv?raw=1", want: "iris.csv"},
		{url: "https://example.com/", want: "index.html"},
		{url: "https://example.com", want: "index.html"},
		{url: "https://example.com/dir/", want: "dir"},
		{url: "https://example.com/..", want: "index.html"},
		{url: "https://example.com/%2e%2e", want: "index.html"},
		{url: "https://example.com/data/%2E%2E", want: "index.html"},
		{url: "https://example.com/.", want: "index.html"},
		{url: "relative/path.csv", wantErr: true},
		{url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := FileNameForURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
