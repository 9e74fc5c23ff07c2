package cli

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princespaghetti/trustfetch/internal/certstore"
	tferrors "github.com/princespaghetti/trustfetch/internal/errors"
	"github.com/princespaghetti/trustfetch/internal/shell"
	"github.com/princespaghetti/trustfetch/internal/testhelper"
	"github.com/princespaghetti/trustfetch/internal/trust"
)

func TestInitCmd_Flags(t *testing.T) {
	for _, name := range []string{"force", "from", "mozilla", "url"} {
		assert.NotNil(t, initCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "false", initCmd.Flags().Lookup("force").DefValue)
}

func TestInitCmd_FromFile(t *testing.T) {
	home := testHome(t)
	from := testhelper.WriteFile(t, t.TempDir(), "corp-bundle.pem", testhelper.GenerateBundle(t, 3))

	out, _, err := executeCommand(t, "", "init", "--from", from)
	require.NoError(t, err)
	assert.Contains(t, out, "Certificate store initialized")
	assert.Contains(t, out, "3 certificates")

	store, err := certstore.NewStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".certs"), store.BasePath())
	assert.True(t, store.IsInitialized())

	md, err := store.GetMetadata()
	require.NoError(t, err)
	assert.Equal(t, from, md.BaseBundle.Source)
	assert.Empty(t, md.BaseBundle.Version)

	_, err = os.Stat(shell.EnvFilePath(store.BasePath()))
	assert.NoError(t, err, "env.sh should be generated")

	// The store bundle is now what downloads resolve to.
	resolution := trust.NewResolver().ResolveProcess()
	assert.Equal(t, trust.SourceDefault, resolution.Source)
	assert.Equal(t, store.BundlePath(), resolution.Verify.Path)
}

func TestInitCmd_KeepsHandPlacedBundle(t *testing.T) {
	home := testHome(t)
	corp := testhelper.GenerateCert(t, testhelper.CertOptions{CommonName: "Corp Proxy CA"})
	bundlePath := testhelper.WriteFile(t, home, filepath.Join(".certs", "ca-bundle.crt"), corp)

	from := testhelper.WriteFile(t, t.TempDir(), "base.pem", testhelper.GenerateBundle(t, 3))
	_, errOut, err := executeCommand(t, "", "init", "--from", from)
	require.NoError(t, err)
	assert.Contains(t, errOut, "not created by trustfetch")

	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), string(corp), "hand-placed certificate must stay in the bundle")

	store, err := certstore.NewStore("")
	require.NoError(t, err)
	md, err := store.GetMetadata()
	require.NoError(t, err)
	assert.Equal(t, 4, md.CombinedBundle.CertCount)

	info, err := store.GetCertInfo(certstore.ImportedBundleName)
	require.NoError(t, err)
	assert.Contains(t, info.Subject, "Corp Proxy CA")
}

func TestInitCmd_AlreadyInitialized(t *testing.T) {
	testHome(t)
	initStore(t, 2)

	from := testhelper.WriteFile(t, t.TempDir(), "other.pem", testhelper.GenerateBundle(t, 4))
	_, _, err := executeCommand(t, "", "init", "--from", from)
	require.Error(t, err)
	assert.Equal(t, tferrors.ExitConfigError, exitCode(err))
	assert.Contains(t, err.Error(), "already initialized")

	_, _, err = executeCommand(t, "", "init", "--from", from, "--force")
	require.NoError(t, err)

	store, err := certstore.NewStore("")
	require.NoError(t, err)
	md, err := store.GetMetadata()
	require.NoError(t, err)
	assert.Equal(t, 4, md.BaseBundle.CertCount)
}

func TestInitCmd_FromErrors(t *testing.T) {
	testHome(t)

	_, _, err := executeCommand(t, "", "init", "--from", filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
	assert.Equal(t, tferrors.ExitConfigError, exitCode(err))

	empty := testhelper.WriteFile(t, t.TempDir(), "empty.pem", []byte("# nothing\n"))
	_, _, err = executeCommand(t, "", "init", "--from", empty)
	require.Error(t, err)
	assert.Equal(t, tferrors.ExitCertError, exitCode(err))

	_, _, err = executeCommand(t, "", "init", "--from", empty, "--mozilla")
	assert.Error(t, err, "--from and --mozilla are mutually exclusive")
}

func TestInitCmd_Mozilla(t *testing.T) {
	testHome(t)
	bundle := mozillaBundle(t, 100)

	var userAgent string
	srv := trustServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.UserAgent()
		_, _ = w.Write(bundle)
	}))

	out, _, err := executeCommand(t, "", "init", "--mozilla", "--url", srv.URL+"/cacert.pem")
	require.NoError(t, err)
	assert.Contains(t, out, "100 certificates")
	assert.Equal(t, "trustfetch/1.0", userAgent)

	store, err := certstore.NewStore("")
	require.NoError(t, err)
	md, err := store.GetMetadata()
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/cacert.pem", md.BaseBundle.Source)
	assert.Equal(t, "2025-09-09", md.BaseBundle.Version)
	assert.Equal(t, 100, md.CombinedBundle.CertCount)
}

func TestInitCmd_MozillaTooSmall(t *testing.T) {
	testHome(t)
	bundle := mozillaBundle(t, 5)
	srv := trustServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bundle)
	}))

	_, _, err := executeCommand(t, "", "init", "--mozilla", "--url", srv.URL)
	require.Error(t, err)
	assert.Equal(t, tferrors.ExitCertError, exitCode(err))

	store, err := certstore.NewStore("")
	require.NoError(t, err)
	assert.False(t, store.IsInitialized())
}

func TestInitCmd_MozillaUntrusted(t *testing.T) {
	testHome(t)
	srv := untrustedServer(t, mozillaBundle(t, 100))

	_, _, err := executeCommand(t, "", "init", "--mozilla", "--url", srv.URL)
	require.Error(t, err)
	assert.Equal(t, tferrors.ExitCertError, exitCode(err))
}

func TestInitCmd_MozillaUsesConfigURL(t *testing.T) {
	home := testHome(t)
	bundle := mozillaBundle(t, 100)
	srv := trustServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, string(bundle))
	}))
	testhelper.WriteFile(t, home, filepath.Join(".certs", "config.toml"), []byte("mozilla_url = \""+srv.URL+"/mirror.pem\"\n"))

	_, _, err := executeCommand(t, "", "init", "--mozilla")
	require.NoError(t, err)

	store, err := certstore.NewStore("")
	require.NoError(t, err)
	md, err := store.GetMetadata()
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/mirror.pem", md.BaseBundle.Source)
}
