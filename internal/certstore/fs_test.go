package certstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princespaghetti/trustfetch/internal/testhelper"
)

// renameFailFS fails every rename onto target.
type renameFailFS struct {
	OSFileSystem
	target string
}

var errRenameFailed = errors.New("rename failed")

func (f renameFailFS) Rename(oldpath, newpath string) error {
	if newpath == f.target {
		return errRenameFailed
	}
	return f.OSFileSystem.Rename(oldpath, newpath)
}

func TestAddCert_RebuildFailureRollsBack(t *testing.T) {
	store := initTestStore(t)
	bundleBefore, err := os.ReadFile(store.BundlePath())
	require.NoError(t, err)

	store.fs = renameFailFS{target: store.BundlePath()}

	err = store.AddCertData(context.Background(), testhelper.GenerateCert(t, testhelper.CertOptions{}), "corp", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errRenameFailed)

	assert.NoFileExists(t, store.UserCertPath("corp"))
	assert.NoFileExists(t, store.BundlePath()+".tmp")

	bundleAfter, err := os.ReadFile(store.BundlePath())
	require.NoError(t, err)
	assert.Equal(t, bundleBefore, bundleAfter)

	certs, err := store.ListCerts()
	require.NoError(t, err)
	assert.Empty(t, certs)
}

func TestAddCert_RebuildFailureRestoresPrevious(t *testing.T) {
	store := initTestStore(t)
	ctx := context.Background()

	original := testhelper.GenerateCert(t, testhelper.CertOptions{CommonName: "Original"})
	require.NoError(t, store.AddCertData(ctx, original, "corp", false))

	store.fs = renameFailFS{target: store.BundlePath()}
	err := store.AddCertData(ctx, testhelper.GenerateCert(t, testhelper.CertOptions{CommonName: "Replacement"}), "corp", false)
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(store.BasePath(), "user", "corp.pem"))
	require.NoError(t, err)
	assert.Equal(t, original, data)

	info, err := store.GetCertInfo("corp")
	require.NoError(t, err)
	assert.Contains(t, info.Subject, "Original")
}

func TestRemoveCert_RebuildFailureRestoresFile(t *testing.T) {
	store := initTestStore(t)
	ctx := context.Background()

	cert := testhelper.GenerateCert(t, testhelper.CertOptions{CommonName: "Corp"})
	require.NoError(t, store.AddCertData(ctx, cert, "corp", false))

	store.fs = renameFailFS{target: store.BundlePath()}
	err := store.RemoveCert(ctx, "corp")
	require.Error(t, err)
	assert.ErrorIs(t, err, errRenameFailed)

	data, err := os.ReadFile(store.UserCertPath("corp"))
	require.NoError(t, err)
	assert.Equal(t, cert, data)

	info, err := store.GetCertInfo("corp")
	require.NoError(t, err)
	assert.Equal(t, "corp", info.Name)
}
