package cli

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princespaghetti/trustfetch/internal/testhelper"
)

func TestFindTempFiles(t *testing.T) {
	base := t.TempDir()
	a := testhelper.WriteFile(t, base, "ca-bundle.crt.tmp", []byte("x"))
	b := testhelper.WriteFile(t, base, "metadata.json.lock", nil)
	c := testhelper.WriteFile(t, base, filepath.Join("user", "corp.pem.tmp"), []byte("x"))
	testhelper.WriteFile(t, base, "ca-bundle.crt", []byte("keep"))

	found, err := findTempFiles(base)
	require.NoError(t, err)
	sort.Strings(found)
	want := []string{a, b, c}
	sort.Strings(want)
	assert.Equal(t, want, found)

	found, err = findTempFiles(filepath.Join(base, "missing"))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCleanCmd_TempFiles(t *testing.T) {
	home := testHome(t)
	initStore(t, 1)

	tmp := testhelper.WriteFile(t, filepath.Join(home, ".certs"), "ca-bundle.crt.tmp", []byte("partial"))

	out, _, err := executeCommand(t, "", "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed")
	assert.NoFileExists(t, tmp)
	assert.FileExists(t, filepath.Join(home, ".certs", "ca-bundle.crt"))

	out, _, err = executeCommand(t, "", "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "No temporary files found")
}

func TestCleanCmd_Full(t *testing.T) {
	home := testHome(t)
	initStore(t, 1)
	storeDir := filepath.Join(home, ".certs")

	out, _, err := executeCommand(t, "no\n", "clean", "--full")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")
	assert.DirExists(t, storeDir)

	_, _, err = executeCommand(t, "yes\n", "clean", "--full")
	require.NoError(t, err)
	assert.NoDirExists(t, storeDir)

	out, _, err = executeCommand(t, "", "clean", "--full")
	require.NoError(t, err)
	assert.Contains(t, out, "does not exist")

	initStore(t, 1)
	_, _, err = executeCommand(t, "", "clean", "--full", "--force")
	require.NoError(t, err)
	_, err = os.Stat(storeDir)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanCmd_FullKeepsUnmanagedFiles(t *testing.T) {
	home := testHome(t)
	storeDir := filepath.Join(home, ".certs")
	handPlaced := testhelper.WriteFile(t, storeDir, "ca-bundle.crt", testhelper.GenerateCert(t, testhelper.CertOptions{}))

	// Without a store nothing below ~/.certs belongs to trustfetch.
	out, _, err := executeCommand(t, "", "clean", "--full", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing removed")
	assert.FileExists(t, handPlaced)

	initStore(t, 1)
	cfgFile := testhelper.WriteFile(t, storeDir, "config.toml", []byte("concurrency = 2\n"))

	_, _, err = executeCommand(t, "", "clean", "--full", "--force")
	require.NoError(t, err)
	assert.FileExists(t, cfgFile)
	assert.NoFileExists(t, filepath.Join(storeDir, "ca-bundle.crt"))
	assert.NoFileExists(t, filepath.Join(storeDir, "metadata.json"))
}
