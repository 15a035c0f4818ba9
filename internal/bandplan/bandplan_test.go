package bandplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadParsesRXAndTX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bandplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rx:
  - name: 20m
    low: 14000000
    high: 14350000
tx:
  - name: 20m
    low: 14000000
    high: 14150000
`), 0o644))

	limits, err := Load(path)
	require.NoError(t, err)
	require.True(t, limits.CheckRX(14200000))
	require.True(t, limits.CheckTX(14100000))
	require.False(t, limits.CheckTX(14200000))
}

func TestLoadEmptyMeansUnrestricted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bandplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rx: []\ntx: []\n"), 0o644))

	limits, err := Load(path)
	require.NoError(t, err)
	require.True(t, limits.CheckRX(99999999))
	require.True(t, limits.CheckTX(1))
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
