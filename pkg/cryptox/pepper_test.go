package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreatePepper(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secrets", "pepper")

	first, err := cryptox.LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := cryptox.LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "pepper must be stable across restarts")
}

func TestLoadOrCreatePepper_Errors(t *testing.T) {
	t.Parallel()

	_, err := cryptox.LoadOrCreatePepper("")
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0600))
	_, err = cryptox.LoadOrCreatePepper(empty)
	require.Error(t, err)
}
