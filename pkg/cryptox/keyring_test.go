package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestKeyring_SealOpen(t *testing.T) {
	t.Parallel()

	kr, err := cryptox.NewKeyring([]byte("test-master-key-for-encryption-12345"))
	require.NoError(t, err)

	secret := []byte("JBSWY3DPEHPK3PXP")
	sealed, err := kr.Seal(secret, []byte("user-1"))
	require.NoError(t, err)
	require.NotContains(t, string(sealed), string(secret))

	opened, err := kr.Open(sealed, []byte("user-1"))
	require.NoError(t, err)
	require.Equal(t, secret, opened)

	t.Run("random nonce", func(t *testing.T) {
		again, err := kr.Seal(secret, []byte("user-1"))
		require.NoError(t, err)
		require.NotEqual(t, sealed, again)
	})

	t.Run("bound to owner", func(t *testing.T) {
		_, err := kr.Open(sealed, []byte("user-2"))
		require.ErrorIs(t, err, cryptox.ErrDecrypt)
	})

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xff
		_, err := kr.Open(bad, []byte("user-1"))
		require.ErrorIs(t, err, cryptox.ErrDecrypt)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := kr.Open(sealed[:5], []byte("user-1"))
		require.ErrorIs(t, err, cryptox.ErrDecrypt)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := cryptox.NewKeyring([]byte("another-key"))
		require.NoError(t, err)
		_, err = other.Open(sealed, []byte("user-1"))
		require.ErrorIs(t, err, cryptox.ErrDecrypt)
	})
}

func TestKeyring_Empty(t *testing.T) {
	t.Parallel()

	_, err := cryptox.NewKeyring(nil)
	require.Error(t, err)
}

func TestLoadKeyring(t *testing.T) {
	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte("file-key"), 0600))

		kr, ephemeral, err := cryptox.LoadKeyring(path, "")
		require.NoError(t, err)
		require.False(t, ephemeral)

		fromMaterial, err := cryptox.NewKeyring([]byte("file-key"))
		require.NoError(t, err)
		sealed, err := kr.Seal([]byte("x"), nil)
		require.NoError(t, err)
		_, err = fromMaterial.Open(sealed, nil)
		require.NoError(t, err)
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv("VAULTGATE_TEST_MASTER_KEY", "env-key")
		_, ephemeral, err := cryptox.LoadKeyring("", "VAULTGATE_TEST_MASTER_KEY")
		require.NoError(t, err)
		require.False(t, ephemeral)
	})

	t.Run("ephemeral", func(t *testing.T) {
		_, ephemeral, err := cryptox.LoadKeyring("", "VAULTGATE_TEST_UNSET_KEY")
		require.NoError(t, err)
		require.True(t, ephemeral)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := cryptox.LoadKeyring(filepath.Join(t.TempDir(), "nope"), "")
		require.Error(t, err)
	})
}

func TestKeyring_DeriveKey(t *testing.T) {
	t.Parallel()

	kr, err := cryptox.NewKeyring([]byte("material"))
	require.NoError(t, err)

	a1, err := kr.DeriveKey("otp")
	require.NoError(t, err)
	a2, err := kr.DeriveKey("otp")
	require.NoError(t, err)
	b, err := kr.DeriveKey("other")
	require.NoError(t, err)

	require.Len(t, a1, 32)
	require.Equal(t, a1, a2)
	require.NotEqual(t, a1, b)
}

func TestMAC(t *testing.T) {
	t.Parallel()

	key := []byte("0123456789abcdef0123456789abcdef")

	require.Equal(t, cryptox.MAC(key, "u1", "login", "123456"), cryptox.MAC(key, "u1", "login", "123456"))
	require.NotEqual(t, cryptox.MAC(key, "u1", "login", "123456"), cryptox.MAC(key, "u1", "withdrawal", "123456"))
	require.NotEqual(t, cryptox.MAC(key, "ab", "c"), cryptox.MAC(key, "a", "bc"))
	require.True(t, cryptox.EqualMAC(cryptox.MAC(key, "x"), cryptox.MAC(key, "x")))
	require.False(t, cryptox.EqualMAC(cryptox.MAC(key, "x"), cryptox.MAC(key, "y")))
}
