package cryptox_test

import (
	"regexp"
	"testing"

	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateDigits(t *testing.T) {
	t.Parallel()

	digits := regexp.MustCompile(`^[0-9]{6}$`)
	seen := make(map[string]struct{})
	for range 200 {
		code, err := cryptox.GenerateDigits(6)
		require.NoError(t, err)
		require.Regexp(t, digits, code)
		seen[code] = struct{}{}
	}
	// 200 draws from a million values; collisions beyond a handful mean the source is broken.
	require.Greater(t, len(seen), 190)

	_, err := cryptox.GenerateDigits(0)
	require.Error(t, err)
}

func TestGenerateRecoveryCode(t *testing.T) {
	t.Parallel()

	format := regexp.MustCompile(`^[a-zA-Z0-9]{10}-[a-zA-Z0-9]{10}$`)
	seen := make(map[string]struct{})
	for range 50 {
		code, err := cryptox.GenerateRecoveryCode()
		require.NoError(t, err)
		require.Regexp(t, format, code)
		require.NotContains(t, seen, code)
		seen[code] = struct{}{}
	}
}

func TestGenerateAlphanumeric(t *testing.T) {
	t.Parallel()

	s, err := cryptox.GenerateAlphanumeric(32)
	require.NoError(t, err)
	require.Regexp(t, `^[a-zA-Z0-9]{32}$`, s)
}
