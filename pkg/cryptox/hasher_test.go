package cryptox

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_Hash(t *testing.T) {
	h := NewHasher("test-pepper")

	tests := []struct {
		name   string
		secret string
	}{
		{"password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"passcode", "123456"},
		{"leading zero passcode", "000042"},
		{"unicode", "пароль🔒密码"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.secret)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"))
			require.NotContains(t, hash, tt.secret+"$")
			require.Len(t, strings.Split(hash, "$"), 6)

			rehash, err := h.Verify(tt.secret, hash)
			require.NoError(t, err)
			require.False(t, rehash)
		})
	}
}

func TestHasher_UniqueSalts(t *testing.T) {
	h := NewHasher("test-pepper")

	a, err := h.Hash("123456")
	require.NoError(t, err)
	b, err := h.Hash("123456")
	require.NoError(t, err)

	require.NotEqual(t, a, b, "hashes should differ due to unique salts")
}

func TestHasher_VerifyMismatch(t *testing.T) {
	h := NewHasher("test-pepper")
	hash, err := h.Hash("123456")
	require.NoError(t, err)

	for _, wrong := range []string{"000000", "12345", "1234567", "", "123456 "} {
		t.Run(wrong, func(t *testing.T) {
			_, err := h.Verify(wrong, hash)
			require.ErrorIs(t, err, ErrMismatch)
		})
	}
}

func TestHasher_PepperMatters(t *testing.T) {
	hash, err := NewHasher("pepper-one").Hash("correct horse")
	require.NoError(t, err)

	_, err = NewHasher("pepper-two").Verify("correct horse", hash)
	require.ErrorIs(t, err, ErrMismatch)
}

func TestHasher_MalformedHash(t *testing.T) {
	h := NewHasher("test-pepper")

	tests := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"truncated bcrypt", "$2y$10$short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Verify("secret", tt.hash)
			require.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}

func TestHasher_LegacyBcrypt(t *testing.T) {
	h := NewHasher("test-pepper")

	raw, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	require.NoError(t, err)

	// The same algorithm is also written under the $2y$ prefix.
	yHash := "$2y$" + string(raw[4:])
	require.True(t, IsLegacyHash(yHash))

	for _, hash := range []string{string(raw), yHash} {
		rehash, err := h.Verify("legacy-password", hash)
		require.NoError(t, err)
		require.True(t, rehash, "legacy hashes must be upgraded")

		_, err = h.Verify("wrong-password", hash)
		require.ErrorIs(t, err, ErrMismatch)
	}
}

func TestHasher_OutdatedParameters(t *testing.T) {
	h := NewHasher("test-pepper")

	salt := []byte("0123456789abcdef")
	sum := argon2.IDKey([]byte("pw"+"test-pepper"), salt, 1, memory, parallelism, keyLength)
	old := fmt.Sprintf("$argon2id$v=19$m=%d,t=1,p=%d$%s$%s",
		memory, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum))

	rehash, err := h.Verify("pw", old)
	require.NoError(t, err)
	require.True(t, rehash)
}
