package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePasscode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		valid bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"１２３４５６", false}, // full-width digits
		{"", false},
	}
	for _, tt := range tests {
		err := ValidatePasscode("passcode", tt.in)
		if tt.valid {
			assert.NoError(t, err, tt.in)
		} else {
			assert.ErrorIs(t, err, ErrValidation, tt.in)
		}
	}
}

func TestCredentialStore_Password(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "pat@example.com")

	assert.True(t, env.creds.VerifyPassword(ctx, u, testPassword))
	assert.False(t, env.creds.VerifyPassword(ctx, u, "wrong password"))

	require.ErrorIs(t, env.creds.SetPassword(ctx, u.ID, "short"), ErrValidation)
	require.NoError(t, env.creds.SetPassword(ctx, u.ID, "a brand new password"))
	assert.True(t, env.creds.VerifyPassword(ctx, env.user(t, u.ID), "a brand new password"))

	require.ErrorIs(t, env.creds.SetPassword(ctx, "missing", "a brand new password"), ErrUserNotFound)
}

func TestCredentialStore_LegacyHashUpgraded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "legacy@example.com")

	legacy, err := bcrypt.GenerateFromPassword([]byte("old password"), bcrypt.MinCost)
	require.NoError(t, err)
	// Some bcrypt implementations write the $2y$ prefix.
	legacyY := "$2y$" + string(legacy[4:])
	require.NoError(t, env.store.Users().UpdatePasswordHash(ctx, u.ID, legacyY))

	require.True(t, env.creds.VerifyPassword(ctx, env.user(t, u.ID), "old password"))

	upgraded := env.user(t, u.ID)
	assert.Contains(t, upgraded.PasswordHash, "$argon2id$")
	assert.True(t, env.creds.VerifyPassword(ctx, upgraded, "old password"))
}

func TestCredentialStore_WithdrawalPasscode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "quinn@example.com")

	require.ErrorIs(t, env.creds.SetWithdrawalPasscode(ctx, u.ID, "12345"), ErrValidation)
	require.NoError(t, env.creds.SetWithdrawalPasscode(ctx, u.ID, "123456"))

	u = env.user(t, u.ID)
	assert.True(t, u.HasWithdrawalPasscode())
	assert.NotContains(t, u.WithdrawalPasscodeHash, "123456")
	assert.NotNil(t, u.WithdrawalPasscodeSetAt)

	assert.True(t, env.creds.VerifyWithdrawalPasscode(u, "123456"))
	assert.False(t, env.creds.VerifyWithdrawalPasscode(u, "654321"))
	assert.Zero(t, env.user(t, u.ID).PasscodeFailedAttempts, "verification alone never counts")

	require.NoError(t, env.creds.RemoveWithdrawalPasscode(ctx, u.ID))
	u = env.user(t, u.ID)
	assert.False(t, u.HasWithdrawalPasscode())
	assert.Nil(t, u.WithdrawalPasscodeSetAt)
	assert.False(t, env.creds.VerifyWithdrawalPasscode(u, "123456"))
}
