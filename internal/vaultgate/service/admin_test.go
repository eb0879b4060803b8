package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_CreateUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u := env.newUser(t, "Lou@Example.com")
	assert.Equal(t, "lou@example.com", u.Email)

	_, err := env.admin.CreateUser(ctx, NewUser{Email: "lou@example.com", Password: testPassword})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.admin.CreateUser(ctx, NewUser{Email: "new@example.com", Password: "short"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.admin.GetUser(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminService_ResetPasscodeLockout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "mo@example.com")
	setupPasscode(t, env, u.ID, "123456")

	for range DefaultLockoutThreshold {
		_, _ = env.gate.Verify(ctx, u.ID, "000000")
	}
	_, err := env.gate.Verify(ctx, u.ID, "123456")
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, env.admin.ResetPasscodeLockout(ctx, u.ID))
	_, err = env.gate.Verify(ctx, u.ID, "123456")
	require.NoError(t, err)

	require.ErrorIs(t, env.admin.ResetPasscodeLockout(ctx, "missing"), ErrUserNotFound)
}

func TestAdminService_ResetLoginOTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "nia@example.com")

	res, err := env.auth.Login(ctx, "nia@example.com", testPassword)
	require.NoError(t, err)
	require.True(t, env.user(t, u.ID).LoginOTP.Pending())

	require.NoError(t, env.admin.ResetLoginOTP(ctx, u.ID))
	assert.False(t, env.user(t, u.ID).LoginOTP.Pending())
	_, err = env.auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, ErrInvalidCredential)

	require.ErrorIs(t, env.admin.ResetLoginOTP(ctx, "missing"), ErrUserNotFound)
}

func TestAdminService_DisableTwoFactor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "oz@example.com")

	require.ErrorIs(t, env.admin.DisableTwoFactor(ctx, u.ID), ErrPreconditionFailed)

	env.enableTwoFactor(t, u.ID)
	require.NoError(t, env.admin.DisableTwoFactor(ctx, u.ID))

	got := env.user(t, u.ID)
	assert.False(t, got.TwoFactorEnabled)
	assert.Empty(t, got.TwoFactorSecret)
}

func TestAdminService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "pam@example.com")

	res, err := env.auth.Login(ctx, "pam@example.com", testPassword)
	require.NoError(t, err)

	require.ErrorIs(t, env.admin.ChangePassword(ctx, u.ID, "new password 1", "new password 2", true), ErrValidation)
	require.NoError(t, env.admin.ChangePassword(ctx, u.ID, "new password 1", "new password 1", true))

	_, err = env.auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, ErrInvalidCredential, "sessions are ended")
	assert.True(t, env.creds.VerifyPassword(ctx, env.user(t, u.ID), "new password 1"))
	assert.Contains(t, env.notifier.titles(), "Password Changed")
}

func TestAdminService_Verification(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "roy@example.com")

	require.NoError(t, env.admin.SetEmailVerified(ctx, u.ID, false))
	assert.False(t, env.user(t, u.ID).EmailVerified())
	require.NoError(t, env.admin.SetEmailVerified(ctx, u.ID, true))
	assert.True(t, env.user(t, u.ID).EmailVerified())

	require.NoError(t, env.admin.MarkIdentityVerified(ctx, u.ID))
	assert.True(t, env.user(t, u.ID).IdentityVerified())

	require.ErrorIs(t, env.admin.SetEmailVerified(ctx, "missing", true), ErrUserNotFound)
	require.ErrorIs(t, env.admin.SetRequireWithdrawalPasscode(ctx, "missing", true), ErrUserNotFound)
}

func TestInboxService(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "sue@example.com")
	other := env.newUser(t, "tom@example.com")

	for i, title := range []string{"first", "second"} {
		require.NoError(t, env.store.Notifications().CreateNotification(ctx, domain.Notification{
			ID:        uuid.New(),
			UserID:    u.ID,
			Title:     title,
			Body:      "body",
			CreatedAt: env.clock.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := env.inbox.List(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title)

	require.ErrorIs(t, env.inbox.MarkRead(ctx, u.ID, "not-a-uuid"), ErrValidation)
	require.ErrorIs(t, env.inbox.MarkRead(ctx, other.ID, list[0].ID.String()), ErrPreconditionFailed)
	require.NoError(t, env.inbox.MarkRead(ctx, u.ID, list[0].ID.String()))

	list, err = env.inbox.List(ctx, u.ID, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].ReadAt)
}

func TestHousekeepingService_Cleanup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "uri@example.com")

	res, err := env.auth.Login(ctx, "uri@example.com", testPassword)
	require.NoError(t, err)
	require.True(t, env.user(t, u.ID).LoginOTP.Pending())

	logger := slogx.NewWithWriter(io.Discard, slogx.Config{Service: "test"})
	hk := NewHousekeepingService(env.store, logger, time.Hour)
	hk.Clock = env.clock.Now

	hk.Cleanup(ctx)
	assert.True(t, env.user(t, u.ID).LoginOTP.Pending(), "live code survives")

	env.clock.Advance(DefaultSessionLifetime + time.Minute)
	hk.Cleanup(ctx)

	assert.False(t, env.user(t, u.ID).LoginOTP.Pending())
	_, err = env.store.Sessions().GetSessionByID(ctx, res.SessionID)
	require.Error(t, err)
}
