package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store/drivers/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CodeKindTOTP, ClassifyCode("123456"))
	assert.Equal(t, CodeKindTOTP, ClassifyCode(" 123456 "))
	assert.Equal(t, CodeKindRecovery, ClassifyCode("ABCD-EFGH"))
	assert.Equal(t, CodeKindRecovery, ClassifyCode("1234567"))
}

func TestProvisioningURI(t *testing.T) {
	t.Parallel()

	env := &TwoFactorEngine{}
	secret, err := env.GenerateSecret()
	require.NoError(t, err)

	uri, err := ProvisioningURI("Example Site", "zoe@example.com", secret)
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, secret, u.Query().Get("secret"))
	assert.Equal(t, "Example Site", u.Query().Get("issuer"))
	assert.Contains(t, u.Path, "zoe@example.com")

	_, err = ProvisioningURI("x", "y", "not base32!")
	require.Error(t, err)
}

func TestTwoFactorEngine_EnableConfirm(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "ava@example.com")

	_, err := env.tf.Enable(ctx, u.ID, "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredential)

	enr, err := env.tf.Enable(ctx, u.ID, testPassword)
	require.NoError(t, err)
	assert.Contains(t, enr.URI, "NationalResourceBenefits")

	stored := env.user(t, u.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.NotEmpty(t, stored.TwoFactorSecret)
	assert.NotContains(t, string(stored.TwoFactorSecret), enr.Secret, "secret is encrypted at rest")

	// A second Enable before confirmation returns the same pending secret.
	again, err := env.tf.Enable(ctx, u.ID, testPassword)
	require.NoError(t, err)
	assert.Equal(t, enr.Secret, again.Secret)

	code, err := CurrentCode(enr.Secret, env.clock.Now())
	require.NoError(t, err)
	codes, err := env.tf.Confirm(ctx, u.ID, code)
	require.NoError(t, err)
	assert.Len(t, codes, RecoveryCodeCount)

	stored = env.user(t, u.ID)
	assert.True(t, stored.TwoFactorEnabled)
	assert.NotNil(t, stored.TwoFactorConfirmedAt)

	n, err := env.tf.RecoveryCodesRemaining(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, RecoveryCodeCount, n)
	assert.Contains(t, env.notifier.titles(), "Two-factor authentication enabled")

	_, err = env.tf.Enable(ctx, u.ID, testPassword)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	_, err = env.tf.Confirm(ctx, u.ID, code)
	require.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestTwoFactorEngine_ConfirmRejectsBadCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "ben@example.com")

	_, err := env.tf.Confirm(ctx, u.ID, "123456")
	require.ErrorIs(t, err, ErrPreconditionFailed, "nothing pending")

	enr, err := env.tf.Enable(ctx, u.ID, testPassword)
	require.NoError(t, err)

	// A code from far outside the skew window never validates.
	stale, err := CurrentCode(enr.Secret, env.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	current, err := CurrentCode(enr.Secret, env.clock.Now())
	require.NoError(t, err)
	if stale == current {
		t.Skip("stale code collides with the current one")
	}

	_, err = env.tf.Confirm(ctx, u.ID, stale)
	require.ErrorIs(t, err, ErrInvalidCredential)

	stored := env.user(t, u.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Nil(t, stored.TwoFactorConfirmedAt)
	n, err := env.tf.RecoveryCodesRemaining(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = env.tf.Confirm(ctx, u.ID, "12345")
	require.ErrorIs(t, err, ErrValidation)
}

func TestTwoFactorEngine_LoginChallenge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "cal@example.com")
	secret, codes := env.enableTwoFactor(t, u.ID)

	current, err := CurrentCode(secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Value: current}))

	// One period of clock drift either way is accepted.
	prev, err := CurrentCode(secret, env.clock.Now().Add(-30*time.Second))
	require.NoError(t, err)
	require.NoError(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Kind: CodeKindTOTP, Value: prev}))

	// Recovery codes are accepted exactly once.
	require.NoError(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Value: codes[0]}))
	require.ErrorIs(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Value: codes[0]}), ErrInvalidCredential)
	require.NoError(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Kind: CodeKindRecovery, Value: codes[1]}))

	n, err := env.tf.RecoveryCodesRemaining(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, RecoveryCodeCount-2, n)

	require.ErrorIs(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Value: ""}), ErrValidation)
	require.ErrorIs(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Kind: "sms", Value: "123456"}), ErrValidation)
	require.ErrorIs(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Value: "NOPE-NOPE"}), ErrInvalidCredential)
}

func TestTwoFactorEngine_Disable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "dee@example.com")

	require.ErrorIs(t, env.tf.Disable(ctx, u.ID, testPassword), ErrPreconditionFailed)

	env.enableTwoFactor(t, u.ID)
	require.ErrorIs(t, env.tf.Disable(ctx, u.ID, "wrong password"), ErrInvalidCredential)
	require.True(t, env.user(t, u.ID).TwoFactorEnabled)

	require.NoError(t, env.tf.Disable(ctx, u.ID, testPassword))

	got := env.user(t, u.ID)
	assert.False(t, got.TwoFactorEnabled)
	assert.Empty(t, got.TwoFactorSecret)
	assert.Nil(t, got.TwoFactorConfirmedAt)
	n, err := env.tf.RecoveryCodesRemaining(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, env.notifier.titles(), "Two-factor authentication disabled")
}

func TestTwoFactorEngine_RegenerateRecoveryCodes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "eli@example.com")

	_, err := env.tf.RegenerateRecoveryCodes(ctx, u.ID, testPassword)
	require.ErrorIs(t, err, ErrPreconditionFailed)

	_, old := env.enableTwoFactor(t, u.ID)
	_, err = env.tf.RegenerateRecoveryCodes(ctx, u.ID, "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredential)

	fresh, err := env.tf.RegenerateRecoveryCodes(ctx, u.ID, testPassword)
	require.NoError(t, err)
	require.Len(t, fresh, RecoveryCodeCount)

	require.ErrorIs(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Value: old[0]}), ErrInvalidCredential)
	require.NoError(t, env.tf.VerifyLoginChallenge(ctx, u.ID, CodeInput{Value: fresh[0]}))
}

func TestReplaceRecoveryCodes_RollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("PRAGMA foreign_keys").WillReturnResult(sqlmock.NewResult(0, 0))
	st, err := sqlite.NewStoreFromDB(db)
	require.NoError(t, err)

	diskErr := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM recovery_codes").WillReturnResult(sqlmock.NewResult(0, RecoveryCodeCount))
	mock.ExpectExec("INSERT INTO recovery_codes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO recovery_codes").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO recovery_codes").WillReturnError(diskErr)
	mock.ExpectRollback()

	codes, err := generateRecoveryCodes()
	require.NoError(t, err)

	err = replaceRecoveryCodes(context.Background(), st, "user", codes, time.Now())
	require.ErrorIs(t, err, diskErr)
	require.NoError(t, mock.ExpectationsWereMet())
}
