package service

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStage(t *testing.T) {
	t.Parallel()

	now := time.Now()
	verified := domain.User{ID: "u1", EmailVerifiedAt: &now}
	twoFactor := verified
	twoFactor.TwoFactorEnabled = true
	twoFactor.TwoFactorSecret = []byte("sealed")
	identified := verified
	identified.IdentityVerifiedAt = &now

	sess := domain.LoginSession{ID: "s1", UserID: "u1"}
	passed := sess
	passed.LoginOTPVerified = true

	on := Flags{LoginOTPEnabled: true}
	off := Flags{}

	tests := []struct {
		name string
		user domain.User
		sess domain.LoginSession
		f    Flags
		want domain.Stage
	}{
		{"no session", verified, domain.LoginSession{}, on, domain.StagePassword},
		{"session of another user", verified, domain.LoginSession{ID: "s1", UserID: "u2"}, on, domain.StagePassword},
		{"login otp pending", domain.User{ID: "u1"}, sess, on, domain.StageLoginOTP},
		{"login otp disabled", domain.User{ID: "u1"}, sess, off, domain.StageEmailVerification},
		{"email unverified", domain.User{ID: "u1"}, passed, on, domain.StageEmailVerification},
		{"two-factor pending", twoFactor, passed, on, domain.StageTwoFactor},
		{"two-factor passed", twoFactor, domain.LoginSession{ID: "s1", UserID: "u1", LoginOTPVerified: true, TwoFactorVerified: true}, on, domain.StageAuthenticated},
		{"enabled without secret", domain.User{ID: "u1", EmailVerifiedAt: &now, TwoFactorEnabled: true}, passed, on, domain.StageAuthenticated},
		{"identity required", verified, passed, Flags{LoginOTPEnabled: true, IdentityRequired: true}, domain.StageIdentityVerification},
		{"identity verified", identified, passed, Flags{IdentityRequired: true}, domain.StageAuthenticated},
		{"authenticated", verified, passed, on, domain.StageAuthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStage(tt.user, tt.sess, tt.f))
		})
	}
}

func TestSessionAuthority_LoginSequence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "fin@example.com")
	secret, _ := env.enableTwoFactor(t, u.ID)

	res, err := env.auth.Login(ctx, " FIN@example.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, domain.StageLoginOTP, res.Stage)
	assert.NotEmpty(t, res.Token)

	// A wrong login code leaves the session at the same gate.
	code := env.notifier.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = env.auth.VerifyLoginOTP(ctx, res.SessionID, wrong)
	require.ErrorIs(t, err, ErrInvalidCredential)

	// The two-factor gate is not reachable before the login OTP.
	totpCode, err := CurrentCode(secret, env.clock.Now())
	require.NoError(t, err)
	_, err = env.auth.VerifyTwoFactor(ctx, res.SessionID, CodeInput{Value: totpCode})
	require.ErrorIs(t, err, ErrPreconditionFailed)

	stage, err := env.auth.VerifyLoginOTP(ctx, res.SessionID, code)
	require.NoError(t, err)
	assert.Equal(t, domain.StageTwoFactor, stage)

	stage, err = env.auth.VerifyTwoFactor(ctx, res.SessionID, CodeInput{Value: totpCode})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAuthenticated, stage)

	p, err := env.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.StageAuthenticated, p.Stage)
	assert.Equal(t, u.ID, p.User.ID)

	info, err := env.auth.AuthenticateToken(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, info.Authenticated())
	assert.Equal(t, res.SessionID, info.SessionID)

	// Logout destroys the session; the next login starts over.
	require.NoError(t, env.auth.Logout(ctx, res.SessionID))
	_, err = env.auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, ErrInvalidCredential)

	res, err = env.auth.Login(ctx, "fin@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, domain.StageLoginOTP, res.Stage)
}

func TestSessionAuthority_LoginOTPDisabled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.settings[domain.SettingLoginOTPEnabled] = "false"

	u, err := env.admin.CreateUser(ctx, NewUser{Email: "gus@example.com", Password: testPassword})
	require.NoError(t, err)

	res, err := env.auth.Login(ctx, "gus@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, domain.StageEmailVerification, res.Stage)

	// Entering the gate mailed a verification code.
	code := env.notifier.lastCode(t)
	assert.True(t, env.user(t, u.ID).EmailVerificationOTP.Pending())

	stage, err := env.auth.VerifyEmail(ctx, res.SessionID, code)
	require.NoError(t, err)
	assert.Equal(t, domain.StageAuthenticated, stage)
	assert.True(t, env.user(t, u.ID).EmailVerified())
}

func TestSessionAuthority_IdentityGate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.settings[domain.SettingLoginOTPEnabled] = "false"
	env.settings[domain.SettingIdentityRequired] = "true"
	u := env.newUser(t, "hank@example.com")

	res, err := env.auth.Login(ctx, "hank@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, domain.StageIdentityVerification, res.Stage)

	require.NoError(t, env.admin.MarkIdentityVerified(ctx, u.ID))
	p, err := env.auth.Stage(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageAuthenticated, p.Stage)
}

func TestSessionAuthority_LoginFailures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.newUser(t, "ida@example.com")

	_, err := env.auth.Login(ctx, "ida@example.com", "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = env.auth.Login(ctx, "nobody@example.com", testPassword)
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = env.auth.Login(ctx, "", testPassword)
	require.ErrorIs(t, err, ErrValidation)
	_, err = env.auth.Login(ctx, "ida@example.com", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestSessionAuthority_ResendLoginOTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.newUser(t, "jo@example.com")

	res, err := env.auth.Login(ctx, "jo@example.com", testPassword)
	require.NoError(t, err)
	first := env.notifier.lastCode(t)

	notice, err := env.auth.ResendLoginOTP(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "j***@example.com", notice.MaskedEmail)
	second := env.notifier.lastCode(t)

	if first != second {
		_, err = env.auth.VerifyLoginOTP(ctx, res.SessionID, first)
		require.ErrorIs(t, err, ErrInvalidCredential)
	}
	_, err = env.auth.VerifyLoginOTP(ctx, res.SessionID, second)
	require.NoError(t, err)

	_, err = env.auth.ResendLoginOTP(ctx, res.SessionID)
	require.ErrorIs(t, err, ErrPreconditionFailed, "gate already passed")
}

func TestSessionAuthority_SessionExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.newUser(t, "kai@example.com")

	res, err := env.auth.Login(ctx, "kai@example.com", testPassword)
	require.NoError(t, err)

	env.clock.Advance(DefaultSessionLifetime)
	_, err = env.auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = env.auth.Authenticate(ctx, "")
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"john@example.com": "j**n@example.com",
		"ab@example.com":   "a***@example.com",
		"a@example.com":    "a***@example.com",
		"abc@example.com":  "a*c@example.com",
		"@example.com":     "***@example.com",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskEmail(in), in)
	}

	// Masking works on characters, not bytes.
	assert.Equal(t, "é****e@example.fr", MaskEmail("élodie@example.fr"))
	assert.Equal(t, "z*ë@example.com", MaskEmail("zoë@example.com"))
	assert.Equal(t, "日***@example.jp", MaskEmail("日本@example.jp"))
	assert.True(t, utf8.ValidString(MaskEmail("ü@example.com")))
}
