package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/idx"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
)

const DefaultSessionLifetime = 12 * time.Hour

// Flags are the runtime switches that shape the login sequence.
type Flags struct {
	LoginOTPEnabled  bool
	IdentityRequired bool
}

// NextStage returns the first gate the session has not passed. Gates are
// evaluated in a fixed order and a later gate is never reported while an
// earlier one is pending.
func NextStage(u domain.User, s domain.LoginSession, f Flags) domain.Stage {
	switch {
	case s.ID == "" || s.UserID != u.ID:
		return domain.StagePassword
	case f.LoginOTPEnabled && !s.LoginOTPVerified:
		return domain.StageLoginOTP
	case !u.EmailVerified():
		return domain.StageEmailVerification
	case u.TwoFactorEnabled && len(u.TwoFactorSecret) > 0 && !s.TwoFactorVerified:
		return domain.StageTwoFactor
	case f.IdentityRequired && !u.IdentityVerified():
		return domain.StageIdentityVerification
	}
	return domain.StageAuthenticated
}

// Principal is a resolved login session.
type Principal struct {
	User    domain.User
	Session domain.LoginSession
	Stage   domain.Stage
}

// LoginResult is returned by a successful password check. Token is shown
// to the client once; only its fingerprint is stored.
type LoginResult struct {
	Token     string
	SessionID string
	UserID    string
	Stage     domain.Stage
	ExpiresAt time.Time
}

// CodeNotice describes where a code went, for the client to display.
type CodeNotice struct {
	MaskedEmail string
	ExpiresIn   time.Duration
}

// SessionAuthority runs the login sequence: password, login OTP, email
// verification, two-factor and identity verification.
type SessionAuthority struct {
	Store       store.Store
	Credentials *CredentialStore
	OTP         *OTPEngine
	TwoFactor   *TwoFactorEngine
	Settings    Settings
	Notifier    Notifier
	Lifetime    time.Duration
	Clock       Clock
}

func (a *SessionAuthority) flags(ctx context.Context) Flags {
	s := settingsOrDefaults(a.Settings)
	return Flags{
		LoginOTPEnabled:  s.Bool(ctx, domain.SettingLoginOTPEnabled, true),
		IdentityRequired: s.Bool(ctx, domain.SettingIdentityRequired, false),
	}
}

func (a *SessionAuthority) lifetime() time.Duration {
	if a.Lifetime <= 0 {
		return DefaultSessionLifetime
	}
	return a.Lifetime
}

// NormalizeEmail trims and lower-cases an address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks the password and opens a fresh session with every
// verification flag cleared. Unknown email and wrong password return the
// same ErrInvalidCredential.
func (a *SessionAuthority) Login(ctx context.Context, email, password string) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	email = NormalizeEmail(email)
	if email == "" {
		return LoginResult{}, invalidField("email", "is required")
	}
	if password == "" {
		return LoginResult{}, invalidField("password", "is required")
	}

	// 1. Resolve the user
	u, err := a.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.Credentials.VerifyDummy(password)
			l.Info("login failed", "reason", "unknown_email")
			return LoginResult{}, ErrInvalidCredential
		}
		return LoginResult{}, fmt.Errorf("failed to get user: %w", err)
	}

	// 2. Check the password
	if !a.Credentials.VerifyPassword(ctx, u, password) {
		l.Info("login failed", "reason", "bad_password", "user_id", u.ID)
		return LoginResult{}, ErrInvalidCredential
	}

	// 3. Open a new session; flags from any earlier session do not carry over
	flags := a.flags(ctx)
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := a.Clock.Now()
	sess := domain.LoginSession{
		ID:               idx.NewAt(now).String(),
		UserID:           u.ID,
		TokenHash:        cryptox.FingerprintToken(token),
		LoginOTPVerified: !flags.LoginOTPEnabled,
		CreatedAt:        now,
		ExpiresAt:        now.Add(a.lifetime()),
	}

	err = a.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		if err := tx.Users().TouchLastLogin(ctx, u.ID, now); err != nil {
			return fmt.Errorf("failed to record login: %w", err)
		}
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}

	// 4. Enter the first pending gate
	stage := NextStage(u, sess, flags)
	if err := a.enterStage(ctx, u, stage); err != nil {
		return LoginResult{}, err
	}

	l.Info("login succeeded", "user_id", u.ID, "session_id", sess.ID, "stage", stage)
	return LoginResult{
		Token:     token,
		SessionID: sess.ID,
		UserID:    u.ID,
		Stage:     stage,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// enterStage sends the code a gate needs when the user first reaches it.
func (a *SessionAuthority) enterStage(ctx context.Context, u domain.User, stage domain.Stage) error {
	switch stage {
	case domain.StageLoginOTP:
		_, err := a.sendCode(ctx, u, domain.OTPLogin, "Your login code")
		return err
	case domain.StageEmailVerification:
		if u.EmailVerificationOTP.Pending() && !u.EmailVerificationOTP.Expired(a.Clock.Now()) {
			return nil
		}
		_, err := a.sendCode(ctx, u, domain.OTPEmailVerification, "Verify your email address")
		return err
	}
	return nil
}

func (a *SessionAuthority) sendCode(ctx context.Context, u domain.User, purpose domain.OTPPurpose, title string) (CodeNotice, error) {
	code, err := a.OTP.Generate(ctx, u.ID, purpose)
	if err != nil {
		return CodeNotice{}, err
	}
	deliverCode(ctx, a.Notifier, u, title, code)
	return CodeNotice{MaskedEmail: MaskEmail(u.Email), ExpiresIn: OTPValidity}, nil
}

// Authenticate resolves an opaque session token.
func (a *SessionAuthority) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrInvalidCredential
	}
	sess, err := a.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrInvalidCredential
		}
		return Principal{}, fmt.Errorf("failed to get session: %w", err)
	}
	return a.resolve(ctx, sess)
}

// AuthenticateToken adapts Authenticate for the HTTP session middleware.
func (a *SessionAuthority) AuthenticateToken(ctx context.Context, token string) (httpx.AuthInfo, error) {
	p, err := a.Authenticate(ctx, token)
	if err != nil {
		return httpx.AuthInfo{}, err
	}
	return httpx.AuthInfo{UserID: p.User.ID, SessionID: p.Session.ID, Stage: string(p.Stage)}, nil
}

// Stage reloads a session and reports its current gate.
func (a *SessionAuthority) Stage(ctx context.Context, sessionID string) (Principal, error) {
	sess, err := a.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrInvalidCredential
		}
		return Principal{}, fmt.Errorf("failed to get session: %w", err)
	}
	return a.resolve(ctx, sess)
}

func (a *SessionAuthority) resolve(ctx context.Context, sess domain.LoginSession) (Principal, error) {
	if sess.Expired(a.Clock.Now()) {
		slogx.FromContext(ctx).Debug("session rejected", "session_id", sess.ID, "reason", "expired")
		return Principal{}, ErrInvalidCredential
	}
	u, err := getUser(ctx, a.Store, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrInvalidCredential
		}
		return Principal{}, err
	}
	return Principal{User: u, Session: sess, Stage: NextStage(u, sess, a.flags(ctx))}, nil
}

// requireStage loads the session and checks it is waiting at want.
func (a *SessionAuthority) requireStage(ctx context.Context, sessionID string, want domain.Stage) (Principal, error) {
	p, err := a.Stage(ctx, sessionID)
	if err != nil {
		return Principal{}, err
	}
	if p.Stage != want {
		return Principal{}, precondition(fmt.Sprintf("Session is at stage %q, not %q.", p.Stage, want))
	}
	return p, nil
}

// advance reloads the session after a gate passed and prepares the next one.
func (a *SessionAuthority) advance(ctx context.Context, sessionID string) (domain.Stage, error) {
	p, err := a.Stage(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if err := a.enterStage(ctx, p.User, p.Stage); err != nil {
		return "", err
	}
	return p.Stage, nil
}

// ResendLoginOTP replaces the login code with a new one.
func (a *SessionAuthority) ResendLoginOTP(ctx context.Context, sessionID string) (CodeNotice, error) {
	p, err := a.requireStage(ctx, sessionID, domain.StageLoginOTP)
	if err != nil {
		return CodeNotice{}, err
	}
	return a.sendCode(ctx, p.User, domain.OTPLogin, "Your login code")
}

// VerifyLoginOTP passes the login OTP gate. A wrong code leaves the session
// waiting at the same gate.
func (a *SessionAuthority) VerifyLoginOTP(ctx context.Context, sessionID, code string) (domain.Stage, error) {
	p, err := a.requireStage(ctx, sessionID, domain.StageLoginOTP)
	if err != nil {
		return "", err
	}
	if err := a.OTP.VerifyLoginOTP(ctx, p.User.ID, code); err != nil {
		return "", err
	}
	if err := a.Store.Sessions().MarkLoginOTPVerified(ctx, sessionID); err != nil {
		return "", fmt.Errorf("failed to mark login otp verified: %w", err)
	}
	return a.advance(ctx, sessionID)
}

// SendEmailVerificationCode issues a new email verification code.
func (a *SessionAuthority) SendEmailVerificationCode(ctx context.Context, sessionID string) (CodeNotice, error) {
	p, err := a.requireStage(ctx, sessionID, domain.StageEmailVerification)
	if err != nil {
		return CodeNotice{}, err
	}
	return a.sendCode(ctx, p.User, domain.OTPEmailVerification, "Verify your email address")
}

// VerifyEmail passes the email verification gate.
func (a *SessionAuthority) VerifyEmail(ctx context.Context, sessionID, code string) (domain.Stage, error) {
	p, err := a.requireStage(ctx, sessionID, domain.StageEmailVerification)
	if err != nil {
		return "", err
	}
	if err := a.OTP.Verify(ctx, p.User.ID, domain.OTPEmailVerification, code); err != nil {
		return "", err
	}
	now := a.Clock.Now()
	if err := a.Store.Users().SetEmailVerifiedAt(ctx, p.User.ID, &now); err != nil {
		return "", fmt.Errorf("failed to mark email verified: %w", err)
	}
	slogx.FromContext(ctx).Info("email verified", "user_id", p.User.ID)
	return a.advance(ctx, sessionID)
}

// VerifyTwoFactor passes the two-factor gate with a TOTP or recovery code.
func (a *SessionAuthority) VerifyTwoFactor(ctx context.Context, sessionID string, in CodeInput) (domain.Stage, error) {
	p, err := a.requireStage(ctx, sessionID, domain.StageTwoFactor)
	if err != nil {
		return "", err
	}
	if err := a.TwoFactor.VerifyLoginChallenge(ctx, p.User.ID, in); err != nil {
		return "", err
	}
	if err := a.Store.Sessions().MarkTwoFactorVerified(ctx, sessionID); err != nil {
		return "", fmt.Errorf("failed to mark two-factor verified: %w", err)
	}
	return a.advance(ctx, sessionID)
}

// Logout clears both verification flags and destroys the session, so the
// next visit walks every gate again.
func (a *SessionAuthority) Logout(ctx context.Context, sessionID string) error {
	err := a.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().ClearVerification(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to clear session flags: %w", err)
		}
		if err := tx.Sessions().DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("logged out", "session_id", sessionID)
	return nil
}
