package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/jwtx"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
)

// PasscodeStatus is the read-only view of a user's withdrawal passcode.
type PasscodeStatus struct {
	HasPasscode      bool
	RequiresPasscode bool
	Locked           bool
	LockoutRemaining time.Duration
}

// Grant is a signed, short-lived proof that the withdrawal gate was passed.
type Grant struct {
	Token     string
	ID        string
	Method    string
	ExpiresAt time.Time
}

// WithdrawalGate decides whether a withdrawal may proceed. It is separate
// from the login two-factor gate: a fully authenticated session still needs
// the passcode or an emailed code.
type WithdrawalGate struct {
	Store       store.Store
	Credentials *CredentialStore
	OTP         *OTPEngine
	Lockout     *LockoutPolicy
	Notifier    Notifier
	Signer      GrantSigner
	Issuer      string
	GrantTTL    time.Duration
	Clock       Clock
}

// Status reports passcode state without side effects.
func (g *WithdrawalGate) Status(ctx context.Context, userID string) (PasscodeStatus, error) {
	u, err := getUser(ctx, g.Store, userID)
	if err != nil {
		return PasscodeStatus{}, err
	}
	now := g.Clock.Now()
	return PasscodeStatus{
		HasPasscode:      u.HasWithdrawalPasscode(),
		RequiresPasscode: u.RequireWithdrawalPasscode,
		Locked:           g.Lockout.IsLocked(u, now),
		LockoutRemaining: g.Lockout.LockoutRemaining(u, now),
	}, nil
}

// checkPasscode verifies passcode under the lockout rules. The attempt is
// claimed before the comparison: an active lock refuses it without counting,
// a mismatch stays counted and a match releases the claim.
func (g *WithdrawalGate) checkPasscode(ctx context.Context, u domain.User, passcode string) error {
	l := slogx.FromContext(ctx).With("user_id", u.ID)

	claim, err := g.Lockout.RecordFailure(ctx, u.ID)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			l.Info("withdrawal passcode rejected", "reason", "locked")
		}
		return err
	}

	if !g.Credentials.VerifyWithdrawalPasscode(u, passcode) {
		l.Info("withdrawal passcode rejected", "reason", "mismatch", "attempts", claim.Attempts)
		return &PasscodeMismatchError{
			AttemptsRemaining: claim.AttemptsRemaining,
			Locked:            claim.Locked,
			Remaining:         claim.Remaining,
		}
	}

	if err := g.Lockout.RecordSuccess(ctx, u.ID, claim); err != nil {
		if errors.Is(err, ErrLocked) {
			l.Info("withdrawal passcode rejected", "reason", "locked")
		}
		return err
	}
	return nil
}

// SetupPasscode sets or changes the passcode. Changing an existing passcode
// requires the current one, checked under the lockout rules.
func (g *WithdrawalGate) SetupPasscode(ctx context.Context, userID, passcode, confirmation, currentPasscode string) error {
	// 1. Validate input
	if err := ValidatePasscode("passcode", passcode); err != nil {
		return err
	}
	if confirmation != passcode {
		return invalidField("passcode_confirmation", "does not match")
	}

	u, err := getUser(ctx, g.Store, userID)
	if err != nil {
		return err
	}

	// 2. Re-proof the current passcode when changing
	changing := u.HasWithdrawalPasscode()
	if changing {
		if currentPasscode == "" {
			return invalidField("current_passcode", "is required to change your passcode")
		}
		if err := ValidatePasscode("current_passcode", currentPasscode); err != nil {
			return err
		}
		if err := g.checkPasscode(ctx, u, currentPasscode); err != nil {
			return err
		}
	}

	// 3. Store the new passcode
	if err := g.Credentials.SetWithdrawalPasscode(ctx, userID, passcode); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("withdrawal passcode set", "user_id", userID, "changed", changing)
	securityAlert(ctx, g.Notifier, u, "Withdrawal passcode changed",
		"Your withdrawal passcode was set. If this was not you, contact support immediately.")
	return nil
}

// Verify checks the passcode and returns a grant on success.
func (g *WithdrawalGate) Verify(ctx context.Context, userID, passcode string) (*Grant, error) {
	if err := ValidatePasscode("passcode", passcode); err != nil {
		return nil, err
	}
	u, err := getUser(ctx, g.Store, userID)
	if err != nil {
		return nil, err
	}
	if err := g.Lockout.Check(u, g.Clock.Now()); err != nil {
		return nil, err
	}
	if !u.HasWithdrawalPasscode() {
		return nil, precondition("No withdrawal passcode is set.")
	}
	if err := g.checkPasscode(ctx, u, passcode); err != nil {
		return nil, err
	}
	return g.issue(ctx, u.ID, jwtx.AMRPasscode)
}

// SendOTP emails a withdrawal code as an alternative to the passcode. It is
// refused while the passcode is locked.
func (g *WithdrawalGate) SendOTP(ctx context.Context, userID string) (CodeNotice, error) {
	u, err := getUser(ctx, g.Store, userID)
	if err != nil {
		return CodeNotice{}, err
	}
	if err := g.Lockout.Check(u, g.Clock.Now()); err != nil {
		return CodeNotice{}, err
	}

	code, err := g.OTP.GenerateWithdrawalOTP(ctx, userID)
	if err != nil {
		return CodeNotice{}, err
	}
	deliverCode(ctx, g.Notifier, u, "Your withdrawal verification code", code)

	return CodeNotice{MaskedEmail: MaskEmail(u.Email), ExpiresIn: OTPValidity}, nil
}

// VerifyOTP checks the emailed withdrawal code. Failures here are not
// counted toward the passcode lockout.
func (g *WithdrawalGate) VerifyOTP(ctx context.Context, userID, code string) (*Grant, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	u, err := getUser(ctx, g.Store, userID)
	if err != nil {
		return nil, err
	}
	if err := g.Lockout.Check(u, g.Clock.Now()); err != nil {
		return nil, err
	}
	if err := g.OTP.VerifyWithdrawalOTP(ctx, userID, code); err != nil {
		return nil, err
	}
	return g.issue(ctx, userID, jwtx.AMROTP)
}

// RemovePasscode verifies the passcode under the lockout rules and clears it.
func (g *WithdrawalGate) RemovePasscode(ctx context.Context, userID, passcode string) error {
	if err := ValidatePasscode("passcode", passcode); err != nil {
		return err
	}
	u, err := getUser(ctx, g.Store, userID)
	if err != nil {
		return err
	}
	if !u.HasWithdrawalPasscode() {
		return precondition("No withdrawal passcode is set.")
	}
	if err := g.checkPasscode(ctx, u, passcode); err != nil {
		return err
	}
	if err := g.Credentials.RemoveWithdrawalPasscode(ctx, userID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("withdrawal passcode removed", "user_id", userID)
	securityAlert(ctx, g.Notifier, u, "Withdrawal passcode removed",
		"Your withdrawal passcode was removed. If this was not you, contact support immediately.")
	return nil
}

// Authorize issues a grant without a factor for users who do not require a
// passcode.
func (g *WithdrawalGate) Authorize(ctx context.Context, userID string) (*Grant, error) {
	u, err := getUser(ctx, g.Store, userID)
	if err != nil {
		return nil, err
	}
	if u.RequireWithdrawalPasscode {
		return nil, precondition("Withdrawal passcode or email verification is required.")
	}
	return g.issue(ctx, userID, jwtx.AMRNone)
}

func (g *WithdrawalGate) issue(ctx context.Context, userID, method string) (*Grant, error) {
	if g.Signer == nil {
		return nil, errors.New("withdrawal grant signer not configured")
	}
	ttl := g.GrantTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultGrantTTL
	}

	var sid string
	if info, ok := httpx.AuthFromContext(ctx); ok {
		sid = info.SessionID
	}

	claims := jwtx.NewGrantClaims(userID, sid, method, g.Issuer, ttl, g.Clock.Now())
	token, err := g.Signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign withdrawal grant: %w", err)
	}

	slogx.FromContext(ctx).Info("withdrawal grant issued", "user_id", userID, "method", method, "jti", claims.ID)
	return &Grant{
		Token:     token,
		ID:        claims.ID,
		Method:    method,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
