package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
)

const (
	OTPLength   = 6
	OTPValidity = 10 * time.Minute

	otpKeyInfo = "vaultgate/otp/v1"
)

// OTPEngine issues and checks the emailed six digit codes. Each purpose has
// its own slot and its own MAC domain, so a login code never passes as a
// withdrawal code.
type OTPEngine struct {
	Store store.Store
	Key   []byte // MAC key, derived from the master key
	Clock Clock
}

// NewOTPEngine derives the code MAC key from the keyring.
func NewOTPEngine(s store.Store, kr *cryptox.Keyring, clock Clock) (*OTPEngine, error) {
	key, err := kr.DeriveKey(otpKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to derive otp key: %w", err)
	}
	return &OTPEngine{Store: s, Key: key, Clock: clock}, nil
}

// ValidateCode checks the six digit code format.
func ValidateCode(code string) error {
	if !isDigits(code, OTPLength) {
		return invalidField("code", "must be exactly 6 digits")
	}
	return nil
}

func (e *OTPEngine) digest(userID string, purpose domain.OTPPurpose, code string) string {
	return cryptox.MAC(e.Key, string(purpose), userID, code)
}

// Generate issues a new code for purpose, replacing any outstanding one,
// and returns the plaintext for delivery.
func (e *OTPEngine) Generate(ctx context.Context, userID string, purpose domain.OTPPurpose) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown otp purpose %q", purpose)
	}

	code, err := cryptox.GenerateDigits(OTPLength)
	if err != nil {
		return "", err
	}

	expiresAt := e.Clock.Now().Add(OTPValidity)
	if err := e.Store.Users().SetOTP(ctx, userID, purpose, e.digest(userID, purpose, code), expiresAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to store otp: %w", err)
	}

	slogx.FromContext(ctx).Debug("otp issued", "user_id", userID, "purpose", purpose, "expires_at", expiresAt)
	return code, nil
}

// Verify checks code against the purpose slot and consumes it on success.
// Missing, expired, mismatched and already consumed codes all return
// ErrInvalidCredential; only the log line tells them apart.
func (e *OTPEngine) Verify(ctx context.Context, userID string, purpose domain.OTPPurpose, code string) error {
	if err := ValidateCode(code); err != nil {
		return err
	}

	l := slogx.FromContext(ctx).With("user_id", userID, "purpose", purpose)

	u, err := getUser(ctx, e.Store, userID)
	if err != nil {
		return err
	}

	slot := u.OTP(purpose)
	switch {
	case !slot.Pending():
		l.Debug("otp rejected", "reason", "missing")
		return ErrInvalidCredential
	case slot.Expired(e.Clock.Now()):
		l.Debug("otp rejected", "reason", "expired")
		return ErrInvalidCredential
	case !cryptox.EqualMAC(slot.Hash, e.digest(userID, purpose, code)):
		l.Debug("otp rejected", "reason", "mismatch")
		return ErrInvalidCredential
	}

	// Clear only if the slot still holds this code. A concurrent request
	// that got here first wins and this one fails.
	ok, err := e.Store.Users().ConsumeOTP(ctx, userID, purpose, slot.Hash)
	if err != nil {
		return fmt.Errorf("failed to consume otp: %w", err)
	}
	if !ok {
		l.Debug("otp rejected", "reason", "consumed")
		return ErrInvalidCredential
	}

	l.Debug("otp verified")
	return nil
}

func (e *OTPEngine) GenerateLoginOTP(ctx context.Context, userID string) (string, error) {
	return e.Generate(ctx, userID, domain.OTPLogin)
}

func (e *OTPEngine) VerifyLoginOTP(ctx context.Context, userID, code string) error {
	return e.Verify(ctx, userID, domain.OTPLogin, code)
}

func (e *OTPEngine) GenerateWithdrawalOTP(ctx context.Context, userID string) (string, error) {
	return e.Generate(ctx, userID, domain.OTPWithdrawal)
}

func (e *OTPEngine) VerifyWithdrawalOTP(ctx context.Context, userID, code string) error {
	return e.Verify(ctx, userID, domain.OTPWithdrawal, code)
}
