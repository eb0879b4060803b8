package service

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	RecoveryCodeCount = 8
	DefaultSiteName   = "NationalResourceBenefits"

	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20
)

// CodeKind says how a two-factor challenge code should be checked.
type CodeKind string

const (
	CodeKindAuto     CodeKind = ""
	CodeKindTOTP     CodeKind = "totp"
	CodeKindRecovery CodeKind = "recovery"
)

// CodeInput is a code submitted at the two-factor gate.
type CodeInput struct {
	Kind  CodeKind
	Value string
}

// ClassifyCode resolves CodeKindAuto: anything longer than a TOTP code is
// a recovery code.
func ClassifyCode(value string) CodeKind {
	if len(strings.TrimSpace(value)) > OTPLength {
		return CodeKindRecovery
	}
	return CodeKindTOTP
}

// Enrollment is returned by Enable for the authenticator app.
type Enrollment struct {
	Secret string
	URI    string
}

// TwoFactorEngine manages TOTP enrollment and the recovery code set.
type TwoFactorEngine struct {
	Store       store.Store
	Keyring     *cryptox.Keyring
	Credentials *CredentialStore
	Settings    Settings
	Notifier    Notifier
	Clock       Clock
}

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

func secretAD(userID string) []byte { return []byte("totp:" + userID) }

func (e *TwoFactorEngine) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret returns a fresh base32 (unpadded) TOTP seed.
func (e *TwoFactorEngine) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      DefaultSiteName,
		AccountName: "enrollment",
		SecretSize:  totpSecretSize,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth:// URI for an authenticator app.
func ProvisioningURI(siteName, email, secret string) (string, error) {
	raw, err := b32NoPadding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("failed to decode TOTP secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      siteName,
		AccountName: email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Secret:      raw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build provisioning URI: %w", err)
	}
	return key.URL(), nil
}

func (e *TwoFactorEngine) siteName(ctx context.Context) string {
	return settingsOrDefaults(e.Settings).String(ctx, domain.SettingSiteName, DefaultSiteName)
}

func (e *TwoFactorEngine) openSecret(u domain.User) (string, error) {
	plain, err := e.Keyring.Open(u.TwoFactorSecret, secretAD(u.ID))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Enable starts enrollment after a password re-proof. An unconfirmed secret
// from an earlier attempt is reused so a half scanned QR code stays valid.
func (e *TwoFactorEngine) Enable(ctx context.Context, userID, currentPassword string) (Enrollment, error) {
	l := slogx.FromContext(ctx)

	// 1. Load user and check state
	u, err := getUser(ctx, e.Store, userID)
	if err != nil {
		return Enrollment{}, err
	}
	if u.TwoFactorEnabled {
		return Enrollment{}, precondition("Two-factor authentication is already enabled.")
	}

	// 2. Password re-proof
	if !e.Credentials.VerifyPassword(ctx, u, currentPassword) {
		return Enrollment{}, ErrInvalidCredential
	}

	// 3. Reuse or generate the secret
	var secret string
	if len(u.TwoFactorSecret) > 0 {
		secret, err = e.openSecret(u)
		if err != nil {
			l.Warn("pending two-factor secret unreadable, generating a new one", "user_id", userID, "err", err)
		}
	}
	if secret == "" {
		if secret, err = e.GenerateSecret(); err != nil {
			return Enrollment{}, err
		}
		sealed, err := e.Keyring.Seal([]byte(secret), secretAD(userID))
		if err != nil {
			return Enrollment{}, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
		}
		if err := e.Store.Users().SetTwoFactorSecret(ctx, userID, sealed); err != nil {
			return Enrollment{}, fmt.Errorf("failed to store TOTP secret: %w", err)
		}
	}

	// 4. Build the provisioning URI
	uri, err := ProvisioningURI(e.siteName(ctx), u.Email, secret)
	if err != nil {
		return Enrollment{}, err
	}

	l.Info("two-factor enrollment started", "user_id", userID)
	return Enrollment{Secret: secret, URI: uri}, nil
}

// Confirm enables two-factor once the user proves the authenticator works.
// It returns the plaintext recovery codes, which are never shown again.
func (e *TwoFactorEngine) Confirm(ctx context.Context, userID, code string) ([]string, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	u, err := getUser(ctx, e.Store, userID)
	if err != nil {
		return nil, err
	}
	if u.TwoFactorEnabled {
		return nil, precondition("Two-factor authentication is already enabled.")
	}
	if len(u.TwoFactorSecret) == 0 {
		return nil, precondition("Two-factor authentication has not been set up.")
	}

	secret, err := e.openSecret(u)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}

	now := e.Clock.Now()
	ok, err := totp.ValidateCustom(code, secret, now, e.validateOpts())
	if err != nil || !ok {
		slogx.FromContext(ctx).Debug("two-factor confirmation rejected", "user_id", userID)
		return nil, ErrInvalidCredential
	}

	codes, err := generateRecoveryCodes()
	if err != nil {
		return nil, err
	}

	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().EnableTwoFactor(ctx, userID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return precondition("Two-factor authentication is already enabled.")
			}
			return fmt.Errorf("failed to enable two-factor: %w", err)
		}
		if err := tx.RecoveryCodes().ReplaceRecoveryCodes(ctx, userID, fingerprints(codes), now); err != nil {
			return fmt.Errorf("failed to store recovery codes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("two-factor enabled", "user_id", userID)
	securityAlert(ctx, e.Notifier, u, "Two-factor authentication enabled",
		"Two-factor authentication was enabled on your account.")
	return codes, nil
}

// Disable turns two-factor off after a password re-proof. Secret, enabled
// flag, confirmation stamp and recovery codes are cleared together.
func (e *TwoFactorEngine) Disable(ctx context.Context, userID, currentPassword string) error {
	u, err := getUser(ctx, e.Store, userID)
	if err != nil {
		return err
	}
	if !e.Credentials.VerifyPassword(ctx, u, currentPassword) {
		return ErrInvalidCredential
	}
	if !u.TwoFactorEnabled {
		return precondition("Two-factor authentication is not enabled.")
	}

	if err := e.reset(ctx, userID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("two-factor disabled", "user_id", userID)
	securityAlert(ctx, e.Notifier, u, "Two-factor authentication disabled",
		"Two-factor authentication was disabled on your account.")
	return nil
}

func (e *TwoFactorEngine) reset(ctx context.Context, userID string) error {
	return e.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RecoveryCodes().DeleteAllRecoveryCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete recovery codes: %w", err)
		}
		if err := tx.Users().ResetTwoFactor(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to disable two-factor: %w", err)
		}
		return nil
	})
}

// VerifyLoginChallenge checks a TOTP or recovery code at the login gate.
// A recovery code is deleted as it is accepted.
func (e *TwoFactorEngine) VerifyLoginChallenge(ctx context.Context, userID string, in CodeInput) error {
	value := strings.TrimSpace(in.Value)
	if value == "" {
		return invalidField("code", "is required")
	}

	kind := in.Kind
	if kind == CodeKindAuto {
		kind = ClassifyCode(value)
	}

	u, err := getUser(ctx, e.Store, userID)
	if err != nil {
		return err
	}
	if !u.TwoFactorEnabled {
		return precondition("Two-factor authentication is not enabled.")
	}

	l := slogx.FromContext(ctx).With("user_id", userID)

	switch kind {
	case CodeKindTOTP:
		if err := ValidateCode(value); err != nil {
			return err
		}
		secret, err := e.openSecret(u)
		if err != nil {
			return fmt.Errorf("failed to decrypt TOTP secret: %w", err)
		}
		ok, err := totp.ValidateCustom(value, secret, e.Clock.Now(), e.validateOpts())
		if err != nil || !ok {
			l.Debug("two-factor challenge rejected", "kind", kind)
			return ErrInvalidCredential
		}

	case CodeKindRecovery:
		ok, err := e.Store.RecoveryCodes().ConsumeRecoveryCode(ctx, userID, cryptox.FingerprintToken(value))
		if err != nil {
			return fmt.Errorf("failed to consume recovery code: %w", err)
		}
		if !ok {
			l.Debug("two-factor challenge rejected", "kind", kind)
			return ErrInvalidCredential
		}
		remaining, _ := e.Store.RecoveryCodes().CountRecoveryCodes(ctx, userID)
		l.Info("recovery code used", "remaining", remaining)

	default:
		return invalidField("kind", "must be totp or recovery")
	}

	return nil
}

// RegenerateRecoveryCodes replaces the whole recovery set after a
// password re-proof.
func (e *TwoFactorEngine) RegenerateRecoveryCodes(ctx context.Context, userID, currentPassword string) ([]string, error) {
	u, err := getUser(ctx, e.Store, userID)
	if err != nil {
		return nil, err
	}
	if !e.Credentials.VerifyPassword(ctx, u, currentPassword) {
		return nil, ErrInvalidCredential
	}
	if !u.TwoFactorEnabled {
		return nil, precondition("Two-factor authentication is not enabled.")
	}

	codes, err := generateRecoveryCodes()
	if err != nil {
		return nil, err
	}
	if err := replaceRecoveryCodes(ctx, e.Store, userID, codes, e.Clock.Now()); err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("recovery codes regenerated", "user_id", userID)
	securityAlert(ctx, e.Notifier, u, "Recovery codes regenerated",
		"New two-factor recovery codes were generated. Old codes no longer work.")
	return codes, nil
}

// replaceRecoveryCodes swaps the whole set in one transaction, so a failed
// insert leaves the previous codes in place.
func replaceRecoveryCodes(ctx context.Context, st store.Store, userID string, codes []string, at time.Time) error {
	return st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RecoveryCodes().ReplaceRecoveryCodes(ctx, userID, fingerprints(codes), at); err != nil {
			return fmt.Errorf("failed to store recovery codes: %w", err)
		}
		return nil
	})
}

// RecoveryCodesRemaining returns how many unused recovery codes are left.
func (e *TwoFactorEngine) RecoveryCodesRemaining(ctx context.Context, userID string) (int, error) {
	n, err := e.Store.RecoveryCodes().CountRecoveryCodes(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count recovery codes: %w", err)
	}
	return n, nil
}

// CurrentCode returns the TOTP code for secret at t.
func CurrentCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}

func generateRecoveryCodes() ([]string, error) {
	codes := make([]string, RecoveryCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateRecoveryCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate recovery code: %w", err)
		}
		codes[i] = code
	}
	return codes, nil
}

func fingerprints(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = cryptox.FingerprintToken(c)
	}
	return out
}
