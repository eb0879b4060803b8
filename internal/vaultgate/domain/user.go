package domain

import "time"

// User carries the credential state of an account. Secrets are only ever
// held in one-way or encrypted form.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // argon2id PHC string, or a legacy bcrypt hash

	EmailVerifiedAt    *time.Time
	IdentityVerifiedAt *time.Time // ID.me style identity verification

	TwoFactorSecret      []byte // AES-GCM sealed base32 TOTP seed, nil until enable
	TwoFactorEnabled     bool
	TwoFactorConfirmedAt *time.Time

	LoginOTP             OTPSlot
	WithdrawalOTP        OTPSlot
	EmailVerificationOTP OTPSlot

	WithdrawalPasscodeHash    string // argon2id PHC string, empty when not set
	WithdrawalPasscodeSetAt   *time.Time
	RequireWithdrawalPasscode bool

	PasscodeFailedAttempts int
	PasscodeLockedUntil    *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasWithdrawalPasscode reports whether a withdrawal passcode is set.
func (u User) HasWithdrawalPasscode() bool { return u.WithdrawalPasscodeHash != "" }

// EmailVerified reports whether the email address has been verified.
func (u User) EmailVerified() bool { return u.EmailVerifiedAt != nil }

// IdentityVerified reports whether external identity verification passed.
func (u User) IdentityVerified() bool { return u.IdentityVerifiedAt != nil }

// OTP returns the slot for a purpose.
func (u User) OTP(p OTPPurpose) OTPSlot {
	switch p {
	case OTPLogin:
		return u.LoginOTP
	case OTPWithdrawal:
		return u.WithdrawalOTP
	case OTPEmailVerification:
		return u.EmailVerificationOTP
	}
	return OTPSlot{}
}
