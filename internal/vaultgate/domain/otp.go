package domain

import "time"

// OTPPurpose selects which independent code slot an OTP lives in. A code
// issued for one purpose never satisfies another.
type OTPPurpose string

const (
	OTPLogin             OTPPurpose = "login"
	OTPWithdrawal        OTPPurpose = "withdrawal"
	OTPEmailVerification OTPPurpose = "email_verification"
)

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPLogin, OTPWithdrawal, OTPEmailVerification:
		return true
	}
	return false
}

// OTPSlot is a stored one-time code: a keyed digest of the code plus its
// expiry. An empty Hash means no code is outstanding.
type OTPSlot struct {
	Hash      string
	ExpiresAt *time.Time
}

// Pending reports whether a code is outstanding, expired or not.
func (s OTPSlot) Pending() bool { return s.Hash != "" }

// Expired reports whether the code is past its expiry at now.
func (s OTPSlot) Expired(now time.Time) bool {
	return s.ExpiresAt == nil || !now.Before(*s.ExpiresAt)
}
