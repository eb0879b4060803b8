package domain

import "time"

// Stage is a gate of the login sequence. Gates are evaluated in the order
// listed; a session is authenticated once none of them is pending.
type Stage string

const (
	StagePassword             Stage = "password"
	StageLoginOTP             Stage = "login_otp"
	StageEmailVerification    Stage = "email_verification"
	StageTwoFactor            Stage = "two_factor"
	StageIdentityVerification Stage = "identity_verification"
	StageAuthenticated        Stage = "authenticated"
)

// LoginSession is created by a successful password check and carries the
// per-login verification flags. It is destroyed on logout, so every new
// login starts with all flags cleared.
type LoginSession struct {
	ID                string
	UserID            string
	TokenHash         string // sha256 fingerprint of the opaque session token
	LoginOTPVerified  bool
	TwoFactorVerified bool
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// Expired reports whether the session has passed its lifetime at now.
func (s LoginSession) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }
