package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultGrantTTL is the default lifetime of a withdrawal grant. The ledger
// must redeem the grant within this window.
const DefaultGrantTTL = 5 * time.Minute

// GrantAudience is the audience every withdrawal grant is issued for.
const GrantAudience = "withdrawals"

// Authentication method references carried in a grant.
const (
	AMRPasscode = "passcode" // withdrawal passcode verified
	AMROTP      = "otp"      // emailed withdrawal OTP verified
	AMRNone     = "none"     // passcode not required for this user
)

// GrantClaims are the claims of a withdrawal grant: proof that the subject
// passed the withdrawal gate moments ago.
type GrantClaims struct {
	jwt.RegisteredClaims

	// Authentication Methods Reference, one of the AMR* constants.
	AMR []string `json:"amr,omitempty"`

	// SID is the login session the grant was issued in.
	SID string `json:"sid,omitempty"`
}

// NewGrantClaims builds grant claims for subject.
func NewGrantClaims(subject, sid, method, issuer string, ttl time.Duration, now time.Time) GrantClaims {
	return GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{GrantAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		AMR: []string{method},
		SID: sid,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim, which
// the ledger records to refuse a second redemption.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *GrantClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks that the grant was issued for the audience.
func (c *GrantClaims) ValidateAudience(expected string) error {
	if expected == "" || slices.Contains(c.Audience, expected) {
		return nil
	}
	return ErrAudience
}

// ValidateExpiry ensures the grant hasn't expired (exp) and isn't used before nbf.
func (c *GrantClaims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
