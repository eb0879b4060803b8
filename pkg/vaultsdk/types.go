package vaultsdk

import (
	"time"

	"github.com/aussiebroadwan/vaultgate/pkg/jwtx"
)

// ============================================================================
// Common Types
// ============================================================================

// MessageResponse is the {success, message} envelope every endpoint returns.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of a failed request. The optional fields are
// only present where they apply: lockout details on the passcode routes,
// next_stage when a session has not passed every login gate, and field
// errors on validation failures.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	Locked            *bool `json:"locked,omitempty"`
	LockoutRemaining  *int  `json:"lockout_remaining,omitempty"` // minutes
	AttemptsRemaining *int  `json:"attempts_remaining,omitempty"`

	NextStage string            `json:"next_stage,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ============================================================================
// Login Types
// ============================================================================

// LoginRequest is the body of POST /v1/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the opaque session token. It is also set as the
// session cookie; API clients send it as a bearer token.
type LoginResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse describes the caller's session and its next login gate.
type SessionResponse struct {
	Success   bool   `json:"success"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
	Stage     string `json:"stage"`
}

// CodeRequest submits a six digit emailed code.
type CodeRequest struct {
	Code string `json:"code"`
}

// StageResponse is returned after a login gate was passed.
type StageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stage   string `json:"stage"`
}

// CodeSentResponse tells the client where a code went and for how long it
// is valid.
type CodeSentResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	MaskedEmail string `json:"masked_email"`
	ExpiresIn   int    `json:"expires_in"` // minutes
}

// ============================================================================
// Two-Factor Types
// ============================================================================

// TwoFactorChallengeRequest answers the login two-factor gate with either
// an authenticator code or a recovery code.
type TwoFactorChallengeRequest struct {
	Code         string `json:"code,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
}

// PasswordRequest re-proves the account password.
type PasswordRequest struct {
	CurrentPassword string `json:"current_password"`
}

// TwoFactorEnableResponse carries the pending secret for the authenticator app.
type TwoFactorEnableResponse struct {
	Success    bool   `json:"success"`
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// RecoveryCodesResponse carries plaintext recovery codes. They are shown once.
type RecoveryCodesResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	RecoveryCodes []string `json:"recovery_codes"`
}

// ============================================================================
// Withdrawal Types
// ============================================================================

// PasscodeStatusResponse is returned by GET /v1/withdrawal/passcode/status.
type PasscodeStatusResponse struct {
	HasPasscode      bool `json:"has_passcode"`
	RequiresPasscode bool `json:"requires_passcode"`
	IsLocked         bool `json:"is_locked"`
	LockoutRemaining int  `json:"lockout_remaining"` // minutes
}

// PasscodeSetupRequest sets or changes the withdrawal passcode.
type PasscodeSetupRequest struct {
	Passcode             string `json:"passcode"`
	PasscodeConfirmation string `json:"passcode_confirmation"`
	CurrentPasscode      string `json:"current_passcode,omitempty"`
}

// PasscodeRequest submits the withdrawal passcode.
type PasscodeRequest struct {
	Passcode string `json:"passcode"`
}

// WithdrawalOTPRequest submits the emailed withdrawal code.
type WithdrawalOTPRequest struct {
	OTP string `json:"otp"`
}

// GrantResponse carries a signed withdrawal grant. The ledger verifies it
// against /.well-known/jwks.json.
type GrantResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Grant     string    `json:"grant"`
	GrantID   string    `json:"grant_id"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ============================================================================
// Notification Types
// ============================================================================

// Notification is one inbox entry.
type Notification struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NotificationsResponse lists inbox entries, newest first.
type NotificationsResponse struct {
	Success       bool           `json:"success"`
	Notifications []Notification `json:"notifications"`
}

// ============================================================================
// Admin Types
// ============================================================================

// CreateUserRequest provisions an account.
type CreateUserRequest struct {
	Email                     string `json:"email"`
	Name                      string `json:"name"`
	Password                  string `json:"password"`
	EmailVerified             bool   `json:"email_verified"`
	RequireWithdrawalPasscode *bool  `json:"require_withdrawal_passcode,omitempty"` // defaults to true
}

// User is the operator view of an account. It never carries secrets.
type User struct {
	ID                     string     `json:"id"`
	Email                  string     `json:"email"`
	Name                   string     `json:"name"`
	EmailVerified          bool       `json:"email_verified"`
	IdentityVerified       bool       `json:"identity_verified"`
	TwoFactorEnabled       bool       `json:"two_factor_enabled"`
	HasPasscode            bool       `json:"has_passcode"`
	RequiresPasscode       bool       `json:"requires_passcode"`
	PasscodeFailedAttempts int        `json:"passcode_failed_attempts"`
	PasscodeLockedUntil    *time.Time `json:"passcode_locked_until,omitempty"`
	LastLoginAt            *time.Time `json:"last_login_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// UserResponse wraps a User.
type UserResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

// RequirePasscodeRequest toggles require_withdrawal_passcode.
type RequirePasscodeRequest struct {
	Required bool `json:"required"`
}

// EmailVerifiedRequest marks an email verified or unverified.
type EmailVerifiedRequest struct {
	Verified bool `json:"verified"`
}

// ChangePasswordRequest is the admin password change.
type ChangePasswordRequest struct {
	NewPassword             string `json:"new_password"`
	NewPasswordConfirmation string `json:"new_password_confirmation"`
	NotifyUser              bool   `json:"notify_user"`
}

// Setting is one runtime setting.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingRequest sets a runtime setting.
type SettingRequest struct {
	Value string `json:"value"`
}

// SettingsResponse lists runtime settings.
type SettingsResponse struct {
	Success  bool      `json:"success"`
	Settings []Setting `json:"settings"`
}

// ============================================================================
// System Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists the readiness of each dependency.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse is the public key set for grant verification.
type JWKSResponse jwtx.JWKS
