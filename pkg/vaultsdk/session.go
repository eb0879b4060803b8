package vaultsdk

import (
	"context"
	"net/http"
	"sync"
)

// Session is a login session. Its token is sent as a bearer token on every
// request; the stage is updated as gates are passed.
type Session struct {
	client *Client
	token  string

	mu    sync.RWMutex
	id    string
	stage string
}

// Token returns the opaque session token.
func (s *Session) Token() string { return s.token }

// ID returns the session ID, once known.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Stage returns the last stage reported by the service.
func (s *Session) Stage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

func (s *Session) setStage(stage string) {
	s.mu.Lock()
	s.stage = stage
	s.mu.Unlock()
}

func (s *Session) do(ctx context.Context, method, path string, body, target any) error {
	return s.client.do(ctx, method, path, s.token, body, target)
}

// stageCall posts body to a login gate and records the resulting stage.
func (s *Session) stageCall(ctx context.Context, path string, body any) (string, error) {
	var resp StageResponse
	if err := s.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	s.setStage(resp.Stage)
	return resp.Stage, nil
}

// Refresh reloads the session from the service.
func (s *Session) Refresh(ctx context.Context) (*SessionResponse, error) {
	var resp SessionResponse
	if err := s.do(ctx, http.MethodGet, "/v1/session", nil, &resp); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.id = resp.SessionID
	s.stage = resp.Stage
	s.mu.Unlock()
	return &resp, nil
}

// Logout ends the session.
func (s *Session) Logout(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/v1/logout", nil, nil)
}

// ResendLoginOTP mails a new login code.
func (s *Session) ResendLoginOTP(ctx context.Context) (*CodeSentResponse, error) {
	var resp CodeSentResponse
	if err := s.do(ctx, http.MethodPost, "/v1/login/otp/resend", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyLoginOTP passes the login OTP gate.
func (s *Session) VerifyLoginOTP(ctx context.Context, code string) (string, error) {
	return s.stageCall(ctx, "/v1/login/otp/verify", CodeRequest{Code: code})
}

// SendEmailVerificationCode mails a new email verification code.
func (s *Session) SendEmailVerificationCode(ctx context.Context) (*CodeSentResponse, error) {
	var resp CodeSentResponse
	if err := s.do(ctx, http.MethodPost, "/v1/email/verification/send", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyEmail passes the email verification gate.
func (s *Session) VerifyEmail(ctx context.Context, code string) (string, error) {
	return s.stageCall(ctx, "/v1/email/verification/verify", CodeRequest{Code: code})
}

// TwoFactorChallenge passes the two-factor gate. Exactly one of code and
// recoveryCode should be set.
func (s *Session) TwoFactorChallenge(ctx context.Context, code, recoveryCode string) (string, error) {
	return s.stageCall(ctx, "/v1/two-factor/challenge", TwoFactorChallengeRequest{Code: code, RecoveryCode: recoveryCode})
}

// EnableTwoFactor starts authenticator enrollment.
func (s *Session) EnableTwoFactor(ctx context.Context, currentPassword string) (*TwoFactorEnableResponse, error) {
	var resp TwoFactorEnableResponse
	if err := s.do(ctx, http.MethodPost, "/v1/two-factor/enable", PasswordRequest{CurrentPassword: currentPassword}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmTwoFactor finishes enrollment and returns the recovery codes.
func (s *Session) ConfirmTwoFactor(ctx context.Context, code string) ([]string, error) {
	var resp RecoveryCodesResponse
	if err := s.do(ctx, http.MethodPost, "/v1/two-factor/confirm", CodeRequest{Code: code}, &resp); err != nil {
		return nil, err
	}
	return resp.RecoveryCodes, nil
}

// DisableTwoFactor turns two-factor off.
func (s *Session) DisableTwoFactor(ctx context.Context, currentPassword string) error {
	return s.do(ctx, http.MethodPost, "/v1/two-factor/disable", PasswordRequest{CurrentPassword: currentPassword}, nil)
}

// RegenerateRecoveryCodes replaces the recovery code set.
func (s *Session) RegenerateRecoveryCodes(ctx context.Context, currentPassword string) ([]string, error) {
	var resp RecoveryCodesResponse
	if err := s.do(ctx, http.MethodPost, "/v1/two-factor/recovery-codes", PasswordRequest{CurrentPassword: currentPassword}, &resp); err != nil {
		return nil, err
	}
	return resp.RecoveryCodes, nil
}

// PasscodeStatus returns the withdrawal passcode state.
func (s *Session) PasscodeStatus(ctx context.Context) (*PasscodeStatusResponse, error) {
	var resp PasscodeStatusResponse
	if err := s.do(ctx, http.MethodGet, "/v1/withdrawal/passcode/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetupPasscode sets or changes the withdrawal passcode.
func (s *Session) SetupPasscode(ctx context.Context, req PasscodeSetupRequest) error {
	return s.do(ctx, http.MethodPost, "/v1/withdrawal/passcode/setup", req, nil)
}

// VerifyPasscode exchanges the passcode for a withdrawal grant.
func (s *Session) VerifyPasscode(ctx context.Context, passcode string) (*GrantResponse, error) {
	var resp GrantResponse
	if err := s.do(ctx, http.MethodPost, "/v1/withdrawal/passcode/verify", PasscodeRequest{Passcode: passcode}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemovePasscode clears the withdrawal passcode.
func (s *Session) RemovePasscode(ctx context.Context, passcode string) error {
	return s.do(ctx, http.MethodPost, "/v1/withdrawal/passcode/remove", PasscodeRequest{Passcode: passcode}, nil)
}

// SendWithdrawalOTP mails a withdrawal code.
func (s *Session) SendWithdrawalOTP(ctx context.Context) (*CodeSentResponse, error) {
	var resp CodeSentResponse
	if err := s.do(ctx, http.MethodPost, "/v1/withdrawal/otp/send", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyWithdrawalOTP exchanges the emailed code for a withdrawal grant.
func (s *Session) VerifyWithdrawalOTP(ctx context.Context, otp string) (*GrantResponse, error) {
	var resp GrantResponse
	if err := s.do(ctx, http.MethodPost, "/v1/withdrawal/otp/verify", WithdrawalOTPRequest{OTP: otp}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuthorizeWithdrawal requests a grant without a factor. It only succeeds
// for users who do not require a passcode.
func (s *Session) AuthorizeWithdrawal(ctx context.Context) (*GrantResponse, error) {
	var resp GrantResponse
	if err := s.do(ctx, http.MethodPost, "/v1/withdrawal/authorize", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Notifications lists inbox entries, newest first.
func (s *Session) Notifications(ctx context.Context) ([]Notification, error) {
	var resp NotificationsResponse
	if err := s.do(ctx, http.MethodGet, "/v1/notifications", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// MarkNotificationRead stamps an inbox entry as read.
func (s *Session) MarkNotificationRead(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodPost, "/v1/notifications/"+id+"/read", nil, nil)
}
