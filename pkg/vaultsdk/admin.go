package vaultsdk

import (
	"context"
	"net/http"
	"net/url"
)

// AdminClient calls the operator endpoints with the static admin token.
type AdminClient struct {
	client *Client
	token  string
}

func (a *AdminClient) do(ctx context.Context, method, path string, body, target any) error {
	return a.client.do(ctx, method, path, a.token, body, target)
}

func userPath(id, suffix string) string {
	return "/v1/admin/users/" + url.PathEscape(id) + suffix
}

// CreateUser provisions an account.
func (a *AdminClient) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var resp UserResponse
	if err := a.do(ctx, http.MethodPost, "/v1/admin/users", req, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// GetUser returns the operator view of an account.
func (a *AdminClient) GetUser(ctx context.Context, id string) (*User, error) {
	var resp UserResponse
	if err := a.do(ctx, http.MethodGet, userPath(id, ""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// ResetPasscodeLockout clears the failure counter and lock.
func (a *AdminClient) ResetPasscodeLockout(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, userPath(id, "/passcode/reset-lockout"), nil, nil)
}

// SetRequirePasscode toggles whether withdrawals need a factor.
func (a *AdminClient) SetRequirePasscode(ctx context.Context, id string, required bool) error {
	return a.do(ctx, http.MethodPost, userPath(id, "/passcode/requirement"), RequirePasscodeRequest{Required: required}, nil)
}

// ResetLoginOTP clears the login code and ends every session.
func (a *AdminClient) ResetLoginOTP(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, userPath(id, "/login-otp/reset"), nil, nil)
}

// DisableTwoFactor turns two-factor off.
func (a *AdminClient) DisableTwoFactor(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, userPath(id, "/two-factor/disable"), nil, nil)
}

// ChangePassword sets a new password and ends every session.
func (a *AdminClient) ChangePassword(ctx context.Context, id string, req ChangePasswordRequest) error {
	return a.do(ctx, http.MethodPost, userPath(id, "/password"), req, nil)
}

// SetEmailVerified marks the email verified or unverified.
func (a *AdminClient) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	return a.do(ctx, http.MethodPost, userPath(id, "/email-verification"), EmailVerifiedRequest{Verified: verified}, nil)
}

// MarkIdentityVerified records a passed identity check.
func (a *AdminClient) MarkIdentityVerified(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, userPath(id, "/identity-verification"), nil, nil)
}

// ListSettings returns the runtime settings.
func (a *AdminClient) ListSettings(ctx context.Context) ([]Setting, error) {
	var resp SettingsResponse
	if err := a.do(ctx, http.MethodGet, "/v1/admin/settings", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Settings, nil
}

// PutSetting sets a runtime setting.
func (a *AdminClient) PutSetting(ctx context.Context, key, value string) error {
	return a.do(ctx, http.MethodPut, "/v1/admin/settings/"+url.PathEscape(key), SettingRequest{Value: value}, nil)
}
