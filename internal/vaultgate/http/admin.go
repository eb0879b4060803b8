package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

// SettingsStore is the part of the settings provider the admin routes use.
type SettingsStore interface {
	All(ctx context.Context) ([]domain.Setting, error)
	Set(ctx context.Context, key, value string) error
}

// AdminHandler serves the operator routes. Every route sits behind the
// static admin token.
type AdminHandler struct {
	Admin    *service.AdminService
	Settings SettingsStore
}

// HandleCreateUser handles POST /v1/admin/users
//
//	@Summary		Create a user
//	@Description	Provisions an account. require_withdrawal_passcode defaults to true.
//	@Tags			Admin
//	@Security		AdminAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.CreateUserRequest	true	"New account"
//	@Success		201		{object}	vaultsdk.UserResponse
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Validation failed"
//	@Router			/v1/admin/users [post].
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req vaultsdk.CreateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	requirePasscode := true
	if req.RequireWithdrawalPasscode != nil {
		requirePasscode = *req.RequireWithdrawalPasscode
	}

	u, err := h.Admin.CreateUser(r.Context(), service.NewUser{
		Email:                     req.Email,
		Name:                      req.Name,
		Password:                  req.Password,
		EmailVerified:             req.EmailVerified,
		RequireWithdrawalPasscode: requirePasscode,
	})
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, vaultsdk.UserResponse{Success: true, User: userView(u)})
}

// HandleGetUser handles GET /v1/admin/users/{id}
//
//	@Summary		Get a user
//	@Tags			Admin
//	@Security		AdminAuth
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	vaultsdk.UserResponse
//	@Failure		404	{object}	vaultsdk.ErrorResponse	"Unknown user"
//	@Router			/v1/admin/users/{id} [get].
func (h *AdminHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Admin.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vaultsdk.UserResponse{Success: true, User: userView(u)})
}

// HandleResetPasscodeLockout handles POST /v1/admin/users/{id}/passcode/reset-lockout
//
//	@Summary		Reset the passcode lockout
//	@Description	Zeroes the failed attempt counter and clears the lock.
//	@Tags			Admin
//	@Security		AdminAuth
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	vaultsdk.MessageResponse
//	@Failure		404	{object}	vaultsdk.ErrorResponse	"Unknown user"
//	@Router			/v1/admin/users/{id}/passcode/reset-lockout [post].
func (h *AdminHandler) HandleResetPasscodeLockout(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Passcode lockout has been reset.", func(ctx context.Context, id string) error {
		return h.Admin.ResetPasscodeLockout(ctx, id)
	})
}

// HandleSetRequirePasscode handles POST /v1/admin/users/{id}/passcode/requirement
//
//	@Summary		Toggle the withdrawal passcode requirement
//	@Tags			Admin
//	@Security		AdminAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"User ID"
//	@Param			request	body		vaultsdk.RequirePasscodeRequest	true	"Requirement"
//	@Success		200		{object}	vaultsdk.MessageResponse
//	@Failure		404		{object}	vaultsdk.ErrorResponse	"Unknown user"
//	@Router			/v1/admin/users/{id}/passcode/requirement [post].
func (h *AdminHandler) HandleSetRequirePasscode(w http.ResponseWriter, r *http.Request) {
	var req vaultsdk.RequirePasscodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}
	h.action(w, r, "Withdrawal passcode requirement updated.", func(ctx context.Context, id string) error {
		return h.Admin.SetRequireWithdrawalPasscode(ctx, id, req.Required)
	})
}

// HandleResetLoginOTP handles POST /v1/admin/users/{id}/login-otp/reset
//
//	@Summary		Reset the login code
//	@Description	Clears any outstanding login code and ends the user's sessions.
//	@Tags			Admin
//	@Security		AdminAuth
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	vaultsdk.MessageResponse
//	@Failure		404	{object}	vaultsdk.ErrorResponse	"Unknown user"
//	@Router			/v1/admin/users/{id}/login-otp/reset [post].
func (h *AdminHandler) HandleResetLoginOTP(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Login OTP has been reset.", func(ctx context.Context, id string) error {
		return h.Admin.ResetLoginOTP(ctx, id)
	})
}

// HandleDisableTwoFactor handles POST /v1/admin/users/{id}/two-factor/disable
//
//	@Summary		Disable two-factor for a user
//	@Tags			Admin
//	@Security		AdminAuth
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	vaultsdk.MessageResponse
//	@Failure		404	{object}	vaultsdk.ErrorResponse	"Unknown user"
//	@Router			/v1/admin/users/{id}/two-factor/disable [post].
func (h *AdminHandler) HandleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Two-factor authentication has been disabled.", func(ctx context.Context, id string) error {
		return h.Admin.DisableTwoFactor(ctx, id)
	})
}

// HandleChangePassword handles POST /v1/admin/users/{id}/password
//
//	@Summary		Change a user's password
//	@Description	Sets a new password, ends every session and optionally alerts the user.
//	@Tags			Admin
//	@Security		AdminAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"User ID"
//	@Param			request	body		vaultsdk.ChangePasswordRequest	true	"New password"
//	@Success		200		{object}	vaultsdk.MessageResponse
//	@Failure		404		{object}	vaultsdk.ErrorResponse	"Unknown user"
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Validation failed"
//	@Router			/v1/admin/users/{id}/password [post].
func (h *AdminHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req vaultsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}
	h.action(w, r, "Password has been changed.", func(ctx context.Context, id string) error {
		return h.Admin.ChangePassword(ctx, id, req.NewPassword, req.NewPasswordConfirmation, req.NotifyUser)
	})
}

// HandleSetEmailVerified handles POST /v1/admin/users/{id}/email-verification
//
//	@Summary		Mark the email verified or unverified
//	@Tags			Admin
//	@Security		AdminAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"User ID"
//	@Param			request	body		vaultsdk.EmailVerifiedRequest	true	"Verified flag"
//	@Success		200		{object}	vaultsdk.MessageResponse
//	@Failure		404		{object}	vaultsdk.ErrorResponse	"Unknown user"
//	@Router			/v1/admin/users/{id}/email-verification [post].
func (h *AdminHandler) HandleSetEmailVerified(w http.ResponseWriter, r *http.Request) {
	var req vaultsdk.EmailVerifiedRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}
	h.action(w, r, "Email verification updated.", func(ctx context.Context, id string) error {
		return h.Admin.SetEmailVerified(ctx, id, req.Verified)
	})
}

// HandleMarkIdentityVerified handles POST /v1/admin/users/{id}/identity-verification
//
//	@Summary		Mark identity verification as passed
//	@Tags			Admin
//	@Security		AdminAuth
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	vaultsdk.MessageResponse
//	@Failure		404	{object}	vaultsdk.ErrorResponse	"Unknown user"
//	@Router			/v1/admin/users/{id}/identity-verification [post].
func (h *AdminHandler) HandleMarkIdentityVerified(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Identity verification recorded.", func(ctx context.Context, id string) error {
		return h.Admin.MarkIdentityVerified(ctx, id)
	})
}

// HandleListSettings handles GET /v1/admin/settings
//
//	@Summary		List runtime settings
//	@Tags			Admin
//	@Security		AdminAuth
//	@Produce		json
//	@Success		200	{object}	vaultsdk.SettingsResponse
//	@Router			/v1/admin/settings [get].
func (h *AdminHandler) HandleListSettings(w http.ResponseWriter, r *http.Request) {
	list, err := h.Settings.All(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	out := make([]vaultsdk.Setting, 0, len(list))
	for _, s := range list {
		out = append(out, vaultsdk.Setting{Key: s.Key, Value: s.Value, UpdatedAt: s.UpdatedAt})
	}
	httpx.WriteJSON(w, http.StatusOK, vaultsdk.SettingsResponse{Success: true, Settings: out})
}

// HandlePutSetting handles PUT /v1/admin/settings/{key}
//
//	@Summary		Set a runtime setting
//	@Description	login_otp_enabled and idme_required take a boolean; other keys take any string.
//	@Tags			Admin
//	@Security		AdminAuth
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string					true	"Setting key"
//	@Param			request	body		vaultsdk.SettingRequest	true	"Value"
//	@Success		200		{object}	vaultsdk.MessageResponse
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Invalid value"
//	@Router			/v1/admin/settings/{key} [put].
func (h *AdminHandler) HandlePutSetting(w http.ResponseWriter, r *http.Request) {
	var req vaultsdk.SettingRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	key := r.PathValue("key")
	switch key {
	case domain.SettingLoginOTPEnabled, domain.SettingIdentityRequired:
		if _, err := strconv.ParseBool(req.Value); err != nil {
			writeError(w, r, &service.ValidationError{Field: "value", Reason: "must be a boolean"}, "")
			return
		}
	}

	if err := h.Settings.Set(r.Context(), key, req.Value); err != nil {
		writeError(w, r, err, "")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, true, "Setting updated.")
}

func (h *AdminHandler) action(w http.ResponseWriter, r *http.Request, msg string, fn func(ctx context.Context, id string) error) {
	if err := fn(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err, "")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, true, msg)
}

func userView(u domain.User) vaultsdk.User {
	return vaultsdk.User{
		ID:                     u.ID,
		Email:                  u.Email,
		Name:                   u.Name,
		EmailVerified:          u.EmailVerified(),
		IdentityVerified:       u.IdentityVerified(),
		TwoFactorEnabled:       u.TwoFactorEnabled,
		HasPasscode:            u.HasWithdrawalPasscode(),
		RequiresPasscode:       u.RequireWithdrawalPasscode,
		PasscodeFailedAttempts: u.PasscodeFailedAttempts,
		PasscodeLockedUntil:    u.PasscodeLockedUntil,
		LastLoginAt:            u.LastLoginAt,
		CreatedAt:              u.CreatedAt,
	}
}
