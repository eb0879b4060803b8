package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

// TwoFactorHandler manages authenticator enrollment for authenticated users.
type TwoFactorHandler struct {
	TwoFactor *service.TwoFactorEngine
}

// HandleEnable handles POST /v1/two-factor/enable
//
//	@Summary		Start two-factor enrollment
//	@Description	Re-proves the password and returns a pending TOTP secret with its otpauth:// URI.
//	@Description	Two-factor stays disabled until the secret is confirmed.
//	@Tags			Two-Factor
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.PasswordRequest			true	"Current password"
//	@Success		200		{object}	vaultsdk.TwoFactorEnableResponse	"Pending secret"
//	@Failure		401		{object}	vaultsdk.ErrorResponse				"Wrong password"
//	@Failure		422		{object}	vaultsdk.ErrorResponse				"Already enabled"
//	@Router			/v1/two-factor/enable [post].
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.PasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	enr, err := h.TwoFactor.Enable(r.Context(), info.UserID, req.CurrentPassword)
	if err != nil {
		writeError(w, r, err, "The provided password is incorrect.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, vaultsdk.TwoFactorEnableResponse{
		Success:    true,
		Secret:     enr.Secret,
		OTPAuthURL: enr.URI,
	})
}

// HandleConfirm handles POST /v1/two-factor/confirm
//
//	@Summary		Confirm two-factor enrollment
//	@Description	Checks a code from the authenticator app, enables two-factor and returns the recovery codes.
//	@Description	Recovery codes are shown once.
//	@Tags			Two-Factor
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.CodeRequest			true	"Authenticator code"
//	@Success		200		{object}	vaultsdk.RecoveryCodesResponse	"Recovery codes"
//	@Failure		401		{object}	vaultsdk.ErrorResponse			"Invalid code"
//	@Failure		422		{object}	vaultsdk.ErrorResponse			"Nothing pending or already enabled"
//	@Router			/v1/two-factor/confirm [post].
func (h *TwoFactorHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.CodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	codes, err := h.TwoFactor.Confirm(r.Context(), info.UserID, strings.TrimSpace(req.Code))
	if err != nil {
		writeError(w, r, err, "The provided two factor authentication code was invalid.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, vaultsdk.RecoveryCodesResponse{
		Success:       true,
		Message:       "Two-factor authentication enabled.",
		RecoveryCodes: codes,
	})
}

// HandleDisable handles POST /v1/two-factor/disable
//
//	@Summary		Disable two-factor
//	@Description	Re-proves the password and clears the secret, the enabled flag and every recovery code.
//	@Tags			Two-Factor
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.PasswordRequest	true	"Current password"
//	@Success		200		{object}	vaultsdk.MessageResponse
//	@Failure		401		{object}	vaultsdk.ErrorResponse	"Wrong password"
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Not enabled"
//	@Router			/v1/two-factor/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.PasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}
	if err := h.TwoFactor.Disable(r.Context(), info.UserID, req.CurrentPassword); err != nil {
		writeError(w, r, err, "The provided password is incorrect.")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, true, "Two-factor authentication disabled.")
}

// HandleRegenerateRecoveryCodes handles POST /v1/two-factor/recovery-codes
//
//	@Summary		Regenerate recovery codes
//	@Description	Re-proves the password and replaces the whole recovery code set.
//	@Tags			Two-Factor
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.PasswordRequest		true	"Current password"
//	@Success		200		{object}	vaultsdk.RecoveryCodesResponse	"New recovery codes"
//	@Failure		401		{object}	vaultsdk.ErrorResponse			"Wrong password"
//	@Failure		422		{object}	vaultsdk.ErrorResponse			"Not enabled"
//	@Router			/v1/two-factor/recovery-codes [post].
func (h *TwoFactorHandler) HandleRegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.PasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	codes, err := h.TwoFactor.RegenerateRecoveryCodes(r.Context(), info.UserID, req.CurrentPassword)
	if err != nil {
		writeError(w, r, err, "The provided password is incorrect.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, vaultsdk.RecoveryCodesResponse{
		Success:       true,
		Message:       "Recovery codes regenerated.",
		RecoveryCodes: codes,
	})
}
