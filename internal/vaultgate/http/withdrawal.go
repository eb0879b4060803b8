package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

// WithdrawalHandler serves the withdrawal passcode gate.
type WithdrawalHandler struct {
	Gate *service.WithdrawalGate
}

// HandleStatus handles GET /v1/withdrawal/passcode/status
//
//	@Summary		Withdrawal passcode status
//	@Description	Reports whether a passcode is set, whether one is required and the lockout state. No side effects.
//	@Tags			Withdrawal
//	@Security		SessionAuth
//	@Produce		json
//	@Success		200	{object}	vaultsdk.PasscodeStatusResponse
//	@Failure		401	{object}	vaultsdk.ErrorResponse	"Missing or invalid session"
//	@Failure		403	{object}	vaultsdk.ErrorResponse	"Login gates pending"
//	@Router			/v1/withdrawal/passcode/status [get].
func (h *WithdrawalHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	st, err := h.Gate.Status(r.Context(), info.UserID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vaultsdk.PasscodeStatusResponse{
		HasPasscode:      st.HasPasscode,
		RequiresPasscode: st.RequiresPasscode,
		IsLocked:         st.Locked,
		LockoutRemaining: service.LockoutMinutes(st.LockoutRemaining),
	})
}

// HandleSetup handles POST /v1/withdrawal/passcode/setup
//
//	@Summary		Set or change the withdrawal passcode
//	@Description	Sets a six digit passcode. Changing an existing passcode requires current_passcode,
//	@Description	which is checked under the lockout rules.
//	@Tags			Withdrawal
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.PasscodeSetupRequest	true	"New passcode"
//	@Success		200		{object}	vaultsdk.MessageResponse
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Validation failed or current passcode incorrect"
//	@Failure		423		{object}	vaultsdk.ErrorResponse	"Passcode locked"
//	@Router			/v1/withdrawal/passcode/setup [post].
func (h *WithdrawalHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.PasscodeSetupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	err := h.Gate.SetupPasscode(r.Context(), info.UserID, req.Passcode, req.PasscodeConfirmation, req.CurrentPasscode)
	if err != nil {
		var mismatch *service.PasscodeMismatchError
		if errors.As(err, &mismatch) {
			attempts, locked := mismatch.AttemptsRemaining, mismatch.Locked
			httpx.WriteJSON(w, http.StatusUnprocessableEntity, vaultsdk.ErrorResponse{
				Message:           "Current passcode is incorrect.",
				AttemptsRemaining: &attempts,
				Locked:            &locked,
			})
			return
		}
		writeError(w, r, err, "")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, true, "Withdrawal passcode has been set successfully.")
}

// HandleVerify handles POST /v1/withdrawal/passcode/verify
//
//	@Summary		Verify the withdrawal passcode
//	@Description	Checks the passcode and returns a short-lived withdrawal grant.
//	@Description	Five consecutive failures lock the passcode for 30 minutes; while locked even the correct passcode is refused.
//	@Tags			Withdrawal
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.PasscodeRequest	true	"Passcode"
//	@Success		200		{object}	vaultsdk.GrantResponse		"Withdrawal grant"
//	@Failure		401		{object}	vaultsdk.ErrorResponse		"Incorrect passcode, with attempts_remaining"
//	@Failure		422		{object}	vaultsdk.ErrorResponse		"Validation failed or no passcode set"
//	@Failure		423		{object}	vaultsdk.ErrorResponse		"Passcode locked, with lockout_remaining"
//	@Router			/v1/withdrawal/passcode/verify [post].
func (h *WithdrawalHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.PasscodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	grant, err := h.Gate.Verify(r.Context(), info.UserID, req.Passcode)
	if err != nil {
		writeError(w, r, err, "Incorrect passcode.")
		return
	}
	writeGrant(w, "Passcode verified successfully.", grant)
}

// HandleSendOTP handles POST /v1/withdrawal/otp/send
//
//	@Summary		Email a withdrawal code
//	@Description	Emails a six digit withdrawal code, valid for 10 minutes, as an alternative to the passcode.
//	@Description	Refused while the passcode is locked.
//	@Tags			Withdrawal
//	@Security		SessionAuth
//	@Produce		json
//	@Success		200	{object}	vaultsdk.CodeSentResponse
//	@Failure		423	{object}	vaultsdk.ErrorResponse	"Passcode locked"
//	@Failure		429	{object}	vaultsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/withdrawal/otp/send [post].
func (h *WithdrawalHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	notice, err := h.Gate.SendOTP(r.Context(), info.UserID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeCodeSent(w, "OTP has been sent to your email address.", notice)
}

// HandleVerifyOTP handles POST /v1/withdrawal/otp/verify
//
//	@Summary		Verify the emailed withdrawal code
//	@Description	Checks the emailed code and returns a withdrawal grant. The code works once.
//	@Tags			Withdrawal
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.WithdrawalOTPRequest	true	"Emailed code"
//	@Success		200		{object}	vaultsdk.GrantResponse			"Withdrawal grant"
//	@Failure		401		{object}	vaultsdk.ErrorResponse			"Invalid or expired code"
//	@Failure		422		{object}	vaultsdk.ErrorResponse			"Validation failed"
//	@Failure		423		{object}	vaultsdk.ErrorResponse			"Passcode locked"
//	@Router			/v1/withdrawal/otp/verify [post].
func (h *WithdrawalHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.WithdrawalOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	grant, err := h.Gate.VerifyOTP(r.Context(), info.UserID, strings.TrimSpace(req.OTP))
	if err != nil {
		writeError(w, r, err, "Invalid or expired OTP.")
		return
	}
	writeGrant(w, "OTP verified successfully.", grant)
}

// HandleRemove handles POST /v1/withdrawal/passcode/remove
//
//	@Summary		Remove the withdrawal passcode
//	@Description	Checks the passcode under the lockout rules and clears it.
//	@Tags			Withdrawal
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.PasscodeRequest	true	"Passcode"
//	@Success		200		{object}	vaultsdk.MessageResponse
//	@Failure		401		{object}	vaultsdk.ErrorResponse	"Incorrect passcode"
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Validation failed or no passcode set"
//	@Failure		423		{object}	vaultsdk.ErrorResponse	"Passcode locked"
//	@Router			/v1/withdrawal/passcode/remove [post].
func (h *WithdrawalHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.PasscodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}
	if err := h.Gate.RemovePasscode(r.Context(), info.UserID, req.Passcode); err != nil {
		writeError(w, r, err, "Incorrect passcode.")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, true, "Withdrawal passcode has been removed.")
}

// HandleAuthorize handles POST /v1/withdrawal/authorize
//
//	@Summary		Authorize a withdrawal without a factor
//	@Description	Issues a grant for users whose account does not require a withdrawal passcode.
//	@Tags			Withdrawal
//	@Security		SessionAuth
//	@Produce		json
//	@Success		200	{object}	vaultsdk.GrantResponse	"Withdrawal grant"
//	@Failure		422	{object}	vaultsdk.ErrorResponse	"Passcode or emailed code required"
//	@Router			/v1/withdrawal/authorize [post].
func (h *WithdrawalHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	grant, err := h.Gate.Authorize(r.Context(), info.UserID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeGrant(w, "Withdrawal authorized.", grant)
}

func writeGrant(w http.ResponseWriter, msg string, g *service.Grant) {
	httpx.WriteJSON(w, http.StatusOK, vaultsdk.GrantResponse{
		Success:   true,
		Message:   msg,
		Grant:     g.Token,
		GrantID:   g.ID,
		Method:    g.Method,
		ExpiresAt: g.ExpiresAt,
	})
}
