package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

// LoginHandler serves the login sequence: password, login OTP, email
// verification and the two-factor challenge.
type LoginHandler struct {
	Auth   *service.SessionAuthority
	Cookie *httpx.SessionCookie
}

// HandleLogin handles POST /v1/login
//
//	@Summary		Log in with email and password
//	@Description	Checks the password and opens a new login session with every verification flag cleared.
//	@Description	The response names the first pending gate; a login code is emailed when that gate is login_otp.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	vaultsdk.LoginResponse	"Session token and next stage"
//	@Failure		400		{object}	vaultsdk.ErrorResponse	"Malformed body"
//	@Failure		401		{object}	vaultsdk.ErrorResponse	"Invalid credentials"
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Validation failed"
//	@Failure		429		{object}	vaultsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/login [post].
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req vaultsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	res, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err, "These credentials do not match our records.")
		return
	}

	if h.Cookie != nil {
		if err := h.Cookie.Write(w, res.Token); err != nil {
			slogx.FromContext(r.Context()).Warn("failed to set session cookie", "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, vaultsdk.LoginResponse{
		Success:   true,
		Message:   "Logged in.",
		Token:     res.Token,
		SessionID: res.SessionID,
		Stage:     string(res.Stage),
		ExpiresAt: res.ExpiresAt,
	})
}

// HandleLogout handles POST /v1/logout
//
//	@Summary		Log out
//	@Description	Clears the session verification flags and destroys the session.
//	@Tags			Login
//	@Security		SessionAuth
//	@Produce		json
//	@Success		200	{object}	vaultsdk.MessageResponse
//	@Failure		401	{object}	vaultsdk.ErrorResponse	"Missing or invalid session"
//	@Router			/v1/logout [post].
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	if err := h.Auth.Logout(r.Context(), info.SessionID); err != nil {
		writeError(w, r, err, "")
		return
	}
	if h.Cookie != nil {
		h.Cookie.Clear(w)
	}
	httpx.WriteMessage(w, http.StatusOK, true, "Logged out.")
}

// HandleSession handles GET /v1/session
//
//	@Summary		Current session
//	@Description	Returns the caller's session and the next login gate it has to pass.
//	@Tags			Login
//	@Security		SessionAuth
//	@Produce		json
//	@Success		200	{object}	vaultsdk.SessionResponse
//	@Failure		401	{object}	vaultsdk.ErrorResponse	"Missing or invalid session"
//	@Router			/v1/session [get].
func (h *LoginHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	p, err := h.Auth.Stage(r.Context(), info.SessionID)
	if err != nil {
		writeError(w, r, err, "Unauthenticated.")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vaultsdk.SessionResponse{
		Success:   true,
		UserID:    p.User.ID,
		SessionID: p.Session.ID,
		Email:     p.User.Email,
		Stage:     string(p.Stage),
	})
}

// HandleResendLoginOTP handles POST /v1/login/otp/resend
//
//	@Summary		Resend the login code
//	@Description	Replaces the outstanding login code with a new one. Only valid at the login_otp gate.
//	@Tags			Login
//	@Security		SessionAuth
//	@Produce		json
//	@Success		200	{object}	vaultsdk.CodeSentResponse
//	@Failure		401	{object}	vaultsdk.ErrorResponse	"Missing or invalid session"
//	@Failure		422	{object}	vaultsdk.ErrorResponse	"Session is not at this gate"
//	@Failure		429	{object}	vaultsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/login/otp/resend [post].
func (h *LoginHandler) HandleResendLoginOTP(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	notice, err := h.Auth.ResendLoginOTP(r.Context(), info.SessionID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeCodeSent(w, "A new login code has been sent to your email address.", notice)
}

// HandleVerifyLoginOTP handles POST /v1/login/otp/verify
//
//	@Summary		Verify the login code
//	@Description	Passes the login_otp gate. A wrong or expired code leaves the session at the same gate.
//	@Tags			Login
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.CodeRequest	true	"Six digit code"
//	@Success		200		{object}	vaultsdk.StageResponse	"Next stage"
//	@Failure		401		{object}	vaultsdk.ErrorResponse	"Invalid or expired code"
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Validation failed or wrong gate"
//	@Failure		429		{object}	vaultsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/login/otp/verify [post].
func (h *LoginHandler) HandleVerifyLoginOTP(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.CodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}
	stage, err := h.Auth.VerifyLoginOTP(r.Context(), info.SessionID, strings.TrimSpace(req.Code))
	if err != nil {
		writeError(w, r, err, "Invalid or expired login code.")
		return
	}
	writeStage(w, "Login code verified.", string(stage))
}

// HandleSendEmailVerification handles POST /v1/email/verification/send
//
//	@Summary		Send an email verification code
//	@Description	Issues a new six digit email verification code. Only valid at the email_verification gate.
//	@Tags			Login
//	@Security		SessionAuth
//	@Produce		json
//	@Success		200	{object}	vaultsdk.CodeSentResponse
//	@Failure		401	{object}	vaultsdk.ErrorResponse	"Missing or invalid session"
//	@Failure		422	{object}	vaultsdk.ErrorResponse	"Session is not at this gate"
//	@Failure		429	{object}	vaultsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/email/verification/send [post].
func (h *LoginHandler) HandleSendEmailVerification(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	notice, err := h.Auth.SendEmailVerificationCode(r.Context(), info.SessionID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeCodeSent(w, "A verification code has been sent to your email address.", notice)
}

// HandleVerifyEmail handles POST /v1/email/verification/verify
//
//	@Summary		Verify the email address
//	@Description	Passes the email_verification gate and marks the address verified.
//	@Tags			Login
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.CodeRequest	true	"Six digit code"
//	@Success		200		{object}	vaultsdk.StageResponse	"Next stage"
//	@Failure		401		{object}	vaultsdk.ErrorResponse	"Invalid or expired code"
//	@Failure		422		{object}	vaultsdk.ErrorResponse	"Validation failed or wrong gate"
//	@Router			/v1/email/verification/verify [post].
func (h *LoginHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.CodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}
	stage, err := h.Auth.VerifyEmail(r.Context(), info.SessionID, strings.TrimSpace(req.Code))
	if err != nil {
		writeError(w, r, err, "Invalid or expired verification code.")
		return
	}
	writeStage(w, "Email address verified.", string(stage))
}

// HandleTwoFactorChallenge handles POST /v1/two-factor/challenge
//
//	@Summary		Answer the two-factor challenge
//	@Description	Passes the two_factor gate with an authenticator code or a single-use recovery code.
//	@Tags			Login
//	@Security		SessionAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		vaultsdk.TwoFactorChallengeRequest	true	"code or recovery_code"
//	@Success		200		{object}	vaultsdk.StageResponse				"Next stage"
//	@Failure		401		{object}	vaultsdk.ErrorResponse				"Invalid code"
//	@Failure		422		{object}	vaultsdk.ErrorResponse				"Validation failed or wrong gate"
//	@Failure		429		{object}	vaultsdk.ErrorResponse				"Rate limited"
//	@Router			/v1/two-factor/challenge [post].
func (h *LoginHandler) HandleTwoFactorChallenge(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	var req vaultsdk.TwoFactorChallengeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	in := service.CodeInput{Value: req.Code}
	if strings.TrimSpace(req.RecoveryCode) != "" {
		in = service.CodeInput{Kind: service.CodeKindRecovery, Value: req.RecoveryCode}
	}

	stage, err := h.Auth.VerifyTwoFactor(r.Context(), info.SessionID, in)
	if err != nil {
		writeError(w, r, err, "The provided two factor authentication code was invalid.")
		return
	}
	writeStage(w, "Two-factor authentication passed.", string(stage))
}

func writeStage(w http.ResponseWriter, msg, stage string) {
	httpx.WriteJSON(w, http.StatusOK, vaultsdk.StageResponse{Success: true, Message: msg, Stage: stage})
}

func writeCodeSent(w http.ResponseWriter, msg string, notice service.CodeNotice) {
	httpx.WriteJSON(w, http.StatusOK, vaultsdk.CodeSentResponse{
		Success:     true,
		Message:     msg,
		MaskedEmail: notice.MaskedEmail,
		ExpiresIn:   int(notice.ExpiresIn / time.Minute),
	})
}
