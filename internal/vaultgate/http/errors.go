package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

// writeError maps a service error to a status code and JSON body.
// invalidMsg is shown for ErrInvalidCredential, so each route can word it.
func writeError(w http.ResponseWriter, r *http.Request, err error, invalidMsg string) {
	var (
		locked     *service.LockedError
		mismatch   *service.PasscodeMismatchError
		validation *service.ValidationError
		precond    *service.PreconditionError
	)

	switch {
	case errors.As(err, &locked):
		writeLocked(w, locked)

	case errors.As(err, &mismatch):
		attempts := mismatch.AttemptsRemaining
		isLocked := mismatch.Locked
		httpx.WriteJSON(w, http.StatusUnauthorized, vaultsdk.ErrorResponse{
			Message:           invalidMsg,
			AttemptsRemaining: &attempts,
			Locked:            &isLocked,
		})

	case errors.As(err, &validation):
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, vaultsdk.ErrorResponse{
			Message: fmt.Sprintf("The %s %s.", strings.ReplaceAll(validation.Field, "_", " "), validation.Reason),
			Errors:  map[string]string{validation.Field: validation.Reason},
		})

	case errors.As(err, &precond):
		httpx.WriteMessage(w, http.StatusUnprocessableEntity, false, precond.Reason)

	case errors.Is(err, service.ErrInvalidCredential):
		httpx.WriteMessage(w, http.StatusUnauthorized, false, invalidMsg)

	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteMessage(w, http.StatusNotFound, false, "User not found.")

	case errors.Is(err, httpx.ErrBadRequest):
		httpx.WriteMessage(w, http.StatusBadRequest, false, "Invalid JSON body.")

	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, false, "Internal server error.")
	}
}

func writeLocked(w http.ResponseWriter, e *service.LockedError) {
	minutes := service.LockoutMinutes(e.Remaining)
	isLocked := true
	httpx.WriteJSON(w, http.StatusLocked, vaultsdk.ErrorResponse{
		Message:          fmt.Sprintf("Account is temporarily locked. Please try again in %d minutes.", minutes),
		Locked:           &isLocked,
		LockoutRemaining: &minutes,
	})
}

// authInfo returns the caller resolved by the session middleware.
func authInfo(w http.ResponseWriter, r *http.Request) (httpx.AuthInfo, bool) {
	info, ok := httpx.AuthFromContext(r.Context())
	if !ok || info.UserID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, false, "Unauthenticated.")
		return httpx.AuthInfo{}, false
	}
	return info, true
}
