package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
)

// Authenticator resolves an opaque session token.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, token string) (AuthInfo, error)
}

// SessionMiddleware requires a valid login session, taken from the
// Authorization bearer header or, failing that, the session cookie. The
// session may still be part-way through the login gates.
func SessionMiddleware(a Authenticator, cookie *SessionCookie) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" && cookie != nil {
				token, _ = cookie.Read(r)
			}
			if token == "" {
				writeBearerError(w, "missing session token")
				return
			}

			info, err := a.AuthenticateToken(ctx, token)
			if err != nil {
				slogx.FromContext(ctx).Debug("session rejected", "err", err)
				writeBearerError(w, "invalid or expired session")
				return
			}

			ctx = slogx.With(ContextWithAuth(ctx, info), "user_id", info.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken returns the raw bearer token from the Authorization header.
func BearerToken(r *http.Request) string { return bearerToken(r) }

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteMessage(w, http.StatusUnauthorized, false, "Unauthenticated.")
}
